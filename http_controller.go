package auth

import (
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
)

// LoginPayload is the input of the HTTP login handler
type LoginPayload interface {
	GetIdentifier() string
	GetPassword() string
}

// LoginCredentials payload
type LoginCredentials struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
}

// GetIdentifier returns the identifier
func (r LoginCredentials) GetIdentifier() string {
	return strings.TrimSpace(r.Identifier)
}

// GetPassword will return the password
func (r LoginCredentials) GetPassword() string {
	return r.Password
}

// Validate will run validation rules
func (r LoginCredentials) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
			validation.Length(1, 255),
		),
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(1, 1024),
		),
	)
}

// FormatValidationErrorToMap flattens ozzo validation errors to field -> message.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}
	if err != nil {
		out["_"] = err.Error()
	}
	return out
}

func invalidPayloadError(err error) *errors.Error {
	return errors.New("invalid login request payload", errors.CategoryValidation).
		WithTextCode(TextCodeInvalidPayload).
		WithCode(http.StatusBadRequest).
		WithMetadata(map[string]any{
			"fields": FormatValidationErrorToMap(err),
		})
}

type AuthControllerRoutes struct {
	StudentLogin string
	AdminLogin   string
	Logout       string
	Me           string
	AdminSession string
}

type AuthController struct {
	Logger       Logger
	Routes       *AuthControllerRoutes
	Auther       *RouteAuthenticator
	LoginLimiter fiber.Handler
}

type AuthControllerOption func(*AuthController) *AuthController

// WithAuthControllerAuther sets the HTTP authenticator.
func WithAuthControllerAuther(a *RouteAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = a
		return c
	}
}

// WithAuthControllerLogger sets the controller logger.
func WithAuthControllerLogger(l Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = normalizeLogger(l)
		return c
	}
}

// WithLoginLimiter installs a handler in front of the login routes.
func WithLoginLimiter(h fiber.Handler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.LoginLimiter = h
		return c
	}
}

// WithAuthControllerRoutes overrides the default paths.
func WithAuthControllerRoutes(r *AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if r != nil {
			c.Routes = r
		}
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			StudentLogin: "/auth/student/login",
			AdminLogin:   "/auth/admin/login",
			Logout:       "/auth/logout",
			Me:           "/auth/me",
			AdminSession: "/admin/session",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	return c
}

// RegisterAuthRoutes mounts the login, logout and session routes on app.
func RegisterAuthRoutes(app fiber.Router, opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	login := func(scope Role) []fiber.Handler {
		handlers := []fiber.Handler{}
		if controller.LoginLimiter != nil {
			handlers = append(handlers, controller.LoginLimiter)
		}
		return append(handlers, controller.LoginPost(scope))
	}

	app.Post(controller.Routes.StudentLogin, login(RoleStudent)...).Name("auth.student.login")
	app.Post(controller.Routes.AdminLogin, login(RoleAdmin)...).Name("auth.admin.login")
	app.Post(controller.Routes.Logout, controller.LogOut).Name("auth.logout")

	protected := controller.Auther.ProtectedRoute()
	app.Get(controller.Routes.Me, protected, controller.Me).Name("auth.me")
	app.Get(controller.Routes.AdminSession,
		protected,
		controller.Auther.RequireRoles(RoleAdmin),
		controller.Me,
	).Name("auth.admin.session")

	return controller
}

// LoginPost authenticates against accounts of the given role.
func (a *AuthController) LoginPost(scope Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := new(LoginCredentials)

		if err := c.BodyParser(payload); err != nil {
			a.Logger.Info("login payload bind error", "error", err)
			return a.Auther.errorHandler(c, invalidPayloadError(err))
		}

		if err := payload.Validate(); err != nil {
			return a.Auther.errorHandler(c, invalidPayloadError(err))
		}

		result, err := a.Auther.Login(c, payload, scope)
		if err != nil {
			return a.Auther.errorHandler(c, err)
		}

		return c.Status(fiber.StatusOK).JSON(result)
	}
}

func (a *AuthController) LogOut(c *fiber.Ctx) error {
	a.Auther.Logout(c)
	return c.SendStatus(fiber.StatusNoContent)
}

// Me returns the account attached by the protect middleware.
func (a *AuthController) Me(c *fiber.Ctx) error {
	view, ok := AccountFromFiber(c, DefaultContextKey)
	if !ok {
		return a.Auther.errorHandler(c, ErrUnauthenticated)
	}
	return c.JSON(fiber.Map{"account": view})
}
