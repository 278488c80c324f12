package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"

	"github.com/messfeedback/go-auth/middleware/jwtware"
)

// RouteAuthenticator adapts an Authenticator to fiber: cookies, the
// protect middleware, role guards and the error to response mapping.
type RouteAuthenticator struct {
	auth           Authenticator
	cfg            Config
	cookieDuration time.Duration
	Logger         Logger
	ErrorHandler   fiber.ErrorHandler
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	if auther == nil {
		return nil, errors.New("authenticator is required", errors.CategoryInternal)
	}
	if cfg == nil {
		return nil, errors.New("config is required", errors.CategoryInternal)
	}

	cookieDuration := time.Duration(DefaultTokenExpiration) * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	a := &RouteAuthenticator{
		cfg:            cfg,
		auth:           auther,
		Logger:         defLogger{},
		cookieDuration: cookieDuration,
	}
	a.ErrorHandler = a.HandleError

	return a, nil
}

func (a *RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

func (a *RouteAuthenticator) cookieName() string {
	if name := a.cfg.GetContextKey(); name != "" {
		return name
	}
	return "auth_token"
}

func (a *RouteAuthenticator) tokenLookup() string {
	if lookup := a.cfg.GetTokenLookup(); lookup != "" {
		return lookup
	}
	return "header:" + fiber.HeaderAuthorization + ",cookie:" + a.cookieName()
}

// ProtectedRoute returns the middleware gating handlers behind a valid
// session. The AccountView is stored in Locals under DefaultContextKey
// and in the user context.
func (a *RouteAuthenticator) ProtectedRoute() fiber.Handler {
	return jwtware.New(jwtware.Config{
		ErrorHandler: a.errorHandler,
		AuthScheme:   a.cfg.GetAuthScheme(),
		ContextKey:   DefaultContextKey,
		TokenLookup:  a.tokenLookup(),
		Validator: func(c *fiber.Ctx, tokens jwtware.Tokens) (any, error) {
			view, err := a.auth.Protect(c.UserContext(), TokenSource{
				Header: tokens.Header,
				Cookie: tokens.Cookie,
			}, RequestMetadataFromFiber(c))
			if err != nil {
				return nil, err
			}
			return view, nil
		},
		ContextEnricher: func(ctx context.Context, principal any) context.Context {
			if view, ok := principal.(AccountView); ok {
				return WithAccountContext(ctx, view)
			}
			return ctx
		},
	})
}

// RequireRoles must run after ProtectedRoute.
func (a *RouteAuthenticator) RequireRoles(roles ...Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, ok := AccountFromFiber(c, DefaultContextKey)
		if !ok {
			return a.errorHandler(c, ErrUnauthenticated)
		}
		if err := a.auth.Authorize(c.UserContext(), view, roles...); err != nil {
			return a.errorHandler(c, err)
		}
		return c.Next()
	}
}

// Login authenticates the payload within scope and sets the session cookie.
func (a *RouteAuthenticator) Login(c *fiber.Ctx, payload LoginPayload, scope Role) (*LoginResult, error) {
	result, err := a.auth.Login(c.UserContext(), LoginRequest{
		Identifier: payload.GetIdentifier(),
		Password:   payload.GetPassword(),
		Scope:      scope,
		Meta:       RequestMetadataFromFiber(c),
	})
	if err != nil {
		a.Logger.Info("login error", "error", err, "text_code", TextCode(err))
		return nil, err
	}

	a.setCookieToken(c, result.Token, result.ExpiresAt)
	return result, nil
}

// Logout discards the session cookie. Tokens are stateless, so a copy
// held elsewhere stays valid until it expires.
func (a *RouteAuthenticator) Logout(c *fiber.Ctx) {
	a.cookieDel(c, a.cookieName())
}

func (a *RouteAuthenticator) setCookieToken(c *fiber.Ctx, val string, expires time.Time) {
	if expires.IsZero() {
		expires = time.Now().Add(a.cookieDuration)
	}
	c.Cookie(&fiber.Cookie{
		Name:     a.cookieName(),
		Value:    val,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   a.cfg.GetSecureCookies(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (a *RouteAuthenticator) cookieDel(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.cfg.GetSecureCookies(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (a *RouteAuthenticator) errorHandler(c *fiber.Ctx, err error) error {
	if a.ErrorHandler != nil {
		return a.ErrorHandler(c, err)
	}
	return a.HandleError(c, err)
}

// responseMetadataKeys lists the metadata keys that may reach a client.
var responseMetadataKeys = []string{"locked_until", "required_roles", "actual_role", "fields"}

// HandleError maps every error to a status code and JSON body in one
// place. Errors that are not rich errors become a generic 500.
func (a *RouteAuthenticator) HandleError(c *fiber.Ctx, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(http.StatusInternalServerError)
	}

	status := richErr.Code
	if status == 0 {
		status = statusFromCategory(richErr)
	}

	message := richErr.Message
	if status >= http.StatusInternalServerError {
		a.Logger.Error(
			"request failed",
			"error", err,
			"category", richErr.Category,
			"path", c.OriginalURL(),
		)
		if richErr.TextCode == "" {
			message = "An unexpected server error occurred"
		}
	} else {
		a.Logger.Info(
			"request rejected",
			"error", richErr.Message,
			"text_code", richErr.TextCode,
			"path", c.OriginalURL(),
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)
	}

	body := fiber.Map{
		"code":    richErr.TextCode,
		"message": message,
	}
	for _, key := range responseMetadataKeys {
		if v, ok := richErr.Metadata[key]; ok {
			body[key] = v
		}
	}

	return c.Status(status).JSON(fiber.Map{"error": body})
}

func statusFromCategory(richErr *errors.Error) int {
	switch richErr.Category {
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryValidation, errors.CategoryBadInput:
		return http.StatusBadRequest
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// LimitReached renders ErrRateLimited and records the rejected request
// on sink. It is meant for ratelimit.Config.LimitReached.
func (a *RouteAuthenticator) LimitReached(sink ActivitySink) fiber.Handler {
	sink = normalizeActivitySink(sink)
	return func(c *fiber.Ctx) error {
		event := newActivityEvent(ActivityEventLoginRateLimit, "", RequestMetadataFromFiber(c), time.Now())
		event.Metadata["path"] = c.Path()
		if err := sink.Record(c.UserContext(), event); err != nil {
			a.Logger.Warn("activity sink record error", "event", event.EventType, "error", err)
		}
		return a.errorHandler(c, ErrRateLimited)
	}
}

// RequestMetadataFromFiber collects the audit metadata of a request.
func RequestMetadataFromFiber(c *fiber.Ctx) RequestMetadata {
	return RequestMetadata{
		SourceIP:  c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
}
