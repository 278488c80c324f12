package jwtware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var (
	defaultTokenLookup       = "header:" + fiber.HeaderAuthorization
	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")
)

// Tokens holds the raw token candidates found on a request.
// This mirrors auth.TokenSource without importing the auth package.
type Tokens struct {
	Header string
	Cookie string
}

// Empty reports whether no token was found.
func (t Tokens) Empty() bool {
	return t.Header == "" && t.Cookie == ""
}

// TokenValidator resolves the principal for the extracted tokens. It is
// called even when no token was found so the caller owns that decision.
type TokenValidator func(c *fiber.Ctx, tokens Tokens) (any, error)

type Config struct {
	Filter         func(*fiber.Ctx) bool
	SuccessHandler fiber.Handler
	ErrorHandler   fiber.ErrorHandler
	ContextKey     string
	// TokenLookup is a comma separated list of sources,
	// e.g. "header:Authorization,cookie:auth_token".
	TokenLookup string
	AuthScheme  string
	// Validator is required
	Validator TokenValidator

	// ContextEnricher is an optional function to propagate the principal to
	// the request user context.
	ContextEnricher func(c context.Context, principal any) context.Context
}

func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)
	extractors := cfg.getExtractors()

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		tokens := ExtractTokens(c, extractors)

		principal, err := cfg.Validator(c, tokens)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		c.Locals(cfg.ContextKey, principal)

		if cfg.ContextEnricher != nil {
			c.SetUserContext(cfg.ContextEnricher(c.UserContext(), principal))
		}

		return cfg.SuccessHandler(c)
	}
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).SendString("Invalid or expired token")
		}
	}

	if cfg.Validator == nil {
		panic("AUTH: JWT middleware configuration: Validator is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "account"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

func (cfg *Config) getExtractors() []JWTExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

// ExtractTokens runs every extractor, keeping the first hit per source.
func ExtractTokens(c *fiber.Ctx, extractors []JWTExtractor) Tokens {
	var tokens Tokens
	for _, ex := range extractors {
		token, err := ex.Extract(c)
		if err != nil || token == "" {
			continue
		}
		switch ex.Source {
		case SourceHeader:
			if tokens.Header == "" {
				tokens.Header = token
			}
		case SourceCookie:
			if tokens.Cookie == "" {
				tokens.Cookie = token
			}
		}
	}
	return tokens
}

const (
	SourceHeader = "header"
	SourceCookie = "cookie"
)

type JWTExtractor struct {
	Source  string
	Extract func(c *fiber.Ctx) (string, error)
}

func GetExtractors(tokenLookup string, authSchemes ...string) []JWTExtractor {
	extractors := make([]JWTExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = authSchemes[0]
	}

	// header:Authorization,cookie:auth_token
	rootParts := strings.Split(tokenLookup, ",")
	for _, rootPart := range rootParts {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")
		if len(parts) != 2 {
			continue
		}

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case SourceHeader:
			extractors = append(extractors, JWTExtractor{Source: SourceHeader, Extract: jwtFromHeader(parts[1], authScheme)})
		case SourceCookie:
			extractors = append(extractors, JWTExtractor{Source: SourceCookie, Extract: jwtFromCookie(parts[1])})
		}
	}

	return extractors
}

// jwtFromHeader returns a function that extracts token from the request header.
func jwtFromHeader(header string, authScheme string) func(c *fiber.Ctx) (string, error) {
	authScheme = strings.TrimSpace(authScheme)
	return func(c *fiber.Ctx) (string, error) {
		a := c.Get(header)
		l := len(authScheme)
		if l == 0 {
			return "", ErrJWTMissingOrMalformed
		}
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) && a[l] == ' ' {
			if token := strings.TrimSpace(a[l:]); token != "" {
				return token, nil
			}
		}
		return "", ErrJWTMissingOrMalformed
	}
}

// jwtFromCookie returns a function that extracts token from the named cookie.
func jwtFromCookie(name string) func(c *fiber.Ctx) (string, error) {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}
