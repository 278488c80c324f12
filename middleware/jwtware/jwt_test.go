package jwtware_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/messfeedback/go-auth/middleware/jwtware"
)

type principalKey struct{}

func newApp(t *testing.T, cfg jwtware.Config, seen *jwtware.Tokens) *fiber.App {
	t.Helper()

	validator := cfg.Validator
	cfg.Validator = func(c *fiber.Ctx, tokens jwtware.Tokens) (any, error) {
		*seen = tokens
		return validator(c, tokens)
	}

	app := fiber.New()
	app.Get("/protected", jwtware.New(cfg), func(c *fiber.Ctx) error {
		principal, _ := c.Locals("account").(string)
		fromCtx, _ := c.UserContext().Value(principalKey{}).(string)
		return c.SendString(principal + "|" + fromCtx)
	})
	return app
}

func acceptAny(c *fiber.Ctx, tokens jwtware.Tokens) (any, error) {
	if tokens.Empty() {
		return nil, errors.New("no token")
	}
	if tokens.Header != "" {
		return "header:" + tokens.Header, nil
	}
	return "cookie:" + tokens.Cookie, nil
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestJWTWare_HeaderExtraction(t *testing.T) {
	var seen jwtware.Tokens
	app := newApp(t, jwtware.Config{Validator: acceptAny}, &seen)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer abc.def.ghi")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "abc.def.ghi", seen.Header)
	assert.Equal(t, "header:abc.def.ghi|", readBody(t, resp))
}

func TestJWTWare_HeaderAndCookieBothPassed(t *testing.T) {
	var seen jwtware.Tokens
	app := newApp(t, jwtware.Config{
		Validator:   acceptAny,
		TokenLookup: "header:Authorization,cookie:auth_token",
	}, &seen)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer from-header")
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: "from-cookie"})

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, jwtware.Tokens{Header: "from-header", Cookie: "from-cookie"}, seen)
	assert.Equal(t, "header:from-header|", readBody(t, resp))
}

func TestJWTWare_CookieOnly(t *testing.T) {
	var seen jwtware.Tokens
	app := newApp(t, jwtware.Config{
		Validator:   acceptAny,
		TokenLookup: "header:Authorization,cookie:auth_token",
	}, &seen)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: "from-cookie"})

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cookie:from-cookie|", readBody(t, resp))
}

func TestJWTWare_WrongSchemeIsIgnored(t *testing.T) {
	var seen jwtware.Tokens
	app := newApp(t, jwtware.Config{Validator: acceptAny}, &seen)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.True(t, seen.Empty())
}

func TestJWTWare_MissingTokenStillCallsValidator(t *testing.T) {
	var seen jwtware.Tokens
	called := false
	app := newApp(t, jwtware.Config{
		Validator: func(c *fiber.Ctx, tokens jwtware.Tokens) (any, error) {
			called = true
			return nil, errors.New("unauthenticated")
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusTeapot).SendString(err.Error())
		},
	}, &seen)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/protected", nil))
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, "unauthenticated", readBody(t, resp))
}

func TestJWTWare_ContextEnricherAndFilter(t *testing.T) {
	var seen jwtware.Tokens
	app := newApp(t, jwtware.Config{
		Validator: acceptAny,
		Filter: func(c *fiber.Ctx) bool {
			return c.Query("skip") == "1"
		},
		ContextEnricher: func(ctx context.Context, principal any) context.Context {
			return context.WithValue(ctx, principalKey{}, principal)
		},
	}, &seen)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "bearer tok")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "header:tok|header:tok", readBody(t, resp))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/protected?skip=1", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "|", readBody(t, resp))
}

func TestGetDefaultConfig_PanicsWithoutValidator(t *testing.T) {
	assert.Panics(t, func() {
		jwtware.GetDefaultConfig(jwtware.Config{})
	})
}

func TestGetExtractors(t *testing.T) {
	extractors := jwtware.GetExtractors("header:Authorization, cookie:auth_token, query:token, bogus")
	require.Len(t, extractors, 2)
	assert.Equal(t, jwtware.SourceHeader, extractors[0].Source)
	assert.Equal(t, jwtware.SourceCookie, extractors[1].Source)
}
