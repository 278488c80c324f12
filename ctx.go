package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// DefaultContextKey is the fiber Locals key holding the AccountView.
const DefaultContextKey = "account"

var accountCtxKey = &contextKey{"account"}

type contextKey struct {
	name string
}

// WithAccountContext sets the AccountView in the given context
func WithAccountContext(ctx context.Context, view AccountView) context.Context {
	return context.WithValue(ctx, accountCtxKey, view)
}

// AccountFromContext finds the AccountView in the context.
func AccountFromContext(ctx context.Context) (AccountView, bool) {
	raw, ok := ctx.Value(accountCtxKey).(AccountView)
	return raw, ok
}

// AccountFromFiber extracts the AccountView stored by the protect
// middleware under key, falling back to the user context.
func AccountFromFiber(c *fiber.Ctx, key string) (AccountView, bool) {
	if key == "" {
		key = DefaultContextKey
	}
	if view, ok := c.Locals(key).(AccountView); ok {
		return view, true
	}
	return AccountFromContext(c.UserContext())
}
