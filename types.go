package auth

import (
	"context"
	"time"
)

// Logger is the logging contract used across the package. Arguments
// after the message are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Protect(ctx context.Context, src TokenSource, meta RequestMetadata) (AccountView, error)
	Authorize(ctx context.Context, view AccountView, allowed ...Role) error
}

// CredentialStore is the persistence capability consumed by the
// authenticator. UpdateLockoutState must apply the update atomically.
type CredentialStore interface {
	// FindAccount returns the active account for identifier. An empty
	// role matches any role. Missing accounts yield ErrAccountNotFound.
	FindAccount(ctx context.Context, identifier string, role Role) (*Account, error)
	// FindAccountByID returns the account regardless of its active flag.
	FindAccountByID(ctx context.Context, id string) (*Account, error)
	UpdateLockoutState(ctx context.Context, id string, update LockoutUpdate) (LockoutState, error)
	ResetLockoutState(ctx context.Context, id string, at time.Time) error
}

// PasswordVerifier checks a candidate against a stored hash.
type PasswordVerifier interface {
	Verify(candidate, hash string) bool
}

// PasswordVerifierFunc adapts a function to PasswordVerifier.
type PasswordVerifierFunc func(candidate, hash string) bool

func (f PasswordVerifierFunc) Verify(candidate, hash string) bool {
	return f(candidate, hash)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetContextKey() string
	GetTokenExpiration() int
	GetTokenLookup() string
	GetAuthScheme() string
	GetIssuer() string
	GetAudience() []string
	GetMaxLoginAttempts() int
	GetLockoutDuration() time.Duration
	GetSecureCookies() bool
}

// LoginRequest carries the inputs of a single login attempt. Scope
// restricts the lookup to one role, empty means any role.
type LoginRequest struct {
	Identifier string
	Password   string
	Scope      Role
	Meta       RequestMetadata
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Account   AccountView `json:"account"`
}

// TokenSource holds the token candidates found on a request. Header
// wins over Cookie when both are present.
type TokenSource struct {
	Header string
	Cookie string
}

// Token returns the token to verify and where it came from.
func (s TokenSource) Token() (string, string) {
	if s.Header != "" {
		return s.Header, "header"
	}
	if s.Cookie != "" {
		return s.Cookie, "cookie"
	}
	return "", ""
}

// RequestMetadata describes the caller of an operation for audit purposes.
type RequestMetadata struct {
	SourceIP  string
	UserAgent string
}
