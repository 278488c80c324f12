package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeAccountLocked      = "ACCOUNT_LOCKED"
	TextCodeUnauthenticated    = "UNAUTHENTICATED"
	TextCodeForbidden          = "FORBIDDEN"
	TextCodeStoreUnavailable   = "STORE_UNAVAILABLE"

	TextCodeAccountNotFound = "ACCOUNT_NOT_FOUND"
	TextCodeBadPassword     = "BAD_PASSWORD"
	TextCodeAccountInactive = "ACCOUNT_INACTIVE"
	TextCodeTokenInvalid    = "TOKEN_INVALID"
	TextCodeTokenExpired    = "TOKEN_EXPIRED"
	TextCodeTokenMalformed  = "TOKEN_MALFORMED"
	TextCodeEmptyPassword   = "EMPTY_PASSWORD"
	TextCodeInvalidPayload  = "INVALID_PAYLOAD"
	TextCodeRateLimited     = "RATE_LIMITED"
)

// Caller visible errors. These are the only errors the authenticator
// returns from Login, Protect and Authorize.
var (
	ErrInvalidCredentials = errors.New("the credentials provided are invalid", errors.CategoryAuth).
				WithTextCode(TextCodeInvalidCredentials).
				WithCode(http.StatusUnauthorized)

	ErrAccountLocked = errors.New("account is temporarily locked", errors.CategoryAuth).
				WithTextCode(TextCodeAccountLocked).
				WithCode(http.StatusLocked)

	ErrUnauthenticated = errors.New("authentication required", errors.CategoryAuth).
				WithTextCode(TextCodeUnauthenticated).
				WithCode(http.StatusUnauthorized)

	ErrForbidden = errors.New("insufficient role for this resource", errors.CategoryAuthz).
			WithTextCode(TextCodeForbidden).
			WithCode(http.StatusForbidden)

	ErrStoreUnavailable = errors.New("service temporarily unavailable", errors.CategoryInternal).
				WithTextCode(TextCodeStoreUnavailable).
				WithCode(http.StatusServiceUnavailable)

	ErrRateLimited = errors.New("too many login attempts, slow down", errors.CategoryRateLimit).
			WithTextCode(TextCodeRateLimited).
			WithCode(http.StatusTooManyRequests)
)

// Internal reasons. They are logged and recorded on activity events but
// translated before they leave the authenticator.
var (
	ErrAccountNotFound = errors.New("account not found", errors.CategoryNotFound).
				WithTextCode(TextCodeAccountNotFound)

	ErrBadPassword = errors.New("password mismatch", errors.CategoryAuth).
			WithTextCode(TextCodeBadPassword)

	ErrAccountInactive = errors.New("account is inactive", errors.CategoryAuth).
				WithTextCode(TextCodeAccountInactive)

	ErrTokenInvalid = errors.New("token is invalid", errors.CategoryAuth).
			WithTextCode(TextCodeTokenInvalid)

	ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
			WithTextCode(TextCodeTokenExpired)

	ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
				WithTextCode(TextCodeTokenMalformed)

	ErrNoEmptyString = errors.New("password can not be empty", errors.CategoryValidation).
				WithTextCode(TextCodeEmptyPassword)
)

// AccountLockedError returns ErrAccountLocked enriched with the expiry
// of the lockout window.
func AccountLockedError(until time.Time) *errors.Error {
	return errors.New(ErrAccountLocked.Message, ErrAccountLocked.Category).
		WithTextCode(TextCodeAccountLocked).
		WithCode(http.StatusLocked).
		WithMetadata(map[string]any{
			"locked_until": until.UTC().Format(time.RFC3339),
		})
}

// ForbiddenError returns ErrForbidden with the required and actual roles.
func ForbiddenError(required []Role, actual Role) *errors.Error {
	names := make([]string, 0, len(required))
	for _, r := range required {
		names = append(names, string(r))
	}
	return errors.New(ErrForbidden.Message, ErrForbidden.Category).
		WithTextCode(TextCodeForbidden).
		WithCode(http.StatusForbidden).
		WithMetadata(map[string]any{
			"required_roles": names,
			"actual_role":    string(actual),
		})
}

// storeUnavailable returns a fresh ErrStoreUnavailable. The store error
// stays with the caller's log line and never becomes the source.
func storeUnavailable() *errors.Error {
	return errors.New(ErrStoreUnavailable.Message, ErrStoreUnavailable.Category).
		WithTextCode(TextCodeStoreUnavailable).
		WithCode(http.StatusServiceUnavailable)
}

// TextCode returns the text code of a rich error, or an empty string.
func TextCode(err error) string {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

func IsInvalidCredentials(err error) bool { return TextCode(err) == TextCodeInvalidCredentials }
func IsAccountLocked(err error) bool      { return TextCode(err) == TextCodeAccountLocked }
func IsUnauthenticated(err error) bool    { return TextCode(err) == TextCodeUnauthenticated }
func IsForbidden(err error) bool          { return TextCode(err) == TextCodeForbidden }
func IsStoreUnavailable(err error) bool   { return TextCode(err) == TextCodeStoreUnavailable }
func IsAccountNotFound(err error) bool    { return TextCode(err) == TextCodeAccountNotFound }

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if TextCode(err) == TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if TextCode(err) == TextCodeTokenMalformed {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
