package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is the credential record used for authentication
type Account struct {
	bun.BaseModel       `bun:"table:accounts,alias:acc"`
	ID                  uuid.UUID  `bun:"id,pk" json:"id"`
	Identifier          string     `bun:"login_identifier,notnull" json:"login_identifier"`
	PasswordHash        string     `bun:"password_hash,notnull" json:"-"`
	Role                Role       `bun:"role,notnull" json:"role"`
	IsActive            bool       `bun:"is_active,notnull" json:"is_active"`
	FailedAttemptCount  int        `bun:"failed_attempt_count,notnull" json:"failed_attempt_count"`
	LockedUntil         *time.Time `bun:"locked_until,nullzero" json:"locked_until,omitempty"`
	LastAuthenticatedAt *time.Time `bun:"last_authenticated_at,nullzero" json:"last_authenticated_at,omitempty"`
	CreatedAt           *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt           *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// View returns the public projection of the account
func (a *Account) View() AccountView {
	return AccountView{
		ID:         a.ID.String(),
		Identifier: a.Identifier,
		Role:       a.Role,
	}
}

// LockoutState returns the lockout counters stored on the account
func (a *Account) LockoutState() LockoutState {
	return LockoutState{
		FailedAttemptCount: a.FailedAttemptCount,
		LockedUntil:        a.LockedUntil,
	}
}

// AccountView is the subset of an account that is safe to hand to
// callers and to attach to a request context.
type AccountView struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	Role       Role   `json:"role"`
}

// LockoutState holds the counters driving the lockout state machine.
type LockoutState struct {
	FailedAttemptCount int        `bun:"failed_attempt_count" json:"failed_attempt_count"`
	LockedUntil        *time.Time `bun:"locked_until" json:"locked_until,omitempty"`
}

// IsLocked reports whether the lockout window is still open at now.
func (s LockoutState) IsLocked(now time.Time) bool {
	return s.LockedUntil != nil && s.LockedUntil.After(now)
}
