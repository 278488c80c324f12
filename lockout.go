package auth

import (
	"context"
	"time"
)

const (
	DefaultMaxLoginAttempts = 5
	DefaultLockoutWindow    = 30 * time.Minute
)

// LockoutPolicy configures the account scoped lockout.
type LockoutPolicy struct {
	MaxAttempts int
	Window      time.Duration
}

// DefaultLockoutPolicy locks an account for 30 minutes after 5 failures.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		MaxAttempts: DefaultMaxLoginAttempts,
		Window:      DefaultLockoutWindow,
	}
}

// LockoutPolicyFromConfig reads the policy from cfg, keeping defaults
// for unset values.
func LockoutPolicyFromConfig(cfg Config) LockoutPolicy {
	p := DefaultLockoutPolicy()
	if cfg == nil {
		return p
	}
	if n := cfg.GetMaxLoginAttempts(); n > 0 {
		p.MaxAttempts = n
	}
	if d := cfg.GetLockoutDuration(); d > 0 {
		p.Window = d
	}
	return p
}

func (p LockoutPolicy) normalize() LockoutPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxLoginAttempts
	}
	if p.Window <= 0 {
		p.Window = DefaultLockoutWindow
	}
	return p
}

// FailureUpdate is the update applied to the store after a failed
// attempt observed at now.
func (p LockoutPolicy) FailureUpdate(now time.Time) LockoutUpdate {
	p = p.normalize()
	return LockoutUpdate{
		Threshold: p.MaxAttempts,
		LockUntil: now.Add(p.Window),
		At:        now,
	}
}

// Next computes the state following one more failure at now.
func (p LockoutPolicy) Next(state LockoutState, now time.Time) LockoutState {
	return p.FailureUpdate(now).Apply(state)
}

// LockoutUpdate describes one failed attempt. Stores apply it as a
// single atomic statement: increment the counter and, when the new
// count reaches Threshold, move locked_until forward to LockUntil.
// An existing locked_until later than LockUntil is kept.
type LockoutUpdate struct {
	Threshold int
	LockUntil time.Time
	At        time.Time
}

// Apply is the in-process form of the transition.
func (u LockoutUpdate) Apply(state LockoutState) LockoutState {
	next := LockoutState{
		FailedAttemptCount: state.FailedAttemptCount + 1,
		LockedUntil:        state.LockedUntil,
	}
	if next.FailedAttemptCount < u.Threshold {
		return next
	}
	if state.LockedUntil == nil || state.LockedUntil.Before(u.LockUntil) {
		until := u.LockUntil
		next.LockedUntil = &until
	}
	return next
}

// LockoutDecision is the outcome of a lockout check.
type LockoutDecision struct {
	Allowed    bool
	RetryAfter *time.Time
}

// Lockout decides whether an account may attempt authentication and
// records the outcome of each attempt through the store.
type Lockout struct {
	store  CredentialStore
	policy LockoutPolicy
}

// NewLockout returns a lockout state machine backed by store.
func NewLockout(store CredentialStore, policy LockoutPolicy) *Lockout {
	return &Lockout{
		store:  store,
		policy: policy.normalize(),
	}
}

// Policy returns the effective policy.
func (l *Lockout) Policy() LockoutPolicy {
	return l.policy
}

// Check allows the attempt unless locked_until is strictly after now.
func (l *Lockout) Check(account *Account, now time.Time) LockoutDecision {
	state := account.LockoutState()
	if state.IsLocked(now) {
		until := *state.LockedUntil
		return LockoutDecision{Allowed: false, RetryAfter: &until}
	}
	return LockoutDecision{Allowed: true}
}

// RecordFailure increments the failure counter, engaging the lock when
// the threshold is reached.
func (l *Lockout) RecordFailure(ctx context.Context, account *Account, now time.Time) (LockoutState, error) {
	state, err := l.store.UpdateLockoutState(ctx, account.ID.String(), l.policy.FailureUpdate(now))
	if err != nil {
		return LockoutState{}, err
	}
	account.FailedAttemptCount = state.FailedAttemptCount
	account.LockedUntil = state.LockedUntil
	return state, nil
}

// RecordSuccess clears the counters and stamps the authentication time.
func (l *Lockout) RecordSuccess(ctx context.Context, account *Account, now time.Time) (LockoutState, error) {
	if err := l.store.ResetLockoutState(ctx, account.ID.String(), now); err != nil {
		return LockoutState{}, err
	}
	account.FailedAttemptCount = 0
	account.LockedUntil = nil
	at := now
	account.LastAuthenticatedAt = &at
	return account.LockoutState(), nil
}
