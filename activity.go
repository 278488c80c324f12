package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess   ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure   ActivityEventType = "auth.login.failure"
	ActivityEventLoginLocked    ActivityEventType = "auth.login.locked"
	ActivityEventAccountLocked  ActivityEventType = "auth.account.locked"
	ActivityEventTokenRejected  ActivityEventType = "auth.token.rejected"
	ActivityEventAccessDenied   ActivityEventType = "auth.access.denied"
	ActivityEventLoginRateLimit ActivityEventType = "auth.login.rate_limited"
)

// Failure reasons recorded under MetadataKeyReason.
const (
	ReasonNotFound         = "not_found"
	ReasonBadPassword      = "bad_password"
	ReasonStoreUnavailable = "store_unavailable"
	ReasonTokenMissing     = "token_missing"
	ReasonTokenExpired     = "token_expired"
	ReasonTokenMalformed   = "token_malformed"
	ReasonTokenInvalid     = "token_invalid"
	ReasonAccountInactive  = "account_inactive"
	ReasonRoleMismatch     = "role_mismatch"
)

const (
	MetadataKeyReason      = "reason"
	MetadataKeyScope       = "scope"
	MetadataKeyLockedUntil = "locked_until"
	MetadataKeyFailedCount = "failed_attempt_count"
	MetadataKeyTokenSource = "token_source"
)

// AnonymousIdentifier is recorded when no identifier is known.
const AnonymousIdentifier = "anonymous"

// ActorRef identifies who triggered an event.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	Identifier string
	UserID     string
	SourceIP   string
	UserAgent  string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Implementations must not block the caller.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

type multiActivitySink []ActivitySink

// ActivitySinks fans an event out to every sink. The first error is
// returned after all sinks ran.
func ActivitySinks(sinks ...ActivitySink) ActivitySink {
	out := make(multiActivitySink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, s := range m {
		if err := s.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func newActivityEvent(kind ActivityEventType, identifier string, meta RequestMetadata, at time.Time) ActivityEvent {
	if identifier == "" {
		identifier = AnonymousIdentifier
	}
	return ActivityEvent{
		EventType:  kind,
		Actor:      ActorRef{ID: identifier, Type: "account"},
		Identifier: identifier,
		SourceIP:   meta.SourceIP,
		UserAgent:  meta.UserAgent,
		Metadata:   map[string]any{},
		OccurredAt: at,
	}
}
