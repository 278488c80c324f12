package auth

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

// Auther authenticates accounts against a CredentialStore and gates
// requests carrying session tokens.
type Auther struct {
	store        CredentialStore
	lockout      *Lockout
	verifier     PasswordVerifier
	tokenService *TokenService
	activitySink ActivitySink
	logger       Logger
	now          func() time.Time
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(store CredentialStore, cfg Config) *Auther {
	a := &Auther{
		store:        store,
		verifier:     BcryptVerifier{},
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		now:          time.Now,
	}
	a.lockout = NewLockout(store, LockoutPolicyFromConfig(cfg))
	a.tokenService = NewTokenServiceFromConfig(cfg, WithTokenClock(a.clock), WithTokenLogger(a.logger))
	return a
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	s.tokenService.logger = s.logger
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithClock replaces the wall clock used for lockout and token checks.
func (s *Auther) WithClock(now func() time.Time) *Auther {
	if now != nil {
		s.now = now
	}
	return s
}

// WithLockoutPolicy overrides the policy read from the config.
func (s *Auther) WithLockoutPolicy(policy LockoutPolicy) *Auther {
	s.lockout = NewLockout(s.store, policy)
	return s
}

// WithPasswordVerifier replaces the bcrypt verifier.
func (s *Auther) WithPasswordVerifier(verifier PasswordVerifier) *Auther {
	if verifier != nil {
		s.verifier = verifier
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() *TokenService {
	return s.tokenService
}

// Lockout returns the lockout state machine.
func (s *Auther) Lockout() *Lockout {
	return s.lockout
}

func (s *Auther) clock() time.Time {
	return s.now()
}

// Login authenticates identifier and password within the requested role
// scope. The steps run in a fixed order: lookup, lockout check, password
// verification, counter update, token issuance.
func (s *Auther) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	identifier := strings.TrimSpace(req.Identifier)

	account, err := s.store.FindAccount(ctx, identifier, req.Scope)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// equalize timing with the bad password path
			s.verifier.Verify(req.Password, decoyHash())
			s.logger.Info("login rejected", "identifier", identifier, "reason", ReasonNotFound)
			s.emit(ctx, ActivityEventLoginFailure, identifier, "", req.Meta, map[string]any{
				MetadataKeyReason: ReasonNotFound,
				MetadataKeyScope:  string(req.Scope),
			})
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("login account lookup failed", "identifier", identifier, "error", err)
		s.emit(ctx, ActivityEventLoginFailure, identifier, "", req.Meta, map[string]any{
			MetadataKeyReason: ReasonStoreUnavailable,
		})
		return nil, storeUnavailable()
	}

	userID := account.ID.String()
	now := s.now()

	if decision := s.lockout.Check(account, now); !decision.Allowed {
		s.logger.Info("login rejected", "identifier", identifier, "reason", "locked", "locked_until", decision.RetryAfter)
		s.emit(ctx, ActivityEventLoginLocked, identifier, userID, req.Meta, map[string]any{
			MetadataKeyLockedUntil: decision.RetryAfter.UTC().Format(time.RFC3339),
			MetadataKeyFailedCount: account.FailedAttemptCount,
		})
		return nil, AccountLockedError(*decision.RetryAfter)
	}

	if !s.verifier.Verify(req.Password, account.PasswordHash) {
		state, err := s.lockout.RecordFailure(ctx, account, now)
		if err != nil {
			s.logger.Error("login failed to record failed attempt", "identifier", identifier, "error", err)
			s.emit(ctx, ActivityEventLoginFailure, identifier, userID, req.Meta, map[string]any{
				MetadataKeyReason: ReasonBadPassword,
			})
			return nil, storeUnavailable()
		}

		s.logger.Info("login rejected", "identifier", identifier, "reason", ReasonBadPassword, "failed_attempts", state.FailedAttemptCount)
		s.emit(ctx, ActivityEventLoginFailure, identifier, userID, req.Meta, map[string]any{
			MetadataKeyReason:      ReasonBadPassword,
			MetadataKeyFailedCount: state.FailedAttemptCount,
		})

		if state.IsLocked(now) {
			s.logger.Warn("account locked", "identifier", identifier, "locked_until", state.LockedUntil)
			s.emit(ctx, ActivityEventAccountLocked, identifier, userID, req.Meta, map[string]any{
				MetadataKeyLockedUntil: state.LockedUntil.UTC().Format(time.RFC3339),
				MetadataKeyFailedCount: state.FailedAttemptCount,
			})
		}
		return nil, ErrInvalidCredentials
	}

	if _, err := s.lockout.RecordSuccess(ctx, account, now); err != nil {
		s.logger.Error("login failed to reset lockout state", "identifier", identifier, "error", err)
		return nil, storeUnavailable()
	}

	view := account.View()
	token, expiresAt, err := s.tokenService.Generate(view)
	if err != nil {
		s.logger.Error("login failed to sign token", "identifier", identifier, "error", err)
		return nil, err
	}

	s.emit(ctx, ActivityEventLoginSuccess, identifier, userID, req.Meta, map[string]any{
		MetadataKeyScope: string(req.Scope),
	})

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		Account:   view,
	}, nil
}

// Protect verifies the token found on a request and returns the public
// view of its still active account. All failures are ErrUnauthenticated.
func (s *Auther) Protect(ctx context.Context, src TokenSource, meta RequestMetadata) (AccountView, error) {
	token, from := src.Token()
	if token == "" {
		return AccountView{}, s.rejectToken(ctx, "", meta, ReasonTokenMissing, from, ErrTokenInvalid)
	}

	claims, err := s.tokenService.Validate(token)
	if err != nil {
		return AccountView{}, s.rejectToken(ctx, "", meta, tokenRejectReason(err), from, err)
	}

	account, err := s.store.FindAccountByID(ctx, claims.AccountID())
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return AccountView{}, s.rejectToken(ctx, claims.AccountID(), meta, ReasonNotFound, from, err)
		}
		s.logger.Error("protect account lookup failed", "account_id", claims.AccountID(), "error", err)
		return AccountView{}, storeUnavailable()
	}

	if !account.IsActive {
		return AccountView{}, s.rejectToken(ctx, account.Identifier, meta, ReasonAccountInactive, from, ErrAccountInactive)
	}

	return account.View(), nil
}

// Authorize fails with a forbidden error unless view carries one of the
// allowed roles.
func (s *Auther) Authorize(ctx context.Context, view AccountView, allowed ...Role) error {
	if view.Role.In(allowed...) {
		return nil
	}

	s.logger.Info("authorization denied", "account_id", view.ID, "role", view.Role, "allowed", allowed)
	s.emit(ctx, ActivityEventAccessDenied, view.Identifier, view.ID, RequestMetadata{}, map[string]any{
		MetadataKeyReason: ReasonRoleMismatch,
		"actual_role":     string(view.Role),
	})
	return ForbiddenError(allowed, view.Role)
}

func tokenRejectReason(err error) string {
	switch {
	case IsTokenExpiredError(err):
		return ReasonTokenExpired
	case IsMalformedError(err):
		return ReasonTokenMalformed
	default:
		return ReasonTokenInvalid
	}
}

func (s *Auther) rejectToken(ctx context.Context, identifier string, meta RequestMetadata, reason, from string, cause error) error {
	s.logger.Info("protect rejected request",
		"reason", reason,
		"token_source", from,
		"source_ip", meta.SourceIP,
		"error", cause,
	)
	if reason != ReasonTokenMissing {
		s.emit(ctx, ActivityEventTokenRejected, identifier, "", meta, map[string]any{
			MetadataKeyReason:      reason,
			MetadataKeyTokenSource: from,
		})
	}
	return ErrUnauthenticated
}

func (s *Auther) emit(ctx context.Context, kind ActivityEventType, identifier, userID string, meta RequestMetadata, metadata map[string]any) {
	event := newActivityEvent(kind, identifier, meta, s.now())
	event.UserID = userID
	for k, v := range metadata {
		event.Metadata[k] = v
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("activity sink panic", "event", kind, "panic", r)
		}
	}()

	if err := normalizeActivitySink(s.activitySink).Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error", "event", kind, "error", err)
	}
}
