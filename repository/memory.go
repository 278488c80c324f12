package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	auth "github.com/messfeedback/go-auth"
)

// MemoryAccounts is an in-process auth.CredentialStore. Every method
// holds the mutex only for its own read or transition, which gives the
// same atomicity as the SQL statement.
type MemoryAccounts struct {
	mu           sync.Mutex
	accounts     map[string]*auth.Account
	byIdentifier map[string]string
}

var _ auth.CredentialStore = (*MemoryAccounts)(nil)

func NewMemoryAccounts(accounts ...*auth.Account) *MemoryAccounts {
	m := &MemoryAccounts{
		accounts:     map[string]*auth.Account{},
		byIdentifier: map[string]string{},
	}
	for _, a := range accounts {
		m.Put(a)
	}
	return m
}

// Put stores a copy of account, assigning an ID when missing. Login
// identifiers are unique: an account already holding the identifier is
// replaced.
func (m *MemoryAccounts) Put(account *auth.Account) *auth.Account {
	m.mu.Lock()
	defer m.mu.Unlock()

	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	if prev, ok := m.byIdentifier[account.Identifier]; ok && prev != account.ID.String() {
		delete(m.accounts, prev)
	}
	if old, ok := m.accounts[account.ID.String()]; ok && old.Identifier != account.Identifier {
		delete(m.byIdentifier, old.Identifier)
	}

	cp := *account
	m.accounts[account.ID.String()] = &cp
	m.byIdentifier[account.Identifier] = account.ID.String()
	return account
}

func (m *MemoryAccounts) FindAccount(_ context.Context, identifier string, role auth.Role) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[m.byIdentifier[identifier]]
	if !ok || !a.IsActive {
		return nil, auth.ErrAccountNotFound
	}
	if role != "" && a.Role != role {
		return nil, auth.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryAccounts) FindAccountByID(_ context.Context, id string) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, auth.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryAccounts) UpdateLockoutState(_ context.Context, id string, update auth.LockoutUpdate) (auth.LockoutState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return auth.LockoutState{}, auth.ErrAccountNotFound
	}

	next := update.Apply(a.LockoutState())
	a.FailedAttemptCount = next.FailedAttemptCount
	a.LockedUntil = next.LockedUntil
	at := update.At
	a.UpdatedAt = &at

	return next, nil
}

func (m *MemoryAccounts) ResetLockoutState(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return auth.ErrAccountNotFound
	}

	a.FailedAttemptCount = 0
	a.LockedUntil = nil
	a.LastAuthenticatedAt = &at
	a.UpdatedAt = &at
	return nil
}

// SetActive toggles the active flag of an account.
func (m *MemoryAccounts) SetActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return auth.ErrAccountNotFound
	}
	a.IsActive = active
	return nil
}
