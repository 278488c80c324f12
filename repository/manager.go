package repository

import (
	"context"
	"database/sql"
	"log"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Manager hands out the repositories bound to one database.
type Manager struct {
	db             *bun.DB
	accounts       *Accounts
	securityEvents *SecurityEvents
}

var (
	_ repository.Validator          = (*Manager)(nil)
	_ repository.TransactionManager = (*Manager)(nil)
)

func NewRepositoryManager(db *bun.DB) *Manager {
	return &Manager{
		db:             db,
		accounts:       NewAccounts(db),
		securityEvents: NewSecurityEvents(db),
	}
}

func (m *Manager) Validate() error {
	if m.db == nil {
		return errors.New("repository database should be initialized", errors.CategoryInternal)
	}

	if m.accounts == nil {
		return errors.New("repository accounts should be initialized", errors.CategoryInternal)
	}

	if m.securityEvents == nil {
		return errors.New("repository securityEvents should be initialized", errors.CategoryInternal)
	}

	return nil
}

func (m *Manager) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

// RunInTx runs f inside a transaction. Use the Tx methods of the
// repositories with tx.
func (m *Manager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m *Manager) DB() *bun.DB {
	return m.db
}

func (m *Manager) Accounts() *Accounts {
	return m.accounts
}

func (m *Manager) SecurityEvents() *SecurityEvents {
	return m.securityEvents
}

// Close releases the underlying connection pool.
func (m *Manager) Close() error {
	return m.db.Close()
}
