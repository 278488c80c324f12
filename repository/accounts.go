package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	auth "github.com/messfeedback/go-auth"
)

// UpdateLockoutSQL increments the counter and engages the lock in one
// statement. Column references on the right hand side read the row
// before the update, so failed_attempt_count + 1 is the new count.
// locked_until only ever moves forward.
var UpdateLockoutSQL = `UPDATE accounts SET
	failed_attempt_count = failed_attempt_count + 1,
	locked_until = CASE
		WHEN failed_attempt_count + 1 >= ? AND (locked_until IS NULL OR locked_until < ?) THEN ?
		ELSE locked_until
	END,
	updated_at = ?
WHERE id = ?
RETURNING *`

// Accounts is the bun backed auth.CredentialStore.
type Accounts struct {
	repository.Repository[*auth.Account]
	db *bun.DB
}

var (
	_ auth.CredentialStore                 = (*Accounts)(nil)
	_ repository.Repository[*auth.Account] = (*Accounts)(nil)
)

// NewAccounts returns a credential store over db.
func NewAccounts(db *bun.DB) *Accounts {
	repo := repository.NewRepository[*auth.Account](db, repository.ModelHandlers[*auth.Account]{
		NewRecord: func() *auth.Account { return &auth.Account{} },
		GetID: func(a *auth.Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *auth.Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "login_identifier"
		},
	})

	return &Accounts{
		Repository: repo,
		db:         db,
	}
}

// FindAccount returns the active account with identifier, scoped to
// role unless role is empty.
func (r *Accounts) FindAccount(ctx context.Context, identifier string, role auth.Role) (*auth.Account, error) {
	return r.FindAccountTx(ctx, r.db, identifier, role)
}

func (r *Accounts) FindAccountTx(ctx context.Context, tx bun.IDB, identifier string, role auth.Role, criteria ...repository.SelectCriteria) (*auth.Account, error) {
	account := &auth.Account{}

	q := tx.NewSelect().Model(account)
	for _, c := range criteria {
		q.Apply(c)
	}

	q = q.
		Where("?TableAlias.login_identifier = ?", identifier).
		Where("?TableAlias.is_active = ?", true)

	if role != "" {
		q = q.Where("?TableAlias.role = ?", role)
	}

	if err := q.Limit(1).Scan(ctx); err != nil {
		return nil, mapNotFound(err, "find account")
	}

	return account, nil
}

// FindAccountByID returns the account with id regardless of its active flag.
func (r *Accounts) FindAccountByID(ctx context.Context, id string) (*auth.Account, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, auth.ErrAccountNotFound
	}

	account, err := r.Repository.GetByID(ctx, uid.String())
	if err != nil {
		return nil, mapNotFound(err, "find account by id")
	}

	return account, nil
}

// UpdateLockoutState records one failed attempt atomically.
func (r *Accounts) UpdateLockoutState(ctx context.Context, id string, update auth.LockoutUpdate) (auth.LockoutState, error) {
	return r.UpdateLockoutStateTx(ctx, r.db, id, update)
}

func (r *Accounts) UpdateLockoutStateTx(ctx context.Context, tx bun.IDB, id string, update auth.LockoutUpdate) (auth.LockoutState, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return auth.LockoutState{}, auth.ErrAccountNotFound
	}

	lockUntil := update.LockUntil.UTC()
	res, err := r.Repository.RawTx(ctx, tx, UpdateLockoutSQL,
		update.Threshold,
		lockUntil,
		lockUntil,
		update.At.UTC(),
		uid.String(),
	)
	if err != nil {
		return auth.LockoutState{}, mapNotFound(err, "update lockout state")
	}

	if len(res) == 0 || res[0] == nil {
		return auth.LockoutState{}, auth.ErrAccountNotFound
	}

	return res[0].LockoutState(), nil
}

// ResetLockoutState clears the counters after a successful login.
func (r *Accounts) ResetLockoutState(ctx context.Context, id string, at time.Time) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return auth.ErrAccountNotFound
	}

	res, err := r.db.NewUpdate().
		Model((*auth.Account)(nil)).
		Set("failed_attempt_count = 0").
		Set("locked_until = NULL").
		Set("last_authenticated_at = ?", at.UTC()).
		Set("updated_at = ?", at.UTC()).
		Where("id = ?", uid.String()).
		Exec(ctx)
	if err != nil {
		return storeError(err, "reset lockout state")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrAccountNotFound
	}

	return nil
}

// Create inserts a new account. A zero ID is replaced by a new UUID.
func (r *Accounts) Create(ctx context.Context, record *auth.Account, criteria ...repository.InsertCriteria) (*auth.Account, error) {
	return r.CreateTx(ctx, r.db, record, criteria...)
}

func (r *Accounts) CreateTx(ctx context.Context, tx bun.IDB, record *auth.Account, criteria ...repository.InsertCriteria) (*auth.Account, error) {
	if err := prepareAccountDefaults(record); err != nil {
		return nil, err
	}

	account, err := r.Repository.CreateTx(ctx, tx, record, criteria...)
	if err != nil {
		return nil, storeError(err, "create account")
	}

	return account, nil
}

// SetActive toggles the active flag of an account.
func (r *Accounts) SetActive(ctx context.Context, id string, active bool) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return auth.ErrAccountNotFound
	}

	account, err := r.Repository.GetByID(ctx, uid.String())
	if err != nil {
		return mapNotFound(err, "set account active")
	}

	now := time.Now().UTC()
	account.IsActive = active
	account.UpdatedAt = &now

	if _, err := r.Repository.Update(ctx, account, repository.UpdateByID(uid.String())); err != nil {
		return storeError(err, "set account active")
	}

	return nil
}

func prepareAccountDefaults(record *auth.Account) error {
	if record == nil {
		return errors.New("account is required", errors.CategoryValidation)
	}

	if !record.Role.IsValid() {
		return errors.New("invalid account role", errors.CategoryValidation).
			WithMetadata(map[string]any{"role": string(record.Role)})
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	now := time.Now().UTC()
	record.CreatedAt = &now
	record.UpdatedAt = &now

	return nil
}

func mapNotFound(err error, op string) error {
	if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
		return auth.ErrAccountNotFound
	}
	return storeError(err, op)
}

// storeError reports a driver failure as CategoryInternal, whatever
// category the source carried.
func storeError(err error, op string) error {
	return &errors.Error{
		Category:  errors.CategoryInternal,
		Message:   op,
		Source:    err,
		Timestamp: time.Now(),
		Severity:  errors.SeverityError,
	}
}
