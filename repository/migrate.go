package repository

import (
	"context"
	"embed"
	"sync"

	"github.com/goliatone/go-errors"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// goose keeps its base FS and dialect in package state
var gooseMu sync.Mutex

var gooseUpContext = goose.UpContext

// Migrate applies the embedded schema migrations to db.
func Migrate(ctx context.Context, db *bun.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)

	gooseDialect := "sqlite3"
	if db.Dialect().Name() == dialect.PG {
		gooseDialect = "postgres"
	}

	if err := goose.SetDialect(gooseDialect); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "set migration dialect")
	}

	if err := gooseUpContext(ctx, db.DB, "migrations"); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "run migrations")
	}

	return nil
}
