package sql

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Migrate applies every pending goose migration embedded in this package
// to db. Migrate is idempotent: goose tracks applied versions in its own
// bookkeeping table and skips them on subsequent calls.
//
// Migrate is the sole schema-evolution mechanism for this backend; there
// is no separate ad-hoc CREATE TABLE IF NOT EXISTS bootstrap path.
func Migrate(ctx context.Context, db *bun.DB) error {
	goose.SetBaseFS(embedMigrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db.DB, "migrations")
}

// MustMigrate behaves like Migrate but panics on failure, for use in
// application bootstrap code where a failed migration is unrecoverable.
func MustMigrate(ctx context.Context, db *bun.DB) {
	if err := Migrate(ctx, db); err != nil {
		panic(err)
	}
}
