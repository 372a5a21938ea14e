package sql_test

import (
	"context"
	stdsql "database/sql"
	"testing"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "modernc.org/sqlite"

	qsql "github.com/queuectl/queuectl/sql"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	sqlDB, err := stdsql.Open("sqlite", "file::memory:?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate")
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1) // important for in-memory sqlite
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	if err := qsql.Migrate(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	return db
}
