package testdb

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rvangils/accountd/internal/dbmigrate"
)

// RunTestDB runs an in-memory database while the provided test is
// executing. It returns an empty database with all migrations applied.
func RunTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	// An in-memory database exists per connection, make sure the pool
	// never opens a second one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	})

	if err := dbmigrate.Up(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}
