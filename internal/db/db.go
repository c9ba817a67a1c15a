package db

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// We need to configure a few options to make SQLite work well for us:
// - WAL mode so that reads and writes don't block each other.
// - A busy timeout, specifying how long a connection waits for a lock.
// - Foreign keys are enforced.
// The write options additionally use immediate transactions to prevent
// locking issues between concurrent write transactions.
const (
	writeOptions = "?_foreign_keys=on&_journal_mode=wal&_busy_timeout=5000&_txlock=immediate"
	readOptions  = "?mode=ro&_foreign_keys=on&_journal_mode=wal&_busy_timeout=5000"
)

// OpenSQLite opens a pool of SQLite connections. Different settings are
// appropriate for reading and writing, so this function needs to know
// what the sql.DB will be used for.
//
// See https://github.com/mattn/go-sqlite3/issues/1179#issuecomment-1638083995
func OpenSQLite(dbFile string, write bool) (*sql.DB, error) {
	optsPostfix := readOptions
	if write {
		optsPostfix = writeOptions
	}

	db, err := sql.Open("sqlite3", dbFile+optsPostfix)
	if err != nil {
		return nil, err
	}

	if write {
		// Use only a single connection for writing and keep it open.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}

	return db, nil
}
