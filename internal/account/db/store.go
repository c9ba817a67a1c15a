package db

import (
	"context"
	"database/sql"

	"github.com/rvangils/accountd/internal/account"
	"github.com/rvangils/accountd/internal/db"
	"github.com/rvangils/accountd/internal/krypto"
)

// Store implements the account.Store contract on top of SQLite.
//
// Writes go through the write pool, which is limited to a single
// connection with immediate transactions. Reads outside transactions
// use the read pool.
type Store struct {
	writeDB       *sql.DB
	readDB        *sql.DB
	encryptor     *krypto.Encryptor
	blindIndexKey krypto.Key
}

// New creates a new Store. The encryptor protects personal data at
// rest, the blind index key makes exact-match email lookups possible
// without decrypting every row.
func New(writeDB, readDB *sql.DB, encryptor *krypto.Encryptor, blindIndexKey krypto.Key) *Store {
	return &Store{
		writeDB:       writeDB,
		readDB:        readDB,
		encryptor:     encryptor,
		blindIndexKey: blindIndexKey,
	}
}

// BeginTx starts a new transaction on the write pool.
func (s *Store) BeginTx(ctx context.Context) (account.Tx, error) {
	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	return &Tx{
		tx:    tx,
		store: s,
	}, nil
}

// FindAccounts queries for accounts outside of a transaction.
func (s *Store) FindAccounts(ctx context.Context, filter *account.AccountFilter) ([]account.Account, error) {
	return selectAccounts(s.newQuery(), func(query string, params ...any) (*sql.Rows, error) {
		return s.readDB.QueryContext(ctx, query, params...)
	}, filter)
}

func (s *Store) newQuery() *db.Query {
	return &db.Query{
		Encryptor:     s.encryptor,
		BlindIndexKey: s.blindIndexKey,
	}
}
