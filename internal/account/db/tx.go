package db

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/rvangils/accountd/internal/account"
)

type Tx struct {
	tx    *sql.Tx
	store *Store
}

func (t *Tx) Commit() error {
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// CreateAccount creates an account in the database.
func (t *Tx) CreateAccount(a *account.Account) error {
	return insertAccount(t.store.newQuery(), t.tx.Exec, a)
}

// UpdateAccount updates an account in the database.
// It returns errorz.ErrNotFound if no account is found.
func (t *Tx) UpdateAccount(a *account.Account) error {
	return updateAccount(t.store.newQuery(), t.tx.Exec, a)
}

// DeleteAccount deletes the account with the provided id.
// It returns errorz.ErrNotFound if no account is found.
func (t *Tx) DeleteAccount(id uuid.UUID) error {
	return deleteAccount(t.store.newQuery(), t.tx.Exec, id)
}

// FindAccounts queries for accounts based on the provided filter.
// It returns an empty slice if no accounts are found.
func (t *Tx) FindAccounts(filter *account.AccountFilter) ([]account.Account, error) {
	return selectAccounts(t.store.newQuery(), t.tx.Query, filter)
}

// CreateToken creates an email token in the database.
func (t *Tx) CreateToken(tok *account.EmailToken) error {
	return insertEmailToken(t.store.newQuery(), t.tx.Exec, tok)
}

// FindTokens queries for email tokens based on the provided filter,
// newest first.
func (t *Tx) FindTokens(filter *account.TokenFilter) ([]account.EmailToken, error) {
	return selectEmailTokens(t.store.newQuery(), t.tx.Query, filter)
}

// DeleteTokens deletes all email tokens matching the provided filter
// and reports how many rows were removed. An empty filter is refused.
func (t *Tx) DeleteTokens(filter *account.TokenFilter) (int, error) {
	return deleteEmailTokens(t.store.newQuery(), t.tx.Exec, filter)
}
