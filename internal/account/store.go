package account

import (
	"context"

	"github.com/google/uuid"
	"github.com/rvangils/accountd/internal/email"
)

// AccountFilter is used to filter accounts.
// Returned accounts must match all the provided fields.
// If a field is empty or nil, it's ignored.
type AccountFilter struct {
	IDs      []uuid.UUID
	Emails   []email.Address
	Verified *bool
}

// TokenFilter is used to filter email tokens.
// Returned tokens must match all the provided fields.
// If a field is empty or nil, it's ignored.
type TokenFilter struct {
	IDs        []uuid.UUID
	AccountIDs []uuid.UUID
	Purposes   []TokenPurpose
}

// Store provides access to the account store.
type Store interface {
	BeginTx(ctx context.Context) (Tx, error)

	// FindAccounts queries outside of a transaction, using the read
	// pool. Workflows that don't mutate anything use this.
	FindAccounts(ctx context.Context, filter *AccountFilter) ([]Account, error)
}

// Tx is a transaction. If an error occurs on any of the methods, the
// transaction is considered to have failed and should be rolled back.
// Tx is not safe for concurrent use.
type Tx interface {
	Commit() error
	Rollback() error

	CreateAccount(a *Account) error
	UpdateAccount(a *Account) error
	DeleteAccount(id uuid.UUID) error
	FindAccounts(filter *AccountFilter) ([]Account, error)

	CreateToken(t *EmailToken) error
	// FindTokens returns matching tokens ordered newest first.
	FindTokens(filter *TokenFilter) ([]EmailToken, error)
	// DeleteTokens deletes all matching tokens and reports how many
	// rows were removed. An empty filter is refused.
	DeleteTokens(filter *TokenFilter) (int, error)
}
