package account

import (
	"time"

	"github.com/google/uuid"
	"github.com/rvangils/accountd/internal/email"
	"github.com/rvangils/accountd/internal/krypto"
)

// Account contains the credential record of a registered user.
type Account struct {
	ID           uuid.UUID
	Name         string
	Email        email.Address
	PasswordHash krypto.Argon2Hash
	Verified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Public contains the account fields that are safe to return to
// clients. The password hash never leaves the account package.
type Public struct {
	ID       uuid.UUID     `json:"id"`
	Name     string        `json:"name"`
	Email    email.Address `json:"email"`
	Verified bool          `json:"verified"`
}

// Public returns the sanitized view of the account.
func (a Account) Public() Public {
	return Public{
		ID:       a.ID,
		Name:     a.Name,
		Email:    a.Email,
		Verified: a.Verified,
	}
}
