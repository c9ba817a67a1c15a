package account

import (
	"time"

	"github.com/google/uuid"
	"github.com/rvangils/accountd/internal/krypto"
)

// TokenPurpose represents the purpose of an email token.
type TokenPurpose string

const (
	// TokenPurposeVerify indicates a token proves control of the
	// registration email address.
	TokenPurposeVerify TokenPurpose = "verify"
	// TokenPurposeReset indicates a token authorizes a password reset.
	TokenPurposeReset TokenPurpose = "reset"
)

// EmailToken contains the state of a random token that is sent via email.
// Such tokens are single use and have a limited lifetime.
//
// TokenHash is the argon2 hash of the emailed proof. We only store the
// hash to prevent someone with access to the database from using the
// tokens themselves. At most one token per (account, purpose) is meant
// to be live; the cleanup paths delete all rows for the pair so stale
// rows never accumulate.
type EmailToken struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	TokenHash krypto.Argon2Hash
	Purpose   TokenPurpose
	CreatedAt time.Time
	ExpiresAt time.Time
}

// proofBytes is the plaintext value a user receives via email. The
// account ID suffix makes the proof globally unique even if the random
// token generator were to repeat itself.
func proofBytes(tok krypto.Token, accountID uuid.UUID) []byte {
	return []byte(tok.String() + accountID.String())
}
