package account

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rvangils/accountd/internal/email"
	"github.com/rvangils/accountd/internal/krypto"
)

var (
	// ErrDuplicateEmail indicates an account with the same email
	// address already exists.
	ErrDuplicateEmail = errors.New("duplicate email")
)

// namePattern accepts letters and spaces only.
var namePattern = regexp.MustCompile(`^[A-Za-z ]*$`)

// Emailer is used to send templated emails.
type Emailer interface {
	Send(ctx context.Context, template string, to email.Address, data any) error
}

// ServiceConfig is the configuration for the Service.
type ServiceConfig struct {
	// VerifyTokenExpiry is the duration a verification token is valid.
	VerifyTokenExpiry time.Duration
	// ResetTokenExpiry is the duration a password reset token is valid.
	ResetTokenExpiry time.Duration
	// BaseURL is the public URL verification links point at.
	BaseURL string
}

// Service provides the main rules for the account lifecycle: signing
// up, proving control of the email address, logging in and resetting
// passwords.
//
// Every workflow returns an Outcome and never a raw collaborator
// error; store and mail failures are translated into outcome codes
// with the cause attached for logging.
type Service struct {
	store   Store
	emailer Emailer
	cfg     ServiceConfig

	// comparisonHash is used to compare passwords when no account was
	// found, so response timing doesn't reveal whether an email is
	// registered.
	comparisonHash krypto.Argon2Hash

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
}

func NewService(s Store, emailer Emailer, cfg ServiceConfig) (*Service, error) {
	if cfg.VerifyTokenExpiry <= 0 {
		cfg.VerifyTokenExpiry = 6 * time.Hour
	}

	if cfg.ResetTokenExpiry <= 0 {
		cfg.ResetTokenExpiry = time.Hour
	}

	tok, err := krypto.GenerateToken()
	if err != nil {
		return nil, err
	}

	hash, err := krypto.HashArgon2(tok[:])
	if err != nil {
		return nil, err
	}

	return &Service{
		store:          s,
		emailer:        emailer,
		cfg:            cfg,
		comparisonHash: hash,
		NowFunc:        time.Now,
	}, nil
}

// Registration is the input for the Register workflow.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an unverified account and sends a verification
// email. The caller should treat a pending outcome as "check your
// inbox".
func (s *Service) Register(ctx context.Context, reg Registration) Outcome {
	name := strings.TrimSpace(reg.Name)
	rawEmail := strings.TrimSpace(reg.Email)
	rawPassword := strings.TrimSpace(reg.Password)

	if name == "" || rawEmail == "" || rawPassword == "" {
		return failed(CodeEmptyFields, "Empty input fields")
	}

	if !namePattern.MatchString(name) {
		return failed(CodeInvalidName, "Invalid name entered")
	}

	addr, err := email.ParseAddress(rawEmail)
	if err != nil {
		return failed(CodeInvalidEmail, "Invalid email entered")
	}

	pwd, err := ParsePassword(rawPassword)
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return failed(CodePasswordTooLong, "Password is too long")
		}
		return failed(CodePasswordTooShort, "Password is too short")
	}

	pwdHash, err := pwd.Hash()
	if err != nil {
		return failedErr(CodeHashingFailure, "An error occurred while hashing the password", err)
	}

	now := s.NowFunc()

	acct := Account{
		ID:           uuid.New(),
		Name:         name,
		Email:        addr,
		PasswordHash: pwdHash,
		Verified:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	token, emailToken, err := s.issueToken(acct.ID, TokenPurposeVerify, now, s.cfg.VerifyTokenExpiry)
	if err != nil {
		return failedErr(CodeHashingFailure, "An error occurred while hashing the verification data", err)
	}

	err = s.inTx(ctx, func(tx Tx) error {
		existing, txErr := tx.FindAccounts(&AccountFilter{
			Emails: []email.Address{addr},
		})
		if txErr != nil {
			return txErr
		}

		if len(existing) > 0 {
			return ErrDuplicateEmail
		}

		if txErr := tx.CreateAccount(&acct); txErr != nil {
			return txErr
		}

		return tx.CreateToken(&emailToken)
	})

	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return failed(CodeDuplicateEmail, "An account with the provided email already exists")
		}
		return failedErr(CodePersistenceFailure, "An error occurred while saving the account data", err)
	}

	// The email is sent after the transaction committed. It can fail
	// independently, in which case the account sits unverified until
	// its token expires. The caller may surface that as "try signing
	// up again later".
	err = s.emailer.Send(ctx, "verify-email", addr, VerificationMail{
		Name:      name,
		VerifyURL: s.verifyURL(acct.ID, token),
	})
	if err != nil {
		return failedErr(CodeNotificationFailure, "Sending the verification email failed", err)
	}

	return pending(CodeVerificationPending, "Verification email sent")
}

// VerificationMail is the data for the verify-email template.
type VerificationMail struct {
	Name      string
	VerifyURL string
}

// Verification is the input for the Verify workflow. Token is the
// plaintext proof from the emailed link.
type Verification struct {
	AccountID uuid.UUID
	Token     string
}

// Verify concludes a registration. An expired token deletes the
// pending account: an account does not exist until it is verified.
func (s *Service) Verify(ctx context.Context, v Verification) Outcome {
	var out Outcome

	err := s.inTx(ctx, func(tx Tx) error {
		filter := &TokenFilter{
			AccountIDs: []uuid.UUID{v.AccountID},
			Purposes:   []TokenPurpose{TokenPurposeVerify},
		}

		tokens, txErr := tx.FindTokens(filter)
		if txErr != nil {
			return txErr
		}

		if len(tokens) == 0 {
			out = failed(CodeNoSuchPendingVerification, "Account record doesn't exist or has been verified already. Please sign up or log in.")
			return nil
		}

		now := s.NowFunc()

		// Tokens are ordered newest first; older rows for the same
		// account are superseded and only ever cleaned up.
		token := tokens[0]

		if now.After(token.ExpiresAt) {
			// The account never completed its verification in time and
			// is discarded along with its tokens.
			if _, txErr := tx.DeleteTokens(filter); txErr != nil {
				return txErr
			}

			if txErr := tx.DeleteAccount(v.AccountID); txErr != nil {
				return txErr
			}

			out = failed(CodeVerificationExpired, "Link has expired. Please sign up again.")
			return nil
		}

		if !token.TokenHash.MatchBytes([]byte(v.Token)) {
			// Leave the account and tokens untouched, the user can
			// retry with the correct link until it expires.
			out = failed(CodeInvalidToken, "Invalid verification details passed. Check your inbox.")
			return nil
		}

		accts, txErr := tx.FindAccounts(&AccountFilter{
			IDs: []uuid.UUID{v.AccountID},
		})
		if txErr != nil {
			return txErr
		}

		if len(accts) != 1 {
			out = failed(CodeNoSuchPendingVerification, "Account record doesn't exist or has been verified already. Please sign up or log in.")
			return nil
		}

		acct := accts[0]
		acct.Verified = true
		acct.UpdatedAt = now

		if txErr := tx.UpdateAccount(&acct); txErr != nil {
			return txErr
		}

		if _, txErr := tx.DeleteTokens(filter); txErr != nil {
			return txErr
		}

		out = succeeded(CodeVerificationSucceeded, "Email verified successfully")
		return nil
	})

	if err != nil {
		return failedErr(CodePersistenceFailure, "An error occurred while finalizing the verification", err)
	}

	return out
}

// Credentials is the input for the Login workflow.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login checks the provided credentials and returns the sanitized
// account on success. It deliberately does not reveal whether the
// email or the password was wrong when no account matches.
func (s *Service) Login(ctx context.Context, c Credentials) Outcome {
	rawEmail := strings.TrimSpace(c.Email)
	rawPassword := strings.TrimSpace(c.Password)

	if rawEmail == "" || rawPassword == "" {
		return failed(CodeEmptyCredentials, "Empty credentials supplied")
	}

	addr, parseErr := email.ParseAddress(rawEmail)
	if parseErr != nil {
		// Not a shape we'd ever have stored. Burn a comparison anyway
		// so the timing matches the unknown-account path.
		s.comparisonHash.MatchBytes([]byte(rawPassword))
		return failed(CodeInvalidCredentials, "Invalid credentials entered")
	}

	accts, err := s.store.FindAccounts(ctx, &AccountFilter{
		Emails: []email.Address{addr},
	})
	if err != nil {
		return failedErr(CodePersistenceFailure, "An error occurred while checking for an existing account", err)
	}

	if len(accts) != 1 {
		// Compare against a throwaway hash to prevent timing
		// differences that could reveal whether the email exists.
		s.comparisonHash.MatchBytes([]byte(rawPassword))
		return failed(CodeInvalidCredentials, "Invalid credentials entered")
	}

	acct := accts[0]

	if !acct.Verified {
		return failed(CodeEmailNotVerified, "Email hasn't been verified yet. Check your inbox.")
	}

	if !acct.PasswordHash.MatchBytes([]byte(rawPassword)) {
		return failed(CodeInvalidPassword, "Invalid password entered")
	}

	out := succeeded(CodeLoginSucceeded, "Signin successful")
	pub := acct.Public()
	out.Account = &pub
	return out
}

// ResetRequest is the input for the password reset request workflow.
// RedirectURL is the page the emailed link points at; the account ID
// and plaintext token are appended to it.
type ResetRequest struct {
	Email       string `json:"email"`
	RedirectURL string `json:"redirectUrl"`
}

// ResetMail is the data for the password-reset template.
type ResetMail struct {
	Name     string
	ResetURL string
}

// RequestPasswordReset issues a reset token for a verified account and
// mails a reset link. Any previously issued reset tokens for the
// account are invalidated first.
func (s *Service) RequestPasswordReset(ctx context.Context, req ResetRequest) Outcome {
	addr, parseErr := email.ParseAddress(strings.TrimSpace(req.Email))
	if parseErr != nil {
		return failed(CodeNoSuchAccount, "No account with the provided email exists")
	}

	now := s.NowFunc()

	var (
		out  Outcome
		mail ResetMail
		to   email.Address
	)

	err := s.inTx(ctx, func(tx Tx) error {
		accts, txErr := tx.FindAccounts(&AccountFilter{
			Emails: []email.Address{addr},
		})
		if txErr != nil {
			return txErr
		}

		if len(accts) != 1 {
			out = failed(CodeNoSuchAccount, "No account with the provided email exists")
			return nil
		}

		acct := accts[0]

		if !acct.Verified {
			out = failed(CodeAccountNotVerified, "Email hasn't been verified yet. Check your inbox.")
			return nil
		}

		// Supersede any earlier reset requests, only the newest link
		// may be used.
		if _, txErr := tx.DeleteTokens(&TokenFilter{
			AccountIDs: []uuid.UUID{acct.ID},
			Purposes:   []TokenPurpose{TokenPurposeReset},
		}); txErr != nil {
			return txErr
		}

		token, emailToken, txErr := s.issueToken(acct.ID, TokenPurposeReset, now, s.cfg.ResetTokenExpiry)
		if txErr != nil {
			return txErr
		}

		if txErr := tx.CreateToken(&emailToken); txErr != nil {
			return txErr
		}

		to = acct.Email
		mail = ResetMail{
			Name:     acct.Name,
			ResetURL: resetURL(req.RedirectURL, acct.ID, token),
		}

		out = pending(CodeResetPending, "Password reset email sent")
		return nil
	})

	if err != nil {
		return failedErr(CodePersistenceFailure, "An error occurred while saving the password reset data", err)
	}

	if out.Status != StatusPending {
		return out
	}

	if err := s.emailer.Send(ctx, "password-reset", to, mail); err != nil {
		return failedErr(CodeNotificationFailure, "Sending the password reset email failed", err)
	}

	return out
}

// PasswordReset is the input for the reset completion workflow.
type PasswordReset struct {
	AccountID   uuid.UUID `json:"accountId"`
	Token       string    `json:"token"`
	NewPassword string    `json:"newPassword"`
}

// CompletePasswordReset validates the reset token and replaces the
// account's password. An expired token only removes the token rows,
// the account itself survives.
func (s *Service) CompletePasswordReset(ctx context.Context, r PasswordReset) Outcome {
	pwd, err := ParsePassword(strings.TrimSpace(r.NewPassword))
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return failed(CodePasswordTooLong, "Password is too long")
		}
		return failed(CodePasswordTooShort, "Password is too short")
	}

	pwdHash, err := pwd.Hash()
	if err != nil {
		return failedErr(CodeHashingFailure, "An error occurred while hashing the new password", err)
	}

	var out Outcome

	err = s.inTx(ctx, func(tx Tx) error {
		filter := &TokenFilter{
			AccountIDs: []uuid.UUID{r.AccountID},
			Purposes:   []TokenPurpose{TokenPurposeReset},
		}

		tokens, txErr := tx.FindTokens(filter)
		if txErr != nil {
			return txErr
		}

		if len(tokens) == 0 {
			out = failed(CodeNoSuchPendingReset, "Password reset request not found")
			return nil
		}

		now := s.NowFunc()
		token := tokens[0]

		if now.After(token.ExpiresAt) {
			// Unlike verification, only the token is discarded. The
			// account exists and is verified, it just keeps its old
			// password.
			if _, txErr := tx.DeleteTokens(filter); txErr != nil {
				return txErr
			}

			out = failed(CodeResetExpired, "Password reset link has expired. Please request a new one.")
			return nil
		}

		if !token.TokenHash.MatchBytes([]byte(r.Token)) {
			out = failed(CodeInvalidToken, "Invalid password reset details passed")
			return nil
		}

		accts, txErr := tx.FindAccounts(&AccountFilter{
			IDs: []uuid.UUID{r.AccountID},
		})
		if txErr != nil {
			return txErr
		}

		if len(accts) != 1 {
			out = failed(CodeNoSuchPendingReset, "Password reset request not found")
			return nil
		}

		acct := accts[0]
		acct.PasswordHash = pwdHash
		acct.UpdatedAt = now

		if txErr := tx.UpdateAccount(&acct); txErr != nil {
			return txErr
		}

		if _, txErr := tx.DeleteTokens(filter); txErr != nil {
			return txErr
		}

		out = succeeded(CodeResetSucceeded, "Password has been reset successfully")
		return nil
	})

	if err != nil {
		return failedErr(CodePersistenceFailure, "An error occurred while finalizing the password reset", err)
	}

	return out
}

// issueToken generates a fresh token and the record holding its hash.
// The returned token is the only copy of the plaintext.
func (s *Service) issueToken(accountID uuid.UUID, purpose TokenPurpose, now time.Time, expiry time.Duration) (krypto.Token, EmailToken, error) {
	token, err := krypto.GenerateToken()
	if err != nil {
		return krypto.Token{}, EmailToken{}, err
	}

	hash, err := krypto.HashArgon2(proofBytes(token, accountID))
	if err != nil {
		return krypto.Token{}, EmailToken{}, err
	}

	return token, EmailToken{
		ID:        uuid.New(),
		AccountID: accountID,
		TokenHash: hash,
		Purpose:   purpose,
		CreatedAt: now,
		ExpiresAt: now.Add(expiry),
	}, nil
}

func (s *Service) verifyURL(accountID uuid.UUID, token krypto.Token) string {
	return fmt.Sprintf("%s/user/verify/%s/%s",
		strings.TrimSuffix(s.cfg.BaseURL, "/"), accountID, string(proofBytes(token, accountID)))
}

func resetURL(redirect string, accountID uuid.UUID, token krypto.Token) string {
	return fmt.Sprintf("%s/%s/%s",
		strings.TrimSuffix(redirect, "/"), accountID, string(proofBytes(token, accountID)))
}

func (s *Service) inTx(ctx context.Context, f func(tx Tx) error) error {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}

	err = f(tx)
	if err != nil {
		if rBackErr := tx.Rollback(); rBackErr != nil {
			err = errors.Join(err, rBackErr)
		}
		return err
	}

	return tx.Commit()
}
