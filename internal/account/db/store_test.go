package db_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rvangils/accountd/internal/account"
	"github.com/rvangils/accountd/internal/account/db"
	"github.com/rvangils/accountd/internal/db/testdb"
	"github.com/rvangils/accountd/internal/email"
	"github.com/rvangils/accountd/internal/errorz"
	"github.com/rvangils/accountd/internal/krypto"
)

func Test_Tx_CreateAccount(t *testing.T) {
	t.Run("ok, create and find account", func(t *testing.T) {
		store := storeForTest(t)
		tx := beginTx(t, store)

		acct := testAccount(t, nil)

		if err := tx.CreateAccount(&acct); err != nil {
			t.Fatalf("failed to create account: %v", err)
		}

		assertFindAccount(t, tx, acct)

		if err := tx.Commit(); err != nil {
			t.Fatalf("failed to commit tx: %v", err)
		}
	})

	t.Run("fail, zero id", func(t *testing.T) {
		store := storeForTest(t)
		tx := beginTx(t, store)

		acct := testAccount(t, func(a *account.Account) {
			a.ID = uuid.Nil
		})

		err := tx.CreateAccount(&acct)
		if !errors.Is(err, errorz.ErrConstraintViolated) {
			t.Fatalf("expected error %v, got %v (via errors.Is)", errorz.ErrConstraintViolated, err)
		}
	})

	t.Run("fail, duplicate email blind index", func(t *testing.T) {
		store := storeForTest(t)
		tx := beginTx(t, store)

		acct := testAccount(t, nil)
		if err := tx.CreateAccount(&acct); err != nil {
			t.Fatalf("failed to create account: %v", err)
		}

		dup := testAccount(t, func(a *account.Account) {
			a.ID = uuid.New()
		})

		err := tx.CreateAccount(&dup)
		if !errors.Is(err, errorz.ErrConstraintViolated) {
			t.Fatalf("expected error %v, got %v (via errors.Is)", errorz.ErrConstraintViolated, err)
		}
	})
}

func Test_Tx_UpdateAccount(t *testing.T) {
	t.Run("ok, update all mutable fields", func(t *testing.T) {
		store := storeForTest(t)
		tx := beginTx(t, store)

		acct := testAccount(t, nil)
		if err := tx.CreateAccount(&acct); err != nil {
			t.Fatalf("failed to create account: %v", err)
		}

		acct.Name = "Jacob Jones"
		acct.Email = "jacob@example.com"
		acct.PasswordHash = argon2Hash(t, "$argon2id$v=19$m=47104,t=1,p=1$CkX5zzYLJMWm0y/17eScyw$Qfah+NewdsdeF0+iV72mShZhRO93Qwzdj17TUZCH6ZU")
		acct.Verified = true
		acct.UpdatedAt = now(t, 1)

		if err := tx.UpdateAccount(&acct); err != nil {
			t.Fatalf("failed to update account: %v", err)
		}

		assertFindAccount(t, tx, acct)

		// The old email no longer matches anything.
		got, err := tx.FindAccounts(&account.AccountFilter{
			Emails: []email.Address{"jane@example.com"},
		})
		if err != nil {
			t.Fatalf("failed to find accounts: %v", err)
		}

		if len(got) != 0 {
			t.Errorf("expected no accounts for the old email, got %d", len(got))
		}
	})

	t.Run("fail, account does not exist", func(t *testing.T) {
		store := storeForTest(t)
		tx := beginTx(t, store)

		acct := testAccount(t, nil)

		err := tx.UpdateAccount(&acct)
		if !errors.Is(err, errorz.ErrNotFound) {
			t.Fatalf("expected error %v, got %v (via errors.Is)", errorz.ErrNotFound, err)
		}
	})
}

func Test_Tx_DeleteAccount(t *testing.T) {
	t.Run("ok, delete cascades to tokens", func(t *testing.T) {
		store := storeForTest(t)
		tx := beginTx(t, store)

		acct := testAccount(t, nil)
		if err := tx.CreateAccount(&acct); err != nil {
			t.Fatalf("failed to create account: %v", err)
		}

		tok := testToken(t, acct.ID, nil)
		if err := tx.CreateToken(&tok); err != nil {
			t.Fatalf("failed to create token: %v", err)
		}

		if err := tx.DeleteAccount(acct.ID); err != nil {
			t.Fatalf("failed to delete account: %v", err)
		}

		tokens, err := tx.FindTokens(&account.TokenFilter{
			AccountIDs: []uuid.UUID{acct.ID},
		})
		if err != nil {
			t.Fatalf("failed to find tokens: %v", err)
		}

		if len(tokens) != 0 {
			t.Errorf("expected tokens to be cascade deleted, got %d", len(tokens))
		}
	})

	t.Run("fail, account does not exist", func(t *testing.T) {
		store := storeForTest(t)
		tx := beginTx(t, store)

		err := tx.DeleteAccount(uuid.New())
		if !errors.Is(err, errorz.ErrNotFound) {
			t.Fatalf("expected error %v, got %v (via errors.Is)", errorz.ErrNotFound, err)
		}
	})
}

func Test_Store_FindAccounts(t *testing.T) {
	t.Run("ok, filter by verified flag", func(t *testing.T) {
		store := storeForTest(t)
		tx := beginTx(t, store)

		verified := testAccount(t, func(a *account.Account) {
			a.Verified = true
		})
		if err := tx.CreateAccount(&verified); err != nil {
			t.Fatalf("failed to create account: %v", err)
		}

		pending := testAccount(t, func(a *account.Account) {
			a.ID = uuid.New()
			a.Email = "jacob@example.com"
			a.CreatedAt = now(t, 1)
			a.UpdatedAt = now(t, 1)
		})
		if err := tx.CreateAccount(&pending); err != nil {
			t.Fatalf("failed to create account: %v", err)
		}

		if err := tx.Commit(); err != nil {
			t.Fatalf("failed to commit tx: %v", err)
		}

		// The read path goes through the store, not the transaction.
		isVerified := true
		got, err := store.FindAccounts(context.Background(), &account.AccountFilter{
			Verified: &isVerified,
		})
		if err != nil {
			t.Fatalf("failed to find accounts: %v", err)
		}

		if len(got) != 1 || got[0].ID != verified.ID {
			t.Errorf("got %d accounts, want exactly the verified one", len(got))
		}
	})

	t.Run("ok, no match returns empty slice", func(t *testing.T) {
		store := storeForTest(t)

		got, err := store.FindAccounts(context.Background(), &account.AccountFilter{
			Emails: []email.Address{"nobody@example.com"},
		})
		if err != nil {
			t.Fatalf("failed to find accounts: %v", err)
		}

		if len(got) != 0 {
			t.Errorf("expected no accounts, got %d", len(got))
		}
	})
}

func Test_Tx_Tokens(t *testing.T) {
	t.Run("ok, create and find tokens newest first", func(t *testing.T) {
		store := storeForTest(t)
		tx := beginTx(t, store)

		acct := testAccount(t, nil)
		if err := tx.CreateAccount(&acct); err != nil {
			t.Fatalf("failed to create account: %v", err)
		}

		older := testToken(t, acct.ID, func(tok *account.EmailToken) {
			tok.CreatedAt = now(t, 1)
			tok.ExpiresAt = now(t, 2)
		})
		newer := testToken(t, acct.ID, func(tok *account.EmailToken) {
			tok.ID = uuid.New()
			tok.CreatedAt = now(t, 3)
			tok.ExpiresAt = now(t, 4)
		})

		for _, tok := range []*account.EmailToken{&older, &newer} {
			if err := tx.CreateToken(tok); err != nil {
				t.Fatalf("failed to create token: %v", err)
			}
		}

		got, err := tx.FindTokens(&account.TokenFilter{
			AccountIDs: []uuid.UUID{acct.ID},
			Purposes:   []account.TokenPurpose{account.TokenPurposeVerify},
		})
		if err != nil {
			t.Fatalf("failed to find tokens: %v", err)
		}

		if len(got) != 2 {
			t.Fatalf("expected 2 tokens, got %d", len(got))
		}

		if got[0].ID != newer.ID || got[1].ID != older.ID {
			t.Errorf("expected newest first, got %v then %v", got[0].ID, got[1].ID)
		}

		if !reflect.DeepEqual(got[0], newer) {
			t.Errorf("got\n%#v\nwant\n%#v\n", got[0], newer)
		}
	})

	t.Run("ok, purposes do not leak into each other", func(t *testing.T) {
		store := storeForTest(t)
		tx := beginTx(t, store)

		acct := testAccount(t, nil)
		if err := tx.CreateAccount(&acct); err != nil {
			t.Fatalf("failed to create account: %v", err)
		}

		verify := testToken(t, acct.ID, nil)
		reset := testToken(t, acct.ID, func(tok *account.EmailToken) {
			tok.ID = uuid.New()
			tok.Purpose = account.TokenPurposeReset
		})

		for _, tok := range []*account.EmailToken{&verify, &reset} {
			if err := tx.CreateToken(tok); err != nil {
				t.Fatalf("failed to create token: %v", err)
			}
		}

		deleted, err := tx.DeleteTokens(&account.TokenFilter{
			AccountIDs: []uuid.UUID{acct.ID},
			Purposes:   []account.TokenPurpose{account.TokenPurposeReset},
		})
		if err != nil {
			t.Fatalf("failed to delete tokens: %v", err)
		}

		if deleted != 1 {
			t.Errorf("expected 1 deleted token, got %d", deleted)
		}

		remaining, err := tx.FindTokens(&account.TokenFilter{
			AccountIDs: []uuid.UUID{acct.ID},
		})
		if err != nil {
			t.Fatalf("failed to find tokens: %v", err)
		}

		if len(remaining) != 1 || remaining[0].Purpose != account.TokenPurposeVerify {
			t.Errorf("expected only the verify token to remain, got %+v", remaining)
		}
	})

	t.Run("fail, create token with zero ids", func(t *testing.T) {
		store := storeForTest(t)
		tx := beginTx(t, store)

		tok := testToken(t, uuid.Nil, nil)

		err := tx.CreateToken(&tok)
		if !errors.Is(err, errorz.ErrConstraintViolated) {
			t.Fatalf("expected error %v, got %v (via errors.Is)", errorz.ErrConstraintViolated, err)
		}
	})

	t.Run("fail, delete with empty filter", func(t *testing.T) {
		store := storeForTest(t)
		tx := beginTx(t, store)

		_, err := tx.DeleteTokens(&account.TokenFilter{})
		if !errors.Is(err, errorz.ErrConstraintViolated) {
			t.Fatalf("expected error %v, got %v (via errors.Is)", errorz.ErrConstraintViolated, err)
		}
	})
}

func now(t *testing.T, i int) time.Time {
	t.Helper()
	if i > 9 {
		t.Fatalf("invalid time index: %d", i)
	}

	ts, err := time.Parse(time.RFC3339, fmt.Sprintf("2021-01-01T00:00:0%dZ", i))
	if err != nil {
		t.Fatalf("failed to parse time: %v", err)
	}

	return ts
}

func storeForTest(t *testing.T) *db.Store {
	t.Helper()

	encryptor, err := krypto.NewEncryptor([]krypto.Key{
		parseKey(t, "2b671594b775f371eab4050b4d58326682df6b1a6cc2e886717b1a26b4d6c45d"),
	})
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}

	testDB := testdb.RunTestDB(t)

	return db.New(testDB, testDB, encryptor, parseKey(t, "90303dfed7994260ea4817a5ca8a392915cd401115b2f97495dadfcbcd14adbf"))
}

func beginTx(t *testing.T, store *db.Store) account.Tx {
	t.Helper()

	tx, err := store.BeginTx(context.Background())
	if err != nil {
		t.Fatalf("failed to begin tx: %v", err)
	}

	return tx
}

func parseKey(t *testing.T, raw string) krypto.Key {
	t.Helper()

	key, err := krypto.ParseKey(raw)
	if err != nil {
		t.Fatalf("failed to parse key: %v", err)
	}

	return key
}

func argon2Hash(t *testing.T, raw string) krypto.Argon2Hash {
	t.Helper()

	hash, err := krypto.ParseArgon2Hash(raw)
	if err != nil {
		t.Fatalf("failed to parse hash: %v", err)
	}

	return hash
}

func testAccount(t *testing.T, modFunc func(*account.Account)) account.Account {
	t.Helper()

	a := account.Account{
		ID:           uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		Name:         "Jane Doe",
		Email:        "jane@example.com",
		PasswordHash: argon2Hash(t, "$argon2id$v=19$m=47104,t=1,p=1$vP9U4C5jsOzFQLj0gvUkYw$YLrSb2dGfcVohlm8syynqHs6/NHxXS9rt/t6TjL7pi0"),
		Verified:     false,
		CreatedAt:    now(t, 0),
		UpdatedAt:    now(t, 0),
	}

	if modFunc != nil {
		modFunc(&a)
	}

	return a
}

func testToken(t *testing.T, accountID uuid.UUID, modFunc func(*account.EmailToken)) account.EmailToken {
	t.Helper()

	tok := account.EmailToken{
		ID:        uuid.MustParse("22222222-2222-2222-2222-222222222222"),
		AccountID: accountID,
		TokenHash: argon2Hash(t, "$argon2id$v=19$m=47104,t=1,p=1$vP9U4C5jsOzFQLj0gvUkYw$YLrSb2dGfcVohlm8syynqHs6/NHxXS9rt/t6TjL7pi0"),
		Purpose:   account.TokenPurposeVerify,
		CreatedAt: now(t, 0),
		ExpiresAt: now(t, 1),
	}

	if modFunc != nil {
		modFunc(&tok)
	}

	return tok
}

func assertFindAccount(t *testing.T, tx account.Tx, want account.Account) {
	t.Helper()

	got, err := tx.FindAccounts(&account.AccountFilter{
		Emails: []email.Address{want.Email},
	})
	if err != nil {
		t.Fatalf("failed to find account: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("expected 1 account, got %d", len(got))
	}

	if !reflect.DeepEqual(got[0], want) {
		t.Errorf("got\n%#v\nwant\n%#v\n", got[0], want)
	}
}
