package db

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/rvangils/accountd/internal/account"
	"github.com/rvangils/accountd/internal/db"
	"github.com/rvangils/accountd/internal/email"
	"github.com/rvangils/accountd/internal/errorz"
)

type execFunc func(query string, params ...any) (sql.Result, error)
type queryFunc func(query string, params ...any) (*sql.Rows, error)

func insertAccount(q *db.Query, ef execFunc, a *account.Account) error {
	if a.ID == uuid.Nil {
		return fmt.Errorf("zero uuid provided: %w", errorz.ErrConstraintViolated)
	}

	q.Unsafe(`INSERT INTO accounts (id, name_encrypted, email_encrypted, email_blind_index, password_hash, is_verified, created_at, updated_at) VALUES (`)
	q.Param(a.ID)
	q.Unsafe(`, `)
	q.ParamEncrypted([]byte(a.Name))
	q.Unsafe(`, `)
	q.ParamEncrypted([]byte(a.Email))
	q.Unsafe(`, `)
	q.ParamBlindIndex([]byte(a.Email))
	q.Unsafe(`, `)
	q.Params(a.PasswordHash.String(), a.Verified, a.CreatedAt, a.UpdatedAt)
	q.Unsafe(`)`)

	s, params, err := q.Get()
	if err != nil {
		return err
	}

	_, err = ef(s, params...)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	return nil
}

func updateAccount(q *db.Query, ef execFunc, a *account.Account) error {
	q.Unsafe(`UPDATE accounts SET `)

	q.Unsafe(`name_encrypted = `)
	q.ParamEncrypted([]byte(a.Name))

	q.Unsafe(`, email_encrypted = `)
	q.ParamEncrypted([]byte(a.Email))

	q.Unsafe(`, email_blind_index = `)
	q.ParamBlindIndex([]byte(a.Email))

	q.Unsafe(`, password_hash = `)
	q.Param(a.PasswordHash.String())

	q.Unsafe(`, is_verified = `)
	q.Param(a.Verified)

	q.Unsafe(`, updated_at = `)
	q.Param(a.UpdatedAt)

	q.Unsafe(` WHERE id = `)
	q.Param(a.ID)

	s, params, err := q.Get()
	if err != nil {
		return err
	}

	result, err := ef(s, params...)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errorz.MapDBErr(err)
	}

	if rows == 0 {
		return fmt.Errorf("account not found: %w", errorz.ErrNotFound)
	}

	return nil
}

func deleteAccount(q *db.Query, ef execFunc, id uuid.UUID) error {
	q.Unsafe(`DELETE FROM accounts WHERE id = `)
	q.Param(id)

	s, params, err := q.Get()
	if err != nil {
		return err
	}

	result, err := ef(s, params...)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errorz.MapDBErr(err)
	}

	if rows == 0 {
		return fmt.Errorf("account not found: %w", errorz.ErrNotFound)
	}

	return nil
}

func selectAccounts(q *db.Query, qf queryFunc, f *account.AccountFilter) ([]account.Account, error) {
	q.Unsafe(`SELECT id, name_encrypted, email_encrypted, password_hash, is_verified, created_at, updated_at FROM accounts WHERE 1=1 `)

	if len(f.IDs) > 0 {
		q.Unsafe(`AND id IN (`)
		q.Params(anySlice(f.IDs)...)
		q.Unsafe(`) `)
	}

	if len(f.Emails) > 0 {
		q.Unsafe(`AND email_blind_index IN (`)
		for i, addr := range f.Emails {
			if i > 0 {
				q.Unsafe(`, `)
			}
			q.ParamBlindIndex([]byte(addr))
		}
		q.Unsafe(`) `)
	}

	if f.Verified != nil {
		q.Unsafe(`AND is_verified = `)
		q.Param(*f.Verified)
	}

	q.Unsafe(`ORDER BY created_at ASC`)

	s, params, err := q.Get()
	if err != nil {
		return nil, err
	}

	rows, err := qf(s, params...)
	if err != nil {
		return nil, errorz.MapDBErr(err)
	}

	defer rows.Close()

	out := make([]account.Account, 0)
	for rows.Next() {
		var a account.Account

		nameBytes := q.DecryptionTarget()
		emailBytes := q.DecryptionTarget()

		err := rows.Scan(&a.ID, nameBytes, emailBytes, &a.PasswordHash, &a.Verified, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, errorz.MapDBErr(err)
		}

		a.Name = string(nameBytes.Data)
		a.Email = email.Address(emailBytes.Data)

		out = append(out, a)
	}

	if err := rows.Err(); err != nil {
		return nil, errorz.MapDBErr(err)
	}

	return out, nil
}

func insertEmailToken(q *db.Query, ef execFunc, tok *account.EmailToken) error {
	if tok.ID == uuid.Nil || tok.AccountID == uuid.Nil {
		return fmt.Errorf("zero uuid provided: %w", errorz.ErrConstraintViolated)
	}

	q.Unsafe(`INSERT INTO email_tokens (id, account_id, token_hash, purpose, created_at, expires_at) VALUES (`)
	q.Params(tok.ID, tok.AccountID, tok.TokenHash.String(), tok.Purpose, tok.CreatedAt, tok.ExpiresAt)
	q.Unsafe(`)`)

	s, params, err := q.Get()
	if err != nil {
		return err
	}

	_, err = ef(s, params...)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	return nil
}

func selectEmailTokens(q *db.Query, qf queryFunc, f *account.TokenFilter) ([]account.EmailToken, error) {
	q.Unsafe(`SELECT id, account_id, token_hash, purpose, created_at, expires_at FROM email_tokens WHERE 1=1 `)

	writeTokenFilter(q, f)

	q.Unsafe(`ORDER BY created_at DESC`)

	s, params, err := q.Get()
	if err != nil {
		return nil, err
	}

	rows, err := qf(s, params...)
	if err != nil {
		return nil, errorz.MapDBErr(err)
	}

	defer rows.Close()

	out := make([]account.EmailToken, 0)
	for rows.Next() {
		var tok account.EmailToken
		err := rows.Scan(&tok.ID, &tok.AccountID, &tok.TokenHash, &tok.Purpose, &tok.CreatedAt, &tok.ExpiresAt)
		if err != nil {
			return nil, errorz.MapDBErr(err)
		}

		out = append(out, tok)
	}

	if err := rows.Err(); err != nil {
		return nil, errorz.MapDBErr(err)
	}

	return out, nil
}

func deleteEmailTokens(q *db.Query, ef execFunc, f *account.TokenFilter) (int, error) {
	if len(f.IDs) == 0 && len(f.AccountIDs) == 0 && len(f.Purposes) == 0 {
		return 0, fmt.Errorf("refusing to delete tokens without filter: %w", errorz.ErrConstraintViolated)
	}

	q.Unsafe(`DELETE FROM email_tokens WHERE 1=1 `)

	writeTokenFilter(q, f)

	s, params, err := q.Get()
	if err != nil {
		return 0, err
	}

	result, err := ef(s, params...)
	if err != nil {
		return 0, errorz.MapDBErr(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errorz.MapDBErr(err)
	}

	return int(rows), nil
}

func writeTokenFilter(q *db.Query, f *account.TokenFilter) {
	if len(f.IDs) > 0 {
		q.Unsafe(`AND id IN (`)
		q.Params(anySlice(f.IDs)...)
		q.Unsafe(`) `)
	}

	if len(f.AccountIDs) > 0 {
		q.Unsafe(`AND account_id IN (`)
		q.Params(anySlice(f.AccountIDs)...)
		q.Unsafe(`) `)
	}

	if len(f.Purposes) > 0 {
		q.Unsafe(`AND purpose IN (`)
		q.Params(anySlice(f.Purposes)...)
		q.Unsafe(`) `)
	}
}

func anySlice[T any](vals []T) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}
