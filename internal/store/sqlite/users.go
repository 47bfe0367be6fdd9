package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/planextra/backend/internal/model/identity"
	"github.com/planextra/backend/internal/store"
)

// CreateUser inserts a new account. Returns store.ErrDuplicate when the
// email is already registered.
func (s *Store) CreateUser(ctx context.Context, account identity.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		account.ID, account.Name, strings.ToLower(account.Email), account.PasswordHash, account.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByID loads an account by identifier.
func (s *Store) GetUserByID(ctx context.Context, id string) (identity.Account, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE id = ?`, id))
}

// GetUserByEmail loads an account by email (case-insensitive).
func (s *Store) GetUserByEmail(ctx context.Context, email string) (identity.Account, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?`,
		strings.ToLower(email)))
}

func (s *Store) scanUser(row *sql.Row) (identity.Account, error) {
	var account identity.Account
	err := row.Scan(&account.ID, &account.Name, &account.Email, &account.PasswordHash, &account.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.Account{}, store.ErrNotFound
	}
	if err != nil {
		return identity.Account{}, fmt.Errorf("scan user: %w", err)
	}
	return account, nil
}
