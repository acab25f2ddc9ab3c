package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/narvanalabs/expense-orgs/internal/models"
	"github.com/narvanalabs/expense-orgs/internal/store"
)

// UserStore implements store.UserStore using PostgreSQL. Rows mirror the
// identity provider and are refreshed from verified tokens.
type UserStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *UserStore) conn() queryable {
	return conn(s.db, s.tx)
}

// Upsert records the latest name and email seen for a user.
func (s *UserStore) Upsert(ctx context.Context, u *models.UserSummary) error {
	query := `
		INSERT INTO users (id, name, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email
		WHERE users.name IS DISTINCT FROM EXCLUDED.name
		   OR users.email IS DISTINCT FROM EXCLUDED.email`

	_, err := s.conn().ExecContext(ctx, query, u.ID, u.Name, u.Email)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("upserting user: %w", mapPostgresError(err))
	}
	return nil
}

// Get retrieves a user summary by ID.
func (s *UserStore) Get(ctx context.Context, id string) (*models.UserSummary, error) {
	return s.get(ctx, `SELECT id, name, email FROM users WHERE id = $1`, id)
}

// GetByEmail retrieves a user summary by email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.UserSummary, error) {
	return s.get(ctx, `SELECT id, name, email FROM users WHERE lower(email) = lower($1)`, email)
}

func (s *UserStore) get(ctx context.Context, query, arg string) (*models.UserSummary, error) {
	u := &models.UserSummary{}
	err := s.conn().QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("querying user: %w", mapPostgresError(err))
	}
	return u, nil
}
