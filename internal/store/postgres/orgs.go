package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/narvanalabs/expense-orgs/internal/models"
	"github.com/narvanalabs/expense-orgs/internal/store"
)

// OrgStore implements store.OrgStore using PostgreSQL.
type OrgStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

// conn returns the queryable connection (transaction or database).
func (s *OrgStore) conn() queryable {
	return conn(s.db, s.tx)
}

// Create creates a new organization.
func (s *OrgStore) Create(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (id, name, slug, description, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
		RETURNING created_at, updated_at`

	now := time.Now().UTC()
	if org.CreatedAt.IsZero() {
		org.CreatedAt = now
	}
	if org.UpdatedAt.IsZero() {
		org.UpdatedAt = org.CreatedAt
	}

	err := s.conn().QueryRowContext(ctx, query,
		org.ID,
		org.Name,
		org.Slug,
		org.Description,
		org.CreatedAt,
		org.UpdatedAt,
	).Scan(&org.CreatedAt, &org.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("inserting organization: %w", mapPostgresError(err))
	}

	return nil
}

// Get retrieves an organization by ID.
func (s *OrgStore) Get(ctx context.Context, id string) (*models.Organization, error) {
	query := `
		SELECT id, name, slug, COALESCE(description, ''), created_at, updated_at
		FROM organizations
		WHERE id = $1`

	org := &models.Organization{}
	err := s.conn().QueryRowContext(ctx, query, id).Scan(
		&org.ID,
		&org.Name,
		&org.Slug,
		&org.Description,
		&org.CreatedAt,
		&org.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("querying organization: %w", mapPostgresError(err))
	}

	return org, nil
}

// Update updates an organization.
func (s *OrgStore) Update(ctx context.Context, org *models.Organization) error {
	query := `
		UPDATE organizations
		SET name = $2, slug = $3, description = NULLIF($4, ''), updated_at = $5
		WHERE id = $1
		RETURNING created_at`

	org.UpdatedAt = time.Now().UTC()

	err := s.conn().QueryRowContext(ctx, query,
		org.ID,
		org.Name,
		org.Slug,
		org.Description,
		org.UpdatedAt,
	).Scan(&org.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return fmt.Errorf("updating organization: %w", mapPostgresError(err))
	}

	return nil
}

// Delete deletes an organization. Memberships, invitations and categories
// are removed by ON DELETE CASCADE.
func (s *OrgStore) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM organizations WHERE id = $1`

	result, err := s.conn().ExecContext(ctx, query, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrReferenced
		}
		return fmt.Errorf("deleting organization: %w", mapPostgresError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return store.ErrNotFound
	}

	return nil
}

// Lock takes a row lock on the organization until the enclosing transaction ends.
func (s *OrgStore) Lock(ctx context.Context, id string) error {
	query := `SELECT id FROM organizations WHERE id = $1 FOR UPDATE`

	var locked string
	err := s.conn().QueryRowContext(ctx, query, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return fmt.Errorf("locking organization: %w", mapPostgresError(err))
	}
	return nil
}
