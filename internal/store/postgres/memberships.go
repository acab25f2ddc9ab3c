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

// MembershipStore implements store.MembershipStore using PostgreSQL.
type MembershipStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *MembershipStore) conn() queryable {
	return conn(s.db, s.tx)
}

// Create adds a membership.
func (s *MembershipStore) Create(ctx context.Context, m *models.Membership) error {
	query := `
		INSERT INTO org_memberships (org_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)`

	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}

	_, err := s.conn().ExecContext(ctx, query, m.OrganizationID, m.UserID, string(m.Role), m.JoinedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return store.ErrDuplicate
		case isForeignKeyViolation(err):
			return store.ErrNotFound
		}
		return fmt.Errorf("adding member to organization: %w", mapPostgresError(err))
	}

	return nil
}

// Get retrieves a membership.
func (s *MembershipStore) Get(ctx context.Context, orgID, userID string) (*models.Membership, error) {
	query := `
		SELECT org_id, user_id, role, joined_at
		FROM org_memberships
		WHERE org_id = $1 AND user_id = $2`

	m := &models.Membership{}
	var role string
	err := s.conn().QueryRowContext(ctx, query, orgID, userID).Scan(
		&m.OrganizationID,
		&m.UserID,
		&role,
		&m.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("querying membership: %w", mapPostgresError(err))
	}
	m.Role = models.Role(role)

	return m, nil
}

// GetWithUser retrieves a membership joined with its user.
func (s *MembershipStore) GetWithUser(ctx context.Context, orgID, userID string) (*models.MemberWithUser, error) {
	query := `
		SELECT m.org_id, m.user_id, m.role, m.joined_at, u.id, u.name, u.email
		FROM org_memberships m
		INNER JOIN users u ON u.id = m.user_id
		WHERE m.org_id = $1 AND m.user_id = $2`

	m, err := scanMemberWithUser(s.conn().QueryRowContext(ctx, query, orgID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("querying membership: %w", mapPostgresError(err))
	}
	return m, nil
}

// GetByEmail retrieves the membership of the user registered with email.
func (s *MembershipStore) GetByEmail(ctx context.Context, orgID, email string) (*models.Membership, error) {
	query := `
		SELECT m.org_id, m.user_id, m.role, m.joined_at
		FROM org_memberships m
		INNER JOIN users u ON u.id = m.user_id
		WHERE m.org_id = $1 AND lower(u.email) = lower($2)`

	m := &models.Membership{}
	var role string
	err := s.conn().QueryRowContext(ctx, query, orgID, email).Scan(
		&m.OrganizationID,
		&m.UserID,
		&role,
		&m.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("querying membership by email: %w", mapPostgresError(err))
	}
	m.Role = models.Role(role)

	return m, nil
}

// UpdateRole changes a member's role.
func (s *MembershipStore) UpdateRole(ctx context.Context, orgID, userID string, role models.Role) error {
	query := `UPDATE org_memberships SET role = $3 WHERE org_id = $1 AND user_id = $2`

	result, err := s.conn().ExecContext(ctx, query, orgID, userID, string(role))
	if err != nil {
		return fmt.Errorf("updating member role: %w", mapPostgresError(err))
	}
	return expectOneRow(result)
}

// Delete removes a membership.
func (s *MembershipStore) Delete(ctx context.Context, orgID, userID string) error {
	query := `DELETE FROM org_memberships WHERE org_id = $1 AND user_id = $2`

	result, err := s.conn().ExecContext(ctx, query, orgID, userID)
	if err != nil {
		return fmt.Errorf("removing member from organization: %w", mapPostgresError(err))
	}
	return expectOneRow(result)
}

// CountByRole counts members of an organization holding role.
func (s *MembershipStore) CountByRole(ctx context.Context, orgID string, role models.Role) (int, error) {
	query := `SELECT COUNT(*) FROM org_memberships WHERE org_id = $1 AND role = $2`

	var count int
	if err := s.conn().QueryRowContext(ctx, query, orgID, string(role)).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting members: %w", mapPostgresError(err))
	}
	return count, nil
}

// ListByOrg lists an organization's members, most recently joined first.
func (s *MembershipStore) ListByOrg(ctx context.Context, orgID string) ([]*models.MemberWithUser, error) {
	query := `
		SELECT m.org_id, m.user_id, m.role, m.joined_at, u.id, u.name, u.email
		FROM org_memberships m
		INNER JOIN users u ON u.id = m.user_id
		WHERE m.org_id = $1
		ORDER BY m.joined_at DESC, m.user_id`

	rows, err := s.conn().QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("querying organization members: %w", mapPostgresError(err))
	}
	defer rows.Close()

	members := []*models.MemberWithUser{}
	for rows.Next() {
		m, err := scanMemberWithUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning membership row: %w", err)
		}
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating membership rows: %w", err)
	}

	return members, nil
}

// ListByUser lists a user's memberships, most recently joined first.
func (s *MembershipStore) ListByUser(ctx context.Context, userID string) ([]*models.MembershipWithOrg, error) {
	query := `
		SELECT m.org_id, m.user_id, m.role, m.joined_at,
		       o.id, o.name, COALESCE(o.description, ''), o.slug, o.created_at
		FROM org_memberships m
		INNER JOIN organizations o ON o.id = m.org_id
		WHERE m.user_id = $1
		ORDER BY m.joined_at DESC, m.org_id`

	rows, err := s.conn().QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying user memberships: %w", mapPostgresError(err))
	}
	defer rows.Close()

	memberships := []*models.MembershipWithOrg{}
	for rows.Next() {
		m := &models.MembershipWithOrg{}
		var role string
		err := rows.Scan(
			&m.OrganizationID,
			&m.UserID,
			&role,
			&m.JoinedAt,
			&m.Organization.ID,
			&m.Organization.Name,
			&m.Organization.Description,
			&m.Organization.Slug,
			&m.Organization.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning membership row: %w", err)
		}
		m.Role = models.Role(role)
		memberships = append(memberships, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating membership rows: %w", err)
	}

	return memberships, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMemberWithUser(row scanner) (*models.MemberWithUser, error) {
	m := &models.MemberWithUser{}
	var role string
	err := row.Scan(
		&m.OrganizationID,
		&m.UserID,
		&role,
		&m.JoinedAt,
		&m.User.ID,
		&m.User.Name,
		&m.User.Email,
	)
	if err != nil {
		return nil, err
	}
	m.Role = models.Role(role)
	return m, nil
}

func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}
