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

// InvitationStore implements store.InvitationStore using PostgreSQL.
type InvitationStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *InvitationStore) conn() queryable {
	return conn(s.db, s.tx)
}

const invitationColumns = `
	i.id, i.organization_id, i.email, i.role, i.invited_by, i.status,
	i.expires_at, i.accepted_at, i.created_at`

const invitationDetailsQuery = `
	SELECT ` + invitationColumns + `,
	       o.id, o.name, COALESCE(o.description, ''),
	       COALESCE(u.name, ''), COALESCE(u.email, '')
	FROM invitations i
	INNER JOIN organizations o ON o.id = i.organization_id
	LEFT JOIN users u ON u.id = i.invited_by`

// Create stores a new invitation.
func (s *InvitationStore) Create(ctx context.Context, inv *models.Invitation) error {
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	if inv.Status == "" {
		inv.Status = models.InvitationStatusPending
	}

	query := `
		INSERT INTO invitations (id, organization_id, email, role, invited_by, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.conn().ExecContext(ctx, query,
		inv.ID,
		inv.OrganizationID,
		inv.Email,
		string(inv.Role),
		inv.InvitedBy,
		string(inv.Status),
		inv.ExpiresAt,
		inv.CreatedAt,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return store.ErrDuplicate
		case isForeignKeyViolation(err):
			return store.ErrNotFound
		}
		return fmt.Errorf("inserting invitation: %w", mapPostgresError(err))
	}
	return nil
}

// Get retrieves an invitation by ID.
func (s *InvitationStore) Get(ctx context.Context, id string) (*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations i WHERE i.id = $1`

	inv, err := scanInvitation(s.conn().QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("querying invitation: %w", mapPostgresError(err))
	}
	return inv, nil
}

// GetDetails retrieves an invitation joined with organization and inviter.
func (s *InvitationStore) GetDetails(ctx context.Context, id string) (*models.InvitationDetails, error) {
	query := invitationDetailsQuery + ` WHERE i.id = $1`

	d, err := scanInvitationDetails(s.conn().QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("querying invitation details: %w", mapPostgresError(err))
	}
	return d, nil
}

// GetPending retrieves the pending invitation for an organization and email.
func (s *InvitationStore) GetPending(ctx context.Context, orgID, email string) (*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + `
		FROM invitations i
		WHERE i.organization_id = $1 AND lower(i.email) = lower($2) AND i.status = 'PENDING'`

	inv, err := scanInvitation(s.conn().QueryRowContext(ctx, query, orgID, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("querying pending invitation: %w", mapPostgresError(err))
	}
	return inv, nil
}

// UpdateStatus persists status and accepted_at. Only pending invitations can
// change; anything else returns store.ErrConflict.
func (s *InvitationStore) UpdateStatus(ctx context.Context, inv *models.Invitation) error {
	query := `UPDATE invitations SET status = $2, accepted_at = $3 WHERE id = $1 AND status = 'PENDING'`

	var acceptedAt sql.NullTime
	if inv.AcceptedAt != nil {
		acceptedAt = sql.NullTime{Time: *inv.AcceptedAt, Valid: true}
	}

	result, err := s.conn().ExecContext(ctx, query, inv.ID, string(inv.Status), acceptedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("updating invitation status: %w", mapPostgresError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	err = s.conn().QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM invitations WHERE id = $1)`, inv.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking invitation: %w", mapPostgresError(err))
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrConflict
}

// ListPendingByOrg lists pending invitations of an organization, newest first.
func (s *InvitationStore) ListPendingByOrg(ctx context.Context, orgID string) ([]*models.InvitationDetails, error) {
	query := invitationDetailsQuery + `
		WHERE i.organization_id = $1 AND i.status = 'PENDING'
		ORDER BY i.created_at DESC, i.id`

	return s.listDetails(ctx, query, orgID)
}

// ListPendingByEmail lists pending invitations addressed to email, newest first.
func (s *InvitationStore) ListPendingByEmail(ctx context.Context, email string) ([]*models.InvitationDetails, error) {
	query := invitationDetailsQuery + `
		WHERE lower(i.email) = lower($1) AND i.status = 'PENDING'
		ORDER BY i.created_at DESC, i.id`

	return s.listDetails(ctx, query, email)
}

func (s *InvitationStore) listDetails(ctx context.Context, query string, arg string) ([]*models.InvitationDetails, error) {
	rows, err := s.conn().QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("querying invitations: %w", mapPostgresError(err))
	}
	defer rows.Close()

	invitations := []*models.InvitationDetails{}
	for rows.Next() {
		d, err := scanInvitationDetails(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning invitation row: %w", err)
		}
		invitations = append(invitations, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invitation rows: %w", err)
	}
	return invitations, nil
}

func invitationFields(inv *models.Invitation, role, status *string, acceptedAt *sql.NullTime) []any {
	return []any{
		&inv.ID, &inv.OrganizationID, &inv.Email, role, &inv.InvitedBy, status,
		&inv.ExpiresAt, acceptedAt, &inv.CreatedAt,
	}
}

func finishInvitation(inv *models.Invitation, role, status string, acceptedAt sql.NullTime) {
	inv.Role = models.Role(role)
	inv.Status = models.InvitationStatus(status)
	if acceptedAt.Valid {
		at := acceptedAt.Time
		inv.AcceptedAt = &at
	}
}

func scanInvitation(row scanner) (*models.Invitation, error) {
	inv := &models.Invitation{}
	var role, status string
	var acceptedAt sql.NullTime

	if err := row.Scan(invitationFields(inv, &role, &status, &acceptedAt)...); err != nil {
		return nil, err
	}
	finishInvitation(inv, role, status, acceptedAt)
	return inv, nil
}

func scanInvitationDetails(row scanner) (*models.InvitationDetails, error) {
	d := &models.InvitationDetails{}
	var role, status string
	var acceptedAt sql.NullTime

	dest := invitationFields(&d.Invitation, &role, &status, &acceptedAt)
	dest = append(dest,
		&d.Organization.ID,
		&d.Organization.Name,
		&d.Organization.Description,
		&d.Inviter.Name,
		&d.Inviter.Email,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	finishInvitation(&d.Invitation, role, status, acceptedAt)
	return d, nil
}
