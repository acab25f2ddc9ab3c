// Package organization implements creation, lookup, update and deletion of
// organizations.
package organization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/narvanalabs/expense-orgs/internal/access"
	"github.com/narvanalabs/expense-orgs/internal/models"
	"github.com/narvanalabs/expense-orgs/internal/store"
)

// CreateInput holds the fields of a new organization.
type CreateInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// UpdateInput holds the fields of an organization update. A nil
// Description leaves the current description unchanged.
type UpdateInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// Service manages organizations.
type Service struct {
	store  store.Store
	gate   *access.Gate
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new organization service.
func NewService(st store.Store, gate *access.Gate, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		gate:   gate,
		logger: logger.With("component", "organization"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create creates an organization and makes the caller its first ADMIN.
// Both rows are written in one transaction.
func (s *Service) Create(ctx context.Context, p models.Principal, in CreateInput) (*models.OrganizationWithMembers, error) {
	if err := s.gate.RequirePrincipal(p); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if err := models.ValidateOrgName(name); err != nil {
		return nil, err
	}

	now := s.now()
	org := &models.Organization{
		ID:          uuid.New().String(),
		Name:        name,
		Slug:        models.GenerateSlug(name),
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var members []*models.MemberWithUser
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.Orgs().Create(ctx, org); err != nil {
			return fmt.Errorf("creating organization: %w", err)
		}
		if err := tx.Memberships().Create(ctx, &models.Membership{
			OrganizationID: org.ID,
			UserID:         p.ID,
			Role:           models.RoleAdmin,
			JoinedAt:       now,
		}); err != nil {
			return fmt.Errorf("creating admin membership: %w", err)
		}

		var err error
		members, err = tx.Memberships().ListByOrg(ctx, org.ID)
		if err != nil {
			return fmt.Errorf("listing members: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to create organization", "user_id", p.ID, "error", err)
		return nil, err
	}

	s.logger.Info("organization created", "org_id", org.ID, "slug", org.Slug, "user_id", p.ID)
	return &models.OrganizationWithMembers{Organization: *org, Members: members}, nil
}

// Get returns an organization with its members. The caller must be a member.
func (s *Service) Get(ctx context.Context, p models.Principal, orgID string) (*models.OrganizationWithMembers, error) {
	if _, err := s.gate.RequireMember(ctx, p, orgID); err != nil {
		return nil, err
	}

	org, err := s.store.Orgs().Get(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.ErrOrgNotFound
		}
		return nil, fmt.Errorf("getting organization: %w", err)
	}

	members, err := s.store.Memberships().ListByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}

	return &models.OrganizationWithMembers{Organization: *org, Members: members}, nil
}

// Update renames an organization and re-derives its slug. The caller must be an ADMIN.
func (s *Service) Update(ctx context.Context, p models.Principal, orgID string, in UpdateInput) (*models.Organization, error) {
	if _, err := s.gate.RequireAdmin(ctx, p, orgID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if err := models.ValidateOrgName(name); err != nil {
		return nil, err
	}

	org, err := s.store.Orgs().Get(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.ErrOrgNotFound
		}
		return nil, fmt.Errorf("getting organization: %w", err)
	}

	org.Name = name
	org.Slug = models.GenerateSlug(name)
	if in.Description != nil {
		org.Description = strings.TrimSpace(*in.Description)
	}

	if err := s.store.Orgs().Update(ctx, org); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.ErrOrgNotFound
		}
		s.logger.Error("failed to update organization", "org_id", orgID, "error", err)
		return nil, fmt.Errorf("updating organization: %w", err)
	}

	s.logger.Info("organization updated", "org_id", orgID, "slug", org.Slug)
	return org, nil
}

// Delete deletes an organization together with its memberships,
// invitations and categories. The caller must be an ADMIN.
func (s *Service) Delete(ctx context.Context, p models.Principal, orgID string) error {
	if _, err := s.gate.RequireAdmin(ctx, p, orgID); err != nil {
		return err
	}

	if err := s.store.Orgs().Delete(ctx, orgID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.ErrOrgNotFound
		}
		s.logger.Error("failed to delete organization", "org_id", orgID, "error", err)
		return fmt.Errorf("deleting organization: %w", err)
	}

	s.logger.Info("organization deleted", "org_id", orgID, "user_id", p.ID)
	return nil
}

// ListMine lists the caller's memberships, most recently joined first.
func (s *Service) ListMine(ctx context.Context, p models.Principal) ([]*models.MembershipWithOrg, error) {
	if err := s.gate.RequirePrincipal(p); err != nil {
		return nil, err
	}

	memberships, err := s.store.Memberships().ListByUser(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("listing memberships: %w", err)
	}
	return memberships, nil
}
