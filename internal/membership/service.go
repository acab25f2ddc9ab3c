// Package membership manages the members of an organization while keeping
// at least one ADMIN in every organization.
package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/narvanalabs/expense-orgs/internal/access"
	"github.com/narvanalabs/expense-orgs/internal/models"
	"github.com/narvanalabs/expense-orgs/internal/store"
)

// Service manages organization memberships.
type Service struct {
	store  store.Store
	gate   *access.Gate
	logger *slog.Logger
}

// NewService creates a new membership service.
func NewService(st store.Store, gate *access.Gate, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		gate:   gate,
		logger: logger.With("component", "membership"),
	}
}

// UpdateRole changes a member's role. Demoting the only ADMIN fails with
// models.ErrLastAdmin and leaves the membership unchanged.
func (s *Service) UpdateRole(ctx context.Context, p models.Principal, orgID, userID string, role models.Role) (*models.MemberWithUser, error) {
	if userID == "" {
		return nil, models.ErrUserIDRequired
	}
	if !role.IsValid() {
		return nil, models.ErrInvalidRole
	}

	var updated *models.MemberWithUser
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		target, err := s.lockTarget(ctx, tx, p, orgID, userID)
		if err != nil {
			return err
		}

		if target.IsAdmin() && role != models.RoleAdmin {
			if err := s.ensureAnotherAdmin(ctx, tx, orgID); err != nil {
				return err
			}
		}

		if err := tx.Memberships().UpdateRole(ctx, orgID, userID, role); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return models.ErrMemberNotFound
			}
			return fmt.Errorf("updating role: %w", err)
		}

		updated, err = tx.Memberships().GetWithUser(ctx, orgID, userID)
		if err != nil {
			return fmt.Errorf("reading membership: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logFailure("update role", orgID, userID, err)
		return nil, err
	}

	s.logger.Info("member role updated", "org_id", orgID, "user_id", userID, "role", role, "by", p.ID)
	return updated, nil
}

// Remove removes a member. Removing the only ADMIN fails with models.ErrLastAdmin.
func (s *Service) Remove(ctx context.Context, p models.Principal, orgID, userID string) error {
	if userID == "" {
		return models.ErrUserIDRequired
	}

	err := s.store.WithTx(ctx, func(tx store.Store) error {
		target, err := s.lockTarget(ctx, tx, p, orgID, userID)
		if err != nil {
			return err
		}

		if target.IsAdmin() {
			if err := s.ensureAnotherAdmin(ctx, tx, orgID); err != nil {
				return err
			}
		}

		if err := tx.Memberships().Delete(ctx, orgID, userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return models.ErrMemberNotFound
			}
			return fmt.Errorf("deleting membership: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logFailure("remove member", orgID, userID, err)
		return err
	}

	s.logger.Info("member removed", "org_id", orgID, "user_id", userID, "by", p.ID)
	return nil
}

// ListByOrganization lists an organization's members, most recently joined
// first. The caller must be an ADMIN.
func (s *Service) ListByOrganization(ctx context.Context, p models.Principal, orgID string) ([]*models.MemberWithUser, error) {
	if _, err := s.gate.RequireAdmin(ctx, p, orgID); err != nil {
		return nil, err
	}

	members, err := s.store.Memberships().ListByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	return members, nil
}

// lockTarget checks the caller is an ADMIN, locks the organization for the
// rest of the transaction and returns the target membership.
func (s *Service) lockTarget(ctx context.Context, tx store.Store, p models.Principal, orgID, userID string) (*models.Membership, error) {
	if _, err := s.gate.Within(tx).RequireAdmin(ctx, p, orgID); err != nil {
		return nil, err
	}
	if err := tx.Orgs().Lock(ctx, orgID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.ErrOrgNotFound
		}
		return nil, fmt.Errorf("locking organization: %w", err)
	}

	target, err := tx.Memberships().Get(ctx, orgID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.ErrMemberNotFound
		}
		return nil, fmt.Errorf("getting membership: %w", err)
	}
	return target, nil
}

func (s *Service) ensureAnotherAdmin(ctx context.Context, tx store.Store, orgID string) error {
	admins, err := tx.Memberships().CountByRole(ctx, orgID, models.RoleAdmin)
	if err != nil {
		return fmt.Errorf("counting admins: %w", err)
	}
	if admins <= 1 {
		return models.ErrLastAdmin
	}
	return nil
}

func (s *Service) logFailure(op, orgID, userID string, err error) {
	if models.KindOf(err) != "" {
		s.logger.Debug(op+" rejected", "org_id", orgID, "user_id", userID, "reason", err.Error())
		return
	}
	s.logger.Error("failed to "+op, "org_id", orgID, "user_id", userID, "error", err)
}
