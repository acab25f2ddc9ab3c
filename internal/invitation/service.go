// Package invitation implements the invitation lifecycle: inviting an email
// address to an organization, cancelling, and accepting.
package invitation

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

// Config holds invitation settings.
type Config struct {
	// TTL is how long a new invitation stays valid.
	TTL time.Duration
}

// InviteInput holds the fields of a new invitation. An empty Role means MEMBER.
type InviteInput struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// Service manages invitations.
type Service struct {
	store    store.Store
	gate     *access.Gate
	notifier Notifier
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new invitation service.
func NewService(cfg *Config, st store.Store, gate *access.Gate, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	ttl := models.InvitationTTL
	if cfg != nil && cfg.TTL > 0 {
		ttl = cfg.TTL
	}
	return &Service{
		store:    st,
		gate:     gate,
		notifier: notifier,
		ttl:      ttl,
		logger:   logger.With("component", "invitation"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Invite creates a pending invitation for email. The caller must be an ADMIN.
func (s *Service) Invite(ctx context.Context, p models.Principal, orgID string, in InviteInput) (*models.InvitationDetails, error) {
	if _, err := s.gate.RequireAdmin(ctx, p, orgID); err != nil {
		return nil, err
	}
	if err := models.ValidateEmail(in.Email); err != nil {
		return nil, err
	}
	role, err := models.ParseRole(in.Role, models.RoleMember)
	if err != nil {
		return nil, err
	}
	email := models.NormalizeEmail(in.Email)
	now := s.now()

	inv := &models.Invitation{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		Email:          email,
		Role:           role,
		InvitedBy:      p.ID,
		Status:         models.InvitationStatusPending,
		ExpiresAt:      now.Add(s.ttl),
		CreatedAt:      now,
	}

	var details *models.InvitationDetails
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		if _, err := tx.Memberships().GetByEmail(ctx, orgID, email); err == nil {
			return models.ErrAlreadyMember
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("checking membership: %w", err)
		}

		// A pending invitation blocks a new one even past its expiry.
		if _, err := tx.Invitations().GetPending(ctx, orgID, email); err == nil {
			return models.ErrAlreadyInvited
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("checking pending invitation: %w", err)
		}

		if err := tx.Invitations().Create(ctx, inv); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return models.ErrAlreadyInvited
			}
			return fmt.Errorf("creating invitation: %w", err)
		}

		details, err = tx.Invitations().GetDetails(ctx, inv.ID)
		if err != nil {
			return fmt.Errorf("reading invitation: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logFailure("invite", orgID, err)
		return nil, err
	}

	if err := s.notifier.InvitationSent(ctx, details); err != nil {
		s.logger.Warn("failed to deliver invitation", "invitation_id", inv.ID, "error", err)
	}

	s.logger.Info("invitation created", "invitation_id", inv.ID, "org_id", orgID, "role", role, "by", p.ID)
	return details, nil
}

// List lists an organization's pending invitations, newest first. The
// caller must be an ADMIN.
func (s *Service) List(ctx context.Context, p models.Principal, orgID string) ([]*models.InvitationDetails, error) {
	if _, err := s.gate.RequireAdmin(ctx, p, orgID); err != nil {
		return nil, err
	}

	invitations, err := s.store.Invitations().ListPendingByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing invitations: %w", err)
	}
	return invitations, nil
}

// Cancel withdraws a pending invitation. Cancelling an invitation that is no
// longer pending succeeds without changing it.
func (s *Service) Cancel(ctx context.Context, p models.Principal, orgID, invitationID string) error {
	if invitationID == "" {
		return models.ErrInvitationIDRequired
	}
	if _, err := s.gate.RequireAdmin(ctx, p, orgID); err != nil {
		return err
	}

	var cancelled bool
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		if _, err := s.getInOrg(ctx, tx, orgID, invitationID); err != nil {
			return err
		}
		// Serializes with Accept, which takes the same lock.
		if err := tx.Orgs().Lock(ctx, orgID); err != nil {
			return fmt.Errorf("locking organization: %w", err)
		}
		inv, err := s.getInOrg(ctx, tx, orgID, invitationID)
		if err != nil {
			return err
		}
		if inv.Status.IsTerminal() {
			s.logger.Debug("invitation already closed", "invitation_id", inv.ID, "status", inv.Status)
			return nil
		}

		if err := inv.Transition(models.InvitationStatusCancelled, s.now()); err != nil {
			return err
		}
		if err := tx.Invitations().UpdateStatus(ctx, inv); err != nil {
			if errors.Is(err, store.ErrConflict) {
				s.logger.Debug("invitation closed concurrently", "invitation_id", inv.ID)
				return nil
			}
			return fmt.Errorf("cancelling invitation: %w", err)
		}
		cancelled = true
		return nil
	})
	if err != nil {
		s.logFailure("cancel", orgID, err)
		return err
	}
	if !cancelled {
		return nil
	}

	s.logger.Info("invitation cancelled", "invitation_id", invitationID, "org_id", orgID, "by", p.ID)
	return nil
}

// Accept joins the caller to the invitation's organization. The membership
// and the ACCEPTED status are written in one transaction.
func (s *Service) Accept(ctx context.Context, p models.Principal, invitationID string) (*models.Membership, error) {
	if err := s.gate.RequirePrincipal(p); err != nil {
		return nil, err
	}
	if invitationID == "" {
		return nil, models.ErrInvitationIDRequired
	}
	now := s.now()

	var membership *models.Membership
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		inv, err := tx.Invitations().Get(ctx, invitationID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return models.ErrInvitationNotFound
			}
			return fmt.Errorf("getting invitation: %w", err)
		}

		// Serialize with other membership changes and with concurrent
		// acceptances of the same invitation.
		if err := tx.Orgs().Lock(ctx, inv.OrganizationID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return models.ErrInvitationNotFound
			}
			return fmt.Errorf("locking organization: %w", err)
		}
		if inv, err = tx.Invitations().Get(ctx, invitationID); err != nil {
			return fmt.Errorf("re-reading invitation: %w", err)
		}

		if inv.Status != models.InvitationStatusPending {
			return models.ErrInvitationNotPending
		}
		// Expiry is derived from the clock; the row stays PENDING.
		if inv.IsExpiredAt(now) {
			return models.ErrInvitationExpired
		}
		if !strings.EqualFold(strings.TrimSpace(p.Email), inv.Email) {
			return models.ErrInvitationEmail
		}
		if _, err := tx.Memberships().Get(ctx, inv.OrganizationID, p.ID); err == nil {
			return models.ErrAlreadyMemberSelf
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("checking membership: %w", err)
		}

		membership = &models.Membership{
			OrganizationID: inv.OrganizationID,
			UserID:         p.ID,
			Role:           inv.Role,
			JoinedAt:       now,
		}
		if err := tx.Memberships().Create(ctx, membership); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return models.ErrAlreadyMemberSelf
			}
			return fmt.Errorf("creating membership: %w", err)
		}

		if err := inv.Transition(models.InvitationStatusAccepted, now); err != nil {
			return err
		}
		if err := tx.Invitations().UpdateStatus(ctx, inv); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return models.ErrInvitationNotPending
			}
			return fmt.Errorf("accepting invitation: %w", err)
		}
		return nil
	})

	if err != nil {
		s.logFailure("accept invitation", invitationID, err)
		return nil, err
	}

	s.logger.Info("invitation accepted",
		"invitation_id", invitationID,
		"org_id", membership.OrganizationID,
		"user_id", p.ID,
		"role", membership.Role,
	)
	return membership, nil
}

// MyInvitations lists pending invitations addressed to the caller's email,
// newest first. A caller without an email has none.
func (s *Service) MyInvitations(ctx context.Context, p models.Principal) ([]*models.InvitationDetails, error) {
	if err := s.gate.RequirePrincipal(p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Email) == "" {
		return []*models.InvitationDetails{}, nil
	}

	invitations, err := s.store.Invitations().ListPendingByEmail(ctx, p.Email)
	if err != nil {
		return nil, fmt.Errorf("listing invitations: %w", err)
	}
	return invitations, nil
}

// getInOrg reads an invitation, hiding invitations of other organizations.
func (s *Service) getInOrg(ctx context.Context, st store.Store, orgID, invitationID string) (*models.Invitation, error) {
	inv, err := st.Invitations().Get(ctx, invitationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.ErrInvitationNotFound
		}
		return nil, fmt.Errorf("getting invitation: %w", err)
	}
	if inv.OrganizationID != orgID {
		return nil, models.ErrInvitationNotFound
	}
	return inv, nil
}

func (s *Service) logFailure(op, id string, err error) {
	if models.KindOf(err) != "" {
		s.logger.Debug(op+" rejected", "id", id, "reason", err.Error())
		return
	}
	s.logger.Error("failed to "+op, "id", id, "error", err)
}
