// Package access resolves a principal's role in an organization before any
// organization-scoped operation runs.
package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/narvanalabs/expense-orgs/internal/models"
	"github.com/narvanalabs/expense-orgs/internal/store"
)

// Gate checks organization membership and role.
type Gate struct {
	store  store.Store
	logger *slog.Logger
}

// NewGate creates a new access gate.
func NewGate(st store.Store, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		store:  st,
		logger: logger.With("component", "access"),
	}
}

// Within returns a gate reading through st, typically a transaction-scoped
// store, so the membership check and the guarded write see the same data.
func (g *Gate) Within(st store.Store) *Gate {
	return &Gate{store: st, logger: g.logger}
}

// RequirePrincipal rejects anonymous callers.
func (g *Gate) RequirePrincipal(p models.Principal) error {
	if !p.IsAuthenticated() {
		return models.ErrUnauthenticated
	}
	return nil
}

// RequireRole returns the caller's membership in orgID if it grants at least min.
func (g *Gate) RequireRole(ctx context.Context, p models.Principal, orgID string, min models.Role) (*models.Membership, error) {
	if err := g.RequirePrincipal(p); err != nil {
		return nil, err
	}
	if orgID == "" {
		return nil, models.ErrOrganizationIDRequired
	}

	membership, err := g.store.Memberships().Get(ctx, orgID, p.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.logger.Debug("membership required", "org_id", orgID, "user_id", p.ID)
			return nil, models.ErrMembershipRequired
		}
		g.logger.Error("failed to resolve membership", "org_id", orgID, "user_id", p.ID, "error", err)
		return nil, fmt.Errorf("resolving membership: %w", err)
	}

	if !membership.Role.AtLeast(min) {
		g.logger.Debug("role too low",
			"org_id", orgID,
			"user_id", p.ID,
			"role", membership.Role,
			"required", min,
		)
		if min == models.RoleAdmin {
			return nil, models.ErrAdminRequired
		}
		return nil, models.ErrMembershipRequired
	}

	return membership, nil
}

// RequireMember returns the caller's membership in orgID.
func (g *Gate) RequireMember(ctx context.Context, p models.Principal, orgID string) (*models.Membership, error) {
	return g.RequireRole(ctx, p, orgID, models.RoleMember)
}

// RequireAdmin returns the caller's membership in orgID if it is an ADMIN membership.
func (g *Gate) RequireAdmin(ctx context.Context, p models.Principal, orgID string) (*models.Membership, error) {
	return g.RequireRole(ctx, p, orgID, models.RoleAdmin)
}
