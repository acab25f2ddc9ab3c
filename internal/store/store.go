// Package store provides database access interfaces and implementations.
package store

import (
	"context"

	"github.com/narvanalabs/expense-orgs/internal/models"
)

// OrgStore defines operations for organization management.
type OrgStore interface {
	// Create creates a new organization.
	Create(ctx context.Context, org *models.Organization) error
	// Get retrieves an organization by ID.
	Get(ctx context.Context, id string) (*models.Organization, error)
	// Update updates an organization's name, slug and description.
	Update(ctx context.Context, org *models.Organization) error
	// Delete deletes an organization together with its memberships,
	// invitations and categories.
	Delete(ctx context.Context, id string) error
	// Lock takes a row lock on the organization for the rest of the
	// enclosing transaction, serializing membership changes.
	Lock(ctx context.Context, id string) error
}

// MembershipStore defines operations for organization memberships.
type MembershipStore interface {
	// Create adds a membership. Returns ErrDuplicate if the user is already a member.
	Create(ctx context.Context, m *models.Membership) error
	// Get retrieves the membership of a user in an organization.
	Get(ctx context.Context, orgID, userID string) (*models.Membership, error)
	// GetWithUser retrieves a membership joined with the member's user summary.
	GetWithUser(ctx context.Context, orgID, userID string) (*models.MemberWithUser, error)
	// GetByEmail retrieves the membership of the user with the given email.
	GetByEmail(ctx context.Context, orgID, email string) (*models.Membership, error)
	// UpdateRole changes a member's role.
	UpdateRole(ctx context.Context, orgID, userID string, role models.Role) error
	// Delete removes a membership.
	Delete(ctx context.Context, orgID, userID string) error
	// CountByRole returns the number of members holding role in an organization.
	CountByRole(ctx context.Context, orgID string, role models.Role) (int, error)
	// ListByOrg lists an organization's members, most recently joined first.
	ListByOrg(ctx context.Context, orgID string) ([]*models.MemberWithUser, error)
	// ListByUser lists a user's memberships with organization summaries, most recently joined first.
	ListByUser(ctx context.Context, userID string) ([]*models.MembershipWithOrg, error)
}

// InvitationStore defines operations for organization invitations.
type InvitationStore interface {
	// Create stores a new invitation. Returns ErrDuplicate if a pending
	// invitation already exists for the organization and email.
	Create(ctx context.Context, inv *models.Invitation) error
	// Get retrieves an invitation by ID.
	Get(ctx context.Context, id string) (*models.Invitation, error)
	// GetDetails retrieves an invitation joined with organization and inviter.
	GetDetails(ctx context.Context, id string) (*models.InvitationDetails, error)
	// GetPending retrieves the pending invitation for an organization and email.
	GetPending(ctx context.Context, orgID, email string) (*models.Invitation, error)
	// UpdateStatus persists the status and accepted_at fields.
	UpdateStatus(ctx context.Context, inv *models.Invitation) error
	// ListPendingByOrg lists pending invitations of an organization, newest first.
	ListPendingByOrg(ctx context.Context, orgID string) ([]*models.InvitationDetails, error)
	// ListPendingByEmail lists pending invitations addressed to email, newest first.
	ListPendingByEmail(ctx context.Context, email string) ([]*models.InvitationDetails, error)
}

// CategoryStore defines operations for expense categories.
type CategoryStore interface {
	// Create creates a category. Returns ErrDuplicate on a case-insensitive name clash.
	Create(ctx context.Context, c *models.ExpenseCategory) error
	// Get retrieves a category scoped to an organization.
	Get(ctx context.Context, orgID, id string) (*models.ExpenseCategory, error)
	// FindByName finds a category whose name matches case-insensitively,
	// ignoring the category with ID excludeID.
	FindByName(ctx context.Context, orgID, name, excludeID string) (*models.ExpenseCategory, error)
	// List lists an organization's categories ordered by name.
	List(ctx context.Context, orgID string) ([]*models.ExpenseCategory, error)
	// Update updates a category's name and description.
	Update(ctx context.Context, c *models.ExpenseCategory) error
	// Delete deletes a category scoped to an organization.
	Delete(ctx context.Context, orgID, id string) error
}

// DependentStore counts the expense and policy records referencing categories.
// Those records are owned by other parts of the product.
type DependentStore interface {
	// CountExpenses returns the number of expenses in a category.
	CountExpenses(ctx context.Context, categoryID string) (int, error)
	// CountPolicies returns the number of policies in a category.
	CountPolicies(ctx context.Context, categoryID string) (int, error)
	// CountsByCategory returns dependent counts keyed by category ID.
	CountsByCategory(ctx context.Context, categoryIDs []string) (map[string]models.DependentCounts, error)
}

// UserStore holds the users known from identity-provider tokens.
type UserStore interface {
	// Upsert records the latest name and email seen for a user.
	Upsert(ctx context.Context, u *models.UserSummary) error
	// Get retrieves a user summary by ID.
	Get(ctx context.Context, id string) (*models.UserSummary, error)
	// GetByEmail retrieves a user summary by email.
	GetByEmail(ctx context.Context, email string) (*models.UserSummary, error)
}

// Store is the main interface for database operations.
type Store interface {
	// Orgs returns the OrgStore for organization operations.
	Orgs() OrgStore
	// Memberships returns the MembershipStore.
	Memberships() MembershipStore
	// Invitations returns the InvitationStore.
	Invitations() InvitationStore
	// Categories returns the CategoryStore.
	Categories() CategoryStore
	// Dependents returns the DependentStore.
	Dependents() DependentStore
	// Users returns the UserStore.
	Users() UserStore

	// WithTx executes the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// Otherwise, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
