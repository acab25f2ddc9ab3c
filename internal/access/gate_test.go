package access

import (
	"context"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narvanalabs/expense-orgs/internal/models"
	"github.com/narvanalabs/expense-orgs/internal/store/memory"
)

func seedOrg(t *testing.T, st *memory.Store, orgID string, members map[string]models.Role) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.Orgs().Create(ctx, &models.Organization{ID: orgID, Name: "Acme", Slug: "acme"}))
	for userID, role := range members {
		require.NoError(t, st.Memberships().Create(ctx, &models.Membership{
			OrganizationID: orgID,
			UserID:         userID,
			Role:           role,
		}))
	}
}

func TestGate_RequirePrincipal(t *testing.T) {
	gate := NewGate(memory.New(), nil)

	assert.ErrorIs(t, gate.RequirePrincipal(models.Principal{}), models.ErrUnauthenticated)
	assert.NoError(t, gate.RequirePrincipal(models.Principal{ID: "u1"}))
}

func TestGate_RequireRole(t *testing.T) {
	st := memory.New()
	seedOrg(t, st, "org-1", map[string]models.Role{
		"admin":  models.RoleAdmin,
		"member": models.RoleMember,
	})
	gate := NewGate(st, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		userID  string
		orgID   string
		admin   bool
		wantErr error
	}{
		{name: "admin passes admin gate", userID: "admin", orgID: "org-1", admin: true},
		{name: "admin passes member gate", userID: "admin", orgID: "org-1"},
		{name: "member passes member gate", userID: "member", orgID: "org-1"},
		{name: "member fails admin gate", userID: "member", orgID: "org-1", admin: true, wantErr: models.ErrAdminRequired},
		{name: "outsider fails member gate", userID: "stranger", orgID: "org-1", wantErr: models.ErrMembershipRequired},
		{name: "outsider fails admin gate", userID: "stranger", orgID: "org-1", admin: true, wantErr: models.ErrMembershipRequired},
		{name: "unknown organization", userID: "admin", orgID: "org-2", wantErr: models.ErrMembershipRequired},
		{name: "missing organization id", userID: "admin", orgID: "", wantErr: models.ErrOrganizationIDRequired},
		{name: "anonymous caller", userID: "", orgID: "org-1", wantErr: models.ErrUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := models.Principal{ID: tt.userID}
			var (
				m   *models.Membership
				err error
			)
			if tt.admin {
				m, err = gate.RequireAdmin(ctx, p, tt.orgID)
			} else {
				m, err = gate.RequireMember(ctx, p, tt.orgID)
			}

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, m)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.userID, m.UserID)
		})
	}
}

func TestGate_StorageFailure(t *testing.T) {
	gate := NewGate(&failingStore{Store: memory.New()}, nil)

	_, err := gate.RequireMember(context.Background(), models.Principal{ID: "u1"}, "org-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errBoom))
	assert.Empty(t, models.KindOf(err))
}

// **Feature: expense-orgs, Property 1: Role gate ordering**
// For any member role and any required role, the gate admits the caller
// exactly when the member role is at least the required role.
func TestGate_RoleOrderingProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	roles := gen.OneConstOf(models.RoleAdmin, models.RoleMember)

	properties.Property("gate admits iff role is at least the requirement", prop.ForAll(
		func(held, required models.Role) bool {
			st := memory.New()
			ctx := context.Background()
			if err := st.Orgs().Create(ctx, &models.Organization{ID: "org", Name: "Org", Slug: "org"}); err != nil {
				return false
			}
			if err := st.Memberships().Create(ctx, &models.Membership{OrganizationID: "org", UserID: "u", Role: held}); err != nil {
				return false
			}

			_, err := NewGate(st, nil).RequireRole(ctx, models.Principal{ID: "u"}, "org", required)
			admitted := err == nil
			return admitted == held.AtLeast(required)
		},
		roles,
		roles,
	))

	properties.TestingRun(t)
}
