package category

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narvanalabs/expense-orgs/internal/access"
	"github.com/narvanalabs/expense-orgs/internal/models"
	"github.com/narvanalabs/expense-orgs/internal/store"
	"github.com/narvanalabs/expense-orgs/internal/store/memory"
)

const (
	orgX = "org-x"
	orgY = "org-y"
)

var (
	admin  = models.Principal{ID: "user-admin", Email: "admin@example.com"}
	member = models.Principal{ID: "user-member", Email: "member@example.com"}
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	ctx := context.Background()
	for _, id := range []string{orgX, orgY} {
		require.NoError(t, st.Orgs().Create(ctx, &models.Organization{ID: id, Name: id, Slug: id}))
		require.NoError(t, st.Memberships().Create(ctx, &models.Membership{OrganizationID: id, UserID: admin.ID, Role: models.RoleAdmin}))
	}
	require.NoError(t, st.Memberships().Create(ctx, &models.Membership{OrganizationID: orgX, UserID: member.ID, Role: models.RoleMember}))
	return NewService(st, access.NewGate(st, nil), nil), st
}

func TestService_CreateDuplicateIgnoresCase(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	travel, err := svc.Create(ctx, admin, orgX, CreateInput{Name: "Travel", Description: "Flights and hotels"})
	require.NoError(t, err)
	assert.Equal(t, "Travel", travel.Name)

	_, err = svc.Create(ctx, admin, orgX, CreateInput{Name: "travel"})
	require.ErrorIs(t, err, models.ErrDuplicateCategoryName)
	assert.Equal(t, "A category with this name already exists in your organization", err.Error())
	assert.Equal(t, models.KindConflict, models.KindOf(err))

	_, err = svc.Create(ctx, admin, orgX, CreateInput{Name: "  TRAVEL  "})
	assert.ErrorIs(t, err, models.ErrDuplicateCategoryName)

	// Uniqueness is per organization.
	_, err = svc.Create(ctx, admin, orgY, CreateInput{Name: "travel"})
	require.NoError(t, err)

	list, err := svc.List(ctx, admin, orgX)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Flights and hotels", list[0].Description)
}

func TestService_CreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		input   CreateInput
		wantErr error
		message string
	}{
		{name: "empty name", input: CreateInput{Name: " "}, wantErr: models.ErrCategoryNameRequired, message: "Category name is required"},
		{name: "long name", input: CreateInput{Name: strings.Repeat("x", 51)}, wantErr: models.ErrCategoryNameTooLong, message: "Category name must be 50 characters or less"},
		{name: "long description", input: CreateInput{Name: "Meals", Description: strings.Repeat("d", 201)}, wantErr: models.ErrCategoryDescTooLong, message: "Description must be 200 characters or less"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, admin, orgX, tt.input)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.message, err.Error())
			assert.Equal(t, models.KindValidation, models.KindOf(err))
		})
	}

	_, err := svc.Create(ctx, admin, orgX, CreateInput{Name: strings.Repeat("é", 50), Description: strings.Repeat("d", 200)})
	assert.NoError(t, err)
}

func TestService_CreateRequiresAdmin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, member, orgX, CreateInput{Name: "Meals"})
	assert.ErrorIs(t, err, models.ErrAdminRequired)

	_, err = svc.Create(ctx, member, orgY, CreateInput{Name: "Meals"})
	assert.ErrorIs(t, err, models.ErrMembershipRequired)
}

func TestService_ListOrderAndCounts(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	ids := map[string]string{}
	for _, name := range []string{"Travel", "Meals", "Office"} {
		c, err := svc.Create(ctx, admin, orgX, CreateInput{Name: name})
		require.NoError(t, err)
		ids[name] = c.ID
	}
	st.SetDependentCounts(ids["Meals"], models.DependentCounts{Expenses: 4, Policies: 1})

	list, err := svc.List(ctx, member, orgX)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Meals", list[0].Name)
	assert.Equal(t, "Office", list[1].Name)
	assert.Equal(t, "Travel", list[2].Name)
	assert.Equal(t, models.DependentCounts{Expenses: 4, Policies: 1}, list[0].Count)
	assert.Equal(t, models.DependentCounts{}, list[1].Count)

	empty, err := svc.List(ctx, admin, orgY)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestService_Get(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, admin, orgX, CreateInput{Name: "Travel"})
	require.NoError(t, err)
	st.SetDependentCounts(c.ID, models.DependentCounts{Expenses: 2, Policies: 3})

	got, err := svc.Get(ctx, member, orgX, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, 2, got.Count.Expenses)
	assert.Equal(t, 3, got.Count.Policies)

	// Another organization's category is not visible.
	_, err = svc.Get(ctx, admin, orgY, c.ID)
	require.ErrorIs(t, err, models.ErrCategoryNotFound)
	assert.Equal(t, "Category not found", err.Error())

	_, err = svc.Get(ctx, member, orgX, "missing")
	assert.ErrorIs(t, err, models.ErrCategoryNotFound)

	st.FailOn("dependents.count", errors.New("timeout"))
	_, err = svc.Get(ctx, member, orgX, c.ID)
	require.Error(t, err)
	assert.Empty(t, models.KindOf(err))
}

func TestService_Update(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	travel, err := svc.Create(ctx, admin, orgX, CreateInput{Name: "Travel", Description: "Trips"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, admin, orgX, CreateInput{Name: "Meals"})
	require.NoError(t, err)

	// Renaming to a different case of its own name is allowed.
	updated, err := svc.Update(ctx, admin, orgX, travel.ID, UpdateInput{Name: "TRAVEL"})
	require.NoError(t, err)
	assert.Equal(t, "TRAVEL", updated.Name)
	assert.Equal(t, "Trips", updated.Description)

	_, err = svc.Update(ctx, admin, orgX, travel.ID, UpdateInput{Name: "meals"})
	require.ErrorIs(t, err, models.ErrDuplicateCategoryName)

	got, err := svc.Get(ctx, admin, orgX, travel.ID)
	require.NoError(t, err)
	assert.Equal(t, "TRAVEL", got.Name)

	desc := ""
	updated, err = svc.Update(ctx, admin, orgX, travel.ID, UpdateInput{Name: "Travel", Description: &desc})
	require.NoError(t, err)
	assert.Empty(t, updated.Description)

	_, err = svc.Update(ctx, admin, orgY, travel.ID, UpdateInput{Name: "Travel"})
	assert.ErrorIs(t, err, models.ErrCategoryNotFound)

	_, err = svc.Update(ctx, member, orgX, travel.ID, UpdateInput{Name: "Trips"})
	assert.ErrorIs(t, err, models.ErrAdminRequired)
}

func TestService_Delete(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, admin, orgX, CreateInput{Name: "Travel"})
	require.NoError(t, err)

	st.SetDependentCounts(c.ID, models.DependentCounts{Expenses: 1, Policies: 1})
	err = svc.Delete(ctx, admin, orgX, c.ID)
	require.ErrorIs(t, err, models.ErrCategoryHasExpenses)
	assert.Equal(t, "Cannot delete category that has associated expenses", err.Error())

	st.SetDependentCounts(c.ID, models.DependentCounts{Policies: 2})
	err = svc.Delete(ctx, admin, orgX, c.ID)
	require.ErrorIs(t, err, models.ErrCategoryHasPolicies)
	assert.Equal(t, "Cannot delete category that has associated policies", err.Error())

	_, err = svc.Get(ctx, admin, orgX, c.ID)
	require.NoError(t, err)

	err = svc.Delete(ctx, admin, orgY, c.ID)
	assert.ErrorIs(t, err, models.ErrCategoryNotFound)

	st.SetDependentCounts(c.ID, models.DependentCounts{})
	require.NoError(t, svc.Delete(ctx, admin, orgX, c.ID))

	err = svc.Delete(ctx, admin, orgX, c.ID)
	assert.ErrorIs(t, err, models.ErrCategoryNotFound)

	// The name is free again.
	_, err = svc.Create(ctx, admin, orgX, CreateInput{Name: "travel"})
	require.NoError(t, err)
}

func TestService_DeleteReferencedAfterCount(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, admin, orgX, CreateInput{Name: "Travel"})
	require.NoError(t, err)

	// A policy is attached between the dependent count and the delete.
	st.FailOn("categories.delete", fmt.Errorf("deleting: %w", store.ErrReferencedByPolicies))
	err = svc.Delete(ctx, admin, orgX, c.ID)
	require.ErrorIs(t, err, models.ErrCategoryHasPolicies)
	assert.Equal(t, models.KindInvariantViolation, models.KindOf(err))

	st.FailOn("categories.delete", store.ErrReferenced)
	err = svc.Delete(ctx, admin, orgX, c.ID)
	require.ErrorIs(t, err, models.ErrCategoryHasExpenses)
	st.ClearFaults()

	_, err = svc.Get(ctx, admin, orgX, c.ID)
	require.NoError(t, err)
}

// **Feature: expense-orgs, Property 4: Case-insensitive category names**
// For any sequence of creates and renames within one organization, no two
// categories have names that are equal ignoring case.
func TestService_UniqueNamesProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	names := []string{"Travel", "travel", "TRAVEL", "Meals", "meals", "Office", " office "}

	type step struct {
		rename bool
		name   int
		target int
	}
	genStep := gopter.CombineGens(
		gen.Bool(),
		gen.IntRange(0, len(names)-1),
		gen.IntRange(0, 9),
	).Map(func(vals []interface{}) step {
		return step{rename: vals[0].(bool), name: vals[1].(int), target: vals[2].(int)}
	})

	properties.Property("names stay unique ignoring case", prop.ForAll(
		func(steps []step) bool {
			svc, _ := newTestService(t)
			ctx := context.Background()

			for _, s := range steps {
				name := names[s.name]
				if !s.rename {
					_, _ = svc.Create(ctx, admin, orgX, CreateInput{Name: name})
				} else {
					list, err := svc.List(ctx, admin, orgX)
					if err != nil {
						return false
					}
					if len(list) > 0 {
						target := list[s.target%len(list)]
						_, _ = svc.Update(ctx, admin, orgX, target.ID, UpdateInput{Name: name})
					}
				}

				list, err := svc.List(ctx, admin, orgX)
				if err != nil {
					return false
				}
				seen := map[string]bool{}
				for _, c := range list {
					key := strings.ToLower(strings.TrimSpace(c.Name))
					if seen[key] {
						return false
					}
					seen[key] = true
				}
			}
			return true
		},
		gen.SliceOf(genStep),
	))

	properties.TestingRun(t)
}
