//go:build integration

package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/narvanalabs/expense-orgs/internal/models"
	"github.com/narvanalabs/expense-orgs/internal/store"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (*PostgresStore, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s, err := NewPostgresStore(ctx, DefaultConfig(dsn), logger)
	require.NoError(t, err)

	cleanup := func() {
		s.Close()
		_ = container.Terminate(ctx)
	}
	return s, cleanup
}

func TestIntegration_OrganizationLifecycle(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	admin := seedUser(t, s, "Ada Admin", "ada@example.com")
	member := seedUser(t, s, "Max Member", "Max@Example.com")
	org := seedOrg(t, s, admin)

	t.Run("get and update organization", func(t *testing.T) {
		got, err := s.Orgs().Get(ctx, org.ID)
		require.NoError(t, err)
		require.Equal(t, "Acme", got.Name)
		require.Empty(t, got.Description)

		got.Name = "Acme Travel"
		got.Slug = "acme-travel"
		got.Description = "Travel spend"
		require.NoError(t, s.Orgs().Update(ctx, got))

		reloaded, err := s.Orgs().Get(ctx, org.ID)
		require.NoError(t, err)
		require.Equal(t, "acme-travel", reloaded.Slug)
		require.Equal(t, "Travel spend", reloaded.Description)
	})

	t.Run("memberships join users and organizations", func(t *testing.T) {
		require.NoError(t, s.Memberships().Create(ctx, &models.Membership{
			OrganizationID: org.ID,
			UserID:         member.ID,
			Role:           models.RoleMember,
			JoinedAt:       time.Now().Add(time.Minute),
		}))

		err := s.Memberships().Create(ctx, &models.Membership{
			OrganizationID: org.ID, UserID: member.ID, Role: models.RoleMember,
		})
		require.ErrorIs(t, err, store.ErrDuplicate)

		members, err := s.Memberships().ListByOrg(ctx, org.ID)
		require.NoError(t, err)
		require.Len(t, members, 2)
		require.Equal(t, member.ID, members[0].UserID)
		require.Equal(t, "Max Member", members[0].User.Name)

		byEmail, err := s.Memberships().GetByEmail(ctx, org.ID, "max@example.com")
		require.NoError(t, err)
		require.Equal(t, member.ID, byEmail.UserID)

		mine, err := s.Memberships().ListByUser(ctx, member.ID)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		require.Equal(t, "Acme Travel", mine[0].Organization.Name)

		admins, err := s.Memberships().CountByRole(ctx, org.ID, models.RoleAdmin)
		require.NoError(t, err)
		require.Equal(t, 1, admins)
	})

	t.Run("membership in missing organization", func(t *testing.T) {
		err := s.Memberships().Create(ctx, &models.Membership{
			OrganizationID: uuid.NewString(), UserID: member.ID, Role: models.RoleMember,
		})
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("lock inside transaction", func(t *testing.T) {
		err := s.WithTx(ctx, func(tx store.Store) error {
			if err := tx.Orgs().Lock(ctx, org.ID); err != nil {
				return err
			}
			return tx.Memberships().UpdateRole(ctx, org.ID, member.ID, models.RoleAdmin)
		})
		require.NoError(t, err)

		m, err := s.Memberships().Get(ctx, org.ID, member.ID)
		require.NoError(t, err)
		require.Equal(t, models.RoleAdmin, m.Role)

		err = s.WithTx(ctx, func(tx store.Store) error {
			return tx.Orgs().Lock(ctx, uuid.NewString())
		})
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("invitation details", func(t *testing.T) {
		inv := &models.Invitation{
			ID:             uuid.NewString(),
			OrganizationID: org.ID,
			Email:          "new@example.com",
			Role:           models.RoleMember,
			InvitedBy:      admin.ID,
			ExpiresAt:      time.Now().Add(models.InvitationTTL),
		}
		require.NoError(t, s.Invitations().Create(ctx, inv))

		details, err := s.Invitations().GetDetails(ctx, inv.ID)
		require.NoError(t, err)
		require.Equal(t, models.InvitationStatusPending, details.Status)
		require.Equal(t, "Acme Travel", details.Organization.Name)
		require.Equal(t, "Ada Admin", details.Inviter.Name)
		require.Nil(t, details.AcceptedAt)

		mine, err := s.Invitations().ListPendingByEmail(ctx, "NEW@example.com")
		require.NoError(t, err)
		require.Len(t, mine, 1)

		now := time.Now().UTC()
		require.NoError(t, inv.Transition(models.InvitationStatusAccepted, now))
		require.NoError(t, s.Invitations().UpdateStatus(ctx, inv))

		accepted, err := s.Invitations().Get(ctx, inv.ID)
		require.NoError(t, err)
		require.Equal(t, models.InvitationStatusAccepted, accepted.Status)
		require.NotNil(t, accepted.AcceptedAt)

		pending, err := s.Invitations().ListPendingByOrg(ctx, org.ID)
		require.NoError(t, err)
		require.Empty(t, pending)

		// A closed invitation cannot be moved again.
		late := &models.Invitation{ID: inv.ID, Status: models.InvitationStatusCancelled}
		require.ErrorIs(t, s.Invitations().UpdateStatus(ctx, late), store.ErrConflict)
		accepted, err = s.Invitations().Get(ctx, inv.ID)
		require.NoError(t, err)
		require.Equal(t, models.InvitationStatusAccepted, accepted.Status)
		require.NotNil(t, accepted.AcceptedAt)

		missing := &models.Invitation{ID: uuid.NewString(), Status: models.InvitationStatusCancelled}
		require.ErrorIs(t, s.Invitations().UpdateStatus(ctx, missing), store.ErrNotFound)
	})

	t.Run("categories and dependents", func(t *testing.T) {
		travel := &models.ExpenseCategory{ID: uuid.NewString(), OrganizationID: org.ID, Name: "Travel"}
		meals := &models.ExpenseCategory{ID: uuid.NewString(), OrganizationID: org.ID, Name: "Meals", Description: "Team lunches"}
		require.NoError(t, s.Categories().Create(ctx, travel))
		require.NoError(t, s.Categories().Create(ctx, meals))

		list, err := s.Categories().List(ctx, org.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		require.Equal(t, "Meals", list[0].Name)

		_, err = s.DB().Exec(`INSERT INTO expenses (id, organization_id, category_id) VALUES ($1, $2, $3)`,
			uuid.NewString(), org.ID, travel.ID)
		require.NoError(t, err)
		_, err = s.DB().Exec(`INSERT INTO policies (id, organization_id, category_id) VALUES ($1, $2, $3)`,
			uuid.NewString(), org.ID, meals.ID)
		require.NoError(t, err)

		counts, err := s.Dependents().CountsByCategory(ctx, []string{travel.ID, meals.ID})
		require.NoError(t, err)
		require.Equal(t, models.DependentCounts{Expenses: 1}, counts[travel.ID])
		require.Equal(t, models.DependentCounts{Policies: 1}, counts[meals.ID])

		err = s.Categories().Delete(ctx, org.ID, travel.ID)
		require.ErrorIs(t, err, store.ErrReferenced)
		require.NotErrorIs(t, err, store.ErrReferencedByPolicies)
		require.ErrorIs(t, s.Categories().Delete(ctx, org.ID, meals.ID), store.ErrReferencedByPolicies)

		meals.Name = "TRAVEL"
		require.ErrorIs(t, s.Categories().Update(ctx, meals), store.ErrDuplicate)
	})

	t.Run("delete organization cascades", func(t *testing.T) {
		require.NoError(t, s.Orgs().Delete(ctx, org.ID))

		_, err := s.Orgs().Get(ctx, org.ID)
		require.ErrorIs(t, err, store.ErrNotFound)

		mine, err := s.Memberships().ListByUser(ctx, member.ID)
		require.NoError(t, err)
		require.Empty(t, mine)

		require.ErrorIs(t, s.Orgs().Delete(ctx, org.ID), store.ErrNotFound)
	})
}
