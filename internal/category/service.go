// Package category manages the expense categories of an organization.
package category

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/narvanalabs/expense-orgs/internal/access"
	"github.com/narvanalabs/expense-orgs/internal/models"
	"github.com/narvanalabs/expense-orgs/internal/store"
)

// CreateInput holds the fields of a new category.
type CreateInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// UpdateInput holds the fields of a category update. A nil Description
// leaves the current description unchanged.
type UpdateInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// Service manages expense categories.
type Service struct {
	store  store.Store
	gate   *access.Gate
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new category service.
func NewService(st store.Store, gate *access.Gate, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		gate:   gate,
		logger: logger.With("component", "category"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create creates a category. Names are unique per organization ignoring case.
func (s *Service) Create(ctx context.Context, p models.Principal, orgID string, in CreateInput) (*models.ExpenseCategory, error) {
	if _, err := s.gate.RequireAdmin(ctx, p, orgID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if err := models.ValidateCategory(name, in.Description); err != nil {
		return nil, err
	}

	if err := s.checkNameFree(ctx, orgID, name, ""); err != nil {
		return nil, err
	}

	now := s.now()
	category := &models.ExpenseCategory{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		Name:           name,
		Description:    in.Description,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Categories().Create(ctx, category); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, models.ErrDuplicateCategoryName
		}
		s.logger.Error("failed to create category", "org_id", orgID, "error", err)
		return nil, fmt.Errorf("creating category: %w", err)
	}

	s.logger.Info("category created", "category_id", category.ID, "org_id", orgID, "name", name)
	return category, nil
}

// List lists an organization's categories by name with their dependent
// counts. The caller must be a member.
func (s *Service) List(ctx context.Context, p models.Principal, orgID string) ([]*models.CategoryWithCounts, error) {
	if _, err := s.gate.RequireMember(ctx, p, orgID); err != nil {
		return nil, err
	}

	categories, err := s.store.Categories().List(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}

	ids := make([]string, len(categories))
	for i, c := range categories {
		ids[i] = c.ID
	}
	counts, err := s.store.Dependents().CountsByCategory(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("counting dependents: %w", err)
	}

	result := make([]*models.CategoryWithCounts, len(categories))
	for i, c := range categories {
		result[i] = &models.CategoryWithCounts{ExpenseCategory: *c, Count: counts[c.ID]}
	}
	return result, nil
}

// Get returns one category with its dependent counts. A category belonging
// to another organization is reported as not found.
func (s *Service) Get(ctx context.Context, p models.Principal, orgID, categoryID string) (*models.CategoryWithCounts, error) {
	if _, err := s.gate.RequireMember(ctx, p, orgID); err != nil {
		return nil, err
	}
	if categoryID == "" {
		return nil, models.ErrCategoryIDRequired
	}

	category, err := s.get(ctx, s.store, orgID, categoryID)
	if err != nil {
		return nil, err
	}

	var counts models.DependentCounts
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.store.Dependents().CountExpenses(gctx, categoryID)
		counts.Expenses = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.Dependents().CountPolicies(gctx, categoryID)
		counts.Policies = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("counting dependents: %w", err)
	}

	return &models.CategoryWithCounts{ExpenseCategory: *category, Count: counts}, nil
}

// Update renames a category. The duplicate-name check ignores the category itself.
func (s *Service) Update(ctx context.Context, p models.Principal, orgID, categoryID string, in UpdateInput) (*models.ExpenseCategory, error) {
	if _, err := s.gate.RequireAdmin(ctx, p, orgID); err != nil {
		return nil, err
	}
	if categoryID == "" {
		return nil, models.ErrCategoryIDRequired
	}
	name := strings.TrimSpace(in.Name)
	description := ""
	if in.Description != nil {
		description = *in.Description
	}
	if err := models.ValidateCategory(name, description); err != nil {
		return nil, err
	}

	category, err := s.get(ctx, s.store, orgID, categoryID)
	if err != nil {
		return nil, err
	}
	if err := s.checkNameFree(ctx, orgID, name, categoryID); err != nil {
		return nil, err
	}

	category.Name = name
	if in.Description != nil {
		category.Description = *in.Description
	}
	if err := s.store.Categories().Update(ctx, category); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return nil, models.ErrDuplicateCategoryName
		case errors.Is(err, store.ErrNotFound):
			return nil, models.ErrCategoryNotFound
		}
		s.logger.Error("failed to update category", "category_id", categoryID, "error", err)
		return nil, fmt.Errorf("updating category: %w", err)
	}

	s.logger.Info("category updated", "category_id", categoryID, "org_id", orgID, "name", name)
	return category, nil
}

// Delete deletes a category that no expense or policy references.
// Expenses are checked before policies.
func (s *Service) Delete(ctx context.Context, p models.Principal, orgID, categoryID string) error {
	if _, err := s.gate.RequireAdmin(ctx, p, orgID); err != nil {
		return err
	}
	if categoryID == "" {
		return models.ErrCategoryIDRequired
	}

	err := s.store.WithTx(ctx, func(tx store.Store) error {
		if _, err := s.get(ctx, tx, orgID, categoryID); err != nil {
			return err
		}

		expenses, err := tx.Dependents().CountExpenses(ctx, categoryID)
		if err != nil {
			return fmt.Errorf("counting expenses: %w", err)
		}
		if expenses > 0 {
			return models.ErrCategoryHasExpenses
		}
		policies, err := tx.Dependents().CountPolicies(ctx, categoryID)
		if err != nil {
			return fmt.Errorf("counting policies: %w", err)
		}
		if policies > 0 {
			return models.ErrCategoryHasPolicies
		}

		if err := tx.Categories().Delete(ctx, orgID, categoryID); err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				return models.ErrCategoryNotFound
			case errors.Is(err, store.ErrReferencedByPolicies):
				// A dependent was added after the counts were taken.
				return models.ErrCategoryHasPolicies
			case errors.Is(err, store.ErrReferenced):
				return models.ErrCategoryHasExpenses
			}
			return fmt.Errorf("deleting category: %w", err)
		}
		return nil
	})
	if err != nil {
		if models.KindOf(err) != "" {
			s.logger.Debug("category delete rejected", "category_id", categoryID, "reason", err.Error())
		} else {
			s.logger.Error("failed to delete category", "category_id", categoryID, "error", err)
		}
		return err
	}

	s.logger.Info("category deleted", "category_id", categoryID, "org_id", orgID)
	return nil
}

func (s *Service) get(ctx context.Context, st store.Store, orgID, categoryID string) (*models.ExpenseCategory, error) {
	category, err := st.Categories().Get(ctx, orgID, categoryID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("getting category: %w", err)
	}
	return category, nil
}

func (s *Service) checkNameFree(ctx context.Context, orgID, name, excludeID string) error {
	_, err := s.store.Categories().FindByName(ctx, orgID, name, excludeID)
	switch {
	case err == nil:
		s.logger.Debug("duplicate category name", "org_id", orgID, "name", name)
		return models.ErrDuplicateCategoryName
	case errors.Is(err, store.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("checking category name: %w", err)
	}
}
