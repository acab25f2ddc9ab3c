package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/narvanalabs/expense-orgs/internal/models"
	"github.com/narvanalabs/expense-orgs/internal/store"
)

// CategoryStore implements store.CategoryStore in memory.
type CategoryStore struct {
	s *Store
}

// Create creates a category.
func (c *CategoryStore) Create(ctx context.Context, category *models.ExpenseCategory) error {
	defer c.s.lock()()

	if err := c.s.fault("categories.create"); err != nil {
		return err
	}
	if _, ok := c.s.data.orgs[category.OrganizationID]; !ok {
		return store.ErrNotFound
	}
	if c.s.nameTaken(category.OrganizationID, category.Name, "") {
		return store.ErrDuplicate
	}

	now := time.Now().UTC()
	if category.CreatedAt.IsZero() {
		category.CreatedAt = now
	}
	category.UpdatedAt = category.CreatedAt
	c.s.data.categories[category.ID] = *category
	return nil
}

// Get retrieves a category scoped to an organization.
func (c *CategoryStore) Get(ctx context.Context, orgID, id string) (*models.ExpenseCategory, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	category, ok := c.s.data.categories[id]
	if !ok || category.OrganizationID != orgID {
		return nil, store.ErrNotFound
	}
	return &category, nil
}

// FindByName finds a category by case-insensitive name.
func (c *CategoryStore) FindByName(ctx context.Context, orgID, name, excludeID string) (*models.ExpenseCategory, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	for id, category := range c.s.data.categories {
		if id == excludeID || category.OrganizationID != orgID {
			continue
		}
		if models.SameCategoryName(category.Name, name) {
			found := category
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

// List lists categories ordered by name.
func (c *CategoryStore) List(ctx context.Context, orgID string) ([]*models.ExpenseCategory, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	categories := make([]*models.ExpenseCategory, 0)
	for _, category := range c.s.data.categories {
		if category.OrganizationID == orgID {
			found := category
			categories = append(categories, &found)
		}
	}
	sort.Slice(categories, func(i, j int) bool {
		if categories[i].Name != categories[j].Name {
			return categories[i].Name < categories[j].Name
		}
		return categories[i].ID < categories[j].ID
	})
	return categories, nil
}

// Update updates a category's name and description.
func (c *CategoryStore) Update(ctx context.Context, category *models.ExpenseCategory) error {
	defer c.s.lock()()

	if err := c.s.fault("categories.update"); err != nil {
		return err
	}
	existing, ok := c.s.data.categories[category.ID]
	if !ok || existing.OrganizationID != category.OrganizationID {
		return store.ErrNotFound
	}
	if c.s.nameTaken(category.OrganizationID, category.Name, category.ID) {
		return store.ErrDuplicate
	}

	existing.Name = category.Name
	existing.Description = category.Description
	existing.UpdatedAt = time.Now().UTC()
	c.s.data.categories[category.ID] = existing
	*category = existing
	return nil
}

// Delete deletes a category. Referenced categories cannot be deleted.
func (c *CategoryStore) Delete(ctx context.Context, orgID, id string) error {
	defer c.s.lock()()

	if err := c.s.fault("categories.delete"); err != nil {
		return err
	}
	category, ok := c.s.data.categories[id]
	if !ok || category.OrganizationID != orgID {
		return store.ErrNotFound
	}
	counts := c.s.data.dependents[id]
	if counts.Expenses > 0 {
		return store.ErrReferenced
	}
	if counts.Policies > 0 {
		return store.ErrReferencedByPolicies
	}
	delete(c.s.data.categories, id)
	delete(c.s.data.dependents, id)
	return nil
}

func (s *Store) nameTaken(orgID, name, excludeID string) bool {
	name = strings.TrimSpace(name)
	for id, category := range s.data.categories {
		if id != excludeID && category.OrganizationID == orgID && models.SameCategoryName(category.Name, name) {
			return true
		}
	}
	return false
}

// DependentStore implements store.DependentStore in memory.
type DependentStore struct {
	s *Store
}

// CountExpenses returns the recorded expense count for a category.
func (d *DependentStore) CountExpenses(ctx context.Context, categoryID string) (int, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()

	if err := d.s.fault("dependents.count"); err != nil {
		return 0, err
	}
	return d.s.data.dependents[categoryID].Expenses, nil
}

// CountPolicies returns the recorded policy count for a category.
func (d *DependentStore) CountPolicies(ctx context.Context, categoryID string) (int, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()

	if err := d.s.fault("dependents.count"); err != nil {
		return 0, err
	}
	return d.s.data.dependents[categoryID].Policies, nil
}

// CountsByCategory returns dependent counts for each requested category.
func (d *DependentStore) CountsByCategory(ctx context.Context, categoryIDs []string) (map[string]models.DependentCounts, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()

	if err := d.s.fault("dependents.count"); err != nil {
		return nil, err
	}
	counts := make(map[string]models.DependentCounts, len(categoryIDs))
	for _, id := range categoryIDs {
		counts[id] = d.s.data.dependents[id]
	}
	return counts, nil
}

// UserStore implements store.UserStore in memory.
type UserStore struct {
	s *Store
}

// Upsert records the latest name and email seen for a user.
func (u *UserStore) Upsert(ctx context.Context, user *models.UserSummary) error {
	defer u.s.lock()()

	if err := u.s.fault("users.upsert"); err != nil {
		return err
	}
	email := models.NormalizeEmail(user.Email)
	for id, other := range u.s.data.users {
		if id != user.ID && email != "" && other.Email == email {
			return store.ErrDuplicate
		}
	}
	u.s.data.users[user.ID] = models.UserSummary{ID: user.ID, Name: user.Name, Email: email}
	return nil
}

// Get retrieves a user summary by ID.
func (u *UserStore) Get(ctx context.Context, id string) (*models.UserSummary, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	user, ok := u.s.data.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

// GetByEmail retrieves a user summary by email.
func (u *UserStore) GetByEmail(ctx context.Context, email string) (*models.UserSummary, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	email = models.NormalizeEmail(email)
	for _, user := range u.s.data.users {
		if user.Email == email {
			found := user
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}
