package memory

import (
	"context"
	"time"

	"github.com/narvanalabs/expense-orgs/internal/models"
	"github.com/narvanalabs/expense-orgs/internal/store"
)

// OrgStore implements store.OrgStore in memory.
type OrgStore struct {
	s *Store
}

// Create creates a new organization.
func (o *OrgStore) Create(ctx context.Context, org *models.Organization) error {
	defer o.s.lock()()

	if err := o.s.fault("orgs.create"); err != nil {
		return err
	}
	if _, exists := o.s.data.orgs[org.ID]; exists {
		return store.ErrDuplicate
	}

	now := time.Now().UTC()
	if org.CreatedAt.IsZero() {
		org.CreatedAt = now
	}
	if org.UpdatedAt.IsZero() {
		org.UpdatedAt = org.CreatedAt
	}
	o.s.data.orgs[org.ID] = *org
	return nil
}

// Get retrieves an organization by ID.
func (o *OrgStore) Get(ctx context.Context, id string) (*models.Organization, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()

	org, ok := o.s.data.orgs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &org, nil
}

// Update updates an organization.
func (o *OrgStore) Update(ctx context.Context, org *models.Organization) error {
	defer o.s.lock()()

	if err := o.s.fault("orgs.update"); err != nil {
		return err
	}
	existing, ok := o.s.data.orgs[org.ID]
	if !ok {
		return store.ErrNotFound
	}

	existing.Name = org.Name
	existing.Slug = org.Slug
	existing.Description = org.Description
	existing.UpdatedAt = time.Now().UTC()
	o.s.data.orgs[org.ID] = existing
	*org = existing
	return nil
}

// Delete deletes an organization and everything it owns.
func (o *OrgStore) Delete(ctx context.Context, id string) error {
	defer o.s.lock()()

	if err := o.s.fault("orgs.delete"); err != nil {
		return err
	}
	if _, ok := o.s.data.orgs[id]; !ok {
		return store.ErrNotFound
	}

	delete(o.s.data.orgs, id)
	for k := range o.s.data.memberships {
		if k.orgID == id {
			delete(o.s.data.memberships, k)
		}
	}
	for k, inv := range o.s.data.invitations {
		if inv.OrganizationID == id {
			delete(o.s.data.invitations, k)
		}
	}
	for k, c := range o.s.data.categories {
		if c.OrganizationID == id {
			delete(o.s.data.categories, k)
			delete(o.s.data.dependents, k)
		}
	}
	return nil
}

// Lock verifies the organization exists. Transactions are already
// serialized by Store.WithTx.
func (o *OrgStore) Lock(ctx context.Context, id string) error {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()

	if _, ok := o.s.data.orgs[id]; !ok {
		return store.ErrNotFound
	}
	return nil
}
