package memory

import (
	"context"
	"sort"
	"time"

	"github.com/narvanalabs/expense-orgs/internal/models"
	"github.com/narvanalabs/expense-orgs/internal/store"
)

// InvitationStore implements store.InvitationStore in memory.
type InvitationStore struct {
	s *Store
}

// Create stores a new invitation.
func (i *InvitationStore) Create(ctx context.Context, inv *models.Invitation) error {
	defer i.s.lock()()

	if err := i.s.fault("invitations.create"); err != nil {
		return err
	}
	if _, ok := i.s.data.orgs[inv.OrganizationID]; !ok {
		return store.ErrNotFound
	}
	if _, exists := i.s.data.invitations[inv.ID]; exists {
		return store.ErrDuplicate
	}
	if inv.Status == "" {
		inv.Status = models.InvitationStatusPending
	}
	if inv.Status == models.InvitationStatusPending {
		if _, found := i.s.pending(inv.OrganizationID, inv.Email); found {
			return store.ErrDuplicate
		}
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}

	i.s.data.invitations[inv.ID] = invitationRecord{Invitation: *inv, seq: i.s.data.nextSeq()}
	return nil
}

// Get retrieves an invitation by ID.
func (i *InvitationStore) Get(ctx context.Context, id string) (*models.Invitation, error) {
	i.s.mu.RLock()
	defer i.s.mu.RUnlock()

	rec, ok := i.s.data.invitations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	inv := rec.Invitation
	return &inv, nil
}

// GetDetails retrieves an invitation joined with organization and inviter.
func (i *InvitationStore) GetDetails(ctx context.Context, id string) (*models.InvitationDetails, error) {
	i.s.mu.RLock()
	defer i.s.mu.RUnlock()

	rec, ok := i.s.data.invitations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return i.s.details(rec), nil
}

// GetPending retrieves the pending invitation for an organization and email.
func (i *InvitationStore) GetPending(ctx context.Context, orgID, email string) (*models.Invitation, error) {
	i.s.mu.RLock()
	defer i.s.mu.RUnlock()

	rec, found := i.s.pending(orgID, email)
	if !found {
		return nil, store.ErrNotFound
	}
	inv := rec.Invitation
	return &inv, nil
}

// UpdateStatus persists status and accepted_at. Only pending invitations can
// change; anything else returns store.ErrConflict.
func (i *InvitationStore) UpdateStatus(ctx context.Context, inv *models.Invitation) error {
	defer i.s.lock()()

	if err := i.s.fault("invitations.update_status"); err != nil {
		return err
	}
	rec, ok := i.s.data.invitations[inv.ID]
	if !ok {
		return store.ErrNotFound
	}
	if rec.Status != models.InvitationStatusPending {
		return store.ErrConflict
	}
	rec.Status = inv.Status
	rec.AcceptedAt = inv.AcceptedAt
	i.s.data.invitations[inv.ID] = rec
	return nil
}

// ListPendingByOrg lists pending invitations of an organization, newest first.
func (i *InvitationStore) ListPendingByOrg(ctx context.Context, orgID string) ([]*models.InvitationDetails, error) {
	i.s.mu.RLock()
	defer i.s.mu.RUnlock()

	return i.s.listPending(func(rec invitationRecord) bool {
		return rec.OrganizationID == orgID
	}), nil
}

// ListPendingByEmail lists pending invitations addressed to email, newest first.
func (i *InvitationStore) ListPendingByEmail(ctx context.Context, email string) ([]*models.InvitationDetails, error) {
	i.s.mu.RLock()
	defer i.s.mu.RUnlock()

	email = models.NormalizeEmail(email)
	return i.s.listPending(func(rec invitationRecord) bool {
		return models.NormalizeEmail(rec.Email) == email
	}), nil
}

func (s *Store) pending(orgID, email string) (invitationRecord, bool) {
	email = models.NormalizeEmail(email)
	for _, rec := range s.data.invitations {
		if rec.OrganizationID == orgID &&
			rec.Status == models.InvitationStatusPending &&
			models.NormalizeEmail(rec.Email) == email {
			return rec, true
		}
	}
	return invitationRecord{}, false
}

func (s *Store) listPending(match func(invitationRecord) bool) []*models.InvitationDetails {
	var recs []invitationRecord
	for _, rec := range s.data.invitations {
		if rec.Status == models.InvitationStatusPending && match(rec) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(a, b int) bool {
		if !recs[a].CreatedAt.Equal(recs[b].CreatedAt) {
			return recs[a].CreatedAt.After(recs[b].CreatedAt)
		}
		return recs[a].seq > recs[b].seq
	})

	out := make([]*models.InvitationDetails, 0, len(recs))
	for _, rec := range recs {
		out = append(out, s.details(rec))
	}
	return out
}

func (s *Store) details(rec invitationRecord) *models.InvitationDetails {
	org := s.data.orgs[rec.OrganizationID]
	inviter := s.userSummary(rec.InvitedBy)
	return &models.InvitationDetails{
		Invitation: rec.Invitation,
		Organization: models.OrganizationSummary{
			ID:          org.ID,
			Name:        org.Name,
			Description: org.Description,
		},
		Inviter: models.UserSummary{Name: inviter.Name, Email: inviter.Email},
	}
}
