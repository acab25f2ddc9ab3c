package memory

import (
	"context"
	"sort"
	"time"

	"github.com/narvanalabs/expense-orgs/internal/models"
	"github.com/narvanalabs/expense-orgs/internal/store"
)

// MembershipStore implements store.MembershipStore in memory.
type MembershipStore struct {
	s *Store
}

// Create adds a membership.
func (m *MembershipStore) Create(ctx context.Context, membership *models.Membership) error {
	defer m.s.lock()()

	if err := m.s.fault("memberships.create"); err != nil {
		return err
	}
	if _, ok := m.s.data.orgs[membership.OrganizationID]; !ok {
		return store.ErrNotFound
	}
	key := memberKey{orgID: membership.OrganizationID, userID: membership.UserID}
	if _, exists := m.s.data.memberships[key]; exists {
		return store.ErrDuplicate
	}

	if membership.JoinedAt.IsZero() {
		membership.JoinedAt = time.Now().UTC()
	}
	m.s.data.memberships[key] = memberRecord{Membership: *membership, seq: m.s.data.nextSeq()}
	return nil
}

// Get retrieves a membership.
func (m *MembershipStore) Get(ctx context.Context, orgID, userID string) (*models.Membership, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	rec, ok := m.s.data.memberships[memberKey{orgID: orgID, userID: userID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	membership := rec.Membership
	return &membership, nil
}

// GetWithUser retrieves a membership joined with its user.
func (m *MembershipStore) GetWithUser(ctx context.Context, orgID, userID string) (*models.MemberWithUser, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	rec, ok := m.s.data.memberships[memberKey{orgID: orgID, userID: userID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &models.MemberWithUser{Membership: rec.Membership, User: m.s.userSummary(userID)}, nil
}

// GetByEmail retrieves the membership of the user registered with email.
func (m *MembershipStore) GetByEmail(ctx context.Context, orgID, email string) (*models.Membership, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	email = models.NormalizeEmail(email)
	for _, u := range m.s.data.users {
		if u.Email != email {
			continue
		}
		if rec, ok := m.s.data.memberships[memberKey{orgID: orgID, userID: u.ID}]; ok {
			membership := rec.Membership
			return &membership, nil
		}
	}
	return nil, store.ErrNotFound
}

// UpdateRole changes a member's role.
func (m *MembershipStore) UpdateRole(ctx context.Context, orgID, userID string, role models.Role) error {
	defer m.s.lock()()

	if err := m.s.fault("memberships.update_role"); err != nil {
		return err
	}
	key := memberKey{orgID: orgID, userID: userID}
	rec, ok := m.s.data.memberships[key]
	if !ok {
		return store.ErrNotFound
	}
	rec.Role = role
	m.s.data.memberships[key] = rec
	return nil
}

// Delete removes a membership.
func (m *MembershipStore) Delete(ctx context.Context, orgID, userID string) error {
	defer m.s.lock()()

	if err := m.s.fault("memberships.delete"); err != nil {
		return err
	}
	key := memberKey{orgID: orgID, userID: userID}
	if _, ok := m.s.data.memberships[key]; !ok {
		return store.ErrNotFound
	}
	delete(m.s.data.memberships, key)
	return nil
}

// CountByRole counts members of an organization holding role.
func (m *MembershipStore) CountByRole(ctx context.Context, orgID string, role models.Role) (int, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	count := 0
	for k, rec := range m.s.data.memberships {
		if k.orgID == orgID && rec.Role == role {
			count++
		}
	}
	return count, nil
}

// ListByOrg lists an organization's members, most recently joined first.
func (m *MembershipStore) ListByOrg(ctx context.Context, orgID string) ([]*models.MemberWithUser, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var recs []memberRecord
	for k, rec := range m.s.data.memberships {
		if k.orgID == orgID {
			recs = append(recs, rec)
		}
	}
	sortMembers(recs)

	members := make([]*models.MemberWithUser, 0, len(recs))
	for _, rec := range recs {
		members = append(members, &models.MemberWithUser{
			Membership: rec.Membership,
			User:       m.s.userSummary(rec.UserID),
		})
	}
	return members, nil
}

// ListByUser lists a user's memberships, most recently joined first.
func (m *MembershipStore) ListByUser(ctx context.Context, userID string) ([]*models.MembershipWithOrg, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var recs []memberRecord
	for k, rec := range m.s.data.memberships {
		if k.userID == userID {
			recs = append(recs, rec)
		}
	}
	sortMembers(recs)

	memberships := make([]*models.MembershipWithOrg, 0, len(recs))
	for _, rec := range recs {
		org := m.s.data.orgs[rec.OrganizationID]
		memberships = append(memberships, &models.MembershipWithOrg{
			Membership:   rec.Membership,
			Organization: org.Summary(),
		})
	}
	return memberships, nil
}

func sortMembers(recs []memberRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].JoinedAt.Equal(recs[j].JoinedAt) {
			return recs[i].JoinedAt.After(recs[j].JoinedAt)
		}
		return recs[i].seq > recs[j].seq
	})
}

// userSummary must be called with s.mu held.
func (s *Store) userSummary(userID string) models.UserSummary {
	if u, ok := s.data.users[userID]; ok {
		return u
	}
	return models.UserSummary{ID: userID}
}
