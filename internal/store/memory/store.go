// Package memory provides an in-memory implementation of the store interfaces.
// It is used by tests and by local development without PostgreSQL; data is
// lost on restart.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/narvanalabs/expense-orgs/internal/models"
	"github.com/narvanalabs/expense-orgs/internal/store"
)

// Ensure Store implements store.Store
var _ store.Store = (*Store)(nil)

type memberKey struct {
	orgID  string
	userID string
}

type memberRecord struct {
	models.Membership
	seq int64
}

type invitationRecord struct {
	models.Invitation
	seq int64
}

// data holds every table. A transaction works on a clone and swaps it in on
// commit.
type data struct {
	seq         int64
	orgs        map[string]models.Organization
	memberships map[memberKey]memberRecord
	invitations map[string]invitationRecord
	categories  map[string]models.ExpenseCategory
	users       map[string]models.UserSummary
	dependents  map[string]models.DependentCounts
}

func newData() *data {
	return &data{
		orgs:        make(map[string]models.Organization),
		memberships: make(map[memberKey]memberRecord),
		invitations: make(map[string]invitationRecord),
		categories:  make(map[string]models.ExpenseCategory),
		users:       make(map[string]models.UserSummary),
		dependents:  make(map[string]models.DependentCounts),
	}
}

func (d *data) clone() *data {
	c := newData()
	c.seq = d.seq
	for k, v := range d.orgs {
		c.orgs[k] = v
	}
	for k, v := range d.memberships {
		c.memberships[k] = v
	}
	for k, v := range d.invitations {
		if v.AcceptedAt != nil {
			at := *v.AcceptedAt
			v.AcceptedAt = &at
		}
		c.invitations[k] = v
	}
	for k, v := range d.categories {
		c.categories[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.dependents {
		c.dependents[k] = v
	}
	return c
}

func (d *data) nextSeq() int64 {
	d.seq++
	return d.seq
}

// Store implements store.Store in memory.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data *data

	faults map[string]error
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		data:   newData(),
		faults: make(map[string]error),
	}
}

// lock acquires the store for writing. Writes wait for any open transaction
// so its commit cannot overwrite them.
func (s *Store) lock() func() {
	s.txMu.Lock()
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.txMu.Unlock()
	}
}

// AddUser registers a user as the identity provider would.
func (s *Store) AddUser(u models.UserSummary) {
	defer s.lock()()
	u.Email = models.NormalizeEmail(u.Email)
	s.data.users[u.ID] = u
}

// SetDependentCounts records how many expenses and policies reference a category.
func (s *Store) SetDependentCounts(categoryID string, counts models.DependentCounts) {
	defer s.lock()()
	s.data.dependents[categoryID] = counts
}

// FailOn makes the named operation (for example "memberships.create") return
// err until ClearFaults is called.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

// ClearFaults removes all injected failures.
func (s *Store) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[string]error)
}

// fault must be called with s.mu held.
func (s *Store) fault(op string) error {
	return s.faults[op]
}

// Orgs returns the OrgStore.
func (s *Store) Orgs() store.OrgStore { return &OrgStore{s: s} }

// Memberships returns the MembershipStore.
func (s *Store) Memberships() store.MembershipStore { return &MembershipStore{s: s} }

// Invitations returns the InvitationStore.
func (s *Store) Invitations() store.InvitationStore { return &InvitationStore{s: s} }

// Categories returns the CategoryStore.
func (s *Store) Categories() store.CategoryStore { return &CategoryStore{s: s} }

// Dependents returns the DependentStore.
func (s *Store) Dependents() store.DependentStore { return &DependentStore{s: s} }

// Users returns the UserStore.
func (s *Store) Users() store.UserStore { return &UserStore{s: s} }

// WithTx runs fn against a private copy of the data with transactions
// serialized. The copy replaces the live data only if fn succeeds; readers
// outside the transaction never see its uncommitted writes.
func (s *Store) WithTx(ctx context.Context, fn func(store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	staged := &Store{data: s.data.clone(), faults: maps.Clone(s.faults)}
	s.mu.RUnlock()

	if err := fn(&txStore{Store: staged}); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = staged.data
	s.mu.Unlock()
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// txStore is handed to WithTx callbacks; nested transactions join the outer one.
type txStore struct {
	*Store
}

func (t *txStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	return fn(t)
}
