package access

import (
	"context"
	"errors"

	"github.com/narvanalabs/expense-orgs/internal/models"
	"github.com/narvanalabs/expense-orgs/internal/store"
	"github.com/narvanalabs/expense-orgs/internal/store/memory"
)

var errBoom = errors.New("connection reset")

// failingStore fails every membership lookup with errBoom.
type failingStore struct {
	*memory.Store
}

func (f *failingStore) Memberships() store.MembershipStore {
	return failingMemberships{f.Store.Memberships()}
}

type failingMemberships struct {
	store.MembershipStore
}

func (failingMemberships) Get(ctx context.Context, orgID, userID string) (*models.Membership, error) {
	return nil, errBoom
}
