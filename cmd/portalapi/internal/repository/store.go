package repository

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
)

// BunStore implements Store on top of a bun.DB or an open bun.Tx.
type BunStore struct {
	db bun.IDB
}

// NewBunStore creates a Store backed by db.
func NewBunStore(db bun.IDB) *BunStore {
	return &BunStore{db: db}
}

func (s *BunStore) Accounts() AccountRepository {
	return NewBunAccountRepository(s.db)
}

func (s *BunStore) RoleAssignments() RoleAssignmentRepository {
	return NewBunRoleAssignmentRepository(s.db)
}

func (s *BunStore) RoleRequests() RoleRequestRepository {
	return NewBunRoleRequestRepository(s.db)
}

// RunInTx implements Store.
func (s *BunStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if _, ok := s.db.(bun.Tx); ok {
		return fn(ctx, s)
	}

	var fnErr error
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		fnErr = fn(ctx, NewBunStore(tx))
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	return classify("run transaction", err)
}
