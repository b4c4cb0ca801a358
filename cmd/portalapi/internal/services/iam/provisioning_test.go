package iam

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qaportal/portal/cmd/portalapi/internal/auth"
	"github.com/qaportal/portal/cmd/portalapi/internal/db/dbtest"
	"github.com/qaportal/portal/cmd/portalapi/internal/db/models"
	"github.com/qaportal/portal/cmd/portalapi/internal/repository"
)

func TestEnsureAccount_FirstAccountIsApprovedSuperAdmin(t *testing.T) {
	f := newFixture(t)

	first := f.ensure(t, "alice")
	assert.Equal(t, "alice@example.com", first.Email)
	assert.Equal(t, "alice", first.DisplayName)
	assert.True(t, first.IsActive)
	assert.Equal(t, "super_admin", first.Role)
	assert.Equal(t, "Approved", first.ApprovalStatus)
	assert.Equal(t, "2025-06-01T09:00:01Z", first.CreatedAt)
	require.NotNil(t, first.LastLoginAt)

	history := f.history(t, first.ID)
	require.Len(t, history, 1)
	assert.Equal(t, int(RoleSuperAdmin), history[0].Role)
	assert.Nil(t, history[0].AssignedBy)

	second := f.ensure(t, "bob")
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "default_user", second.Role)
	assert.Equal(t, "Pending", second.ApprovalStatus)
}

func TestEnsureAccount_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.ensure(t, "alice")
	again := f.ensure(t, "alice")

	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.Role, again.Role)
	assert.Equal(t, first.CreatedAt, again.CreatedAt)
	assert.NotEqual(t, *first.LastLoginAt, *again.LastLoginAt)

	accounts, err := f.store.Accounts().List(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
	assert.Len(t, f.history(t, first.ID), 1)
}

func TestEnsureAccount_EmailDoesNotDeduplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.EnsureAccount(ctx, auth.Identity{Provider: "idp", Subject: "s-1", Email: "shared@example.com"})
	require.NoError(t, err)
	b, err := f.svc.EnsureAccount(ctx, auth.Identity{Provider: "idp", Subject: "s-2", Email: "shared@example.com"})
	require.NoError(t, err)
	c, err := f.svc.EnsureAccount(ctx, auth.Identity{Provider: "other", Subject: "s-1", Email: "shared@example.com"})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)
}

func TestEnsureAccount_DefaultsProvider(t *testing.T) {
	f := newFixture(t)

	view, err := f.svc.EnsureAccount(context.Background(), auth.Identity{Subject: "alice", Email: "alice@example.com"})
	require.NoError(t, err)

	account, err := f.store.Accounts().GetByIdentity(context.Background(), auth.DefaultScheme, "alice")
	require.NoError(t, err)
	assert.Equal(t, view.ID, account.ID)
}

func TestEnsureAccount_MissingClaims(t *testing.T) {
	f := newFixture(t)

	for name, id := range map[string]auth.Identity{
		"no subject": {Provider: "idp", Email: "alice@example.com"},
		"no email":   {Provider: "idp", Subject: "alice"},
		"blank":      {Provider: "idp", Subject: "  ", Email: " "},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.EnsureAccount(context.Background(), id)
			assert.ErrorIs(t, err, auth.ErrMissingIdentityClaims)
		})
	}

	accounts, err := f.store.Accounts().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestEnsureAccount_SelfHealsMissingRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ensure(t, "alice")

	// An account written without a role assignment, as a failed import would leave it.
	orphan := &models.Account{
		Email:          "bob@example.com",
		Name:           "bob",
		IdPProvider:    "idp",
		IdPSubject:     "bob",
		Status:         models.AccountStatusActive,
		ApprovalStatus: models.ApprovalPending,
		CreatedAt:      newTestClock().Now(),
		UpdatedAt:      newTestClock().Now(),
	}
	require.NoError(t, f.store.Accounts().Create(ctx, orphan))

	view := f.ensure(t, "bob")
	assert.Equal(t, orphan.ID, view.ID)
	assert.Equal(t, "default_user", view.Role)

	history := f.history(t, orphan.ID)
	require.Len(t, history, 1)
	assert.Equal(t, int(RoleDefaultUser), history[0].Role)
	assert.Nil(t, history[0].AssignedBy)

	// Healing happens once.
	f.ensure(t, "bob")
	assert.Len(t, f.history(t, orphan.ID), 1)
}

func TestEnsureAccount_ConcurrentFirstSignInsBootstrapOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 8
	views := make([]*AccountView, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			views[i], errs[i] = f.svc.EnsureAccount(ctx, identity(fmt.Sprintf("user-%d", i)))
		}(i)
	}
	wg.Wait()

	superAdmins := 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		if views[i].Role == "super_admin" {
			superAdmins++
			assert.Equal(t, "Approved", views[i].ApprovalStatus)
		} else {
			assert.Equal(t, "default_user", views[i].Role)
			assert.Equal(t, "Pending", views[i].ApprovalStatus)
		}
	}
	assert.Equal(t, 1, superAdmins)
}

func TestEnsureAccount_BootstrapMarkerIsNeverReused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	claimed, err := f.store.Accounts().ClaimBootstrap(ctx, newTestClock().Now())
	require.NoError(t, err)
	require.True(t, claimed)

	view := f.ensure(t, "alice")
	assert.Equal(t, "default_user", view.Role)
	assert.Equal(t, "Pending", view.ApprovalStatus)
}

func TestEnsureAccount_RetriesDuplicateInsertAsLookup(t *testing.T) {
	base := repository.NewBunStore(dbtest.NewSQLite(t))
	seed := newServiceWithStore(t, base)
	existing, err := seed.EnsureAccount(context.Background(), identity("alice"))
	require.NoError(t, err)

	// The first lookup misses, as it would for a transaction racing the
	// one that inserted alice.
	var misses atomic.Int32
	misses.Store(1)
	store := &faultStore{Store: base, getByIdentity: func() error {
		if misses.Add(-1) >= 0 {
			return fmt.Errorf("get account by identity: %w", repository.ErrNotFound)
		}
		return nil
	}}

	view, err := newServiceWithStore(t, store).EnsureAccount(context.Background(), identity("alice"))
	require.NoError(t, err)
	assert.Equal(t, existing.ID, view.ID)
	assert.Equal(t, "super_admin", view.Role)

	accounts, err := base.Accounts().List(context.Background())
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestEnsureAccount_RepeatedDuplicateIsConflict(t *testing.T) {
	base := repository.NewBunStore(dbtest.NewSQLite(t))
	seed := newServiceWithStore(t, base)
	_, err := seed.EnsureAccount(context.Background(), identity("alice"))
	require.NoError(t, err)

	store := &faultStore{Store: base, getByIdentity: func() error {
		return fmt.Errorf("get account by identity: %w", repository.ErrNotFound)
	}}

	_, err = newServiceWithStore(t, store).EnsureAccount(context.Background(), identity("alice"))
	assert.ErrorIs(t, err, ErrProvisioningConflict)
}

func TestEnsureAccount_StoreUnavailable(t *testing.T) {
	base := repository.NewBunStore(dbtest.NewSQLite(t))
	store := &faultStore{Store: base, getByIdentity: errStoreDown}

	_, err := newServiceWithStore(t, store).EnsureAccount(context.Background(), identity("alice"))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestEnsureAccount_CanceledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.EnsureAccount(ctx, identity("alice"))
	require.Error(t, err)

	accounts, err := f.store.Accounts().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts)
}
