package iam

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qaportal/portal/cmd/portalapi/internal/db/dbtest"
	"github.com/qaportal/portal/cmd/portalapi/internal/db/models"
	"github.com/qaportal/portal/cmd/portalapi/internal/repository"
)

func TestRole_String(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleNone, "User"},
		{RoleDefaultUser, "default_user"},
		{RoleUser, "User"},
		{RoleAdmin, "Admin"},
		{RoleSuperAdmin, "super_admin"},
		{Role(7), "User"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.role.String())
	}
}

func TestParseRole(t *testing.T) {
	for input, want := range map[string]Role{
		"default_user": RoleDefaultUser,
		"user":         RoleUser,
		" ADMIN ":      RoleAdmin,
		"Super_Admin":  RoleSuperAdmin,
		"3":            RoleAdmin,
	} {
		got, err := ParseRole(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	for _, input := range []string{"", "0", "5", "root"} {
		_, err := ParseRole(input)
		assert.ErrorIs(t, err, ErrInvalidRole, input)
	}
}

func TestPrincipal_Gates(t *testing.T) {
	tests := []struct {
		name      string
		principal *Principal
		minRole   Role
		hasRole   bool
		canWrite  bool
	}{
		{
			name:      "nil principal",
			principal: nil,
			minRole:   RoleDefaultUser,
		},
		{
			name:      "no role grants nothing",
			principal: &Principal{Role: RoleNone, Status: models.AccountStatusActive, ApprovalStatus: models.ApprovalApproved},
			minRole:   RoleNone,
		},
		{
			name:      "pending contributor cannot write",
			principal: &Principal{Role: RoleUser, Status: models.AccountStatusActive, ApprovalStatus: models.ApprovalPending},
			minRole:   RoleUser,
			hasRole:   true,
		},
		{
			name:      "approved reader cannot write",
			principal: &Principal{Role: RoleDefaultUser, Status: models.AccountStatusActive, ApprovalStatus: models.ApprovalApproved},
			minRole:   RoleUser,
		},
		{
			name:      "disabled admin cannot write",
			principal: &Principal{Role: RoleAdmin, Status: models.AccountStatusDisabled, ApprovalStatus: models.ApprovalApproved},
			minRole:   RoleAdmin,
			hasRole:   true,
		},
		{
			name:      "approved contributor writes",
			principal: &Principal{Role: RoleUser, Status: models.AccountStatusActive, ApprovalStatus: models.ApprovalApproved},
			minRole:   RoleUser,
			hasRole:   true,
			canWrite:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.hasRole, tt.principal.HasRole(tt.minRole))
			assert.Equal(t, tt.canWrite, tt.principal.CanWrite())
		})
	}
}

func TestResolvePrincipal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ResolvePrincipal(ctx, identity("alice"))
	assert.ErrorIs(t, err, ErrAccountNotProvisioned)

	alice := f.ensure(t, "alice")
	principal, err := f.svc.ResolvePrincipal(ctx, identity("alice"))
	require.NoError(t, err)
	assert.Equal(t, alice.ID, principal.AccountID)
	assert.Equal(t, "idp", principal.Provider)
	assert.Equal(t, RoleSuperAdmin, principal.Role)
	assert.True(t, principal.CanWrite())

	// Changes are visible on the next call.
	_, err = f.svc.AssignRole(ctx, nil, alice.ID, RoleDefaultUser)
	require.NoError(t, err)
	principal, err = f.svc.ResolvePrincipal(ctx, identity("alice"))
	require.NoError(t, err)
	assert.Equal(t, RoleDefaultUser, principal.Role)
	assert.False(t, principal.CanWrite())
}

func TestResolvePrincipal_StoreUnavailable(t *testing.T) {
	base := repository.NewBunStore(dbtest.NewSQLite(t))
	svc := newServiceWithStore(t, &faultStore{Store: base, getByIdentity: errStoreDown})

	_, err := svc.ResolvePrincipal(context.Background(), identity("alice"))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
