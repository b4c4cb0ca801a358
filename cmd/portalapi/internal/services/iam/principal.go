package iam

import "github.com/qaportal/portal/cmd/portalapi/internal/db/models"

// Principal represents a provisioned account resolved for one request.
//
// It is built by ResolvePrincipal from a fresh store read and never cached
// across requests. Handlers receive it through middleware.PrincipalFromContext
// and make access decisions with HasRole and CanWrite.
type Principal struct {
	// AccountID references accounts.id.
	AccountID int64

	// Provider and Subject are the IdP identity the account is bound to.
	Provider string
	Subject  string

	// Email and Name are informational and never used for identity.
	Email string
	Name  string

	// Role is the effective role: the newest role_assignments row, or RoleNone.
	Role Role

	Status         models.AccountStatus
	ApprovalStatus models.ApprovalStatus
}

// HasRole reports whether the principal's role is at least min.
func (p *Principal) HasRole(min Role) bool {
	return p != nil && p.Role > RoleNone && p.Role >= min
}

// IsActive reports whether the account is enabled.
func (p *Principal) IsActive() bool {
	return p != nil && p.Status == models.AccountStatusActive
}

// CanWrite is the write gate: an active, approved account with at least contributor rights.
func (p *Principal) CanWrite() bool {
	return p.IsActive() && p.ApprovalStatus == models.ApprovalApproved && p.HasRole(RoleUser)
}
