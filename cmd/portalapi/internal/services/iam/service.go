package iam

import (
	"context"

	"github.com/qaportal/portal/cmd/portalapi/internal/auth"
	"github.com/qaportal/portal/cmd/portalapi/internal/db/models"
)

// Service provides all identity and access management operations.
//
// This service centralizes:
//   - Provisioning (handshake path - runs once per sign-in)
//   - Authorization (request path - fresh store read, no cache)
//   - Role change requests (submit, review, list)
//   - Account administration (role and approval changes)
//
// Every operation that writes more than one row runs in a single store
// transaction. Store failures surface as ErrStoreUnavailable.
type Service interface {
	// =========================================================================
	// Provisioning (Handshake Path)
	// =========================================================================

	// EnsureAccount returns the account bound to identity, creating it on the
	// first sign-in of a never-seen (provider, subject) pair.
	//
	// Algorithm (one transaction):
	//  1. Look up the account by (provider, subject)
	//  2. If absent: the first-ever account claims the bootstrap marker and is
	//     created Approved with role super_admin; every later account is created
	//     Pending with role default_user
	//  3. Self-heal: an account without role assignments gets default_user
	//  4. Record the login (last_login_at, updated_at)
	//
	// A duplicate-key failure on insert (a concurrent first sign-in of the same
	// identity) is retried once as a lookup in a fresh transaction.
	//
	// Returns:
	//   - auth.ErrMissingIdentityClaims: subject or email is empty
	//   - ErrStoreUnavailable: the store failed
	//   - ErrProvisioningConflict: the retry collided again
	EnsureAccount(ctx context.Context, identity auth.Identity) (*AccountView, error)

	// =========================================================================
	// Authorization (Request Path)
	// =========================================================================

	// ResolvePrincipal reads the account bound to identity and its effective role.
	//
	// No caching: role and approval changes are visible on the next call.
	//
	// Returns:
	//   - ErrAccountNotProvisioned: no account exists for the identity
	//   - ErrStoreUnavailable: the store failed
	ResolvePrincipal(ctx context.Context, identity auth.Identity) (*Principal, error)

	// =========================================================================
	// Role Change Requests
	// =========================================================================

	// SubmitRoleRequest records a Pending request by requesterID for requested.
	// The requester's current effective role is stored with the request.
	// Any provisioned account may request any role on the scale.
	SubmitRoleRequest(ctx context.Context, requesterID int64, requested Role, note string) (*RoleRequestView, error)

	// ReviewRoleRequest resolves a Pending request exactly once.
	//
	// The reviewer must hold super_admin. Rejecting records the reviewer,
	// comment and time. Approving additionally appends a role assignment for
	// the requested role (assigned by the reviewer) and marks the requester's
	// account Approved. Either all of these writes happen or none.
	//
	// Returns:
	//   - ErrForbidden: reviewer is below super_admin (request unchanged)
	//   - ErrNotFound: no such request
	//   - ErrAlreadyResolved: the request is no longer Pending
	ReviewRoleRequest(ctx context.Context, requestID, reviewerID int64, approve bool, comment *string) (*RoleRequestView, error)

	// ListRoleRequests returns every request, newest first, for a super
	// administrator and only the caller's own requests for anyone else.
	ListRoleRequests(ctx context.Context, callerID int64) ([]RoleRequestView, error)

	// =========================================================================
	// Account Administration
	// =========================================================================

	// ListAccounts returns every account with its effective role.
	// actorID nil means the system (CLI); otherwise the actor must be Admin or above.
	ListAccounts(ctx context.Context, actorID *int64) ([]AccountView, error)

	// AssignRole appends a role assignment for accountID.
	// actorID nil means the system; otherwise the actor must be super_admin
	// and is recorded as assigned_by.
	AssignRole(ctx context.Context, actorID *int64, accountID int64, role Role) (*AccountView, error)

	// SetApprovalStatus changes the write-gate status of accountID.
	// actorID nil means the system; otherwise the actor must be Admin or above.
	SetApprovalStatus(ctx context.Context, actorID *int64, accountID int64, status models.ApprovalStatus) (*AccountView, error)
}
