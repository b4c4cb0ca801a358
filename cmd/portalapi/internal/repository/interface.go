package repository

import (
	"context"
	"time"

	"github.com/qaportal/portal/cmd/portalapi/internal/db/models"
)

// Store groups the repositories that take part in provisioning and role workflow
// transactions. Repositories obtained from the tx argument of RunInTx share its transaction.
type Store interface {
	Accounts() AccountRepository
	RoleAssignments() RoleAssignmentRepository
	RoleRequests() RoleRequestRepository

	// RunInTx runs fn in a single transaction. The transaction commits when fn
	// returns nil and rolls back otherwise; fn's error is returned unchanged.
	// Nested calls reuse the outer transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// AccountRepository exposes persistence operations for local accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	GetByIdentity(ctx context.Context, provider, subject string) (*models.Account, error)
	List(ctx context.Context) ([]models.Account, error)

	// Exists reports whether any account has ever been stored.
	Exists(ctx context.Context) (bool, error)
	// ClaimBootstrap inserts the first-account marker. It returns true only for
	// the single caller whose insert created the marker.
	ClaimBootstrap(ctx context.Context, at time.Time) (bool, error)

	TouchLogin(ctx context.Context, id int64, at time.Time) error
	SetApproval(ctx context.Context, id int64, status models.ApprovalStatus, at time.Time) error
}

// RoleAssignmentRepository exposes the append-only role log.
type RoleAssignmentRepository interface {
	Append(ctx context.Context, assignment *models.RoleAssignment) error
	// EffectiveRole returns the role of the newest assignment by (assigned_at, id),
	// or 0 when the account has none.
	EffectiveRole(ctx context.Context, accountID int64) (int, error)
	History(ctx context.Context, accountID int64) ([]models.RoleAssignment, error)
}

// RoleRequestRepository exposes persistence operations for role change requests.
type RoleRequestRepository interface {
	Create(ctx context.Context, request *models.RoleChangeRequest) error
	GetByID(ctx context.Context, id int64) (*models.RoleChangeRequest, error)
	List(ctx context.Context) ([]models.RoleChangeRequest, error)
	ListByAccount(ctx context.Context, accountID int64) ([]models.RoleChangeRequest, error)

	// Resolve moves a Pending request to status. It fails with ErrNotPending when
	// the request has already been resolved and ErrNotFound when it does not exist.
	Resolve(ctx context.Context, id int64, status models.ApprovalStatus, reviewerID int64, comment *string, at time.Time) error
}

// SessionRepository exposes persistence operations for browser sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	Touch(ctx context.Context, id string, lastUsedAt, expiresAt time.Time) error
	Revoke(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
