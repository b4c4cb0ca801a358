package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// AccountStatus reports whether an account may sign in at all.
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "Active"
	AccountStatusDisabled AccountStatus = "Disabled"
)

// ApprovalStatus is shared by accounts (the write gate) and role change requests.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "Pending"
	ApprovalApproved ApprovalStatus = "Approved"
	ApprovalRejected ApprovalStatus = "Rejected"
)

// ParseApprovalStatus matches s against the known statuses ignoring case.
func ParseApprovalStatus(s string) (ApprovalStatus, error) {
	for _, status := range []ApprovalStatus{ApprovalPending, ApprovalApproved, ApprovalRejected} {
		if strings.EqualFold(strings.TrimSpace(s), string(status)) {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown approval status %q", s)
}

// Account is the local record for an (IdP provider, IdP subject) pair.
// Email is informational only; identity is the provider/subject pair.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:a"`

	ID             int64          `bun:"id,pk,autoincrement"`
	Email          string         `bun:"email,notnull"`
	Name           string         `bun:"name,notnull"`
	IdPProvider    string         `bun:"idp_provider,notnull"`
	IdPSubject     string         `bun:"idp_subject,notnull"`
	Status         AccountStatus  `bun:"status,notnull"`
	ApprovalStatus ApprovalStatus `bun:"approval_status,notnull"`
	CreatedAt      time.Time      `bun:"created_at,notnull"`
	UpdatedAt      time.Time      `bun:"updated_at,notnull"`
	LastLoginAt    *time.Time     `bun:"last_login_at"`
}

// IsActive reports whether the account is enabled.
func (a *Account) IsActive() bool {
	return a != nil && a.Status == AccountStatusActive
}

// BootstrapClaim is the single-row marker written by whichever transaction
// provisions the first account. Its primary key is always 1.
type BootstrapClaim struct {
	bun.BaseModel `bun:"table:account_bootstrap,alias:ab"`

	ID        int       `bun:"id,pk"`
	ClaimedAt time.Time `bun:"claimed_at,notnull"`
}

// RoleAssignment is one entry of the append-only role log. The effective role
// of an account is its newest entry ordered by (assigned_at, id).
type RoleAssignment struct {
	bun.BaseModel `bun:"table:role_assignments,alias:ra"`

	ID         int64     `bun:"id,pk,autoincrement"`
	AccountID  int64     `bun:"account_id,notnull"`
	Role       int       `bun:"role,notnull"`
	AssignedBy *int64    `bun:"assigned_by"` // nil means the system assigned it
	AssignedAt time.Time `bun:"assigned_at,notnull"`
}

// RoleChangeRequest asks a super administrator to move an account to a new role.
// Resolved rows are never modified again.
type RoleChangeRequest struct {
	bun.BaseModel `bun:"table:role_change_requests,alias:rcr"`

	ID            int64          `bun:"id,pk,autoincrement"`
	AccountID     int64          `bun:"account_id,notnull"`
	RoleAtRequest int            `bun:"role_at_request,notnull"`
	RequestedRole int            `bun:"requested_role,notnull"`
	Status        ApprovalStatus `bun:"status,notnull"`
	Note          string         `bun:"note,notnull"`
	ReviewerID    *int64         `bun:"reviewer_id"`
	ReviewComment *string        `bun:"review_comment"`
	CreatedAt     time.Time      `bun:"created_at,notnull"`
	ReviewedAt    *time.Time     `bun:"reviewed_at"`

	Account *Account `bun:"rel:belongs-to,join:account_id=id"`
}
