package iam

import (
	"time"

	"github.com/qaportal/portal/cmd/portalapi/internal/db/models"
)

// AccountView is the client-facing projection of an account.
type AccountView struct {
	ID             int64   `json:"id"`
	Email          string  `json:"email"`
	DisplayName    string  `json:"displayName"`
	IsActive       bool    `json:"isActive"`
	CreatedAt      string  `json:"createdAt"`
	Role           string  `json:"role"`
	ApprovalStatus string  `json:"approvalStatus"`
	LastLoginAt    *string `json:"lastLoginAt,omitempty"`
}

// RoleRequestView is the client-facing projection of a role change request.
type RoleRequestView struct {
	ID            int64   `json:"id"`
	AccountID     int64   `json:"accountId"`
	Email         string  `json:"email,omitempty"`
	RoleAtRequest string  `json:"roleAtRequest"`
	RequestedRole string  `json:"requestedRole"`
	Status        string  `json:"status"`
	Note          string  `json:"note"`
	ReviewerID    *int64  `json:"reviewerId,omitempty"`
	ReviewComment *string `json:"reviewComment,omitempty"`
	CreatedAt     string  `json:"createdAt"`
	ReviewedAt    *string `json:"reviewedAt,omitempty"`
}

func newAccountView(account *models.Account, role Role) *AccountView {
	return &AccountView{
		ID:             account.ID,
		Email:          account.Email,
		DisplayName:    account.Name,
		IsActive:       account.IsActive(),
		CreatedAt:      formatTime(account.CreatedAt),
		Role:           role.String(),
		ApprovalStatus: string(account.ApprovalStatus),
		LastLoginAt:    formatTimePtr(account.LastLoginAt),
	}
}

func newRoleRequestView(req *models.RoleChangeRequest) RoleRequestView {
	view := RoleRequestView{
		ID:            req.ID,
		AccountID:     req.AccountID,
		RoleAtRequest: Role(req.RoleAtRequest).String(),
		RequestedRole: Role(req.RequestedRole).String(),
		Status:        string(req.Status),
		Note:          req.Note,
		ReviewerID:    req.ReviewerID,
		ReviewComment: req.ReviewComment,
		CreatedAt:     formatTime(req.CreatedAt),
		ReviewedAt:    formatTimePtr(req.ReviewedAt),
	}
	if req.Account != nil {
		view.Email = req.Account.Email
	}
	return view
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
