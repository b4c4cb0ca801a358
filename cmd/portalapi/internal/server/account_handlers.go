package server

import (
	"log/slog"
	"net/http"

	"github.com/qaportal/portal/cmd/portalapi/internal/db/models"
	"github.com/qaportal/portal/cmd/portalapi/internal/httpx"
	"github.com/qaportal/portal/cmd/portalapi/internal/services/iam"
)

// UpdateRoleRequest is the body of PUT /api/users/{id}/role.
type UpdateRoleRequest struct {
	RoleID int `json:"roleId" validate:"required,min=1,max=4"`
}

// UpdateApprovalRequest is the body of PUT /api/users/{id}/approval. Status is
// matched case-insensitively by the service.
type UpdateApprovalRequest struct {
	Status string `json:"status" validate:"required"`
}

// HandleListAccounts lists every account with its effective role.
func HandleListAccounts(svc iam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := principal(w, r)
		if !ok {
			return
		}
		views, err := svc.ListAccounts(r.Context(), &caller.AccountID)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, views)
	}
}

// HandleAssignRole appends a role assignment made by the caller.
func HandleAssignRole(svc iam.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := principal(w, r)
		if !ok {
			return
		}
		accountID, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		var body UpdateRoleRequest
		if !decodeBody(w, r, &body) {
			return
		}

		view, err := svc.AssignRole(r.Context(), &caller.AccountID, accountID, iam.Role(body.RoleID))
		if err != nil {
			logger.WarnContext(r.Context(), "assign role failed", "account_id", accountID, "actor_id", caller.AccountID, "error", err)
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, view)
	}
}

// HandleSetApproval updates an account's approval status.
func HandleSetApproval(svc iam.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := principal(w, r)
		if !ok {
			return
		}
		accountID, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		var body UpdateApprovalRequest
		if !decodeBody(w, r, &body) {
			return
		}

		view, err := svc.SetApprovalStatus(r.Context(), &caller.AccountID, accountID, models.ApprovalStatus(body.Status))
		if err != nil {
			logger.WarnContext(r.Context(), "set approval failed", "account_id", accountID, "actor_id", caller.AccountID, "error", err)
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, view)
	}
}
