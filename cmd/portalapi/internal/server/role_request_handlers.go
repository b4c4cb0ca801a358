package server

import (
	"log/slog"
	"net/http"

	"github.com/qaportal/portal/cmd/portalapi/internal/httpx"
	"github.com/qaportal/portal/cmd/portalapi/internal/services/iam"
)

// CreateRoleRequest is the body of POST /api/role-requests.
type CreateRoleRequest struct {
	RequestedRoleID int    `json:"requestedRoleId" validate:"required,min=1,max=4"`
	Note            string `json:"note" validate:"max=1000"`
}

// ReviewRoleRequest is the body of POST /api/role-requests/{id}/review.
type ReviewRoleRequest struct {
	Approved *bool   `json:"approved" validate:"required"`
	Comment  *string `json:"comment" validate:"omitempty,max=1000"`
}

// HandleListRoleRequests lists the caller's requests, or every request for a
// super-administrator.
func HandleListRoleRequests(svc iam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := principal(w, r)
		if !ok {
			return
		}
		views, err := svc.ListRoleRequests(r.Context(), caller.AccountID)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, views)
	}
}

// HandleSubmitRoleRequest files a pending request for the caller.
func HandleSubmitRoleRequest(svc iam.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := principal(w, r)
		if !ok {
			return
		}
		var body CreateRoleRequest
		if !decodeBody(w, r, &body) {
			return
		}

		view, err := svc.SubmitRoleRequest(r.Context(), caller.AccountID, iam.Role(body.RequestedRoleID), body.Note)
		if err != nil {
			logger.WarnContext(r.Context(), "submit role request failed", "account_id", caller.AccountID, "error", err)
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, view)
	}
}

// HandleReviewRoleRequest approves or rejects a pending request. Only
// super-administrators may review; the service enforces it.
func HandleReviewRoleRequest(svc iam.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := principal(w, r)
		if !ok {
			return
		}
		requestID, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		var body ReviewRoleRequest
		if !decodeBody(w, r, &body) {
			return
		}

		view, err := svc.ReviewRoleRequest(r.Context(), requestID, caller.AccountID, *body.Approved, body.Comment)
		if err != nil {
			logger.WarnContext(r.Context(), "review role request failed",
				"request_id", requestID,
				"reviewer_id", caller.AccountID,
				"error", err,
			)
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, view)
	}
}
