package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/qaportal/portal/cmd/portalapi/internal/auth"
	"github.com/qaportal/portal/cmd/portalapi/internal/services/iam"
)

// Error codes returned in ErrorResponse.
const (
	CodeMissingIdentityClaims = "missing_identity_claims"
	CodeStoreUnavailable      = "store_unavailable"
	CodeProvisioningConflict  = "provisioning_conflict"
	CodeForbidden             = "forbidden"
	CodeNotFound              = "not_found"
	CodeAlreadyResolved       = "already_resolved"
	CodeAccountNotProvisioned = "account_not_provisioned"
	CodeInvalidRole           = "invalid_role"
	CodeInvalidApprovalStatus = "invalid_approval_status"
	CodeInvalidRequest        = "invalid_request"
	CodeUnauthenticated       = "unauthenticated"
	CodeRequestCanceled       = "request_canceled"
	CodeRateLimited           = "rate_limited"
	CodeInternal              = "internal_error"
)

var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{auth.ErrMissingIdentityClaims, http.StatusBadRequest, CodeMissingIdentityClaims},
	{iam.ErrStoreUnavailable, http.StatusServiceUnavailable, CodeStoreUnavailable},
	{iam.ErrProvisioningConflict, http.StatusInternalServerError, CodeProvisioningConflict},
	{iam.ErrForbidden, http.StatusForbidden, CodeForbidden},
	{iam.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{iam.ErrAlreadyResolved, http.StatusConflict, CodeAlreadyResolved},
	{iam.ErrAccountNotProvisioned, http.StatusUnauthorized, CodeAccountNotProvisioned},
	{iam.ErrInvalidRole, http.StatusBadRequest, CodeInvalidRole},
	{iam.ErrInvalidApprovalStatus, http.StatusBadRequest, CodeInvalidApprovalStatus},
	{context.Canceled, 499, CodeRequestCanceled},
	{context.DeadlineExceeded, http.StatusServiceUnavailable, CodeStoreUnavailable},
}

// StatusForError returns the HTTP status and error code for err.
// Unknown errors map to 500 internal_error.
func StatusForError(err error) (int, string) {
	for _, entry := range errorTable {
		if errors.Is(err, entry.err) {
			return entry.status, entry.code
		}
	}
	return http.StatusInternalServerError, CodeInternal
}
