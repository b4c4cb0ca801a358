package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/qaportal/portal/cmd/portalapi/internal/auth"
	"github.com/qaportal/portal/cmd/portalapi/internal/services/iam"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{auth.ErrMissingIdentityClaims, http.StatusBadRequest, "missing_identity_claims"},
		{fmt.Errorf("ensure account: %w: %w", iam.ErrStoreUnavailable, errors.New("dial tcp")), http.StatusServiceUnavailable, "store_unavailable"},
		{iam.ErrProvisioningConflict, http.StatusInternalServerError, "provisioning_conflict"},
		{iam.ErrForbidden, http.StatusForbidden, "forbidden"},
		{fmt.Errorf("review: %w", iam.ErrNotFound), http.StatusNotFound, "not_found"},
		{iam.ErrAlreadyResolved, http.StatusConflict, "already_resolved"},
		{iam.ErrAccountNotProvisioned, http.StatusUnauthorized, "account_not_provisioned"},
		{iam.ErrInvalidRole, http.StatusBadRequest, "invalid_role"},
		{context.Canceled, 499, "request_canceled"},
		{errors.New("pq: relation does not exist"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		status, code := StatusForError(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}

func TestWriteError_HidesMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, fmt.Errorf("get account: %w: %w", iam.ErrStoreUnavailable, errors.New("password authentication failed")))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"store_unavailable"}`, rec.Body.String())
}
