package iam

import (
	"errors"
	"fmt"

	"github.com/qaportal/portal/cmd/portalapi/internal/repository"
)

var (
	// ErrStoreUnavailable means the account store could not be reached or failed mid-transaction.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrProvisioningConflict means account creation kept colliding with a concurrent insert.
	ErrProvisioningConflict = errors.New("provisioning conflict")
	// ErrForbidden means the caller's role is too low for the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound means the addressed account or role change request does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyResolved means a role change request has already been reviewed.
	ErrAlreadyResolved = errors.New("request already resolved")
	// ErrAccountNotProvisioned means no local account exists for the identity.
	ErrAccountNotProvisioned = errors.New("account not provisioned")
	// ErrInvalidRole means a role ordinal or name outside the 1-4 scale.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidApprovalStatus means an approval status other than Pending, Approved or Rejected.
	ErrInvalidApprovalStatus = errors.New("invalid approval status")
)

// storeError translates repository errors into the service vocabulary.
// Errors that are already part of it pass through unchanged.
func storeError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrUnavailable):
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	case errors.Is(err, repository.ErrNotPending):
		return fmt.Errorf("%s: %w", op, ErrAlreadyResolved)
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
