package iam

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/qaportal/portal/cmd/portalapi/internal/auth"
	"github.com/qaportal/portal/cmd/portalapi/internal/db/models"
	"github.com/qaportal/portal/cmd/portalapi/internal/repository"
	"github.com/qaportal/portal/cmd/portalapi/internal/telemetry"
)

// provisionResult describes what one EnsureAccount transaction did.
type provisionResult struct {
	view    *AccountView
	outcome string // "created" or "existing"
	first   bool
	healed  bool
}

// EnsureAccount implements Service.
func (s *iamService) EnsureAccount(ctx context.Context, identity auth.Identity) (*AccountView, error) {
	identity.Provider = strings.TrimSpace(identity.Provider)
	if identity.Provider == "" {
		identity.Provider = auth.DefaultScheme
	}

	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.EnsureAccount",
		attribute.String(telemetry.AttrIdentityProvider, identity.Provider),
	)
	defer span.End()

	if strings.TrimSpace(identity.Subject) == "" || strings.TrimSpace(identity.Email) == "" {
		s.metrics.RecordProvisioning(ctx, "error")
		telemetry.RecordError(span, auth.ErrMissingIdentityClaims)
		return nil, auth.ErrMissingIdentityClaims
	}

	result, err := s.provision(ctx, identity)
	if errors.Is(err, repository.ErrDuplicate) {
		// A concurrent sign-in of the same identity won the insert; the fresh
		// transaction takes the existing-account branch.
		telemetry.AddEvent(span, "account.insert_conflict")
		result, err = s.provision(ctx, identity)
		if errors.Is(err, repository.ErrDuplicate) {
			err = fmt.Errorf("provision %s/%s: %w", identity.Provider, identity.Subject, ErrProvisioningConflict)
		}
	}
	if err != nil {
		err = storeError("ensure account", err)
		s.metrics.RecordProvisioning(ctx, "error")
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.RecordProvisioning(ctx, result.outcome)
	span.SetAttributes(
		attribute.Int64(telemetry.AttrAccountID, result.view.ID),
		attribute.String(telemetry.AttrAccountRole, result.view.Role),
	)

	switch {
	case result.first:
		s.logger.InfoContext(ctx, "bootstrapped first account as super administrator",
			"account_id", result.view.ID, "provider", identity.Provider)
	case result.outcome == "created":
		s.logger.InfoContext(ctx, "provisioned account",
			"account_id", result.view.ID, "provider", identity.Provider)
	}
	if result.healed {
		s.logger.WarnContext(ctx, "account had no role assignment, assigned default role",
			"account_id", result.view.ID)
	}
	return result.view, nil
}

// provision runs one lookup-or-create transaction. Errors are returned as the
// repository produced them so the caller can recognise ErrDuplicate.
func (s *iamService) provision(ctx context.Context, identity auth.Identity) (provisionResult, error) {
	span := trace.SpanFromContext(ctx)
	var result provisionResult

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		result = provisionResult{outcome: "existing"}
		now := s.now()

		account, err := tx.Accounts().GetByIdentity(ctx, identity.Provider, identity.Subject)
		switch {
		case err == nil:
		case errors.Is(err, repository.ErrNotFound):
			account, result.first, err = s.createAccount(ctx, tx, identity, now)
			if err != nil {
				return err
			}
			result.outcome = "created"
			telemetry.AddEvent(span, "account.created",
				attribute.Int64(telemetry.AttrAccountID, account.ID),
				attribute.Bool("bootstrap", result.first),
			)
		default:
			return err
		}

		role, err := tx.RoleAssignments().EffectiveRole(ctx, account.ID)
		if err != nil {
			return err
		}
		if Role(role) == RoleNone {
			if err := appendSystemRole(ctx, tx, account.ID, RoleDefaultUser, now); err != nil {
				return err
			}
			role = int(RoleDefaultUser)
			result.healed = true
			telemetry.AddEvent(span, "account.role_healed",
				attribute.Int64(telemetry.AttrAccountID, account.ID),
			)
		}

		if err := tx.Accounts().TouchLogin(ctx, account.ID, now); err != nil {
			return err
		}
		account.LastLoginAt = &now
		account.UpdatedAt = now

		result.view = newAccountView(account, Role(role))
		return nil
	})
	return result, err
}

// createAccount inserts a new account and its initial role assignment. The
// first account ever created is approved and made super administrator; the
// bootstrap marker makes exactly one transaction win that race.
func (s *iamService) createAccount(ctx context.Context, tx repository.Store, identity auth.Identity, now time.Time) (*models.Account, bool, error) {
	exists, err := tx.Accounts().Exists(ctx)
	if err != nil {
		return nil, false, err
	}
	first := false
	if !exists {
		first, err = tx.Accounts().ClaimBootstrap(ctx, now)
		if err != nil {
			return nil, false, err
		}
	}

	account := &models.Account{
		Email:          identity.Email,
		Name:           auth.LocalPart(identity.Email),
		IdPProvider:    identity.Provider,
		IdPSubject:     identity.Subject,
		Status:         models.AccountStatusActive,
		ApprovalStatus: models.ApprovalPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	role := RoleDefaultUser
	if first {
		account.ApprovalStatus = models.ApprovalApproved
		role = RoleSuperAdmin
	}

	if err := tx.Accounts().Create(ctx, account); err != nil {
		return nil, false, err
	}
	if err := appendSystemRole(ctx, tx, account.ID, role, now); err != nil {
		return nil, false, err
	}
	return account, first, nil
}

func appendSystemRole(ctx context.Context, tx repository.Store, accountID int64, role Role, at time.Time) error {
	return tx.RoleAssignments().Append(ctx, &models.RoleAssignment{
		AccountID:  accountID,
		Role:       int(role),
		AssignedAt: at,
	})
}
