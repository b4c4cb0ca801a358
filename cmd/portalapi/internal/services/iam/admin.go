package iam

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/qaportal/portal/cmd/portalapi/internal/db/models"
	"github.com/qaportal/portal/cmd/portalapi/internal/repository"
	"github.com/qaportal/portal/cmd/portalapi/internal/telemetry"
)

// ListAccounts implements Service.
func (s *iamService) ListAccounts(ctx context.Context, actorID *int64) ([]AccountView, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.ListAccounts")
	defer span.End()

	var views []AccountView
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := requireRole(ctx, tx, actorID, RoleAdmin); err != nil {
			return err
		}

		accounts, err := tx.Accounts().List(ctx)
		if err != nil {
			return err
		}

		views = make([]AccountView, 0, len(accounts))
		for i := range accounts {
			role, err := tx.RoleAssignments().EffectiveRole(ctx, accounts[i].ID)
			if err != nil {
				return err
			}
			views = append(views, *newAccountView(&accounts[i], Role(role)))
		}
		return nil
	})
	if err != nil {
		err = storeError("list accounts", err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	return views, nil
}

// AssignRole implements Service.
func (s *iamService) AssignRole(ctx context.Context, actorID *int64, accountID int64, role Role) (*AccountView, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.AssignRole",
		attribute.Int64(telemetry.AttrAccountID, accountID),
		attribute.Int(telemetry.AttrAccountRole, int(role)),
	)
	defer span.End()

	if !role.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRole, role)
	}

	var view *AccountView
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := requireRole(ctx, tx, actorID, RoleSuperAdmin); err != nil {
			return err
		}

		account, err := tx.Accounts().GetByID(ctx, accountID)
		if err != nil {
			return err
		}

		if err := tx.RoleAssignments().Append(ctx, &models.RoleAssignment{
			AccountID:  accountID,
			Role:       int(role),
			AssignedBy: actorID,
			AssignedAt: s.now(),
		}); err != nil {
			return err
		}

		view = newAccountView(account, role)
		return nil
	})
	if err != nil {
		err = storeError("assign role", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "role assigned",
		"account_id", accountID, "role", role.String(), "actor_id", actorLabel(actorID))
	return view, nil
}

// SetApprovalStatus implements Service.
func (s *iamService) SetApprovalStatus(ctx context.Context, actorID *int64, accountID int64, status models.ApprovalStatus) (*AccountView, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.SetApprovalStatus",
		attribute.Int64(telemetry.AttrAccountID, accountID),
		attribute.String("approval_status", string(status)),
	)
	defer span.End()

	status, err := models.ParseApprovalStatus(string(status))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidApprovalStatus, err)
	}

	var view *AccountView
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := requireRole(ctx, tx, actorID, RoleAdmin); err != nil {
			return err
		}

		now := s.now()
		if err := tx.Accounts().SetApproval(ctx, accountID, status, now); err != nil {
			return err
		}
		account, err := tx.Accounts().GetByID(ctx, accountID)
		if err != nil {
			return err
		}
		role, err := tx.RoleAssignments().EffectiveRole(ctx, accountID)
		if err != nil {
			return err
		}

		view = newAccountView(account, Role(role))
		return nil
	})
	if err != nil {
		err = storeError("set approval status", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "approval status changed",
		"account_id", accountID, "status", string(status), "actor_id", actorLabel(actorID))
	return view, nil
}

func actorLabel(actorID *int64) string {
	if actorID == nil {
		return "system"
	}
	return fmt.Sprintf("%d", *actorID)
}
