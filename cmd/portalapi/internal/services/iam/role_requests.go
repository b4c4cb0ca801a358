package iam

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/qaportal/portal/cmd/portalapi/internal/db/models"
	"github.com/qaportal/portal/cmd/portalapi/internal/repository"
	"github.com/qaportal/portal/cmd/portalapi/internal/telemetry"
)

// SubmitRoleRequest implements Service.
func (s *iamService) SubmitRoleRequest(ctx context.Context, requesterID int64, requested Role, note string) (*RoleRequestView, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.SubmitRoleRequest",
		attribute.Int64(telemetry.AttrAccountID, requesterID),
		attribute.Int(telemetry.AttrRequestedRole, int(requested)),
	)
	defer span.End()

	if !requested.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRole, requested)
	}

	var view RoleRequestView
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		account, err := tx.Accounts().GetByID(ctx, requesterID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotProvisioned
		}
		if err != nil {
			return err
		}

		current, err := tx.RoleAssignments().EffectiveRole(ctx, requesterID)
		if err != nil {
			return err
		}

		req := &models.RoleChangeRequest{
			AccountID:     requesterID,
			RoleAtRequest: current,
			RequestedRole: int(requested),
			Status:        models.ApprovalPending,
			Note:          strings.TrimSpace(note),
			CreatedAt:     s.now(),
		}
		if err := tx.RoleRequests().Create(ctx, req); err != nil {
			return err
		}
		req.Account = account
		view = newRoleRequestView(req)
		return nil
	})
	if err != nil {
		err = storeError("submit role request", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int64(telemetry.AttrRoleRequestID, view.ID))
	s.logger.InfoContext(ctx, "role change requested",
		"request_id", view.ID, "account_id", requesterID, "requested_role", requested.String())
	return &view, nil
}

// ReviewRoleRequest implements Service.
func (s *iamService) ReviewRoleRequest(ctx context.Context, requestID, reviewerID int64, approve bool, comment *string) (*RoleRequestView, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.ReviewRoleRequest",
		attribute.Int64(telemetry.AttrRoleRequestID, requestID),
		attribute.Int64(telemetry.AttrAccountID, reviewerID),
		attribute.Bool("approve", approve),
	)
	defer span.End()

	status := models.ApprovalRejected
	if approve {
		status = models.ApprovalApproved
	}

	var view RoleRequestView
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := requireRole(ctx, tx, &reviewerID, RoleSuperAdmin); err != nil {
			return err
		}

		req, err := tx.RoleRequests().GetByID(ctx, requestID)
		if err != nil {
			return err
		}

		now := s.now()
		// Resolve only matches Pending rows, so a concurrent review fails here with ErrNotPending.
		if err := tx.RoleRequests().Resolve(ctx, requestID, status, reviewerID, comment, now); err != nil {
			return err
		}

		if approve {
			if err := tx.RoleAssignments().Append(ctx, &models.RoleAssignment{
				AccountID:  req.AccountID,
				Role:       req.RequestedRole,
				AssignedBy: &reviewerID,
				AssignedAt: now,
			}); err != nil {
				return err
			}
			if err := tx.Accounts().SetApproval(ctx, req.AccountID, models.ApprovalApproved, now); err != nil {
				return err
			}
		}

		resolved, err := tx.RoleRequests().GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		view = newRoleRequestView(resolved)
		return nil
	})
	if err != nil {
		err = storeError("review role request", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.RecordReview(ctx, approve)
	s.logger.InfoContext(ctx, "role change request reviewed",
		"request_id", requestID, "reviewer_id", reviewerID, "status", view.Status)
	return &view, nil
}

// ListRoleRequests implements Service.
func (s *iamService) ListRoleRequests(ctx context.Context, callerID int64) ([]RoleRequestView, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.ListRoleRequests",
		attribute.Int64(telemetry.AttrAccountID, callerID),
	)
	defer span.End()

	role, err := s.store.RoleAssignments().EffectiveRole(ctx, callerID)
	if err != nil {
		err = storeError("list role requests", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	var requests []models.RoleChangeRequest
	if Role(role) >= RoleSuperAdmin {
		requests, err = s.store.RoleRequests().List(ctx)
	} else {
		requests, err = s.store.RoleRequests().ListByAccount(ctx, callerID)
	}
	if err != nil {
		err = storeError("list role requests", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	views := make([]RoleRequestView, 0, len(requests))
	for i := range requests {
		views = append(views, newRoleRequestView(&requests[i]))
	}
	return views, nil
}
