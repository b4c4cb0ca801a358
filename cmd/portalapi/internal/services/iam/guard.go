package iam

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/qaportal/portal/cmd/portalapi/internal/auth"
	"github.com/qaportal/portal/cmd/portalapi/internal/repository"
	"github.com/qaportal/portal/cmd/portalapi/internal/telemetry"
)

// ResolvePrincipal implements Service.
func (s *iamService) ResolvePrincipal(ctx context.Context, identity auth.Identity) (*Principal, error) {
	provider := strings.TrimSpace(identity.Provider)
	if provider == "" {
		provider = auth.DefaultScheme
	}

	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.ResolvePrincipal",
		attribute.String(telemetry.AttrIdentityProvider, provider),
	)
	defer span.End()

	account, err := s.store.Accounts().GetByIdentity(ctx, provider, identity.Subject)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAccountNotProvisioned
	}
	if err != nil {
		err = storeError("resolve principal", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	role, err := s.store.RoleAssignments().EffectiveRole(ctx, account.ID)
	if err != nil {
		err = storeError("resolve principal role", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64(telemetry.AttrAccountID, account.ID),
		attribute.Int(telemetry.AttrAccountRole, role),
	)

	return &Principal{
		AccountID:      account.ID,
		Provider:       account.IdPProvider,
		Subject:        account.IdPSubject,
		Email:          account.Email,
		Name:           account.Name,
		Role:           Role(role),
		Status:         account.Status,
		ApprovalStatus: account.ApprovalStatus,
	}, nil
}
