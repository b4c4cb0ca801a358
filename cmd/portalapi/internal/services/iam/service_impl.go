package iam

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/qaportal/portal/cmd/portalapi/internal/repository"
	"github.com/qaportal/portal/cmd/portalapi/internal/telemetry"
)

const tracerName = "portalapi/services/iam"

// iamService implements Service on top of a repository.Store. The HTTP server
// and the accounts CLI share it.
type iamService struct {
	store   repository.Store
	metrics *telemetry.AuthMetrics
	logger  *slog.Logger
	now     func() time.Time
}

// IAMServiceDependencies contains the service's collaborators.
type IAMServiceDependencies struct {
	Store   repository.Store
	Metrics *telemetry.AuthMetrics // optional
	Logger  *slog.Logger           // optional, defaults to slog.Default()
}

// IAMServiceConfig contains tunables for the service.
type IAMServiceConfig struct {
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// NewIAMService creates a new IAM service with all dependencies.
func NewIAMService(deps IAMServiceDependencies, cfg IAMServiceConfig) (Service, error) {
	if deps.Store == nil {
		return nil, errors.New("iam service requires a store")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &iamService{
		store:   deps.Store,
		metrics: deps.Metrics,
		logger:  logger.With("component", "iam"),
		now:     func() time.Time { return clock().UTC() },
	}, nil
}

// requireRole checks the actor's fresh effective role inside tx.
// A nil actor is the system and passes every check.
func requireRole(ctx context.Context, tx repository.Store, actorID *int64, min Role) error {
	if actorID == nil {
		return nil
	}
	role, err := tx.RoleAssignments().EffectiveRole(ctx, *actorID)
	if err != nil {
		return storeError("resolve actor role", err)
	}
	if Role(role) < min || Role(role) == RoleNone {
		return ErrForbidden
	}
	return nil
}
