package cmdutil

import (
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/qaportal/portal/cmd/portalapi/internal/config"
	"github.com/qaportal/portal/cmd/portalapi/internal/db/bunx"
	"github.com/qaportal/portal/cmd/portalapi/internal/repository"
	"github.com/qaportal/portal/cmd/portalapi/internal/services/iam"
)

// OpenDB connects to the configured database with the configured pool size and timeout.
func OpenDB(cfg *config.Config) (*bun.DB, error) {
	db, err := bunx.NewDB(cfg.DatabaseURL,
		bunx.WithMaxConnections(cfg.MaxDBConnections),
		bunx.WithTimeout(cfg.DBTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// IAMServiceBundle bundles the service with its underlying DB connection so callers can
// reuse the connection for other repositories when necessary.
type IAMServiceBundle struct {
	Service iam.Service
	DB      *bun.DB
}

// Close releases the underlying database connection.
func (b *IAMServiceBundle) Close() {
	if b == nil || b.DB == nil {
		return
	}
	_ = bunx.Close(b.DB)
}

// NewIAMServiceBundle centralizes IAM service construction for CLI commands.
// Commands act as the system actor, so the service is used with a nil actor.
func NewIAMServiceBundle(cfg *config.Config, logger *slog.Logger) (*IAMServiceBundle, error) {
	db, err := OpenDB(cfg)
	if err != nil {
		return nil, err
	}

	iamService, err := iam.NewIAMService(iam.IAMServiceDependencies{
		Store:  repository.NewBunStore(db),
		Logger: logger,
	}, iam.IAMServiceConfig{})
	if err != nil {
		_ = bunx.Close(db)
		return nil, fmt.Errorf("failed to create IAM service: %w", err)
	}

	return &IAMServiceBundle{
		Service: iamService,
		DB:      db,
	}, nil
}
