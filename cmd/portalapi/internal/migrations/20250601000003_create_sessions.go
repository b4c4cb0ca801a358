package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20250601000003, down_20250601000003)
}

// up_20250601000003 creates the sessions table used by the database session store
func up_20250601000003(ctx context.Context, db *bun.DB) error {
	ts := timestampType(db)

	fmt.Print(" [up] creating sessions table...")
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS sessions (
			id VARCHAR(36) PRIMARY KEY,
			token_hash VARCHAR(64) NOT NULL UNIQUE,
			idp_scheme VARCHAR(64) NOT NULL,
			claims %[1]s NOT NULL,
			id_token TEXT NOT NULL DEFAULT '',
			user_agent TEXT,
			ip_address VARCHAR(64),
			created_at %[2]s NOT NULL,
			last_used_at %[2]s NOT NULL,
			expires_at %[2]s NOT NULL,
			revoked BOOLEAN NOT NULL DEFAULT FALSE
		)`, jsonType(db), ts))
	if err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}

	_, err = db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions (expires_at)`)
	if err != nil {
		return fmt.Errorf("failed to create sessions index: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

// down_20250601000003 drops the sessions table
func down_20250601000003(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping sessions table...")
	if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS sessions`); err != nil {
		return fmt.Errorf("failed to drop sessions table: %w", err)
	}
	fmt.Println(" OK")
	return nil
}
