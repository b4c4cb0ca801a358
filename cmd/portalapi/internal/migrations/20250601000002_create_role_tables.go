package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20250601000002, down_20250601000002)
}

// up_20250601000002 creates the append-only role log and the role change requests table
func up_20250601000002(ctx context.Context, db *bun.DB) error {
	ts := timestampType(db)

	fmt.Print(" [up] creating role_assignments table...")
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS role_assignments (
			%s,
			account_id BIGINT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			role INTEGER NOT NULL CHECK (role BETWEEN 0 AND 4),
			assigned_by BIGINT REFERENCES accounts(id) ON DELETE SET NULL,
			assigned_at %s NOT NULL
		)`, serialPK(db), ts))
	if err != nil {
		return fmt.Errorf("failed to create role_assignments table: %w", err)
	}

	_, err = db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_role_assignments_latest ON role_assignments (account_id, assigned_at, id)`)
	if err != nil {
		return fmt.Errorf("failed to create role_assignments index: %w", err)
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating role_change_requests table...")
	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS role_change_requests (
			%s,
			account_id BIGINT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			role_at_request INTEGER NOT NULL CHECK (role_at_request BETWEEN 0 AND 4),
			requested_role INTEGER NOT NULL CHECK (requested_role BETWEEN 1 AND 4),
			status VARCHAR(16) NOT NULL DEFAULT 'Pending'
				CHECK (status IN ('Pending', 'Approved', 'Rejected')),
			note TEXT NOT NULL DEFAULT '',
			reviewer_id BIGINT REFERENCES accounts(id) ON DELETE SET NULL,
			review_comment TEXT,
			created_at %[2]s NOT NULL,
			reviewed_at %[2]s
		)`, serialPK(db), ts))
	if err != nil {
		return fmt.Errorf("failed to create role_change_requests table: %w", err)
	}

	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_role_change_requests_account ON role_change_requests (account_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_role_change_requests_status ON role_change_requests (status)`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create role_change_requests index: %w", err)
		}
	}
	fmt.Println(" OK")

	return nil
}

// down_20250601000002 drops the role tables
func down_20250601000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping role_change_requests table...")
	if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS role_change_requests`); err != nil {
		return fmt.Errorf("failed to drop role_change_requests table: %w", err)
	}
	fmt.Println(" OK")

	fmt.Print(" [down] dropping role_assignments table...")
	if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS role_assignments`); err != nil {
		return fmt.Errorf("failed to drop role_assignments table: %w", err)
	}
	fmt.Println(" OK")
	return nil
}
