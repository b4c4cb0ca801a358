package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20250601000001, down_20250601000001)
}

// up_20250601000001 creates the accounts table and the first-account bootstrap marker
func up_20250601000001(ctx context.Context, db *bun.DB) error {
	ts := timestampType(db)

	fmt.Print(" [up] creating accounts table...")
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS accounts (
			%s,
			email VARCHAR(320) NOT NULL,
			name VARCHAR(256) NOT NULL,
			idp_provider VARCHAR(128) NOT NULL,
			idp_subject VARCHAR(256) NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'Active'
				CHECK (status IN ('Active', 'Disabled')),
			approval_status VARCHAR(16) NOT NULL DEFAULT 'Pending'
				CHECK (approval_status IN ('Pending', 'Approved', 'Rejected')),
			created_at %[2]s NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at %[2]s NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_login_at %[2]s
		)`, serialPK(db), ts))
	if err != nil {
		return fmt.Errorf("failed to create accounts table: %w", err)
	}

	// Identity is the (provider, subject) pair. Email is not unique.
	_, err = db.ExecContext(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_identity ON accounts (idp_provider, idp_subject)`)
	if err != nil {
		return fmt.Errorf("failed to create accounts identity index: %w", err)
	}
	_, err = db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_accounts_email ON accounts (email)`)
	if err != nil {
		return fmt.Errorf("failed to create accounts email index: %w", err)
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating account_bootstrap table...")
	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS account_bootstrap (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			claimed_at %s NOT NULL
		)`, ts))
	if err != nil {
		return fmt.Errorf("failed to create account_bootstrap table: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

// down_20250601000001 drops the accounts and account_bootstrap tables
func down_20250601000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping account_bootstrap table...")
	if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS account_bootstrap`); err != nil {
		return fmt.Errorf("failed to drop account_bootstrap table: %w", err)
	}
	fmt.Println(" OK")

	fmt.Print(" [down] dropping accounts table...")
	if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS accounts`); err != nil {
		return fmt.Errorf("failed to drop accounts table: %w", err)
	}
	fmt.Println(" OK")
	return nil
}
