package migrations

import (
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/migrate"
)

// Migrations is the registry every migration file adds itself to.
var Migrations = migrate.NewMigrations()

// IsSQLite checks if the database is SQLite
func IsSQLite(db *bun.DB) bool {
	return db.Dialect().Name() == dialect.SQLite
}

// IsPostgreSQL checks if the database is PostgreSQL
func IsPostgreSQL(db *bun.DB) bool {
	return db.Dialect().Name() == dialect.PG
}

// serialPK is the auto-incrementing 64-bit primary key column definition.
func serialPK(db *bun.DB) string {
	if IsPostgreSQL(db) {
		return "id BIGSERIAL PRIMARY KEY"
	}
	return "id INTEGER PRIMARY KEY AUTOINCREMENT"
}

// timestampType is the column type used for instants.
func timestampType(db *bun.DB) string {
	if IsPostgreSQL(db) {
		return "TIMESTAMPTZ"
	}
	return "TIMESTAMP"
}

// jsonType is the column type used for JSON documents.
func jsonType(db *bun.DB) string {
	if IsPostgreSQL(db) {
		return "JSONB"
	}
	return "TEXT"
}
