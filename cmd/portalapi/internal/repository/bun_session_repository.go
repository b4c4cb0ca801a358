package repository

import (
	"context"
	"time"

	"github.com/qaportal/portal/cmd/portalapi/internal/db/models"
	"github.com/uptrace/bun"
)

// BunSessionRepository implements SessionRepository using Bun ORM
type BunSessionRepository struct {
	db bun.IDB
}

// NewBunSessionRepository creates a new Bun-based session repository
func NewBunSessionRepository(db bun.IDB) *BunSessionRepository {
	return &BunSessionRepository{db: db}
}

// Create inserts a new session
func (r *BunSessionRepository) Create(ctx context.Context, session *models.Session) error {
	_, err := r.db.NewInsert().
		Model(session).
		Exec(ctx)
	return classify("create session", err)
}

// GetByTokenHash retrieves a session by its token hash
// This is the primary lookup method for authentication
func (r *BunSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	session := new(models.Session)
	err := r.db.NewSelect().
		Model(session).
		Where("sess.token_hash = ?", tokenHash).
		Scan(ctx)
	if err != nil {
		return nil, classify("get session by token", err)
	}
	return session, nil
}

// Touch slides the session window forward
func (r *BunSessionRepository) Touch(ctx context.Context, id string, lastUsedAt, expiresAt time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*models.Session)(nil)).
		Set("last_used_at = ?", lastUsedAt).
		Set("expires_at = ?", expiresAt).
		Where("id = ?", id).
		Where("revoked = ?", false).
		Exec(ctx)
	return classify("touch session", err)
}

// Revoke marks a session as revoked
func (r *BunSessionRepository) Revoke(ctx context.Context, id string) error {
	_, err := r.db.NewUpdate().
		Model((*models.Session)(nil)).
		Set("revoked = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	return classify("revoke session", err)
}

// DeleteExpired deletes sessions that expired before now and returns how many were removed.
// Run periodically by the session janitor.
func (r *BunSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*models.Session)(nil)).
		Where("expires_at < ?", now).
		Exec(ctx)
	if err != nil {
		return 0, classify("delete expired sessions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify("delete expired sessions", err)
	}
	return n, nil
}
