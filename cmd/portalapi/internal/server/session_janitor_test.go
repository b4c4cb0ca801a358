package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qaportal/portal/cmd/portalapi/internal/db/dbtest"
	"github.com/qaportal/portal/cmd/portalapi/internal/db/models"
	"github.com/qaportal/portal/cmd/portalapi/internal/repository"
)

func seedSession(t *testing.T, repo repository.SessionRepository, id string, expiresAt time.Time) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &models.Session{
		ID:         id,
		TokenHash:  "hash-" + id,
		Scheme:     "idp",
		Claims:     models.ClaimSet{"sub": id},
		CreatedAt:  expiresAt.Add(-8 * time.Hour),
		LastUsedAt: expiresAt.Add(-8 * time.Hour),
		ExpiresAt:  expiresAt,
	}))
}

func TestSessionJanitor_Sweep(t *testing.T) {
	repo := repository.NewBunSessionRepository(dbtest.NewSQLite(t))
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	seedSession(t, repo, "expired", now.Add(-time.Minute))
	seedSession(t, repo, "live", now.Add(time.Hour))

	janitor := NewSessionJanitor(repo, time.Minute, quietLogger())
	janitor.now = func() time.Time { return now }

	assert.Equal(t, int64(1), janitor.Sweep(context.Background()))
	assert.Zero(t, janitor.Sweep(context.Background()))

	_, err := repo.GetByTokenHash(context.Background(), "hash-live")
	assert.NoError(t, err)
	_, err = repo.GetByTokenHash(context.Background(), "hash-expired")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSessionJanitor_RunStopsOnCancel(t *testing.T) {
	repo := repository.NewBunSessionRepository(dbtest.NewSQLite(t))
	janitor := NewSessionJanitor(repo, time.Hour, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- janitor.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("janitor did not stop")
	}
}
