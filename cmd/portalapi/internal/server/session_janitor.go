package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/qaportal/portal/cmd/portalapi/internal/repository"
)

// SessionJanitor periodically deletes sessions past their expiry.
// Revoked sessions are kept until they expire.
type SessionJanitor struct {
	sessions repository.SessionRepository
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewSessionJanitor creates a janitor running every interval (default 15 minutes).
func NewSessionJanitor(sessions repository.SessionRepository, interval time.Duration, logger *slog.Logger) *SessionJanitor {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionJanitor{
		sessions: sessions,
		interval: interval,
		timeout:  30 * time.Second,
		now:      time.Now,
		logger:   logger.With("component", "session_janitor"),
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (j *SessionJanitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		j.Sweep(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep deletes expired sessions once. Failures are logged and retried on the next tick.
func (j *SessionJanitor) Sweep(ctx context.Context) int64 {
	sweepCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	deleted, err := j.sessions.DeleteExpired(sweepCtx, j.now().UTC())
	if err != nil {
		if ctx.Err() == nil {
			j.logger.WarnContext(ctx, "delete expired sessions failed", "error", err)
		}
		return 0
	}
	if deleted > 0 {
		j.logger.InfoContext(ctx, "expired sessions deleted", "count", deleted)
	}
	return deleted
}
