package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// QueryHook feeds bun query events into DatabaseMetrics.
type QueryHook struct {
	metrics *DatabaseMetrics
}

var _ bun.QueryHook = (*QueryHook)(nil)

// NewQueryHook creates a bun query hook. Register it with db.AddQueryHook.
func NewQueryHook(metrics *DatabaseMetrics) *QueryHook {
	return &QueryHook{metrics: metrics}
}

func (h *QueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	err := event.Err
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
	}
	h.metrics.RecordQuery(ctx, event.Operation(), time.Since(event.StartTime), err)
}
