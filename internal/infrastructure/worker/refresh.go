package worker

import (
	"context"
	"time"

	"booking-service/internal/application"

	"go.uber.org/zap"
)

var _ application.Worker = (*RefreshWorker)(nil)

type SnapshotCache interface {
	Invalidate()
	Snapshot(ctx context.Context) (*application.Snapshot, error)
}

// RefreshWorker rebuilds the availability snapshot on a fixed period. It
// bounds how long a lost invalidation message can leave the cache stale.
type RefreshWorker struct {
	Cache   SnapshotCache
	Metrics application.Metrics

	Every time.Duration
	Log   *zap.Logger
}

func (w *RefreshWorker) Start(ctx context.Context) {
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}
	if w.Every <= 0 {
		log.Info("refresh_worker_disabled")
		return
	}
	if w.Metrics == nil {
		w.Metrics = application.NoopMetrics{}
	}

	t := time.NewTicker(w.Every)
	defer t.Stop()

	log.Info("refresh_worker_started", zap.Duration("every", w.Every))
	for {
		select {
		case <-ctx.Done():
			log.Info("refresh_worker_stopped")
			return
		case <-t.C:
			w.tick(ctx, log)
		}
	}
}

func (w *RefreshWorker) tick(ctx context.Context, log *zap.Logger) {
	w.Cache.Invalidate()
	w.Metrics.ObserveInvalidation("refresh")
	// recompute now so the next reader does not wait for it
	if _, err := w.Cache.Snapshot(ctx); err != nil && ctx.Err() == nil {
		log.Warn("refresh_failed", zap.Error(err))
	}
}
