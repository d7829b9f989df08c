package application

import (
	"context"
	"errors"

	"booking-service/internal/domain"

	"go.uber.org/zap"
)

var _ Worker = (*InvalidationListener)(nil)

// InvalidationListener drops the local snapshot whenever any instance reports
// a booking change. Duplicate or reordered events only cause an extra
// recompute.
type InvalidationListener struct {
	Sub     Subscriber
	Cache   Invalidator
	Metrics Metrics
	Source  string
	Log     *zap.Logger
}

func (l *InvalidationListener) Start(ctx context.Context) {
	log := l.Log
	if log == nil {
		log = zap.NewNop()
	}
	metrics := l.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	log.Info("invalidation_listener_started", zap.String("source", l.Source))
	err := l.Sub.Subscribe(ctx, func(_ context.Context, ev domain.BookingEvent) {
		l.Cache.Invalidate()
		metrics.ObserveInvalidation(l.Source)
		log.Debug("invalidation_received",
			zap.String("booking_id", ev.BookingID),
			zap.String("action", string(ev.Action)),
		)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("invalidation_listener_failed", zap.Error(err))
		return
	}
	log.Info("invalidation_listener_stopped")
}
