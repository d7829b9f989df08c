// Package bus is the in-process invalidation channel for deployments with a
// single service instance.
package bus

import (
	"context"
	"sync"

	"booking-service/internal/application"
	"booking-service/internal/domain"
	"booking-service/internal/infrastructure/logx"

	"go.uber.org/zap"
)

var (
	_ application.Publisher  = (*Local)(nil)
	_ application.Subscriber = (*Local)(nil)
)

// Local broadcasts every published event to all current subscribers.
// Each subscriber has a one-slot buffer; an event arriving while the slot is
// full is dropped, since the pending one already forces a recompute.
type Local struct {
	mu   sync.RWMutex
	subs map[chan domain.BookingEvent]struct{}
}

func NewLocal() *Local {
	return &Local{subs: map[chan domain.BookingEvent]struct{}{}}
}

// Publish never blocks.
func (b *Local) Publish(_ context.Context, ev domain.BookingEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

func (b *Local) Subscribe(ctx context.Context, fn func(context.Context, domain.BookingEvent)) error {
	ch := make(chan domain.BookingEvent, 1)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-ch:
			deliver(ctx, fn, ev)
		}
	}
}

func (b *Local) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func deliver(ctx context.Context, fn func(context.Context, domain.BookingEvent), ev domain.BookingEvent) {
	defer func() {
		if r := recover(); r != nil {
			logx.L().Warn("bus.handler_panic", zap.Any("r", r), zap.String("booking_id", ev.BookingID))
		}
	}()
	fn(ctx, ev)
}
