package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"booking-service/internal/domain"

	"github.com/stretchr/testify/require"
)

// chanSubscriber delivers whatever is sent on events until ctx is done.
type chanSubscriber struct {
	events chan domain.BookingEvent
}

func (s *chanSubscriber) Subscribe(ctx context.Context, fn func(context.Context, domain.BookingEvent)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			fn(ctx, ev)
		}
	}
}

func Test_InvalidationListener_InvalidatesPerEvent(t *testing.T) {
	t.Parallel()
	sub := &chanSubscriber{events: make(chan domain.BookingEvent)}
	inv := &countingInvalidator{}
	metrics := newRecordingMetrics()
	l := &InvalidationListener{Sub: sub, Cache: inv, Metrics: metrics, Source: "redis"}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.Start(ctx)
	}()

	// duplicates and reordering are harmless
	for _, a := range []domain.BookingAction{domain.BookingActionCancel, domain.BookingActionBook, domain.BookingActionBook} {
		sub.events <- domain.BookingEvent{BookingID: "b-1", Action: a, OccurredAt: time.Now()}
	}
	require.Eventually(t, func() bool { return inv.n.Load() == 3 }, time.Second, time.Millisecond)

	cancel()
	wg.Wait()
	metrics.mu.Lock()
	require.Equal(t, 3, metrics.invalidations["redis"])
	metrics.mu.Unlock()
}

func Test_InvalidationListener_RefreshesCache(t *testing.T) {
	t.Parallel()
	src := &fakeSource{}
	cache := newTestCache(src, newFakeClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
	sub := &chanSubscriber{events: make(chan domain.BookingEvent)}
	l := &InvalidationListener{Sub: sub, Cache: cache}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Start(ctx)

	snap, err := cache.Snapshot(ctx)
	require.NoError(t, err)
	require.False(t, snap.IsBooked(mustDate("2024-06-10")))

	src.set(mustDate("2024-06-10"))
	sub.events <- domain.BookingEvent{BookingID: "other-instance", Action: domain.BookingActionBook}

	require.Eventually(t, func() bool {
		s, err := cache.Snapshot(ctx)
		return err == nil && s.IsBooked(mustDate("2024-06-10"))
	}, time.Second, time.Millisecond)
}
