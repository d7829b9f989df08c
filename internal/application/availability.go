package application

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"booking-service/internal/domain"
	"booking-service/internal/infrastructure/logx"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Snapshot is an immutable set of booked days over [From, To].
type Snapshot struct {
	Generation uint64
	From, To   domain.Date
	ComputedAt time.Time
	booked     map[domain.Date]struct{}
}

func newSnapshot(gen uint64, from, to domain.Date, at time.Time, days []domain.Date) *Snapshot {
	s := &Snapshot{Generation: gen, From: from, To: to, ComputedAt: at, booked: make(map[domain.Date]struct{}, len(days))}
	for _, d := range days {
		s.booked[d] = struct{}{}
	}
	return s
}

func (s *Snapshot) IsBooked(d domain.Date) bool {
	_, ok := s.booked[d]
	return ok
}

// Booked lists the booked days in ascending order.
func (s *Snapshot) Booked() []domain.Date {
	out := make([]domain.Date, 0, len(s.booked))
	for d := range s.booked {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// generation is one scheduled snapshot. It is computed by the first reader
// and then shared; concurrent readers wait for that single computation.
type generation struct {
	seq   uint64
	today domain.Date
	group singleflight.Group
	snap  atomic.Pointer[Snapshot]
}

// AvailabilityCache serves availability from a memoized snapshot of booked
// days. Invalidate swaps the whole snapshot; nothing is patched in place.
type AvailabilityCache struct {
	src            SnapshotSource
	clock          Clock
	metrics        Metrics
	horizonMonths  int
	computeTimeout time.Duration

	seq     atomic.Uint64
	current atomic.Pointer[generation]
}

type CacheOption func(*AvailabilityCache)

func WithCacheClock(c Clock) CacheOption     { return func(a *AvailabilityCache) { a.clock = c } }
func WithCacheMetrics(m Metrics) CacheOption { return func(a *AvailabilityCache) { a.metrics = m } }
func WithHorizonMonths(n int) CacheOption    { return func(a *AvailabilityCache) { a.horizonMonths = n } }

func WithComputeTimeout(d time.Duration) CacheOption {
	return func(a *AvailabilityCache) { a.computeTimeout = d }
}

// NewAvailabilityCache schedules the first snapshot without computing it.
func NewAvailabilityCache(src SnapshotSource, opts ...CacheOption) *AvailabilityCache {
	c := &AvailabilityCache{
		src:            src,
		horizonMonths:  1,
		computeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.clock == nil {
		c.clock = SystemClock{}
	}
	if c.metrics == nil {
		c.metrics = NoopMetrics{}
	}
	c.current.Store(c.schedule())
	return c
}

func (c *AvailabilityCache) schedule() *generation {
	return &generation{seq: c.seq.Add(1), today: domain.DateOf(c.clock.Now())}
}

// Invalidate replaces the current snapshot with a new, not yet computed one.
// It never blocks; the next reader triggers the computation.
func (c *AvailabilityCache) Invalidate() {
	c.current.Store(c.schedule())
}

// Horizon returns the days the snapshot covers, both ends inclusive.
func (c *AvailabilityCache) Horizon() (first, last domain.Date) {
	return domain.Horizon(domain.DateOf(c.clock.Now()), c.horizonMonths)
}

// Snapshot returns the current snapshot, computing it if needed.
func (c *AvailabilityCache) Snapshot(ctx context.Context) (*Snapshot, error) {
	gen := c.current.Load()
	if today := domain.DateOf(c.clock.Now()); gen.today != today {
		// The horizon moved on; only one reader gets to replace the generation.
		fresh := c.schedule()
		if c.current.CompareAndSwap(gen, fresh) {
			gen = fresh
		} else {
			gen = c.current.Load()
		}
	}
	if s := gen.snap.Load(); s != nil {
		return s, nil
	}

	ch := gen.group.DoChan("snapshot", func() (any, error) {
		if s := gen.snap.Load(); s != nil {
			return s, nil
		}
		s, err := c.compute(context.WithoutCancel(ctx), gen)
		if err != nil {
			return nil, err
		}
		gen.snap.Store(s)
		return s, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

func (c *AvailabilityCache) compute(ctx context.Context, gen *generation) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.computeTimeout)
	defer cancel()

	start := time.Now()
	from, to := domain.Horizon(gen.today, c.horizonMonths)
	days, err := c.src.BookedDates(ctx, from, to)
	c.metrics.ObserveSnapshot(time.Since(start), err)
	if err != nil {
		logx.L().Error("availability.snapshot_failed", zap.Uint64("generation", gen.seq), zap.Error(err))
		return nil, fmt.Errorf("compute snapshot: %w", err)
	}
	logx.L().Debug("availability.snapshot_computed",
		zap.Uint64("generation", gen.seq),
		zap.Int("booked", len(days)),
		zap.Duration("took", time.Since(start)),
	)
	return newSnapshot(gen.seq, from, to, c.clock.Now(), days), nil
}

// AvailableDates returns the days in [from, to) that are not booked in the
// current snapshot, ascending.
func (c *AvailabilityCache) AvailableDates(ctx context.Context, from, to domain.Date) ([]domain.Date, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Date, 0, max(0, from.DaysUntil(to)))
	for _, d := range from.DatesUntil(to) {
		if !snap.IsBooked(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Warm computes the current snapshot in the background.
func (c *AvailabilityCache) Warm(ctx context.Context) {
	go func() {
		if _, err := c.Snapshot(ctx); err != nil {
			logx.L().Warn("availability.warm_failed", zap.Error(err))
		}
	}()
}
