package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"booking-service/internal/domain"
)

var ErrRepo = errors.New("repo error")

// fakeStore is an in-memory transactional ledger. Inserted dates are claimed
// store-wide at insert time, the way a unique index locks the key, while reads
// only see committed rows.
type fakeStore struct {
	mu       sync.Mutex
	dates    map[domain.Date]string
	bookings map[string]domain.Booking
	claims   map[domain.Date]*fakeTx

	// blindReads hides committed dates from in-transaction reads so only the
	// unique key can detect a conflict.
	blindReads bool
	// commitErr is returned by the next commit instead of applying it.
	commitErr error
	beginErr  error
	readErr   error
	// insertErr fails every date slot insert with a storage fault.
	insertErr   error
	deleteErr   error
	updateErr   error
	rollbackErr error

	commits     atomic.Int32
	rollbacks   atomic.Int32
	doubleEnds  atomic.Int32
	sourceReads atomic.Int32
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		dates:    map[domain.Date]string{},
		bookings: map[string]domain.Booking{},
		claims:   map[domain.Date]*fakeTx{},
	}
}

func (s *fakeStore) Begin(context.Context) (UnitOfWork, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	return &fakeTx{store: s}, nil
}

// BookedDates serves the cache from committed rows.
func (s *fakeStore) BookedDates(_ context.Context, from, to domain.Date) ([]domain.Date, error) {
	s.sourceReads.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committedIn(from, to), nil
}

func (s *fakeStore) committedIn(from, to domain.Date) []domain.Date {
	var out []domain.Date
	for d := range s.dates {
		if !d.Before(from) && !d.After(to) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func (s *fakeStore) snapshot() (map[domain.Date]string, map[string]domain.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dates := make(map[domain.Date]string, len(s.dates))
	for k, v := range s.dates {
		dates[k] = v
	}
	bookings := make(map[string]domain.Booking, len(s.bookings))
	for k, v := range s.bookings {
		bookings[k] = v
	}
	return dates, bookings
}

type fakeTx struct {
	store *fakeStore
	ended bool

	slots     []domain.DateSlot
	inserted  []domain.Booking
	updated   []domain.Booking
	deletedBy []string
}

func (t *fakeTx) Ledger() DateLedger { return t }

func (t *fakeTx) BookedDates(_ context.Context, from, to domain.Date) ([]domain.Date, error) {
	s := t.store
	if s.readErr != nil {
		return nil, s.readErr
	}
	if s.blindReads {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committedIn(from, to), nil
}

func (t *fakeTx) InsertDateSlot(_ context.Context, slot domain.DateSlot) error {
	s := t.store
	if s.insertErr != nil {
		return s.insertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dates[slot.Date]; ok {
		return domain.ErrDateTaken
	}
	if owner, ok := s.claims[slot.Date]; ok && owner != t {
		return domain.ErrDateTaken
	}
	s.claims[slot.Date] = t
	t.slots = append(t.slots, slot)
	return nil
}

func (t *fakeTx) DeleteDateSlots(_ context.Context, bookingID string) (int64, error) {
	s := t.store
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range s.dates {
		if id == bookingID {
			n++
		}
	}
	t.deletedBy = append(t.deletedBy, bookingID)
	return n, nil
}

func (t *fakeTx) InsertBooking(_ context.Context, b domain.Booking) error {
	t.inserted = append(t.inserted, b)
	return nil
}

func (t *fakeTx) UpdateBookingFields(_ context.Context, b domain.Booking) (int64, error) {
	s := t.store
	if s.updateErr != nil {
		return 0, s.updateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[b.ID]; !ok {
		return 0, nil
	}
	t.updated = append(t.updated, b)
	return 1, nil
}

func (t *fakeTx) DeleteBooking(_ context.Context, bookingID string) (int64, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[bookingID]; !ok {
		return 0, nil
	}
	return 1, nil
}

func (t *fakeTx) Commit(context.Context) error {
	s := t.store
	if t.ended {
		s.doubleEnds.Add(1)
		return errors.New("tx already ended")
	}
	t.ended = true
	s.commits.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()
	t.releaseLocked()
	if s.commitErr != nil {
		err := s.commitErr
		s.commitErr = nil
		return err
	}
	for _, id := range t.deletedBy {
		for d, owner := range s.dates {
			if owner == id {
				delete(s.dates, d)
			}
		}
		delete(s.bookings, id)
	}
	for _, sl := range t.slots {
		s.dates[sl.Date] = sl.BookingID
	}
	for _, b := range t.inserted {
		s.bookings[b.ID] = b
	}
	for _, b := range t.updated {
		s.bookings[b.ID] = b
	}
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	s := t.store
	if t.ended {
		s.doubleEnds.Add(1)
		return errors.New("tx already ended")
	}
	t.ended = true
	s.rollbacks.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()
	t.releaseLocked()
	return s.rollbackErr
}

func (t *fakeTx) releaseLocked() {
	for _, sl := range t.slots {
		if t.store.claims[sl.Date] == t {
			delete(t.store.claims, sl.Date)
		}
	}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.BookingEvent
	err    error
	// onPublish runs for every successful publish, e.g. to loop the event back.
	onPublish func(domain.BookingEvent)
}

func (p *fakePublisher) Publish(_ context.Context, ev domain.BookingEvent) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	if p.onPublish != nil {
		p.onPublish(ev)
	}
	return nil
}

func (p *fakePublisher) Events() []domain.BookingEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.BookingEvent(nil), p.events...)
}

type countingInvalidator struct{ n atomic.Int32 }

func (c *countingInvalidator) Invalidate() { c.n.Add(1) }

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type seqIDGen struct{ n atomic.Int64 }

func (g *seqIDGen) NewID() string { return fmt.Sprintf("booking-%d", g.n.Add(1)) }

// fakeSource is a SnapshotSource with scripted results.
type fakeSource struct {
	calls atomic.Int32
	mu    sync.Mutex
	days  []domain.Date
	errs  []error
	gate  chan struct{}
}

func (f *fakeSource) BookedDates(ctx context.Context, _, _ domain.Date) ([]domain.Date, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return append([]domain.Date(nil), f.days...), nil
}

func (f *fakeSource) set(days ...domain.Date) {
	f.mu.Lock()
	f.days = days
	f.mu.Unlock()
}

type recordingMetrics struct {
	mu            sync.Mutex
	ops           map[string]int
	snapshots     int
	invalidations map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{ops: map[string]int{}, invalidations: map[string]int{}}
}

func (m *recordingMetrics) ObserveOperation(op, outcome string) {
	m.mu.Lock()
	m.ops[op+"/"+outcome]++
	m.mu.Unlock()
}

func (m *recordingMetrics) ObserveSnapshot(time.Duration, error) {
	m.mu.Lock()
	m.snapshots++
	m.mu.Unlock()
}

func (m *recordingMetrics) ObserveInvalidation(source string) {
	m.mu.Lock()
	m.invalidations[source]++
	m.mu.Unlock()
}

func (m *recordingMetrics) op(op, outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ops[op+"/"+outcome]
}

func mustDate(s string) domain.Date {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}
