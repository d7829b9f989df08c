package httpserver

import (
	"context"
	"sync"
	"time"

	"booking-service/internal/domain"
)

type bookCall struct {
	booking    domain.Booking
	start, end domain.Date
}

type fakeReservations struct {
	mu        sync.Mutex
	books     []bookCall
	updates   []domain.Booking
	cancels   []string
	bookErr   error
	updateErr error
	cancelErr error
	existing  map[string]bool
}

func (f *fakeReservations) Book(_ context.Context, b domain.Booking, start, end domain.Date) (domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.books = append(f.books, bookCall{booking: b, start: start, end: end})
	if f.bookErr != nil {
		return domain.Booking{}, f.bookErr
	}
	b.ID = "booking-1"
	return b, nil
}

func (f *fakeReservations) Cancel(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, id)
	if f.cancelErr != nil {
		return false, f.cancelErr
	}
	return f.existing[id], nil
}

func (f *fakeReservations) UpdateInfo(_ context.Context, b domain.Booking) (domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, b)
	if f.updateErr != nil {
		return domain.Booking{}, f.updateErr
	}
	return b, nil
}

type availCall struct{ from, to domain.Date }

type fakeAvailability struct {
	mu          sync.Mutex
	calls       []availCall
	days        []domain.Date
	err         error
	invalidated int
}

func (f *fakeAvailability) AvailableDates(_ context.Context, from, to domain.Date) ([]domain.Date, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, availCall{from: from, to: to})
	return f.days, f.err
}

func (f *fakeAvailability) Invalidate() {
	f.mu.Lock()
	f.invalidated++
	f.mu.Unlock()
}

type fakeIdempotency struct {
	mu       sync.Mutex
	seen     map[string]bool
	released []string
	err      error
}

func (f *fakeIdempotency) TryReserve(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeIdempotency) Release(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, key)
	delete(f.seen, key)
	return nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func mustDate(s string) domain.Date {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}
