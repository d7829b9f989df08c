package application

import (
	"context"
	"time"

	"booking-service/internal/domain"
)

// DateLedger reads and writes booked dates and booking records inside the
// transaction it was obtained from. No method is atomic on its own.
type DateLedger interface {
	// BookedDates returns booked days in [from, to], ascending.
	BookedDates(ctx context.Context, from, to domain.Date) ([]domain.Date, error)
	// InsertDateSlot fails with domain.ErrDateTaken when the day is already booked.
	InsertDateSlot(ctx context.Context, slot domain.DateSlot) error
	DeleteDateSlots(ctx context.Context, bookingID string) (int64, error)
	InsertBooking(ctx context.Context, b domain.Booking) error
	UpdateBookingFields(ctx context.Context, b domain.Booking) (int64, error)
	DeleteBooking(ctx context.Context, bookingID string) (int64, error)
}

// SnapshotSource reads committed booked days outside of any unit of work.
type SnapshotSource interface {
	BookedDates(ctx context.Context, from, to domain.Date) ([]domain.Date, error)
}

// Publisher fans a booking event out to every instance, this one included.
// Delivery is at-least-once and unordered.
type Publisher interface {
	Publish(ctx context.Context, ev domain.BookingEvent) error
}

// Subscriber delivers events to fn until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, fn func(context.Context, domain.BookingEvent)) error
}

type Invalidator interface {
	Invalidate()
}

type Clock interface {
	Now() time.Time
}

type IDGen interface {
	NewID() string
}
