package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"booking-service/internal/domain"
	"booking-service/internal/infrastructure/logx"

	"go.uber.org/zap"
)

// ReservationEngine books, cancels and updates reservations. Overlapping
// bookings are excluded by the storage layer's unique key on the booked date;
// the engine takes no locks of its own, so any number of instances may share
// one database.
type ReservationEngine struct {
	uow            UoWFactory
	pub            Publisher
	local          Invalidator
	clock          Clock
	idgen          IDGen
	metrics        Metrics
	txTimeout      time.Duration
	publishTimeout time.Duration
}

type Option func(*ReservationEngine)

func WithClock(c Clock) Option     { return func(e *ReservationEngine) { e.clock = c } }
func WithIDGen(g IDGen) Option     { return func(e *ReservationEngine) { e.idgen = g } }
func WithMetrics(m Metrics) Option { return func(e *ReservationEngine) { e.metrics = m } }

// WithLocalCache makes the engine invalidate this process's cache directly
// when publishing an event fails.
func WithLocalCache(inv Invalidator) Option { return func(e *ReservationEngine) { e.local = inv } }

// WithTxTimeout bounds each operation, transaction included. Zero disables it.
func WithTxTimeout(d time.Duration) Option {
	return func(e *ReservationEngine) { e.txTimeout = d }
}

func WithPublishTimeout(d time.Duration) Option {
	return func(e *ReservationEngine) { e.publishTimeout = d }
}

func NewReservationEngine(uow UoWFactory, pub Publisher, opts ...Option) *ReservationEngine {
	e := &ReservationEngine{
		uow:            uow,
		pub:            pub,
		publishTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.clock == nil {
		e.clock = SystemClock{}
	}
	if e.idgen == nil {
		e.idgen = defaultIDGen{}
	}
	if e.metrics == nil {
		e.metrics = NoopMetrics{}
	}
	return e
}

// Book reserves every day in [start, end) for b under a freshly generated id.
// It returns ErrConflict when any of those days is taken, whether that was
// seen by the initial read or by a unique-key violation on insert or commit.
func (e *ReservationEngine) Book(ctx context.Context, b domain.Booking, start, end domain.Date) (domain.Booking, error) {
	if !end.After(start) {
		return domain.Booking{}, domain.ErrInvalidRange
	}
	b.ID = e.idgen.NewID()
	log := logx.WithFields(ctx).With(
		zap.String("op", OpBook),
		zap.String("booking_id", b.ID),
		zap.Stringer("start", start),
		zap.Stringer("end", end),
	)

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	err := e.inTx(ctx, log, func(ctx context.Context, l DateLedger) error {
		booked, err := l.BookedDates(ctx, start, end.AddDays(-1))
		if err != nil {
			return fmt.Errorf("read booked dates: %w", err)
		}
		if len(booked) > 0 {
			return ErrConflict
		}
		// Ascending order: two overlapping requests must take rows in the
		// same order or they can deadlock on each other's partial inserts.
		for _, d := range start.DatesUntil(end) {
			if err := l.InsertDateSlot(ctx, domain.DateSlot{Date: d, BookingID: b.ID}); err != nil {
				return fmt.Errorf("insert date %s: %w", d, err)
			}
		}
		if err := l.InsertBooking(ctx, b); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrConflict), errors.Is(err, domain.ErrDateTaken):
		detected := "read"
		if errors.Is(err, domain.ErrDateTaken) {
			detected = "constraint"
		}
		log.Info("booking.conflict", zap.String("detected_by", detected))
		e.metrics.ObserveOperation(OpBook, OutcomeConflict)
		return domain.Booking{}, ErrConflict
	default:
		log.Error("booking.failed", zap.Error(err))
		e.metrics.ObserveOperation(OpBook, OutcomeFailure)
		return domain.Booking{}, fmt.Errorf("book: %w", err)
	}

	e.metrics.ObserveOperation(OpBook, OutcomeOK)
	log.Info("booking.created")
	e.notify(ctx, log, b.ID, domain.BookingActionBook)
	return b, nil
}

// Cancel removes a booking and frees its days. The returned bool reports
// whether the booking existed.
func (e *ReservationEngine) Cancel(ctx context.Context, bookingID string) (bool, error) {
	log := logx.WithFields(ctx).With(zap.String("op", OpCancel), zap.String("booking_id", bookingID))

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var existed bool
	err := e.inTx(ctx, log, func(ctx context.Context, l DateLedger) error {
		if _, err := l.DeleteDateSlots(ctx, bookingID); err != nil {
			return fmt.Errorf("delete dates: %w", err)
		}
		n, err := l.DeleteBooking(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("delete booking: %w", err)
		}
		existed = n > 0
		return nil
	})
	if err != nil {
		log.Error("booking.cancel_failed", zap.Error(err))
		e.metrics.ObserveOperation(OpCancel, OutcomeFailure)
		return false, fmt.Errorf("cancel: %w", err)
	}

	if existed {
		e.metrics.ObserveOperation(OpCancel, OutcomeOK)
	} else {
		e.metrics.ObserveOperation(OpCancel, OutcomeNotFound)
	}
	log.Info("booking.canceled", zap.Bool("existed", existed))
	e.notify(ctx, log, bookingID, domain.BookingActionCancel)
	return existed, nil
}

// UpdateInfo replaces the contact fields of an existing booking. Dates are
// never touched, so this cannot conflict.
func (e *ReservationEngine) UpdateInfo(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	log := logx.WithFields(ctx).With(zap.String("op", OpUpdate), zap.String("booking_id", b.ID))

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	err := e.inTx(ctx, log, func(ctx context.Context, l DateLedger) error {
		n, err := l.UpdateBookingFields(ctx, b)
		if err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		e.metrics.ObserveOperation(OpUpdate, OutcomeNotFound)
		return domain.Booking{}, ErrNotFound
	default:
		log.Error("booking.update_failed", zap.Error(err))
		e.metrics.ObserveOperation(OpUpdate, OutcomeFailure)
		return domain.Booking{}, fmt.Errorf("update: %w", err)
	}

	e.metrics.ObserveOperation(OpUpdate, OutcomeOK)
	e.notify(ctx, log, b.ID, domain.BookingActionUpdate)
	return b, nil
}

// inTx runs act in a new unit of work: rolled back when act fails, committed
// otherwise. A failed commit has already ended the transaction.
func (e *ReservationEngine) inTx(ctx context.Context, log *zap.Logger, act func(context.Context, DateLedger) error) error {
	tx, err := e.uow.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := act(ctx, tx.Ledger()); err != nil {
		e.rollback(ctx, tx, log)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// rollback is best effort; its error must not hide the one that caused it.
func (e *ReservationEngine) rollback(ctx context.Context, tx UnitOfWork, log *zap.Logger) {
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil {
		log.Warn("tx.rollback_failed", zap.Error(err))
	}
}

func (e *ReservationEngine) notify(ctx context.Context, log *zap.Logger, bookingID string, action domain.BookingAction) {
	ev := domain.BookingEvent{BookingID: bookingID, Action: action, OccurredAt: e.clock.Now()}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.publishTimeout)
	defer cancel()
	if err := e.pub.Publish(pctx, ev); err != nil {
		log.Warn("invalidation.publish_failed", zap.Error(err))
		if e.local != nil {
			e.local.Invalidate()
		}
	}
}

func (e *ReservationEngine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.txTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.txTimeout)
}
