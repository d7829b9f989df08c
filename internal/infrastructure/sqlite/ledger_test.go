package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"booking-service/internal/application"
	"booking-service/internal/domain"
	"booking-service/internal/infrastructure/sqlite"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.BookingEvent) error { return nil }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var guest = domain.Booking{Email: "guest@example.com", FirstName: "Ada", LastName: "Lovelace"}

func openTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "booking.db"), 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, sqlite.RunMigrations(db))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestLedger_InsertDateSlotConflict(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()
	uow := sqlite.NewUoWFactory(db)
	day := domain.NewDate(2030, 1, 10)

	tx, err := uow.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Ledger().InsertDateSlot(ctx, domain.DateSlot{Date: day, BookingID: "a"}))
	require.NoError(t, tx.Ledger().InsertBooking(ctx, domain.Booking{ID: "a", Email: "a@example.com"}))
	require.NoError(t, tx.Commit(ctx))

	tx, err = uow.Begin(ctx)
	require.NoError(t, err)
	err = tx.Ledger().InsertDateSlot(ctx, domain.DateSlot{Date: day, BookingID: "b"})
	require.ErrorIs(t, err, domain.ErrDateTaken)
	require.NoError(t, tx.Rollback(ctx))
}

func TestLedger_BookedDatesOrderedAndBounded(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()

	tx, err := sqlite.NewUoWFactory(db).Begin(ctx)
	require.NoError(t, err)
	for _, d := range []domain.Date{domain.NewDate(2030, 1, 12), domain.NewDate(2030, 1, 9), domain.NewDate(2030, 1, 10)} {
		require.NoError(t, tx.Ledger().InsertDateSlot(ctx, domain.DateSlot{Date: d, BookingID: "a"}))
	}
	require.NoError(t, tx.Ledger().InsertBooking(ctx, domain.Booking{ID: "a"}))
	require.NoError(t, tx.Commit(ctx))

	got, err := sqlite.NewSnapshotSource(db).BookedDates(ctx, domain.NewDate(2030, 1, 10), domain.NewDate(2030, 1, 12))
	require.NoError(t, err)
	require.Equal(t, []domain.Date{domain.NewDate(2030, 1, 10), domain.NewDate(2030, 1, 12)}, got)

	got, err = sqlite.NewSnapshotSource(db).BookedDates(ctx, domain.NewDate(2031, 1, 1), domain.NewDate(2031, 2, 1))
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestLedger_OrphanSlotFailsAtCommit(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()

	tx, err := sqlite.NewUoWFactory(db).Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Ledger().InsertDateSlot(ctx, domain.DateSlot{Date: domain.NewDate(2030, 2, 1), BookingID: "ghost"}))
	require.Error(t, tx.Commit(ctx))

	got, err := sqlite.NewSnapshotSource(db).BookedDates(ctx, domain.NewDate(2030, 1, 1), domain.NewDate(2030, 12, 31))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestEngine_TwentyConcurrentBookings(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	eng := application.NewReservationEngine(sqlite.NewUoWFactory(db), nopPublisher{})

	const n = 20
	var ok, conflicts atomic.Int32
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := eng.Book(context.Background(), guest, domain.NewDate(2030, 5, 10), domain.NewDate(2030, 5, 12))
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, application.ErrConflict):
				conflicts.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, 1, ok.Load())
	require.EqualValues(t, n-1, conflicts.Load())
}

func TestEngine_ScenarioWithCache(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()
	clock := fixedClock{t: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)}
	cache := application.NewAvailabilityCache(sqlite.NewSnapshotSource(db), application.WithCacheClock(clock))
	eng := application.NewReservationEngine(sqlite.NewUoWFactory(db), nopPublisher{}, application.WithClock(clock))

	b, err := eng.Book(ctx, guest, domain.NewDate(2024, 6, 10), domain.NewDate(2024, 6, 12))
	require.NoError(t, err)
	require.NotEmpty(t, b.ID)

	_, err = eng.Book(ctx, guest, domain.NewDate(2024, 6, 11), domain.NewDate(2024, 6, 13))
	require.ErrorIs(t, err, application.ErrConflict)

	avail, err := cache.AvailableDates(ctx, domain.NewDate(2024, 6, 10), domain.NewDate(2024, 6, 13))
	require.NoError(t, err)
	require.Equal(t, []domain.Date{domain.NewDate(2024, 6, 12)}, avail)

	// canceled days stay unavailable until the snapshot is replaced
	existed, err := eng.Cancel(ctx, b.ID)
	require.NoError(t, err)
	require.True(t, existed)
	avail, err = cache.AvailableDates(ctx, domain.NewDate(2024, 6, 10), domain.NewDate(2024, 6, 13))
	require.NoError(t, err)
	require.Equal(t, []domain.Date{domain.NewDate(2024, 6, 12)}, avail)

	cache.Invalidate()
	avail, err = cache.AvailableDates(ctx, domain.NewDate(2024, 6, 10), domain.NewDate(2024, 6, 13))
	require.NoError(t, err)
	require.Len(t, avail, 3)
}

func TestEngine_UpdateUnknownLeavesStorageUnchanged(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()
	eng := application.NewReservationEngine(sqlite.NewUoWFactory(db), nopPublisher{})

	b, err := eng.Book(ctx, guest, domain.NewDate(2030, 7, 1), domain.NewDate(2030, 7, 3))
	require.NoError(t, err)

	_, err = eng.UpdateInfo(ctx, domain.Booking{ID: "missing", Email: "x@example.com"})
	require.ErrorIs(t, err, application.ErrNotFound)

	var email string
	require.NoError(t, db.SQL.QueryRowContext(ctx, `SELECT email FROM booking WHERE id = ?`, b.ID).Scan(&email))
	require.Equal(t, guest.Email, email)
	var count int
	require.NoError(t, db.SQL.QueryRowContext(ctx, `SELECT COUNT(*) FROM booking`).Scan(&count))
	require.Equal(t, 1, count)
}
