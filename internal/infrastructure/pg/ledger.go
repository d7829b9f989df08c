package pg

import (
	"context"
	"errors"
	"time"

	"booking-service/internal/application"
	"booking-service/internal/domain"
	"booking-service/internal/infrastructure/logx"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const dateKeyConstraint = "booking_date_pkey"

var (
	_ application.DateLedger     = (*Ledger)(nil)
	_ application.SnapshotSource = (*Ledger)(nil)
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Ledger runs booking statements on a transaction, or on the pool when it
// serves snapshot reads.
type Ledger struct{ q querier }

// NewSnapshotSource reads committed booked dates straight from the pool.
func NewSnapshotSource(db *DB) *Ledger { return &Ledger{q: db.Pool} }

func (l *Ledger) BookedDates(ctx context.Context, from, to domain.Date) ([]domain.Date, error) {
	const q = `SELECT date FROM booking_date WHERE date BETWEEN $1 AND $2 ORDER BY date`
	log := logx.L().With(
		zap.String("repo", "booking_date"),
		zap.String("operation", "BookedDates"),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
	log.Debug("sql.query_start")
	rows, err := l.q.Query(ctx, q, from.Time(), to.Time())
	if err != nil {
		log.Error("sql.query_failed", zap.Error(err))
		return nil, err
	}
	defer rows.Close()
	out := []domain.Date{}
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, domain.DateOf(t))
	}
	if err := rows.Err(); err != nil {
		log.Error("sql.query_failed", zap.Error(err))
		return nil, err
	}
	log.Debug("sql.query_success", zap.Int("rows", len(out)))
	return out, nil
}

func (l *Ledger) InsertDateSlot(ctx context.Context, slot domain.DateSlot) error {
	const ins = `INSERT INTO booking_date(date, booking_id) VALUES ($1, $2)`
	_, err := l.exec(ctx, "InsertDateSlot", ins, slot.Date.Time(), slot.BookingID)
	if isDateConflict(err) {
		return domain.ErrDateTaken
	}
	return err
}

func (l *Ledger) DeleteDateSlots(ctx context.Context, bookingID string) (int64, error) {
	const del = `DELETE FROM booking_date WHERE booking_id = $1`
	return l.exec(ctx, "DeleteDateSlots", del, bookingID)
}

func (l *Ledger) InsertBooking(ctx context.Context, b domain.Booking) error {
	const ins = `INSERT INTO booking(id, email, firstname, lastname) VALUES ($1, $2, $3, $4)`
	_, err := l.exec(ctx, "InsertBooking", ins, b.ID, b.Email, b.FirstName, b.LastName)
	return err
}

func (l *Ledger) UpdateBookingFields(ctx context.Context, b domain.Booking) (int64, error) {
	const up = `UPDATE booking SET email = $2, firstname = $3, lastname = $4 WHERE id = $1`
	return l.exec(ctx, "UpdateBookingFields", up, b.ID, b.Email, b.FirstName, b.LastName)
}

func (l *Ledger) DeleteBooking(ctx context.Context, bookingID string) (int64, error) {
	const del = `DELETE FROM booking WHERE id = $1`
	return l.exec(ctx, "DeleteBooking", del, bookingID)
}

func (l *Ledger) exec(ctx context.Context, op, sql string, args ...any) (int64, error) {
	log := logx.L().With(
		zap.String("repo", "booking"),
		zap.String("operation", op),
		zap.String("sql", sql),
	)
	log.Debug("sql.exec_start")
	tag, err := l.q.Exec(ctx, sql, args...)
	if err != nil {
		if isDateConflict(err) {
			log.Debug("sql.exec_unique_violation")
		} else {
			log.Error("sql.exec_failed", zap.Error(err))
		}
		return 0, err
	}
	log.Debug("sql.exec_success", zap.Int64("rows_affected", tag.RowsAffected()))
	return tag.RowsAffected(), nil
}

// isDateConflict reports a unique violation on the booked date key. Other
// constraint failures, like the deferred foreign key, are not conflicts.
func isDateConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == dateKeyConstraint
}
