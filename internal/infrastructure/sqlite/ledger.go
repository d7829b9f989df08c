package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"booking-service/internal/application"
	"booking-service/internal/domain"
	"booking-service/internal/infrastructure/logx"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var (
	_ application.DateLedger     = (*Ledger)(nil)
	_ application.SnapshotSource = (*Ledger)(nil)
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type Ledger struct{ q querier }

func NewSnapshotSource(db *DB) *Ledger { return &Ledger{q: db.SQL} }

func (l *Ledger) BookedDates(ctx context.Context, from, to domain.Date) ([]domain.Date, error) {
	const q = `SELECT date FROM booking_date WHERE date BETWEEN ? AND ? ORDER BY date`
	rows, err := l.q.QueryContext(ctx, q, from.String(), to.String())
	if err != nil {
		logx.L().Error("sql.query_failed", zap.String("repo", "booking_date"), zap.Error(err))
		return nil, err
	}
	defer rows.Close()
	out := []domain.Date{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		d, err := domain.ParseDate(s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (l *Ledger) InsertDateSlot(ctx context.Context, slot domain.DateSlot) error {
	const ins = `INSERT INTO booking_date(date, booking_id) VALUES (?, ?)`
	_, err := l.exec(ctx, "InsertDateSlot", ins, slot.Date.String(), slot.BookingID)
	if isKeyViolation(err) {
		return domain.ErrDateTaken
	}
	return err
}

func (l *Ledger) DeleteDateSlots(ctx context.Context, bookingID string) (int64, error) {
	return l.exec(ctx, "DeleteDateSlots", `DELETE FROM booking_date WHERE booking_id = ?`, bookingID)
}

func (l *Ledger) InsertBooking(ctx context.Context, b domain.Booking) error {
	const ins = `INSERT INTO booking(id, email, firstname, lastname) VALUES (?, ?, ?, ?)`
	_, err := l.exec(ctx, "InsertBooking", ins, b.ID, b.Email, b.FirstName, b.LastName)
	return err
}

func (l *Ledger) UpdateBookingFields(ctx context.Context, b domain.Booking) (int64, error) {
	const up = `UPDATE booking SET email = ?, firstname = ?, lastname = ? WHERE id = ?`
	return l.exec(ctx, "UpdateBookingFields", up, b.Email, b.FirstName, b.LastName, b.ID)
}

func (l *Ledger) DeleteBooking(ctx context.Context, bookingID string) (int64, error) {
	return l.exec(ctx, "DeleteBooking", `DELETE FROM booking WHERE id = ?`, bookingID)
}

func (l *Ledger) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	log := logx.L().With(zap.String("repo", "booking"), zap.String("operation", op))
	log.Debug("sql.exec_start")
	res, err := l.q.ExecContext(ctx, query, args...)
	if err != nil {
		if !isKeyViolation(err) {
			log.Error("sql.exec_failed", zap.Error(err))
		}
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	log.Debug("sql.exec_success", zap.Int64("rows_affected", n))
	return n, nil
}

// isKeyViolation reports a primary key or unique violation. booking_date has
// no other key, so on date inserts this means the day is taken.
func isKeyViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || se.ExtendedCode == sqlite3.ErrConstraintUnique
}
