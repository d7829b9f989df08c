package pg

import (
	"context"
	"fmt"

	"booking-service/internal/application"
	"booking-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ application.UoWFactory = (*UoWFactory)(nil)

// UoWFactory begins read-committed transactions on the pool. Read committed
// is enough: the unique date key, not the isolation level, excludes overlaps.
type UoWFactory struct {
	Pool *pgxpool.Pool
}

func NewUoWFactory(db *DB) *UoWFactory { return &UoWFactory{Pool: db.Pool} }

func (f *UoWFactory) Begin(ctx context.Context) (application.UnitOfWork, error) {
	tx, err := f.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, err
	}
	return &unitOfWork{tx: tx, ledger: &Ledger{q: tx}}, nil
}

type unitOfWork struct {
	tx     pgx.Tx
	ledger *Ledger
}

func (u *unitOfWork) Ledger() application.DateLedger { return u.ledger }

// Commit reports a unique violation on the date key surfacing at commit time
// as domain.ErrDateTaken, the same way an insert does.
func (u *unitOfWork) Commit(ctx context.Context) error {
	err := u.tx.Commit(ctx)
	if isDateConflict(err) {
		return fmt.Errorf("%w: %w", domain.ErrDateTaken, err)
	}
	return err
}

func (u *unitOfWork) Rollback(ctx context.Context) error { return u.tx.Rollback(ctx) }
