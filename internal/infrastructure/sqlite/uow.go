package sqlite

import (
	"context"
	"database/sql"

	"booking-service/internal/application"
)

var _ application.UoWFactory = (*UoWFactory)(nil)

type UoWFactory struct{ db *sql.DB }

func NewUoWFactory(db *DB) *UoWFactory { return &UoWFactory{db: db.SQL} }

func (f *UoWFactory) Begin(ctx context.Context) (application.UnitOfWork, error) {
	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &unitOfWork{tx: tx, ledger: &Ledger{q: tx}}, nil
}

type unitOfWork struct {
	tx     *sql.Tx
	ledger *Ledger
}

func (u *unitOfWork) Ledger() application.DateLedger { return u.ledger }

// Commit and Rollback take no context: database/sql binds the transaction to
// the one given to BeginTx.
func (u *unitOfWork) Commit(context.Context) error   { return u.tx.Commit() }
func (u *unitOfWork) Rollback(context.Context) error { return u.tx.Rollback() }
