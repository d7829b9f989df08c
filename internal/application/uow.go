package application

import "context"

// UnitOfWork is one open storage transaction. Exactly one of Commit or
// Rollback must be called; after that the unit is unusable.
type UnitOfWork interface {
	Ledger() DateLedger
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}
