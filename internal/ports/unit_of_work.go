package ports

import "context"

// UnitOfWork defines transaction boundaries for usecases.
//
// It is callback-style: returning an error fails the boundary, returning nil lets it
// complete. Boundaries nest through the context handed to fn, so repositories called
// with that context join the transaction.
type UnitOfWork interface {
	// WithTx joins the ambient transaction or starts one.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// WithNewTx runs fn in its own transaction, whatever the caller is doing.
	WithNewTx(ctx context.Context, fn func(ctx context.Context) error) error
	// WithReadOnly joins any ambient scope, or runs without a transaction.
	WithReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
	// WithoutTx runs fn outside any transaction.
	WithoutTx(ctx context.Context, fn func(ctx context.Context) error) error
	// MarkRollback makes the ambient transaction roll back without failing the call.
	MarkRollback(ctx context.Context) error
	// AfterCompletion registers fn to learn whether the ambient transaction committed.
	AfterCompletion(ctx context.Context, fn func(committed bool)) error
}
