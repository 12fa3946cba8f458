package uow

import (
	"context"

	"txctl/internal/ports"
	"txctl/internal/txcontrol"
)

// UnitOfWork implements ports.UnitOfWork on the transaction control. Repositories
// join the boundaries through the txdb provider.
type UnitOfWork struct {
	control *txcontrol.Control
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(control *txcontrol.Control) *UnitOfWork {
	return &UnitOfWork{control: control}
}

func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return u.control.Required(ctx, fn)
}

func (u *UnitOfWork) WithNewTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return u.control.RequiresNew(ctx, fn)
}

func (u *UnitOfWork) WithReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return u.control.Build().ReadOnly().Supports(ctx, fn)
}

func (u *UnitOfWork) WithoutTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return u.control.NotSupported(ctx, fn)
}

func (u *UnitOfWork) MarkRollback(ctx context.Context) error {
	return u.control.SetRollbackOnly(ctx)
}

func (u *UnitOfWork) AfterCompletion(ctx context.Context, fn func(committed bool)) error {
	tc := u.control.CurrentContext(ctx)
	if tc == nil {
		return &txcontrol.StateError{Op: "register after completion", Err: txcontrol.ErrNoScope}
	}
	return tc.PostCompletion(func(status txcontrol.Status) error {
		fn(status == txcontrol.Committed)
		return nil
	})
}
