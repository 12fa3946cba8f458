package txcontrol

import (
	"context"
	"log/slog"
	"sync/atomic"

	"txctl/internal/bootstrap/logging"
	"txctl/internal/errs"
	"txctl/internal/scope"
)

// noTxContext backs scopes that run without a transaction. It only offers completion
// callbacks and scoped values.
type noTxContext struct {
	completion

	finished atomic.Bool
}

var _ scopedContext = (*noTxContext)(nil)

func newNoTxContext(ctx context.Context, co *scope.Coordination) (*noTxContext, error) {
	c := &noTxContext{
		completion: newCompletion(logging.WithAttrs(ctx, slog.String("component", "txcontrol"))),
	}

	finish := func(co *scope.Coordination) error { return c.finish(co) }
	if err := co.AddParticipant(scope.ParticipantFuncs{OnEnded: finish, OnFailed: finish}); err != nil {
		return nil, errs.Wrap(err, "register scope participant")
	}
	return c, nil
}

func (c *noTxContext) TransactionKey() any { return nil }

func (c *noTxContext) Status() Status { return NoTransaction }

func (c *noTxContext) ReadOnly() bool { return false }

func (c *noTxContext) SupportsLocal() bool { return false }

func (c *noTxContext) SupportsXA() bool { return false }

func (c *noTxContext) RollbackOnly() (bool, error) {
	return false, &StateError{Op: "get rollback only", Status: NoTransaction, Err: ErrNoTransaction}
}

func (c *noTxContext) SetRollbackOnly() error {
	return &StateError{Op: "set rollback only", Status: NoTransaction, Err: ErrNoTransaction}
}

func (c *noTxContext) markRollbackOnly() {}

func (c *noTxContext) PreCompletion(job func() error) error {
	if job == nil {
		return errs.Wrap(ErrIllegalState, "pre-completion job is required")
	}
	if c.finished.Load() {
		return stateError("register pre-completion callback", NoTransaction)
	}
	c.preCompletion = append(c.preCompletion, job)
	return nil
}

func (c *noTxContext) PostCompletion(job func(Status) error) error {
	if job == nil {
		return errs.Wrap(ErrIllegalState, "post-completion job is required")
	}
	if c.finished.Load() {
		return stateError("register post-completion callback", NoTransaction)
	}
	c.postCompletion = append(c.postCompletion, job)
	return nil
}

func (c *noTxContext) RegisterLocalResource(LocalResource) error {
	return &StateError{Op: "register local resource", Status: NoTransaction, Err: ErrNoTransaction}
}

func (c *noTxContext) RegisterXAResource(any, string) error {
	return &StateError{Op: "register XA resource", Status: NoTransaction, Err: ErrNoTransaction}
}

// finish runs the callbacks. Success and failure of the scope are treated alike since
// there is nothing to commit.
func (c *noTxContext) finish(co *scope.Coordination) error {
	if !c.finished.CompareAndSwap(false, true) {
		return stateError("finish", NoTransaction)
	}
	c.beforeCompletion(nil)
	co.Detach()
	c.afterCompletion(NoTransaction)
	return c.firstFailure()
}
