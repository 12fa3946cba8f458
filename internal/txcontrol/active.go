package txcontrol

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"txctl/internal/bootstrap/logging"
	"txctl/internal/errs"
	"txctl/internal/scope"
)

// activeContext is a resource-local transaction. Status changes go through
// compare-and-swap loops so SetRollbackOnly can be called from other goroutines that
// hold a reference to the context.
type activeContext struct {
	completion

	key       uuid.UUID
	readOnly  bool
	support   LocalResourceSupport
	status    atomic.Int32
	finished  atomic.Bool
	resources resourceRegistry
}

var _ scopedContext = (*activeContext)(nil)

func newActiveContext(ctx context.Context, co *scope.Coordination, readOnly bool, support LocalResourceSupport) (*activeContext, error) {
	key := uuid.New()
	c := &activeContext{
		completion: newCompletion(logging.WithAttrs(ctx,
			slog.String("component", "txcontrol"),
			slog.String("tx_key", key.String()),
		)),
		key:      key,
		readOnly: readOnly,
		support:  support,
	}
	c.status.Store(int32(Active))

	if err := co.AddParticipant(scope.ParticipantFuncs{
		OnEnded: func(co *scope.Coordination) error {
			return c.finish(co)
		},
		OnFailed: func(co *scope.Coordination) error {
			c.markRollbackOnly()
			return c.finish(co)
		},
	}); err != nil {
		return nil, errs.Wrap(err, "register transaction participant")
	}
	return c, nil
}

func (c *activeContext) TransactionKey() any { return c.key }

func (c *activeContext) Status() Status { return Status(c.status.Load()) }

func (c *activeContext) ReadOnly() bool { return c.readOnly }

func (c *activeContext) SupportsLocal() bool { return c.support != LocalResourcesDisabled }

func (c *activeContext) SupportsXA() bool { return false }

func (c *activeContext) RollbackOnly() (bool, error) {
	switch c.Status() {
	case MarkedRollback, RollingBack, RolledBack:
		return true, nil
	default:
		return false, nil
	}
}

func (c *activeContext) SetRollbackOnly() error {
	for {
		status := c.Status()
		switch status {
		case Active:
			if c.status.CompareAndSwap(int32(Active), int32(MarkedRollback)) {
				return nil
			}
		case MarkedRollback, RollingBack, RolledBack:
			return nil
		case Committing:
			return &StateError{Op: "set rollback only", Status: status, Err: errs.Wrap(ErrIllegalState, "the transaction is already being committed")}
		case Committed:
			return &StateError{Op: "set rollback only", Status: status, Err: errs.Wrap(ErrIllegalState, "the transaction is already committed")}
		default:
			return stateError("set rollback only", status)
		}
	}
}

// markRollbackOnly is SetRollbackOnly for internal callers: it never fails and does
// nothing once completion has started.
func (c *activeContext) markRollbackOnly() {
	for {
		if c.Status() != Active {
			return
		}
		if c.status.CompareAndSwap(int32(Active), int32(MarkedRollback)) {
			return
		}
	}
}

func (c *activeContext) PreCompletion(job func() error) error {
	if job == nil {
		return errs.Wrap(ErrIllegalState, "pre-completion job is required")
	}
	if status := c.Status(); status > MarkedRollback {
		return stateError("register pre-completion callback", status)
	}
	c.preCompletion = append(c.preCompletion, job)
	return nil
}

func (c *activeContext) PostCompletion(job func(Status) error) error {
	if job == nil {
		return errs.Wrap(ErrIllegalState, "post-completion job is required")
	}
	if status := c.Status(); status.Terminal() {
		return stateError("register post-completion callback", status)
	}
	c.postCompletion = append(c.postCompletion, job)
	return nil
}

func (c *activeContext) RegisterLocalResource(resource LocalResource) error {
	if resource == nil {
		return errs.Wrap(ErrIllegalState, "local resource is required")
	}
	if status := c.Status(); status > MarkedRollback {
		return stateError("register local resource", status)
	}

	switch c.support {
	case LocalResourcesDisabled:
		return ErrLocalUnsupported
	case LocalResourcesEnforceSingle:
		if c.resources.len() > 0 {
			return ErrSingleLocal
		}
	}
	c.resources.add(resource)
	return nil
}

func (c *activeContext) RegisterXAResource(any, string) error {
	return ErrXAUnsupported
}

// finish drives the transaction to COMMITTED or ROLLED_BACK and returns the first
// unexpected failure raised by a callback or resource. Pre-completion jobs still see
// the transaction through the scope's context; co is detached before the resources
// complete.
func (c *activeContext) finish(co *scope.Coordination) error {
	if !c.finished.CompareAndSwap(false, true) {
		return stateError("finish", c.Status())
	}

	resourceCtx := context.WithoutCancel(c.logCtx)
	c.beforeCompletion(c.markRollbackOnly)
	co.Detach()

	final := RolledBack
	if c.beginCommit() {
		ok := c.resources.commitAll(resourceCtx, c.recordFailure, func() {
			c.transition(Committing, RollingBack)
		})
		if ok {
			c.transition(Committing, Committed)
			final = Committed
		} else {
			c.transition(RollingBack, RolledBack)
		}
	} else {
		c.resources.rollbackAll(resourceCtx, c.recordFailure)
		c.transition(RollingBack, RolledBack)
	}

	logging.Debug(c.logCtx, "transaction completed",
		slog.String("status", final.String()),
		slog.Bool("read_only", c.readOnly),
	)

	c.afterCompletion(final)
	return c.firstFailure()
}

// beginCommit moves an ACTIVE transaction to COMMITTING, or a rollback-only one to
// ROLLING_BACK, and reports whether the commit path was taken. A concurrent
// SetRollbackOnly that wins the race sends the transaction down the rollback path.
func (c *activeContext) beginCommit() bool {
	for {
		switch status := c.Status(); status {
		case Active:
			if c.status.CompareAndSwap(int32(Active), int32(Committing)) {
				return true
			}
		case MarkedRollback:
			if c.status.CompareAndSwap(int32(MarkedRollback), int32(RollingBack)) {
				return false
			}
		default:
			return false
		}
	}
}

func (c *activeContext) transition(from, to Status) {
	if !c.status.CompareAndSwap(int32(from), int32(to)) {
		logging.Error(c.logCtx, "unexpected transaction status transition",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
			slog.String("actual", c.Status().String()),
		)
	}
}
