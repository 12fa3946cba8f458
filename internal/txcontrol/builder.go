package txcontrol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"txctl/internal/bootstrap/logging"
	"txctl/internal/errs"
	"txctl/internal/scope"
)

// Work is a unit of work run inside a scope. The context it receives carries the scope
// and must be passed to nested calls for them to see the ambient transaction.
type Work func(ctx context.Context) error

// Builder configures one transactional call. It is not safe for concurrent use; get a
// fresh one from Control.Build for every call site.
type Builder struct {
	control       *Control
	readOnly      bool
	rollbackFor   []error
	noRollbackFor []error
}

// ReadOnly hints to resource providers that the transaction will not write.
func (b *Builder) ReadOnly() *Builder {
	b.readOnly = true
	return b
}

// RollbackFor lists errors that always roll back, overriding NoRollbackFor.
func (b *Builder) RollbackFor(targets ...error) *Builder {
	b.rollbackFor = append(b.rollbackFor, targets...)
	return b
}

// NoRollbackFor lists errors (matched with errors.Is) that are returned to the caller
// without failing the scope, so the transaction still commits.
func (b *Builder) NoRollbackFor(targets ...error) *Builder {
	b.noRollbackFor = append(b.noRollbackFor, targets...)
	return b
}

func (b *Builder) Required(ctx context.Context, work Work) error {
	return b.Run(ctx, Required, work)
}

func (b *Builder) RequiresNew(ctx context.Context, work Work) error {
	return b.Run(ctx, RequiresNew, work)
}

func (b *Builder) Supports(ctx context.Context, work Work) error {
	return b.Run(ctx, Supports, work)
}

func (b *Builder) NotSupported(ctx context.Context, work Work) error {
	return b.Run(ctx, NotSupported, work)
}

// Run executes work with the given propagation.
//
// When work fails, the scope is failed (unless a NoRollbackFor rule matches) and the
// error is returned unchanged, except when this call owns the scope and ending it
// rolled the transaction back: the error then comes back as a *RolledBackError whose
// cause is the work error.
func (b *Builder) Run(ctx context.Context, p Propagation, work Work) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if work == nil {
		return errors.New("work is required")
	}
	if err := b.checkRules(); err != nil {
		return err
	}

	sc, err := b.enter(ctx, p)
	if err != nil {
		return err
	}
	return b.doWork(sc, work)
}

// txScope is the scope a call runs in and whether the call owns it.
type txScope struct {
	ctx          context.Context
	coordination *scope.Coordination
	tran         scopedContext
	owned        bool
}

func (b *Builder) enter(ctx context.Context, p Propagation) (txScope, error) {
	switch p {
	case Required:
		return b.required(ctx)
	case RequiresNew:
		return b.begin(ctx, p, b.newActive)
	case Supports:
		return b.supports(ctx)
	case NotSupported:
		return b.notSupported(ctx)
	default:
		return txScope{}, fmt.Errorf("unknown propagation %v", p)
	}
}

func (b *Builder) required(ctx context.Context) (txScope, error) {
	if co, tran := b.control.ambient(ctx); tran != nil && tran.Status() != NoTransaction {
		return txScope{ctx: ctx, coordination: co, tran: tran}, nil
	}
	return b.begin(ctx, Required, b.newActive)
}

func (b *Builder) supports(ctx context.Context) (txScope, error) {
	if co, tran := b.control.ambient(ctx); tran != nil {
		return txScope{ctx: ctx, coordination: co, tran: tran}, nil
	}
	return b.begin(ctx, Supports, newNoTx)
}

func (b *Builder) notSupported(ctx context.Context) (txScope, error) {
	if co, tran := b.control.ambient(ctx); tran != nil && tran.Status() == NoTransaction {
		return txScope{ctx: ctx, coordination: co, tran: tran}, nil
	}
	return b.begin(ctx, NotSupported, newNoTx)
}

type contextFactory func(ctx context.Context, co *scope.Coordination) (scopedContext, error)

func (b *Builder) newActive(ctx context.Context, co *scope.Coordination) (scopedContext, error) {
	return newActiveContext(ctx, co, b.readOnly, b.control.localSupport)
}

func newNoTx(ctx context.Context, co *scope.Coordination) (scopedContext, error) {
	return newNoTxContext(ctx, co)
}

// begin starts a scope owned by this call and installs a new context in it. If the
// context cannot be installed the scope is ended before returning.
func (b *Builder) begin(ctx context.Context, p Propagation, create contextFactory) (txScope, error) {
	scopeCtx, co, err := b.control.coordinator.Begin(ctx, p.coordinationName(), b.control.scopeTimeout)
	if err != nil {
		return txScope{}, &Error{Msg: "begin transaction scope", Cause: err}
	}

	tran, err := create(scopeCtx, co)
	if err != nil {
		if endErr := co.End(scopeCtx); endErr != nil {
			logging.Warn(scopeCtx, "end scope after failed begin", slog.Any("err", errs.Loggable(endErr)))
		}
		return txScope{}, &Error{Msg: "create transaction context", Cause: err}
	}
	co.Variables().Put(contextKey{}, tran)

	key := ""
	if k := tran.TransactionKey(); k != nil {
		key = fmt.Sprint(k)
	}
	scopeCtx = logging.WithTransaction(scopeCtx, key, p.String())
	logging.Debug(scopeCtx, "transaction scope begun", slog.Bool("read_only", b.readOnly))

	for _, listener := range b.control.listeners {
		listener(scopeCtx, p, tran)
	}

	return txScope{ctx: scopeCtx, coordination: co, tran: tran, owned: true}, nil
}

func (b *Builder) doWork(sc txScope, work Work) (err error) {
	completed := false
	defer func() {
		if completed {
			return
		}
		// work panicked or called runtime.Goexit; the scope still has to be decided.
		r := recover()
		cause := errs.FromPanic(r)
		if cause == nil {
			cause = errors.New("work exited without returning")
		}
		sc.coordination.Fail(cause)
		sc.tran.markRollbackOnly()
		if sc.owned {
			if endErr := sc.coordination.End(sc.ctx); endErr != nil && !scope.IsFailed(endErr) {
				logging.Warn(sc.ctx, "end scope after panic", slog.Any("err", errs.Loggable(endErr)))
			}
		}
		if r != nil {
			panic(r)
		}
	}()

	workErr := work(sc.ctx)
	completed = true

	if workErr != nil {
		return b.workFailed(sc, workErr)
	}
	return b.workDone(sc)
}

func (b *Builder) workFailed(sc txScope, workErr error) error {
	if b.requiresRollback(workErr) {
		sc.coordination.Fail(workErr)
		sc.tran.markRollbackOnly()
	}
	if !sc.owned {
		return workErr
	}

	endErr := sc.coordination.End(sc.ctx)
	if first := sc.tran.firstFailure(); first != nil {
		logging.Warn(sc.ctx, "transaction completion failed after work error", slog.Any("err", errs.Loggable(first)))
	}
	if scope.IsFailed(endErr) && sc.tran.Status() != NoTransaction {
		return &RolledBackError{Cause: workErr}
	}
	return workErr
}

func (b *Builder) workDone(sc txScope) error {
	if !sc.owned {
		return nil
	}

	endErr := sc.coordination.End(sc.ctx)
	if endErr == nil {
		return nil
	}

	first := sc.tran.firstFailure()
	var se *scope.Error
	if errors.As(endErr, &se) && se.Kind == scope.KindFailed {
		if sc.tran.Status() == NoTransaction {
			// Whoever failed the scope has already returned that error.
			if first != nil {
				return &Error{Msg: "scope completion failed", Cause: first}
			}
			return nil
		}
		if first != nil {
			logging.Warn(sc.ctx, "transaction completion failed", slog.Any("err", errs.Loggable(first)))
		}
		return &RolledBackError{Cause: se.Cause}
	}

	if first != nil {
		if sc.tran.Status() == RolledBack {
			return &RolledBackError{Cause: first}
		}
		return &Error{Msg: "transaction completion failed", Cause: first}
	}
	return &Error{Msg: "end transaction scope", Cause: endErr}
}

func (b *Builder) requiresRollback(err error) bool {
	if !matchesAny(err, b.noRollbackFor) {
		return true
	}
	return matchesAny(err, b.rollbackFor)
}

func (b *Builder) checkRules() error {
	var duplicates []error
	for _, r := range b.rollbackFor {
		for _, n := range b.noRollbackFor {
			if errors.Is(r, n) {
				duplicates = append(duplicates, r)
			}
		}
	}
	if len(duplicates) > 0 {
		return fmt.Errorf("%w: %v", ErrRollbackRules, duplicates)
	}
	return nil
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
