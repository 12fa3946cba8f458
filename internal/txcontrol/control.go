package txcontrol

import (
	"context"
	"time"

	"txctl/internal/scope"
)

// DefaultScopeTimeout bounds how long a scope begun by this package may stay open.
const DefaultScopeTimeout = 30 * time.Second

// contextKey is the coordination variable holding the scope's transaction context.
type contextKey struct{}

// ContextListener is told about every context created by a Control, before the work
// runs, so it can register completion callbacks.
type ContextListener func(ctx context.Context, p Propagation, tc TransactionContext)

type Option func(*Control)

func WithScopeTimeout(d time.Duration) Option {
	return func(c *Control) { c.scopeTimeout = d }
}

func WithLocalResourceSupport(s LocalResourceSupport) Option {
	return func(c *Control) { c.localSupport = s }
}

func WithContextListener(l ContextListener) Option {
	return func(c *Control) {
		if l != nil {
			c.listeners = append(c.listeners, l)
		}
	}
}

// Control is the entry point for transactional work. It is safe for concurrent use;
// the ambient transaction is resolved from the context of each call.
type Control struct {
	coordinator  *scope.Coordinator
	scopeTimeout time.Duration
	localSupport LocalResourceSupport
	listeners    []ContextListener
}

func New(coordinator *scope.Coordinator, opts ...Option) *Control {
	if coordinator == nil {
		coordinator = scope.NewCoordinator()
	}
	c := &Control{
		coordinator:  coordinator,
		scopeTimeout: DefaultScopeTimeout,
		localSupport: LocalResourcesEnabled,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Control) Build() *Builder {
	return &Builder{control: c}
}

func (c *Control) Run(ctx context.Context, p Propagation, work Work) error {
	return c.Build().Run(ctx, p, work)
}

func (c *Control) Required(ctx context.Context, work Work) error {
	return c.Build().Required(ctx, work)
}

func (c *Control) RequiresNew(ctx context.Context, work Work) error {
	return c.Build().RequiresNew(ctx, work)
}

func (c *Control) Supports(ctx context.Context, work Work) error {
	return c.Build().Supports(ctx, work)
}

func (c *Control) NotSupported(ctx context.Context, work Work) error {
	return c.Build().NotSupported(ctx, work)
}

// CurrentContext returns the transaction context of the innermost live scope, or nil.
func (c *Control) CurrentContext(ctx context.Context) TransactionContext {
	_, tran := c.ambient(ctx)
	if tran == nil {
		return nil
	}
	return tran
}

func (c *Control) ActiveTransaction(ctx context.Context) bool {
	tc := c.CurrentContext(ctx)
	return tc != nil && tc.Status() != NoTransaction
}

func (c *Control) ActiveScope(ctx context.Context) bool {
	return c.CurrentContext(ctx) != nil
}

func (c *Control) RollbackOnly(ctx context.Context) (bool, error) {
	tc := c.CurrentContext(ctx)
	if tc == nil {
		return false, &StateError{Op: "get rollback only", Err: ErrNoScope}
	}
	return tc.RollbackOnly()
}

func (c *Control) SetRollbackOnly(ctx context.Context) error {
	tc := c.CurrentContext(ctx)
	if tc == nil {
		return &StateError{Op: "set rollback only", Err: ErrNoScope}
	}
	return tc.SetRollbackOnly()
}

func (c *Control) ambient(ctx context.Context) (*scope.Coordination, scopedContext) {
	co := c.coordinator.Peek(ctx)
	if co == nil {
		return nil, nil
	}
	v, ok := co.Variables().Get(contextKey{})
	if !ok {
		return co, nil
	}
	tran, _ := v.(scopedContext)
	return co, tran
}
