package scope

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"txctl/internal/bootstrap/logging"
	"txctl/internal/errs"
)

// stackKey is unique per Coordinator so that independent coordinators never observe
// each other's coordinations.
type stackKey struct {
	c *Coordinator
}

type Coordinator struct {
	nextID atomic.Uint64
}

func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Begin pushes a new coordination on top of the stack carried by ctx and returns the
// context that carries it. A positive timeout fails the coordination with ErrTimeout
// if it has not ended by then.
func (c *Coordinator) Begin(ctx context.Context, name string, timeout time.Duration) (context.Context, *Coordination, error) {
	if ctx == nil {
		return nil, nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, errs.Wrap(err, "check context")
	}

	co := &Coordination{
		id:     c.nextID.Add(1),
		name:   name,
		parent: c.Peek(ctx),
		vars:   newVariables(),
	}
	if timeout > 0 {
		co.timer = time.AfterFunc(timeout, func() {
			if co.Fail(ErrTimeout) {
				logging.Warn(ctx, "coordination timed out",
					slog.String("coordination", name),
					slog.Duration("timeout", timeout),
				)
			}
		})
	}

	return context.WithValue(ctx, stackKey{c: c}, co), co, nil
}

// Peek returns the innermost coordination of ctx that has not been detached, or nil.
func (c *Coordinator) Peek(ctx context.Context) *Coordination {
	if ctx == nil {
		return nil
	}
	co, _ := ctx.Value(stackKey{c: c}).(*Coordination)
	for co != nil && !co.visible() {
		co = co.parent
	}
	return co
}
