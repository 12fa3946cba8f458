package txcontrol

import (
	"context"
	"log/slog"
	"sync"

	"txctl/internal/bootstrap/logging"
	"txctl/internal/errs"
)

// completion holds what both context variants share: scoped values, completion
// callbacks and the first unexpected failure. The callback lists are appended only by
// the call chain that owns the scope.
type completion struct {
	logCtx context.Context

	scopedMu sync.RWMutex
	scoped   map[any]any

	preCompletion  []func() error
	postCompletion []func(Status) error

	failureMu sync.Mutex
	failure   error
}

func newCompletion(logCtx context.Context) completion {
	return completion{
		logCtx: logCtx,
		scoped: make(map[any]any),
	}
}

func (c *completion) ScopedValue(key any) any {
	c.scopedMu.RLock()
	defer c.scopedMu.RUnlock()
	return c.scoped[key]
}

func (c *completion) PutScopedValue(key, value any) {
	c.scopedMu.Lock()
	defer c.scopedMu.Unlock()
	c.scoped[key] = value
}

// recordFailure keeps the first failure; later ones are only logged.
func (c *completion) recordFailure(err error) {
	if err == nil {
		return
	}

	c.failureMu.Lock()
	first := c.failure == nil
	if first {
		c.failure = err
	}
	c.failureMu.Unlock()

	if !first {
		logging.Warn(c.logCtx, "subsequent transaction failure suppressed", slog.Any("err", errs.Loggable(err)))
	}
}

func (c *completion) firstFailure() error {
	c.failureMu.Lock()
	defer c.failureMu.Unlock()
	return c.failure
}

// beforeCompletion runs every pre-completion job. onFailure runs once if any job failed.
func (c *completion) beforeCompletion(onFailure func()) {
	failed := false
	for _, job := range c.preCompletion {
		if err := call(job); err != nil {
			failed = true
			c.recordFailure(errs.Wrap(err, "pre-completion callback"))
		}
	}
	if failed && onFailure != nil {
		onFailure()
	}
}

func (c *completion) afterCompletion(status Status) {
	for _, job := range c.postCompletion {
		job := job
		if err := call(func() error { return job(status) }); err != nil {
			c.recordFailure(errs.Wrap(err, "post-completion callback"))
		}
	}
}

// call runs fn and turns a panic into an error so that completion always reaches a
// final status.
func call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.FromPanic(r)
		}
	}()
	return fn()
}
