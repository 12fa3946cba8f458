package txcontrol

import (
	"context"
	"log/slog"

	"txctl/internal/bootstrap/logging"
	"txctl/internal/errs"
)

// resourceRegistry is the ordered set of local resources enlisted in one transaction.
// It is drained once, by commitAll or rollbackAll.
type resourceRegistry struct {
	resources []LocalResource
	drained   bool
}

func (r *resourceRegistry) add(res LocalResource) {
	r.resources = append(r.resources, res)
}

func (r *resourceRegistry) len() int {
	return len(r.resources)
}

func (r *resourceRegistry) drain() []LocalResource {
	if r.drained {
		return nil
	}
	r.drained = true
	out := r.resources
	r.resources = nil
	return out
}

// commitAll commits resources in order. After the first failure no further resource
// is committed: the failing one is left alone and every later one is rolled back.
// onFirstFailure runs before those rollbacks start. It reports whether every
// resource committed.
func (r *resourceRegistry) commitAll(ctx context.Context, record func(error), onFirstFailure func()) bool {
	committed := true
	for i, res := range r.drain() {
		res := res
		if !committed {
			if err := call(func() error { return res.Rollback(ctx) }); err != nil {
				logResourceFailure(ctx, "rollback", i, err)
				record(err)
			}
			continue
		}

		if err := call(func() error { return res.Commit(ctx) }); err != nil {
			logResourceFailure(ctx, "commit", i, err)
			record(err)
			committed = false
			if onFirstFailure != nil {
				onFirstFailure()
			}
		}
	}
	return committed
}

// rollbackAll rolls every resource back in order; a failure never stops the others.
func (r *resourceRegistry) rollbackAll(ctx context.Context, record func(error)) {
	for i, res := range r.drain() {
		res := res
		if err := call(func() error { return res.Rollback(ctx) }); err != nil {
			logResourceFailure(ctx, "rollback", i, err)
			record(err)
		}
	}
}

func logResourceFailure(ctx context.Context, op string, index int, err error) {
	logging.Warn(ctx, "local resource "+op+" failed",
		slog.Int("resource_index", index),
		slog.Any("err", errs.Loggable(err)),
	)
}
