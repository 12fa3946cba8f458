// Package txdb hands out gorm sessions bound to the ambient transaction.
package txdb

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"gorm.io/gorm"

	"txctl/internal/bootstrap/logging"
	"txctl/internal/errs"
	"txctl/internal/txcontrol"
)

// Provider enlists one gorm transaction per active transaction context. Scopes running
// without a transaction get the plain session.
type Provider struct {
	db      *gorm.DB
	control *txcontrol.Control

	mu sync.Mutex
}

type scopedKey struct {
	p *Provider
}

func NewProvider(db *gorm.DB, control *txcontrol.Control) *Provider {
	return &Provider{db: db, control: control}
}

// DB returns the session to use for ctx. It fails when ctx carries no transaction scope.
func (p *Provider) DB(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tc := p.control.CurrentContext(ctx)
	if tc == nil {
		return nil, errs.Wrap(txcontrol.ErrNoScope, "get database session")
	}
	if tc.Status() == txcontrol.NoTransaction {
		return p.db.WithContext(ctx), nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := scopedKey{p: p}
	if tx, ok := tc.ScopedValue(key).(*gorm.DB); ok {
		return tx.WithContext(ctx), nil
	}
	if !tc.SupportsLocal() {
		return nil, errs.Wrap(txcontrol.ErrLocalUnsupported, "enlist database transaction")
	}

	tx := p.db.WithContext(context.WithoutCancel(ctx)).Begin()
	if tx.Error != nil {
		return nil, errs.Wrap(tx.Error, "begin database transaction")
	}

	res := &resource{tx: tx, readOnly: tc.ReadOnly()}
	if res.readOnly {
		if err := tx.Exec("PRAGMA query_only = ON").Error; err != nil {
			_ = tx.Rollback().Error
			return nil, errs.Wrap(err, "enable query_only")
		}
	}
	if err := tc.RegisterLocalResource(res); err != nil {
		res.release(ctx)
		_ = tx.Rollback().Error
		return nil, errs.Wrap(err, "enlist database transaction")
	}
	tc.PutScopedValue(key, tx)

	logging.Debug(
		logging.WithAttrs(ctx, slog.String("component", "txdb")),
		"database transaction enlisted",
		slog.Bool("read_only", res.readOnly),
	)
	return tx.WithContext(ctx), nil
}

// resource commits or rolls back the enlisted gorm transaction.
type resource struct {
	tx       *gorm.DB
	readOnly bool
}

func (r *resource) Commit(ctx context.Context) error {
	r.release(ctx)
	if err := r.tx.Commit().Error; err != nil {
		return errs.Wrap(err, "commit database transaction")
	}
	return nil
}

func (r *resource) Rollback(ctx context.Context) error {
	r.release(ctx)
	if err := r.tx.Rollback().Error; err != nil {
		return errs.Wrap(err, "rollback database transaction")
	}
	return nil
}

// release turns query_only back off; the connection goes back to the pool afterwards.
func (r *resource) release(ctx context.Context) {
	if !r.readOnly {
		return
	}
	if err := r.tx.Exec("PRAGMA query_only = OFF").Error; err != nil {
		logging.Warn(
			logging.WithAttrs(ctx, slog.String("component", "txdb")),
			"reset query_only failed",
			slog.Any("err", errs.Loggable(err)),
		)
	}
}
