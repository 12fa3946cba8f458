package ports

import (
	"context"
	"time"
)

// Cache defines a key-value capability for usecases. The SQLite adapter joins the
// ambient transaction, so values written inside a rolled back transaction disappear
// with it.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
