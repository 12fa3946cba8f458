package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"txctl/internal/errs"
	"txctl/internal/infrastructure/persistence/sqlite/model"
	"txctl/internal/infrastructure/persistence/sqlite/txdb"
	"txctl/internal/ports"
)

// SQLiteCache stores values in the kv table. Reads and writes go through the session of
// the ambient transaction.
type SQLiteCache struct {
	sessions *txdb.Provider
	now      func() time.Time
}

var _ ports.Cache = (*SQLiteCache)(nil)

func NewSQLiteCache(sessions *txdb.Provider) *SQLiteCache {
	return &SQLiteCache{
		sessions: sessions,
		now:      time.Now,
	}
}

func (c *SQLiteCache) Get(ctx context.Context, key string) (string, bool, error) {
	db, trimmedKey, err := c.session(ctx, key)
	if err != nil {
		return "", false, err
	}

	var row model.KV
	if err := db.Where("key = ?", trimmedKey).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, errs.Wrap(err, "query cache by key")
	}

	if row.ExpiresAt != nil {
		expiresAt, err := time.Parse(time.RFC3339Nano, *row.ExpiresAt)
		if err != nil {
			return "", false, errs.Wrapf(err, "parse expiry of cache key %q", trimmedKey)
		}
		if !c.now().UTC().Before(expiresAt) {
			return "", false, nil
		}
	}

	return row.Value, true, nil
}

// Set upserts key. A positive ttl makes the value invisible once it elapses.
func (c *SQLiteCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	db, trimmedKey, err := c.session(ctx, key)
	if err != nil {
		return err
	}

	now := c.now().UTC()
	row := model.KV{
		Key:       trimmedKey,
		Value:     value,
		UpdatedAt: now.Format(time.RFC3339Nano),
	}
	if ttl > 0 {
		expiresAt := now.Add(ttl).Format(time.RFC3339Nano)
		row.ExpiresAt = &expiresAt
	}

	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":      row.Value,
			"expires_at": row.ExpiresAt,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert cache key")
	}

	return nil
}

func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
	db, trimmedKey, err := c.session(ctx, key)
	if err != nil {
		return err
	}

	if err := db.Where("key = ?", trimmedKey).Delete(&model.KV{}).Error; err != nil {
		return errs.Wrap(err, "delete cache key")
	}
	return nil
}

func (c *SQLiteCache) session(ctx context.Context, key string) (*gorm.DB, string, error) {
	if ctx == nil {
		return nil, "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, "", errs.Wrap(err, "check context")
	}

	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return nil, "", errors.New("key is required")
	}

	db, err := c.sessions.DB(ctx)
	if err != nil {
		return nil, "", err
	}
	return db, trimmedKey, nil
}
