package ledger

import (
	"context"
	"log/slog"
	"strconv"

	"txctl/internal/bootstrap/logging"
	"txctl/internal/errs"
)

func (s *Service) cachedBalance(ctx context.Context, account string) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	raw, found, err := s.cache.Get(ctx, cacheBalanceKey(account))
	if err != nil {
		logging.Debug(s.logContext(ctx), "balance cache read failed", slog.Any("err", errs.Loggable(err)))
		return 0, false
	}
	if !found {
		return 0, false
	}
	balance, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return balance, true
}

// cacheBalance is best effort; inside a read-only transaction the write is refused.
func (s *Service) cacheBalance(ctx context.Context, account string, balance int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, cacheBalanceKey(account), strconv.FormatInt(balance, 10), balanceCacheTTL); err != nil {
		logging.Debug(s.logContext(ctx), "balance cache write failed", slog.Any("err", errs.Loggable(err)))
	}
}
