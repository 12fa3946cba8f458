package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"txctl/internal/bootstrap/logging"
	"txctl/internal/errs"
	"txctl/internal/ports"
)

const (
	defaultActor    = "txctl"
	balanceCacheTTL = 30 * time.Second
)

type Service struct {
	repo  ports.LedgerRepository
	uow   ports.UnitOfWork
	cache ports.Cache
	now   func() time.Time
	ref   func() string
}

// NewService wires ledger usecases with repository, unit of work and optional cache.
func NewService(repo ports.LedgerRepository, uow ports.UnitOfWork, cache ports.Cache) *Service {
	return &Service{
		repo:  repo,
		uow:   uow,
		cache: cache,
		now:   time.Now,
		ref:   uuid.NewString,
	}
}

type DepositInput struct {
	Account string
	Amount  int64
	Memo    string
}

type TransferInput struct {
	From   string
	To     string
	Amount int64
	Memo   string
	Actor  string
}

type TransferResult struct {
	Ref  string
	From ports.Account
	To   ports.Account
}

func (s *Service) check(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return errors.New("ledger repository is required")
	}
	if s.uow == nil {
		return errors.New("ledger unit of work is required")
	}
	return nil
}

func (s *Service) nowUTCString() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func (s *Service) logContext(ctx context.Context) context.Context {
	return logging.WithAttrs(ctx, slog.String("component", "usecase.ledger"))
}

func cacheBalanceKey(account string) string {
	return "balance:" + account
}

// invalidateOnCommit drops cached balances once the ambient transaction commits. The
// deletes run in their own scope because the transaction is over by then.
func (s *Service) invalidateOnCommit(ctx context.Context, accounts ...string) error {
	if s.cache == nil {
		return nil
	}
	return s.uow.AfterCompletion(ctx, func(committed bool) {
		if !committed {
			return
		}
		err := s.uow.WithoutTx(context.WithoutCancel(ctx), func(ctx context.Context) error {
			for _, account := range accounts {
				if err := s.cache.Delete(ctx, cacheBalanceKey(account)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			logging.Warn(s.logContext(ctx), "invalidate balance cache failed", slog.Any("err", errs.Loggable(err)))
		}
	})
}
