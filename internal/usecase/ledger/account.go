package ledger

import (
	"context"
	"log/slog"

	"txctl/internal/bootstrap/logging"
	domainledger "txctl/internal/domain/ledger"
	"txctl/internal/ports"
)

func (s *Service) OpenAccount(ctx context.Context, name string) (ports.Account, error) {
	if err := s.check(ctx); err != nil {
		return ports.Account{}, err
	}
	account, err := domainledger.NormalizeAccountName(name)
	if err != nil {
		return ports.Account{}, err
	}

	var created ports.Account
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		created, err = s.repo.CreateAccount(txCtx, account, s.nowUTCString())
		return err
	}); err != nil {
		return ports.Account{}, err
	}

	logging.Info(s.logContext(ctx), "account opened", slog.String("account", created.Name))
	return created, nil
}

// Deposit credits an existing account. It joins the caller's transaction when there is one.
func (s *Service) Deposit(ctx context.Context, input DepositInput) (ports.Account, error) {
	if err := s.check(ctx); err != nil {
		return ports.Account{}, err
	}
	account, err := domainledger.NormalizeAccountName(input.Account)
	if err != nil {
		return ports.Account{}, err
	}
	if err := domainledger.ValidateAmount(input.Amount); err != nil {
		return ports.Account{}, err
	}

	var updated ports.Account
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		updated, err = s.post(txCtx, account, input.Amount, "", input.Memo)
		if err != nil {
			return err
		}
		return s.invalidateOnCommit(txCtx, account)
	}); err != nil {
		return ports.Account{}, err
	}
	return updated, nil
}

// Balance reads through the balance cache. It never starts a transaction of its own.
func (s *Service) Balance(ctx context.Context, name string) (int64, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	account, err := domainledger.NormalizeAccountName(name)
	if err != nil {
		return 0, err
	}

	var balance int64
	err = s.uow.WithReadOnly(ctx, func(ctx context.Context) error {
		if cached, ok := s.cachedBalance(ctx, account); ok {
			balance = cached
			return nil
		}
		current, err := s.repo.GetAccount(ctx, account)
		if err != nil {
			return err
		}
		balance = current.Balance
		s.cacheBalance(ctx, account, balance)
		return nil
	})
	return balance, err
}

func (s *Service) ListAccounts(ctx context.Context) ([]ports.Account, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var accounts []ports.Account
	err := s.uow.WithReadOnly(ctx, func(ctx context.Context) error {
		var err error
		accounts, err = s.repo.ListAccounts(ctx)
		return err
	})
	return accounts, err
}

// History lists the newest entries of an account outside any transaction.
func (s *Service) History(ctx context.Context, name string, limit int) ([]ports.Entry, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	account, err := domainledger.NormalizeAccountName(name)
	if err != nil {
		return nil, err
	}

	var entries []ports.Entry
	err = s.uow.WithoutTx(ctx, func(ctx context.Context) error {
		var err error
		entries, err = s.repo.ListEntries(ctx, account, limit)
		return err
	})
	return entries, err
}

// post moves amount (signed) on account and records the matching entry.
func (s *Service) post(ctx context.Context, account string, amount int64, ref string, memo string) (ports.Account, error) {
	now := s.nowUTCString()
	updated, err := s.repo.AdjustBalance(ctx, account, amount, now)
	if err != nil {
		return ports.Account{}, err
	}
	if _, err := s.repo.AppendEntry(ctx, ports.EntryCreate{
		Account:     account,
		Amount:      amount,
		TransferRef: ref,
		Memo:        memo,
		CreatedAt:   now,
	}); err != nil {
		return ports.Account{}, err
	}
	return updated, nil
}
