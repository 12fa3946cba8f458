package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"txctl/internal/bootstrap/logging"
	domainledger "txctl/internal/domain/ledger"
	"txctl/internal/errs"
	"txctl/internal/ports"
)

const (
	auditActionTransfer = "transfer"

	outcomeRequested  = "requested"
	outcomeCommitted  = "committed"
	outcomeRolledBack = "rolled_back"
)

// Transfer moves amount between two accounts in one transaction.
//
// The request is audited in its own transaction before any balance is touched, so the
// audit trail survives a rollback; the outcome is audited once the transaction ends.
// SQLite allows a single writer, so callers must not hold an uncommitted write when
// they call Transfer.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (TransferResult, error) {
	if err := s.check(ctx); err != nil {
		return TransferResult{}, err
	}
	from, err := domainledger.NormalizeAccountName(input.From)
	if err != nil {
		return TransferResult{}, errs.Wrap(err, "source account")
	}
	to, err := domainledger.NormalizeAccountName(input.To)
	if err != nil {
		return TransferResult{}, errs.Wrap(err, "target account")
	}
	if from == to {
		return TransferResult{}, domainledger.ErrSameAccount
	}
	if err := domainledger.ValidateAmount(input.Amount); err != nil {
		return TransferResult{}, err
	}

	actor := strings.TrimSpace(input.Actor)
	if actor == "" {
		actor = defaultActor
	}
	result := TransferResult{Ref: s.ref()}
	detail := fmt.Sprintf("%s -> %s: %d", from, to, input.Amount)
	logCtx := logging.WithAttrs(s.logContext(ctx), slog.String("transfer_ref", result.Ref))

	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.uow.WithNewTx(txCtx, func(auditCtx context.Context) error {
			return s.audit(auditCtx, result.Ref, actor, outcomeRequested, detail)
		}); err != nil {
			return errs.Wrap(err, "audit transfer request")
		}
		if err := s.uow.AfterCompletion(txCtx, func(committed bool) {
			s.auditOutcome(logCtx, result.Ref, actor, committed, detail)
		}); err != nil {
			return err
		}

		var err error
		if result.From, err = s.debit(txCtx, from, input.Amount, result.Ref, input.Memo); err != nil {
			return err
		}
		if result.To, err = s.credit(txCtx, to, input.Amount, result.Ref, input.Memo); err != nil {
			return err
		}
		return s.invalidateOnCommit(txCtx, from, to)
	})
	if err != nil {
		logging.Warn(logCtx, "transfer failed", slog.Any("err", errs.Loggable(err)))
		return TransferResult{Ref: result.Ref}, err
	}

	logging.Info(logCtx, "transfer committed",
		slog.String("from", from),
		slog.String("to", to),
		slog.Int64("amount", input.Amount),
	)
	return result, nil
}

// TransferAudit lists the audit records of a transfer in write order.
func (s *Service) TransferAudit(ctx context.Context, ref string) ([]ports.AuditRecord, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var records []ports.AuditRecord
	err := s.uow.WithoutTx(ctx, func(ctx context.Context) error {
		var err error
		records, err = s.repo.ListAudits(ctx, strings.TrimSpace(ref))
		return err
	})
	return records, err
}

func (s *Service) debit(ctx context.Context, account string, amount int64, ref string, memo string) (ports.Account, error) {
	var updated ports.Account
	err := s.uow.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetAccount(ctx, account)
		if err != nil {
			return errs.Wrapf(err, "debit %q", account)
		}
		if err := domainledger.CanDebit(current.Balance, amount); err != nil {
			return errs.Wrapf(err, "debit %q", account)
		}
		updated, err = s.post(ctx, account, -amount, ref, memo)
		return err
	})
	return updated, err
}

func (s *Service) credit(ctx context.Context, account string, amount int64, ref string, memo string) (ports.Account, error) {
	var updated ports.Account
	err := s.uow.WithTx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.post(ctx, account, amount, ref, memo)
		if err != nil {
			return errs.Wrapf(err, "credit %q", account)
		}
		return nil
	})
	return updated, err
}

func (s *Service) audit(ctx context.Context, ref string, actor string, outcome string, detail string) error {
	_, err := s.repo.AppendAudit(ctx, ports.AuditCreate{
		Ref:       ref,
		Actor:     actor,
		Action:    auditActionTransfer,
		Outcome:   outcome,
		Detail:    detail,
		CreatedAt: s.nowUTCString(),
	})
	return err
}

// auditOutcome runs after the transfer transaction has ended, in a transaction of its own.
func (s *Service) auditOutcome(ctx context.Context, ref string, actor string, committed bool, detail string) {
	outcome := outcomeRolledBack
	if committed {
		outcome = outcomeCommitted
	}
	err := s.uow.WithNewTx(context.WithoutCancel(ctx), func(ctx context.Context) error {
		return s.audit(ctx, ref, actor, outcome, detail)
	})
	if err != nil {
		logging.Error(ctx, "audit transfer outcome failed", slog.Any("err", errs.Loggable(err)))
	}
}
