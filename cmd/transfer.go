package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"txctl/internal/bootstrap"
	"txctl/internal/bootstrap/logging"
	"txctl/internal/errs"
	"txctl/internal/txcontrol"
	"txctl/internal/usecase/ledger"
)

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Move an amount between two accounts in one transaction",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *ledger.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		amount, _ := cmd.Flags().GetInt64("amount")
		memo, _ := cmd.Flags().GetString("memo")
		actor, _ := cmd.Flags().GetString("actor")

		result, err := svc.Transfer(ctx, ledger.TransferInput{
			From:   from,
			To:     to,
			Amount: amount,
			Memo:   memo,
			Actor:  actor,
		})
		if err != nil {
			if errors.Is(err, txcontrol.ErrRolledBack) && result.Ref != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "transfer rolled back: ref=%s\n", result.Ref)
			}
			return errs.Wrap(err, "transfer")
		}

		if _, err := fmt.Fprintf(
			cmd.OutOrStdout(),
			"transfer committed: ref=%s %s=%d %s=%d\n",
			result.Ref, result.From.Name, result.From.Balance, result.To.Name, result.To.Balance,
		); err != nil {
			return errs.Wrap(err, "write transfer output")
		}
		return nil
	}),
}

var transferAuditCmd = &cobra.Command{
	Use:   "audit <ref>",
	Short: "Show the audit trail of a transfer",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *ledger.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		records, err := svc.TransferAudit(ctx, cmd.Flags().Arg(0))
		if err != nil {
			logging.Error(ctx, "read transfer audit failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "read transfer audit")
		}

		out := cmd.OutOrStdout()
		for _, r := range records {
			if _, err := fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", r.CreatedAt, r.Actor, r.Outcome, r.Detail); err != nil {
				return errs.Wrap(err, "write audit output")
			}
		}
		return nil
	}),
}

func init() {
	transferCmd.Flags().String("from", "", "Account to debit")
	transferCmd.Flags().String("to", "", "Account to credit")
	transferCmd.Flags().Int64("amount", 0, "Amount in minor units")
	transferCmd.Flags().String("memo", "", "Free text stored with both entries")
	transferCmd.Flags().String("actor", "", "Who requested the transfer (default txctl)")
	_ = transferCmd.MarkFlagRequired("from")
	_ = transferCmd.MarkFlagRequired("to")
	_ = transferCmd.MarkFlagRequired("amount")

	transferCmd.AddCommand(transferAuditCmd)
	rootCmd.AddCommand(transferCmd)
}
