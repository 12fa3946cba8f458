package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"txctl/internal/bootstrap"
	"txctl/internal/bootstrap/logging"
	"txctl/internal/errs"
	"txctl/internal/usecase/ledger"
)

var balanceCmd = &cobra.Command{
	Use:   "balance <account>",
	Short: "Show the balance of an account",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *ledger.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		balance, err := svc.Balance(ctx, cmd.Flags().Arg(0))
		if err != nil {
			logging.Error(ctx, "read balance failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "read balance")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%d\n", balance); err != nil {
			return errs.Wrap(err, "write balance output")
		}
		return nil
	}),
}

var historyCmd = &cobra.Command{
	Use:   "history <account>",
	Short: "List the newest entries of an account",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *ledger.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := svc.History(ctx, cmd.Flags().Arg(0), limit)
		if err != nil {
			logging.Error(ctx, "read history failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "read history")
		}

		out := cmd.OutOrStdout()
		for _, e := range entries {
			if _, err := fmt.Fprintf(out, "%s\t%+d\t%s\t%s\n", e.CreatedAt, e.Amount, e.TransferRef, e.Memo); err != nil {
				return errs.Wrap(err, "write history output")
			}
		}
		return nil
	}),
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Maximum number of entries, 0 for all")
	rootCmd.AddCommand(balanceCmd, historyCmd)
}
