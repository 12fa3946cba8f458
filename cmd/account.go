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

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage ledger accounts",
}

var accountOpenCmd = &cobra.Command{
	Use:   "open <name>",
	Short: "Open an empty account",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *ledger.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		account, err := svc.OpenAccount(ctx, cmd.Flags().Arg(0))
		if err != nil {
			logging.Error(ctx, "open account failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "open account")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "opened account: %s\n", account.Name); err != nil {
			return errs.Wrap(err, "write open output")
		}
		return nil
	}),
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts and balances",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *ledger.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		accounts, err := svc.ListAccounts(ctx)
		if err != nil {
			logging.Error(ctx, "list accounts failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list accounts")
		}

		out := cmd.OutOrStdout()
		for _, account := range accounts {
			if _, err := fmt.Fprintf(out, "%s\t%d\n", account.Name, account.Balance); err != nil {
				return errs.Wrap(err, "write list output")
			}
		}
		return nil
	}),
}

func init() {
	accountCmd.AddCommand(accountOpenCmd, accountListCmd)
	rootCmd.AddCommand(accountCmd)
}
