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

var depositCmd = &cobra.Command{
	Use:   "deposit",
	Short: "Credit an account",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *ledger.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		account, _ := cmd.Flags().GetString("account")
		amount, _ := cmd.Flags().GetInt64("amount")
		memo, _ := cmd.Flags().GetString("memo")

		updated, err := svc.Deposit(ctx, ledger.DepositInput{
			Account: account,
			Amount:  amount,
			Memo:    memo,
		})
		if err != nil {
			logging.Error(ctx, "deposit failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "deposit")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "deposited %d to %s, balance=%d\n", amount, updated.Name, updated.Balance); err != nil {
			return errs.Wrap(err, "write deposit output")
		}
		return nil
	}),
}

func init() {
	depositCmd.Flags().String("account", "", "Account to credit")
	depositCmd.Flags().Int64("amount", 0, "Amount in minor units")
	depositCmd.Flags().String("memo", "", "Free text stored with the entry")
	_ = depositCmd.MarkFlagRequired("account")
	_ = depositCmd.MarkFlagRequired("amount")
	rootCmd.AddCommand(depositCmd)
}
