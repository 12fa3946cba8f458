/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"txctl/internal/bootstrap"
	"txctl/internal/bootstrap/logging"
	"txctl/internal/errs"
	"txctl/internal/infrastructure/persistence/sqlite/model"
	"txctl/internal/usecase/ledger"
)

var initDbCheckOnly bool

type tabler interface {
	TableName() string
}

// initDbCmd creates the ledger tables: accounts, entries, audit records and the cache.
var initDbCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the ledger tables",
	Long: `Create or migrate the accounts, entries, audit and cache tables in the configured
SQLite database. With --check the command only reports which tables are present.`,
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, _ *ledger.Service) error {
		ctx := logging.WithAttrs(cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("database_dsn", app.Config.Database.DSN),
		)

		if !initDbCheckOnly {
			if err := app.InitSchema(ctx); err != nil {
				logging.Error(ctx, "ledger schema migration failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "initialize ledger schema")
			}
		}

		missing, err := reportLedgerTables(cmd.OutOrStdout(), app.DB.WithContext(ctx))
		if err != nil {
			return err
		}

		logging.Info(ctx, "ledger schema checked",
			slog.Bool("migrated", !initDbCheckOnly),
			slog.Int("tables", len(model.All())),
			slog.Int("missing", missing),
		)
		if missing > 0 {
			return fmt.Errorf("%d ledger table(s) missing, run init-db without --check", missing)
		}
		return nil
	}),
}

// reportLedgerTables writes one line per ledger table and returns how many are missing.
func reportLedgerTables(w io.Writer, db *gorm.DB) (int, error) {
	migrator := db.Migrator()
	missing := 0
	for _, m := range model.All() {
		name := fmt.Sprintf("%T", m)
		if t, ok := m.(tabler); ok {
			name = t.TableName()
		}
		state := "ok"
		if !migrator.HasTable(m) {
			state = "missing"
			missing++
		}
		if _, err := fmt.Fprintf(w, "%-16s %s\n", name, state); err != nil {
			return missing, errs.Wrap(err, "write init-db output")
		}
	}
	return missing, nil
}

func init() {
	rootCmd.AddCommand(initDbCmd)
	initDbCmd.Flags().BoolVar(&initDbCheckOnly, "check", false, "Only report which ledger tables exist")
}
