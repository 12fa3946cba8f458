package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"txctl/internal/bootstrap/config"
	"txctl/internal/bootstrap/logging"
	"txctl/internal/errs"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration (file, env and defaults merged)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		cfg, err := config.Load(ctx, cfgFile)
		if err != nil {
			return errs.Wrap(err, "load config")
		}
		format, _ := cmd.Flags().GetString("format")
		return renderConfig(cmd.OutOrStdout(), cfg, format)
	},
}

func renderConfig(w io.Writer, cfg config.Config, format string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "yaml", "yml":
		data, err = yaml.Marshal(cfg.Settings())
	case "toml":
		data, err = toml.Marshal(cfg.Settings())
	default:
		return fmt.Errorf("unsupported config format %q", format)
	}
	if err != nil {
		return errs.Wrapf(err, "marshal config as %s", format)
	}

	if _, err := w.Write(data); err != nil {
		return errs.Wrap(err, "write config output")
	}
	return nil
}

func init() {
	configCmd.Flags().String("format", "yaml", "Output format: yaml or toml")
	rootCmd.AddCommand(configCmd)
}
