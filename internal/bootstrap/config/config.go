package config

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"txctl/internal/bootstrap/logging"
	"txctl/internal/errs"
	"txctl/internal/txcontrol"
)

const EnvPrefix = "TXCTL"

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Transaction TransactionConfig `mapstructure:"transaction"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	Log         LogConfig         `mapstructure:"log"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type TransactionConfig struct {
	ScopeTimeout   time.Duration `mapstructure:"scope_timeout"`
	LocalResources string        `mapstructure:"local_resources"`
}

// NotifyConfig enables NATS announcements when NatsURL is set.
type NotifyConfig struct {
	NatsURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.Duration("scope_timeout", cfg.Transaction.ScopeTimeout),
	)

	return cfg, nil
}

func (c Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Transaction.ScopeTimeout < 0 {
		return errors.New("transaction.scope_timeout must not be negative")
	}
	if _, err := c.LocalResourceSupport(); err != nil {
		return errs.Wrap(err, "transaction.local_resources")
	}
	return nil
}

func (c Config) LocalResourceSupport() (txcontrol.LocalResourceSupport, error) {
	return txcontrol.ParseLocalResourceSupport(c.Transaction.LocalResources)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "txctl")
	v.SetDefault("app.env", "local")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".txctl/ledger.sqlite")
	v.SetDefault("transaction.scope_timeout", txcontrol.DefaultScopeTimeout)
	v.SetDefault("transaction.local_resources", txcontrol.LocalResourcesEnabled.String())
	v.SetDefault("notify.nats_url", "")
	v.SetDefault("notify.subject", "txctl.transactions")
	v.SetDefault("log.level", "info")
}

// Settings returns the effective configuration keyed like the config file, for rendering.
func (c Config) Settings() map[string]map[string]any {
	return map[string]map[string]any{
		"app": {
			"name": c.App.Name,
			"env":  c.App.Env,
		},
		"database": {
			"driver": c.Database.Driver,
			"dsn":    c.Database.DSN,
		},
		"transaction": {
			"scope_timeout":   c.Transaction.ScopeTimeout.String(),
			"local_resources": c.Transaction.LocalResources,
		},
		"notify": {
			"nats_url": c.Notify.NatsURL,
			"subject":  c.Notify.Subject,
		},
		"log": {
			"level": c.Log.Level,
		},
	}
}
