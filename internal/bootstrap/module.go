package bootstrap

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"txctl/internal/bootstrap/config"
	"txctl/internal/bootstrap/database"
	"txctl/internal/bootstrap/logging"
	cacheinfra "txctl/internal/infrastructure/cache"
	"txctl/internal/infrastructure/metrics"
	"txctl/internal/infrastructure/notify"
	sqliterepo "txctl/internal/infrastructure/persistence/sqlite/repository"
	"txctl/internal/infrastructure/persistence/sqlite/txdb"
	sqliteuow "txctl/internal/infrastructure/persistence/sqlite/uow"
	"txctl/internal/ports"
	"txctl/internal/scope"
	"txctl/internal/txcontrol"
	"txctl/internal/usecase/ledger"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(prometheus.NewRegistry),
	fx.Provide(provideRecorder),
	fx.Provide(provideNotifier),
	fx.Provide(scope.NewCoordinator),
	fx.Provide(provideControl),
	fx.Provide(provideApp),
	fx.Provide(txdb.NewProvider),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewLedgerRepository,
			fx.As(new(ports.LedgerRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(ledger.NewService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))
	return database.Open(logCtx, cfg.Database)
}

func provideRecorder(reg *prometheus.Registry) (*metrics.Recorder, error) {
	return metrics.NewRecorder(reg)
}

// provideNotifier connects to NATS only when notify.nats_url is set; otherwise the
// notifier is nil and no events are published.
func provideNotifier(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*notify.Notifier, error) {
	if cfg.Notify.NatsURL == "" {
		return nil, nil
	}

	conn, err := notify.Connect(ctx, cfg.Notify.NatsURL)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return drain(conn)
		},
	})
	return notify.NewNotifier(conn, cfg.Notify.Subject), nil
}

func drain(conn *nats.Conn) error {
	if conn.IsClosed() {
		return nil
	}
	return conn.Drain()
}

type controlParams struct {
	fx.In

	Config      config.Config
	Coordinator *scope.Coordinator
	Recorder    *metrics.Recorder
	Notifier    *notify.Notifier
}

func provideControl(p controlParams) (*txcontrol.Control, error) {
	support, err := p.Config.LocalResourceSupport()
	if err != nil {
		return nil, err
	}

	opts := []txcontrol.Option{
		txcontrol.WithScopeTimeout(p.Config.Transaction.ScopeTimeout),
		txcontrol.WithLocalResourceSupport(support),
		txcontrol.WithContextListener(p.Recorder.Listener()),
	}
	if p.Notifier != nil {
		opts = append(opts, txcontrol.WithContextListener(p.Notifier.Listener()))
	}
	return txcontrol.New(p.Coordinator, opts...), nil
}

func provideApp(lc fx.Lifecycle, cfg config.Config, db *gorm.DB, control *txcontrol.Control, reg *prometheus.Registry) *App {
	app := &App{
		Config:   cfg,
		DB:       db,
		Control:  control,
		Registry: reg,
	}
	lc.Append(fx.Hook{
		OnStop: app.Close,
	})
	return app
}
