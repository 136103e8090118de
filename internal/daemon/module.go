package daemon

import (
	"context"
	"time"

	"github.com/matheus3301/orderbot/internal/api"
	"github.com/matheus3301/orderbot/internal/bus"
	"github.com/matheus3301/orderbot/internal/command"
	"github.com/matheus3301/orderbot/internal/config"
	"github.com/matheus3301/orderbot/internal/events"
	"github.com/matheus3301/orderbot/internal/intake"
	"github.com/matheus3301/orderbot/internal/lock"
	"github.com/matheus3301/orderbot/internal/logging"
	"github.com/matheus3301/orderbot/internal/metrics"
	"github.com/matheus3301/orderbot/internal/order"
	"github.com/matheus3301/orderbot/internal/outbox"
	"github.com/matheus3301/orderbot/internal/profile"
	"github.com/matheus3301/orderbot/internal/sheets"
	"github.com/matheus3301/orderbot/internal/status"
	"github.com/matheus3301/orderbot/internal/store"
	"github.com/matheus3301/orderbot/internal/telegram"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile passed to the fx module.
type Params struct {
	Profile    string
	SocketPath string // optional override for testing; empty = use default
	ConfigPath string // optional bootstrap TOML override; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideSettings,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideConfigService,
			provideGenerator,
			provideMirror,
			provideRetrySender,
			metrics.New,
			provideMetricsServer,
			providePublisher,
			provideAdapter,
			providePipeline,
			provideSurface,
			provideRouter,
			provideHealth,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideSettings(p Params) (*config.Settings, error) {
	path := p.ConfigPath
	if path == "" {
		path = profile.BootstrapPath(p.Profile)
	}
	return config.LoadSettings(path, profile.EnvPath(p.Profile))
}

func provideLogger(p Params, s *config.Settings) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.Profile), p.Profile, s.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(profile.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideStore depends on the lock so the database is never opened by two
// daemons at once.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.Profile)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideConfigService(p Params, s *config.Settings, db *store.DB, logger *zap.Logger) (config.Service, error) {
	if s.SettingsBackend == config.BackendDB {
		svc := store.NewSettings(db)
		if err := svc.Seed(context.Background(), s.Keyword, s.Admins); err != nil {
			return nil, err
		}
		logger.Info("runtime settings in database")
		return svc, nil
	}
	path := profile.SettingsPath(p.Profile)
	svc, err := config.NewFileService(path, config.Config{Keyword: s.Keyword, Admins: s.Admins})
	if err != nil {
		return nil, err
	}
	logger.Info("runtime settings in file", zap.String("path", path))
	return svc, nil
}

func provideGenerator(s *config.Settings) (*order.Generator, error) {
	return order.NewGenerator(s.Timezone)
}

func provideMirror(s *config.Settings, logger *zap.Logger) (intake.Mirror, error) {
	if s.Sheets.SpreadsheetID == "" {
		logger.Warn("no spreadsheet configured, sheet mirror disabled")
		return sheets.Disabled{Logger: logger}, nil
	}
	client, err := sheets.NewAPIClient(context.Background(), sheets.Credentials{
		ClientEmail: s.Sheets.ClientEmail,
		PrivateKey:  s.Sheets.PrivateKey,
	})
	if err != nil {
		return nil, err
	}
	return sheets.NewMirror(client, s.Sheets.SpreadsheetID, logger.Named("sheets")), nil
}

func provideRetrySender(db *store.DB, mirror intake.Mirror, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, mirror, logger.Named("outbox"))
}

func provideMetricsServer(s *config.Settings, m *metrics.Metrics, logger *zap.Logger) *metrics.Server {
	return metrics.NewServer(s.MetricsAddr, m, logger)
}

// providePublisher returns nil when no brokers are configured.
func providePublisher(s *config.Settings, b *bus.Bus, logger *zap.Logger) *events.Publisher {
	if len(s.Kafka.Brokers) == 0 {
		return nil
	}
	w := events.NewKafkaWriter(s.Kafka.Brokers, s.Kafka.Topic)
	return events.NewPublisher(w, b, logger.Named("events"))
}

func provideAdapter(s *config.Settings, logger *zap.Logger) (*telegram.Adapter, error) {
	return telegram.NewAdapter(s.BotToken, logger.Named("telegram"))
}

func providePipeline(s *config.Settings, db *store.DB, svc config.Service, m *status.Machine, ids *order.Generator, mirror intake.Mirror, retry *outbox.Sender, adapter *telegram.Adapter, b *bus.Bus, rec *metrics.Metrics, logger *zap.Logger) *intake.Pipeline {
	return intake.NewPipeline(db, svc, m, ids, mirror, adapter, intake.Options{
		OnlyLast: s.OnlyLast,
		Bus:      b,
		Recorder: rec,
		Retry:    retry,
	}, logger.Named("intake"))
}

func provideSurface(m *status.Machine, svc config.Service, logger *zap.Logger) *command.Surface {
	return command.NewSurface(m, svc, logger.Named("command"))
}

func provideRouter(pipeline *intake.Pipeline, surface *command.Surface, adapter *telegram.Adapter, logger *zap.Logger) *telegram.Router {
	return telegram.NewRouter(pipeline, surface, adapter, logger)
}

func provideHealth(m *status.Machine, b *bus.Bus, logger *zap.Logger) *api.HealthReporter {
	return api.NewHealthReporter(m, b, logger)
}

type lifecycleParams struct {
	fx.In

	Server    *Server
	Lock      *lock.Lock
	DB        *store.DB
	Adapter   *telegram.Adapter
	Router    *telegram.Router
	Health    *api.HealthReporter
	Metrics   *metrics.Server
	Publisher *events.Publisher
	Retry     *outbox.Sender
	Logger    *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, lp lifecycleParams) {
	logger := lp.Logger
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			lp.Health.Start(context.Background())
			if lp.Publisher != nil {
				lp.Publisher.Start(context.Background())
			}
			lp.Retry.Start(context.Background())
			if err := lp.Metrics.Start(); err != nil {
				return err
			}

			go func() {
				if err := lp.Server.Start(); err != nil {
					logger.Error("control socket error", zap.Error(err))
				}
			}()

			if err := lp.Adapter.RegisterCommands(command.Descriptors); err != nil {
				logger.Warn("could not register bot commands", zap.Error(err))
			}
			lp.Adapter.Start(context.Background(), lp.Router.Handle)
			logger.Info("bot started, send /start to begin taking orders",
				zap.String("bot", lp.Adapter.Name()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			lp.Adapter.Stop()
			lp.Retry.Stop()
			if lp.Publisher != nil {
				lp.Publisher.Stop()
			}
			lp.Metrics.Stop(ctx)
			lp.Health.Stop()

			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			lp.Server.Stop(stopCtx)

			if err := lp.DB.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lp.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
