// Package bootstrap wires all dependencies and starts the application.
// Configuration comes from a YAML file when one exists, otherwise from
// defaults and TABLEGATE_* environment variables.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artpar/tablegate/adapters/clock"
	"github.com/artpar/tablegate/adapters/hasher"
	apihttp "github.com/artpar/tablegate/adapters/http"
	"github.com/artpar/tablegate/adapters/idgen"
	"github.com/artpar/tablegate/adapters/memory"
	"github.com/artpar/tablegate/adapters/metrics"
	"github.com/artpar/tablegate/adapters/postgres"
	"github.com/artpar/tablegate/adapters/sqlite"
	"github.com/artpar/tablegate/app"
	"github.com/artpar/tablegate/config"
	"github.com/artpar/tablegate/domain/route"
	"github.com/artpar/tablegate/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// Options configure New.
type Options struct {
	// ConfigPath is the YAML file to load and watch. When empty,
	// config.DefaultPath is used if it exists.
	ConfigPath string

	// Config, if set, is used as is and never reloaded.
	Config *config.Config

	Version string

	// LogOutput defaults to os.Stdout.
	LogOutput io.Writer
}

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Holder
	Metrics    *metrics.Collector
	Supervisor *app.Supervisor
	Schema     *app.SchemaService
	Users      *app.UserService

	version string
	store   *Store
	tracing bool

	types    *apihttp.TypesHandler
	entities *apihttp.EntityHandler
	health   *apihttp.HealthHandler
	users    *apihttp.UsersHandler

	shutdownTracing func(context.Context) error
}

// Store bundles the schema and users ports of one database driver.
type Store struct {
	Schema ports.SchemaStore
	Users  ports.UserStore
	Pinger apihttp.Pinger // nil for the memory driver
	Close  func() error
}

// New creates and initializes the application. Nothing listens until Run.
func New(opts Options) (*App, error) {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stdout
	}

	cfg, path, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger := setupLogger(cfg.Logging, opts.LogOutput)
	logger.Info().Str("version", opts.Version).Msg("initializing tablegate")

	holder := config.NewStaticHolder(cfg, logger)
	if path != "" {
		holder, err = config.NewHolder(path, logger)
		if err != nil {
			return nil, err
		}
	}

	a := &App{
		Logger:  logger,
		Config:  holder,
		version: opts.Version,
	}

	st, err := OpenStore(holder.Get().Database, logger)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	a.store = st

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.NewWithRegistry(reg)

	if tc := holder.Get().Tracing; tc.Enabled {
		shutdown, err := initTracing(context.Background(), tc, opts.Version, func(err error) {
			logger.Warn().Err(err).Msg("trace export failed")
		})
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		a.tracing = true
		a.shutdownTracing = shutdown
		logger.Info().Str("endpoint", tc.Endpoint).Msg("opentelemetry tracing enabled")
	}

	a.Schema = app.NewSchemaService(st.Schema, a.Metrics, logger)
	a.Users = app.NewUserService(st.Users, hasher.NewBcrypt(0), idgen.UUID{}, clock.Real{}, logger)

	a.Supervisor = app.NewSupervisor(app.SupervisorConfig{
		Builder:  app.NewRouteBuilder(st.Schema, logger),
		Handler:  a.handlerFor,
		Settings: a.listenerSettings,
		Metrics:  a.Metrics,
	}, logger)

	a.types = apihttp.NewTypesHandler(a.Schema, a.Supervisor, logger)
	a.entities = apihttp.NewEntityHandler(logger)
	a.health = apihttp.NewHealthHandler(st.Pinger)
	a.users = apihttp.NewUsersHandler(a.Users, logger)

	holder.OnChange(a.onConfigChange)
	holder.OnReloadResult(a.Metrics.ObserveConfigReload)

	return a, nil
}

func loadConfig(opts Options) (*config.Config, string, error) {
	if opts.Config != nil {
		return opts.Config, "", nil
	}

	path := opts.ConfigPath
	if path == "" {
		if _, err := os.Stat(config.DefaultPath); err == nil {
			path = config.DefaultPath
		}
	}
	if path == "" {
		cfg, err := config.LoadFromEnv()
		if err != nil {
			return nil, "", fmt.Errorf("load config: %w", err)
		}
		return cfg, "", nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	return cfg, path, nil
}

// OpenStore opens the configured database and applies pending migrations.
func OpenStore(cfg config.DatabaseConfig, logger zerolog.Logger) (*Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(context.Background()); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Str("driver", cfg.Driver).Str("dsn", cfg.DSN).Msg("database ready")
		return &Store{
			Schema: sqlite.NewSchemaStore(db, logger),
			Users:  sqlite.NewUserStore(db),
			Pinger: db,
			Close:  db.Close,
		}, nil

	case config.DriverPostgres:
		db, err := postgres.Open(cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(context.Background()); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Str("driver", cfg.Driver).Msg("database ready")
		return &Store{
			Schema: postgres.NewSchemaStore(db, logger),
			Users:  postgres.NewUserStore(db),
			Pinger: db,
			Close:  db.Close,
		}, nil

	case config.DriverMemory:
		logger.Warn().Msg("using in-memory store, definitions are lost on exit")
		return &Store{
			// The users table exists from the start, as after migration.
			Schema: memory.NewSchemaStore(logger, apihttp.UsersEntity),
			Users:  memory.NewUserStore(),
			Close:  func() error { return nil },
		}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

// handlerFor builds the handler of the next listener from the current
// configuration.
func (a *App) handlerFor(table route.Table) http.Handler {
	cfg := a.Config.Get()

	h := apihttp.Handlers{
		Types:    a.types,
		Entities: a.entities,
		Health:   a.health,
	}
	if cfg.Users.Enabled {
		h.Users = a.users
	}

	rc := apihttp.RouterConfig{
		MetricsPath:   cfg.Metrics.Path,
		EnableOpenAPI: cfg.OpenAPI.Enabled,
		Version:       a.version,
	}
	if cfg.Metrics.Enabled {
		rc.Metrics = a.Metrics
	}

	return wrapTracingHandler(a.tracing, "tablegate", apihttp.NewRouter(table, h, a.Logger, rc))
}

func (a *App) listenerSettings() app.ListenerSettings {
	s := a.Config.Get().Server
	return app.ListenerSettings{
		Addr:         s.Addr(),
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		DrainTimeout: s.DrainTimeout,
	}
}

// onConfigChange applies a reloaded configuration. Listener sections take
// effect through a listener restart.
func (a *App) onConfigChange(old, new *config.Config) {
	restart := false
	for _, section := range config.ChangedSections(old, new) {
		switch section {
		case "logging":
			if old.Logging.Level != new.Logging.Level {
				setLogLevel(new.Logging.Level)
				a.Logger.Info().Str("level", new.Logging.Level).Msg("log level changed")
			}
			if old.Logging.Format != new.Logging.Format {
				a.Logger.Warn().Str("format", new.Logging.Format).Msg("log format change requires a process restart")
			}
		case "server", "metrics", "openapi", "users":
			restart = true
		default:
			a.Logger.Warn().Str("section", section).Msg("change requires a process restart")
		}
	}

	if restart {
		if err := a.Supervisor.Restart(); err != nil {
			a.Logger.Error().Err(err).Msg("listener restart not scheduled")
		}
	}
}

// Run starts the first listener and blocks until ctx is done, a SIGINT or
// SIGTERM arrives, or the control channel closes. Resources are released
// before Run returns.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.Config.Path() != "" {
		if err := a.Config.WatchFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("config file watch disabled")
		}
		a.Config.WatchSignals()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	go func() {
		select {
		case sig := <-quit:
			a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := a.Supervisor.Send(app.Start); err != nil {
		a.Shutdown()
		return err
	}

	err := a.Supervisor.Run(ctx)
	a.Shutdown()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	if errors.Is(err, app.ErrChannelClosed) {
		return fmt.Errorf("supervisor stopped: %w", err)
	}
	return err
}

// Shutdown releases everything New acquired. It is safe to call more than
// once. Listeners are owned by the supervisor and stop when Run returns.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a.Config.Stop()

	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("tracer shutdown error")
		}
		a.shutdownTracing = nil
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
		a.store = nil
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	setLogLevel(cfg.Level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(out).With().Timestamp().Logger()
}

func setLogLevel(levelStr string) {
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
