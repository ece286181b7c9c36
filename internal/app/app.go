// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the CLI.
package app

import (
	"context"
	"fmt"

	gcstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/GuyChahine/deeplogs/internal/bar"
	"github.com/GuyChahine/deeplogs/internal/config"
	"github.com/GuyChahine/deeplogs/internal/logging"
	"github.com/GuyChahine/deeplogs/internal/metrics"
	"github.com/GuyChahine/deeplogs/internal/record"
	"github.com/GuyChahine/deeplogs/internal/session"
	"github.com/GuyChahine/deeplogs/internal/storage"
	"github.com/GuyChahine/deeplogs/internal/storage/gcs"
	"github.com/GuyChahine/deeplogs/internal/storage/local"
	"github.com/GuyChahine/deeplogs/internal/storage/memory"
	"github.com/GuyChahine/deeplogs/internal/storage/sqlstore"
)

// App holds the shared services: logger, store and metrics registry. It is
// built once per command invocation and closed by a cobra hook.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	store    storage.Store
	registry *prometheus.Registry
	metrics  *metrics.Collectors
	closers  []namedCloser
}

type namedCloser struct {
	name string
	fn   func() error
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger { return a.logger }

// GetStore exposes the configured object store.
func (a *App) GetStore() storage.Store { return a.store }

// GetConfig returns the loaded configuration.
func (a *App) GetConfig() config.Config { return a.cfg }

// GetMetrics returns the session collectors, nil when metrics are disabled.
func (a *App) GetMetrics() *metrics.Collectors { return a.metrics }

// Registry returns the Prometheus registry, nil when metrics are disabled.
func (a *App) Registry() *prometheus.Registry { return a.registry }

// NewApp creates the services described by cfg. It fails fast if any of
// them cannot be initialized.
func NewApp(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, closeLog, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &App{cfg: cfg, logger: logger}
	a.closers = append(a.closers, namedCloser{name: "log file", fn: closeLog})

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	a.store = store

	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.metrics, err = metrics.New(a.registry)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init metrics: %w", err)
		}
	}

	logger.Debug("application services initialized",
		zap.String("backend", cfg.Storage.Backend),
		zap.Bool("metrics", cfg.Metrics.Enabled),
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context) (storage.Store, error) {
	sc := a.cfg.Storage
	switch sc.Backend {
	case config.BackendLocal:
		a.logger.Debug("using local storage", zap.String("base_dir", sc.BaseDir))
		return local.New(local.Config{BaseDir: sc.BaseDir})
	case config.BackendMemory:
		a.logger.Info("using in-memory storage; records are discarded on exit")
		return memory.New(), nil
	case config.BackendGCS:
		a.logger.Debug("using GCS storage", zap.String("bucket", sc.GCS.Bucket), zap.String("prefix", sc.GCS.Prefix))
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create GCS client: %w", err)
		}
		a.closers = append(a.closers, namedCloser{name: "gcs client", fn: client.Close})
		return gcs.New(client, sc.GCS)
	case config.BackendSQL:
		store, err := sqlstore.Open(ctx, sc.SQL.DSN)
		if err != nil {
			return nil, err
		}
		a.logger.Debug("using SQL storage", zap.String("dialect", store.Dialect()))
		a.closers = append(a.closers, namedCloser{name: "sql store", fn: store.Close})
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", sc.Backend)
	}
}

// NewSession starts a logging session on the configured store.
func (a *App) NewSession(ctx context.Context, name, description string, hp map[string]record.Param) (*session.Session, error) {
	return session.New(ctx, session.Options{
		Name:         name,
		Description:  description,
		Hyperparams:  hp,
		SaveInterval: a.cfg.Session.SaveInterval,
		WriteTimeout: a.cfg.Session.WriteTimeout,
		Store:        a.store,
		Logger:       a.logger,
		Metrics:      a.metrics,
	})
}

// NewBar builds a progress bar styled by the configuration.
func (a *App) NewBar(description string, src bar.Source, cfg bar.Config) *bar.Bar {
	bc := a.cfg.Bar
	cfg.Description = description
	cfg.Source = src
	if cfg.RunningMeanSize == 0 {
		cfg.RunningMeanSize = bc.RunningMeanSize
	}
	if cfg.Size == 0 {
		cfg.Size = bc.Size
	}
	if cfg.PrintInterval == 0 {
		cfg.PrintInterval = bc.PrintInterval
	}
	if cfg.FillChar == "" {
		cfg.FillChar = bc.FillChar
	}
	if cfg.EmptyChar == "" {
		cfg.EmptyChar = bc.EmptyChar
	}
	cfg.Color = cfg.Color || bc.Color
	return bar.New(cfg)
}

// Close releases services in reverse order of creation and writes the
// metrics textfile when one is configured.
func (a *App) Close() {
	if a.registry != nil && a.cfg.Metrics.Textfile != "" {
		if err := prometheus.WriteToTextfile(a.cfg.Metrics.Textfile, a.registry); err != nil {
			a.logger.Warn("failed to write metrics textfile", zap.Error(err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if c.name == "log file" {
			_ = a.logger.Sync()
		}
		if err := c.fn(); err != nil {
			a.logger.Warn("error closing service", zap.String("service", c.name), zap.Error(err))
		}
	}
	a.closers = nil
}
