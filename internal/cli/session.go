package cli

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/softkave/fimidx-sub001/internal/config"
	"github.com/softkave/fimidx-sub001/internal/fields"
	"github.com/softkave/fimidx-sub001/internal/metrics"
	"github.com/softkave/fimidx-sub001/internal/mongostore"
	"github.com/softkave/fimidx-sub001/internal/objstore"
	"github.com/softkave/fimidx-sub001/internal/sqlstore"
)

// session is an opened store with everything a command needs around it.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *objstore.Engine
	registry *fields.Registry
	gatherer *prometheus.Registry
	closeFn  func(context.Context) error
}

// loadConfig loads the configuration and applies the --backend and
// --metrics-file overrides.
func (o *RootOptions) loadConfig(f *OutputFormatter) (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigPath: o.ConfigPath, EnvFile: o.EnvFile})
	if err != nil {
		_ = f.Error(ErrCodeConfig, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "loading config", err)
	}
	if o.MetricsFile != "" {
		cfg.Metrics.TextFile = o.MetricsFile
	}
	if o.Backend != "" {
		cfg.Backend = o.Backend
		if err := cfg.Validate(); err != nil {
			_ = f.Error(ErrCodeConfig, err.Error(), nil)
			return nil, WrapExitError(ExitCommandError, "loading config", err)
		}
	}
	return cfg, nil
}

// openSession loads the configuration and opens the configured backend.
// The caller must call close.
func (o *RootOptions) openSession(ctx context.Context, cmd *cobra.Command, f *OutputFormatter) (*session, error) {
	cfg, err := o.loadConfig(f)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd.ErrOrStderr(), o.Format, cfg.LogLevel(), o.Verbose)

	var (
		backend objstore.Backend
		closeFn func(context.Context) error
	)
	switch cfg.Backend {
	case config.BackendMongo:
		s, err := mongostore.Open(ctx, cfg.Mongo.URI, cfg.Mongo.Database,
			mongostore.WithCollections(cfg.Mongo.Collection, cfg.Mongo.FieldsCollection))
		if err != nil {
			_ = f.Error(ErrCodeBackend, err.Error(), nil)
			return nil, WrapExitError(ExitFailure, "opening store", err)
		}
		backend, closeFn = s, s.Close
	default:
		s, err := sqlstore.Open(cfg.SQLite.Path)
		if err != nil {
			_ = f.Error(ErrCodeBackend, err.Error(), nil)
			return nil, WrapExitError(ExitFailure, "opening store", err)
		}
		backend, closeFn = s, func(context.Context) error { return s.Close() }
	}

	reg := prometheus.NewRegistry()
	engine := objstore.New(backend,
		objstore.WithLogger(logger),
		objstore.WithObserver(metrics.New(reg)),
	)
	registry, err := fields.NewRegistry(engine, cfg.FieldCacheSize, logger)
	if err != nil {
		_ = closeFn(ctx)
		_ = f.Error(ErrCodeConfig, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "creating field registry", err)
	}

	logger.Debug("store opened", "backend", backend.Name())
	return &session{
		cfg:      cfg,
		logger:   logger,
		store:    engine,
		registry: registry,
		gatherer: reg,
		closeFn:  closeFn,
	}, nil
}

// close closes the store and then writes the collected metrics to the
// configured text file, if any.
func (s *session) close(ctx context.Context) {
	if err := s.closeFn(ctx); err != nil {
		s.logger.Warn("closing store failed", "error", err)
	}
	if path := s.cfg.Metrics.TextFile; path != "" {
		if err := prometheus.WriteToTextfile(path, s.gatherer); err != nil {
			s.logger.Warn("writing metrics failed", "path", path, "error", err)
			return
		}
		s.logger.Debug("metrics written", "path", path)
	}
}
