package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/openmast/openmast/pkg/catalog"
	"github.com/openmast/openmast/pkg/config"
	"github.com/openmast/openmast/pkg/exec"
	"github.com/openmast/openmast/pkg/memento"
	"github.com/openmast/openmast/pkg/mgmt"
	"github.com/openmast/openmast/pkg/policy"
	"github.com/openmast/openmast/pkg/rebind"
	"github.com/openmast/openmast/pkg/stores"
	"github.com/openmast/openmast/pkg/telemetry"
)

// runtime is the assembled stack a command operates on.
type runtime struct {
	cfg    *config.Config
	tel    *telemetry.Telemetry
	logger zerolog.Logger
	store  stores.SnapshotStore
	gate   *policy.Gate
	types  *catalog.Registry
	exec   *exec.LocalExecutor
	mctx   *mgmt.LocalManagementContext
	codec  *memento.Codec
	driver *rebind.Driver
}

// newRuntime builds the full stack from the config file and returns the
// command context enriched with the assembled telemetry, so spans and
// metrics reach every driver call made with it. Overrides run after the
// file is loaded and before anything is constructed, so command flags can
// adjust the effective config.
func newRuntime(ctx context.Context, overrides ...func(*config.Config)) (*runtime, context.Context, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, ctx, err
	}
	for _, o := range overrides {
		o(cfg)
	}

	tel, err := telemetry.NewTelemetry(telemetryConfig(cfg))
	if err != nil {
		return nil, ctx, err
	}
	ctx = tel.WithContext(ctx)
	if cfg.Telemetry.MetricsEnabled {
		if err := tel.StartMetricsServer(); err != nil {
			return nil, ctx, err
		}
	}

	logger := tel.Logger.Zerolog()
	if verbose {
		logger = logger.Level(zerolog.DebugLevel)
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, ctx, err
	}

	var gate *policy.Gate
	if cfg.Policy.Enabled {
		gate, err = policy.NewGate(logger)
		if err != nil {
			return nil, ctx, err
		}
		if len(cfg.Policy.Paths) > 0 {
			if err := gate.LoadPolicies(ctx, cfg.Policy.Paths); err != nil {
				return nil, ctx, err
			}
			if cfg.Policy.Watch {
				if err := gate.WatchPolicies(ctx, cfg.Policy.Paths); err != nil {
					return nil, ctx, err
				}
			}
		}
	}

	types := catalog.NewRegistry()
	executor := exec.NewLocalExecutor()
	mctx, err := mgmt.NewLocalManagementContext(mgmt.LocalContextDeps{
		Executor: executor,
		Types:    types,
		Logger:   logger,
	})
	if err != nil {
		return nil, ctx, err
	}

	var codecOpts []memento.Option
	if cfg.Rebind.BestEffortRefs {
		codecOpts = append(codecOpts, memento.WithBestEffortRefs())
	}
	codec := memento.NewCodec(types, logger, codecOpts...)

	driver, err := rebind.NewDriver(rebind.DriverDeps{
		Store:   store,
		Codec:   codec,
		Context: mctx,
		Gate:    gate,
		Logger:  logger,
		Options: rebind.Options{
			Strict:         cfg.Rebind.Strict,
			MaxParallel:    cfg.Rebind.MaxParallel,
			WaitForMaster:  cfg.Rebind.WaitForMaster,
			MasterDeadline: cfg.Rebind.MasterDeadline,
		},
	})
	if err != nil {
		return nil, ctx, err
	}

	return &runtime{
		cfg:    cfg,
		tel:    tel,
		logger: logger,
		store:  store,
		gate:   gate,
		types:  types,
		exec:   executor,
		mctx:   mctx,
		codec:  codec,
		driver: driver,
	}, ctx, nil
}

// close releases the runtime's resources and flushes pending telemetry.
func (r *runtime) close() {
	if err := r.store.Close(); err != nil {
		r.logger.Warn().Err(err).Msg("failed to close snapshot store")
	}
	if r.tel != nil {
		if err := r.tel.Shutdown(context.Background()); err != nil {
			r.logger.Warn().Err(err).Msg("failed to shut down telemetry")
		}
	}
}

// telemetryConfig maps the file config's telemetry section onto the
// telemetry stack's own config, keeping that package's defaults for
// everything the file does not set.
func telemetryConfig(cfg *config.Config) *telemetry.Config {
	tcfg := telemetry.DefaultConfig()
	tcfg.Logging.Level = cfg.Telemetry.LogLevel
	tcfg.Logging.Format = cfg.Telemetry.LogFormat
	tcfg.Logging.Output = "stderr"
	tcfg.Tracing.Enabled = cfg.Telemetry.TracingEnabled
	tcfg.Tracing.Exporter = cfg.Telemetry.TracingExporter
	tcfg.Tracing.Endpoint = cfg.Telemetry.TracingEndpoint
	tcfg.Metrics.Enabled = cfg.Telemetry.MetricsEnabled
	tcfg.Metrics.ListenAddress = cfg.Telemetry.MetricsListen
	return tcfg
}

// openStore builds the configured snapshot store backend.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (stores.SnapshotStore, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		store, err := stores.NewSQLiteStore(stores.SQLiteConfig{
			Path:         cfg.Store.Path,
			MaxOpenConns: cfg.Store.MaxOpenConns,
		})
		if err != nil {
			return nil, err
		}
		if err := store.Init(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "file":
		return stores.NewFileStore(cfg.Store.Path, logger)
	case "memory":
		return stores.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}
