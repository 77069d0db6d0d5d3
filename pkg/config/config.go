package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the top-level OpenMast configuration.
type Config struct {
	// Store configures the snapshot document store.
	Store StoreConfig `yaml:"store"`

	// Rebind tunes restore behavior.
	Rebind RebindConfig `yaml:"rebind"`

	// Policy configures the restore admission gate.
	Policy PolicyConfig `yaml:"policy"`

	// Telemetry configures logging, tracing, and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// StoreConfig selects and configures the snapshot store backend.
type StoreConfig struct {
	// Backend is the store implementation: sqlite, file, or memory.
	Backend string `yaml:"backend" validate:"required,oneof=sqlite file memory"`

	// Path is the database file (sqlite) or the document tree root (file).
	Path string `yaml:"path" validate:"required_unless=Backend memory"`

	// MaxOpenConns bounds the sqlite connection pool.
	MaxOpenConns int `yaml:"max_open_conns" validate:"gte=0"`

	// BusyTimeout is the sqlite busy timeout.
	BusyTimeout time.Duration `yaml:"busy_timeout" validate:"gte=0"`
}

// RebindConfig tunes restore behavior.
type RebindConfig struct {
	// Strict aborts a restore on the first excluded document.
	Strict bool `yaml:"strict"`

	// BestEffortRefs downgrades unresolved references from object-fatal
	// to warnings.
	BestEffortRefs bool `yaml:"best_effort_refs"`

	// MaxParallel bounds concurrent document decoders.
	MaxParallel int `yaml:"max_parallel" validate:"gte=0,lte=256"`

	// WaitForMaster delays the attach phase until this node holds HA
	// mastership.
	WaitForMaster bool `yaml:"wait_for_master"`

	// MasterDeadline bounds the mastership wait.
	MasterDeadline time.Duration `yaml:"master_deadline" validate:"gte=0"`
}

// PolicyConfig configures the restore admission gate.
type PolicyConfig struct {
	// Enabled turns admission gating on.
	Enabled bool `yaml:"enabled"`

	// Paths lists .rego files or directories with site policies, loaded
	// in addition to the built-ins.
	Paths []string `yaml:"paths" validate:"dive,required"`

	// Watch hot-reloads site policies on file changes.
	Watch bool `yaml:"watch"`
}

// TelemetryConfig configures logging, tracing, and metrics.
type TelemetryConfig struct {
	// LogLevel sets the minimum log level.
	LogLevel string `yaml:"log_level" validate:"oneof=trace debug info warn error fatal"`

	// LogFormat is console or json.
	LogFormat string `yaml:"log_format" validate:"oneof=console json"`

	// TracingEnabled turns OpenTelemetry tracing on.
	TracingEnabled bool `yaml:"tracing_enabled"`

	// TracingExporter is otlp, stdout, or none.
	TracingExporter string `yaml:"tracing_exporter" validate:"oneof=otlp stdout none"`

	// TracingEndpoint is the OTLP endpoint.
	TracingEndpoint string `yaml:"tracing_endpoint" validate:"required_if=TracingExporter otlp"`

	// MetricsEnabled turns the Prometheus endpoint on.
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// MetricsListen is the metrics HTTP listen address.
	MetricsListen string `yaml:"metrics_listen" validate:"required_if=MetricsEnabled true"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:      "sqlite",
			Path:         "openmast.db",
			MaxOpenConns: 4,
			BusyTimeout:  5 * time.Second,
		},
		Rebind: RebindConfig{
			Strict:         false,
			BestEffortRefs: false,
			MaxParallel:    8,
			WaitForMaster:  false,
			MasterDeadline: 2 * time.Minute,
		},
		Policy: PolicyConfig{
			Enabled: true,
		},
		Telemetry: TelemetryConfig{
			LogLevel:        "info",
			LogFormat:       "console",
			TracingEnabled:  false,
			TracingExporter: "none",
			MetricsEnabled:  false,
			MetricsListen:   ":9090",
		},
	}
}

// Load reads and validates a YAML configuration file. Unset fields keep
// their defaults; an empty path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			e := errs[0]
			return fmt.Errorf("field %s failed %s validation", e.Namespace(), e.Tag())
		}
		return err
	}
	return nil
}
