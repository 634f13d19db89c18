// Package config loads cabinet configuration: built-in defaults, overlaid by
// an optional YAML file, overlaid by environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/amp-labs/logicstates/criticaldata"
	lserrors "github.com/amp-labs/logicstates/errors"
	"github.com/amp-labs/logicstates/logger"
	"github.com/amp-labs/logicstates/statemachine"
	"github.com/amp-labs/logicstates/telemetry"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Validation errors.
var (
	ErrInvalidPollInterval = errors.New("poll interval must be positive")
	ErrInvalidStepTimeout  = errors.New("step timeout must not be negative")
	ErrInvalidWorkers      = errors.New("worker count must be at least 1")
	ErrInvalidDriver       = errors.New("unsupported store driver")
	ErrStorePathRequired   = errors.New("store path is required for the sqlite driver")
)

// Config is the complete cabinet configuration.
type Config struct {
	Environment string          `yaml:"environment" env:"LOGICSTATES_ENVIRONMENT"`
	Store       StoreConfig     `yaml:"store"`
	Engine      EngineConfig    `yaml:"engine"`
	Cabinet     CabinetConfig   `yaml:"cabinet"`
	Log         LogConfig       `yaml:"log"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
}

// StoreConfig selects the critical data store.
type StoreConfig struct {
	Driver string `yaml:"driver" env:"LOGICSTATES_STORE_DRIVER"`
	Path   string `yaml:"path"   env:"LOGICSTATES_STORE_PATH"`
}

// EngineConfig tunes every state machine engine.
type EngineConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" env:"LOGICSTATES_POLL_INTERVAL"`
	StepTimeout  time.Duration `yaml:"step_timeout"  env:"LOGICSTATES_STEP_TIMEOUT"`
}

// CabinetConfig sizes the host runtime.
type CabinetConfig struct {
	// Workers bounds how many engines run at once. It should be at least
	// the number of coplayers plus one for the shell.
	Workers int `yaml:"workers" env:"LOGICSTATES_WORKERS"`
}

// LogConfig configures the console logger.
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
	JSON  bool   `yaml:"json"  env:"LOG_JSON"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool          `yaml:"enabled"      env:"OTEL_ENABLED"`
	ExportLogs  bool          `yaml:"export_logs"  env:"OTEL_EXPORT_LOGS"`
	Endpoint    string        `yaml:"endpoint"     env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string        `yaml:"service_name" env:"OTEL_SERVICE_NAME"`
	Timeout     time.Duration `yaml:"timeout"      env:"OTEL_EXPORTER_OTLP_TIMEOUT"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Environment: "dev",
		Store: StoreConfig{
			Driver: criticaldata.DriverSQLite,
			Path:   "critical.db",
		},
		Engine: EngineConfig{
			PollInterval: statemachine.DefaultPollInterval,
		},
		Cabinet: CabinetConfig{
			Workers: 8,
		},
		Log: LogConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "logicstates",
			Timeout:     5 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- path is the intended file to load
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}

		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	return finish(cfg)
}

// LoadFromBytes is Load for an in-memory YAML document.
func LoadFromBytes(data []byte) (Config, error) {
	cfg := Default()

	if err := decodeYAML(data, &cfg); err != nil {
		return Config{}, err
	}

	return finish(cfg)
}

func decodeYAML(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

func finish(cfg Config) (Config, error) {
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs lserrors.Collection

	switch strings.ToLower(c.Store.Driver) {
	case criticaldata.DriverMemory:
	case criticaldata.DriverSQLite:
		if c.Store.Path == "" {
			errs.Add(ErrStorePathRequired)
		}
	default:
		errs.Add(fmt.Errorf("%w: %q", ErrInvalidDriver, c.Store.Driver))
	}

	if c.Engine.PollInterval <= 0 {
		errs.Add(fmt.Errorf("%w: %s", ErrInvalidPollInterval, c.Engine.PollInterval))
	}

	if c.Engine.StepTimeout < 0 {
		errs.Add(fmt.Errorf("%w: %s", ErrInvalidStepTimeout, c.Engine.StepTimeout))
	}

	if c.Cabinet.Workers < 1 {
		errs.Add(fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Cabinet.Workers))
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs.Add(err)
	}

	return errs.GetError()
}

// LoggerOptions converts the log settings for logger.ConfigureLoggingWithOptions.
// extra may be nil.
func (c Config) LoggerOptions(subsystem string, extra slog.Handler) logger.Options {
	level, err := logger.ParseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}

	return logger.Options{
		Subsystem: subsystem,
		JSON:      c.Log.JSON,
		MinLevel:  level,
		Extra:     extra,
	}
}

// TelemetryOptions converts the telemetry settings for telemetry.Initialize.
func (c Config) TelemetryOptions() telemetry.Config {
	return telemetry.Config{
		ServiceName: c.Telemetry.ServiceName,
		Environment: c.Environment,
		Endpoint:    c.Telemetry.Endpoint,
		Enabled:     c.Telemetry.Enabled,
		ExportLogs:  c.Telemetry.ExportLogs,
		Timeout:     c.Telemetry.Timeout,
	}
}

// EngineOptions converts the engine settings. Store and presentation are
// supplied by the caller.
func (c Config) EngineOptions(store criticaldata.Store, presentation statemachine.Presentation) statemachine.EngineOptions {
	return statemachine.EngineOptions{
		Store:        store,
		Presentation: presentation,
		PollInterval: c.Engine.PollInterval,
		StepTimeout:  c.Engine.StepTimeout,
	}
}
