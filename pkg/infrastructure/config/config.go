// Package config loads bom settings from defaults, an optional YAML file, BOM_* environment
// variables and command-line flags, in increasing order of precedence
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vsinha/bom/pkg/infrastructure/logging"
)

// EnvPrefix is prepended to every environment variable, e.g. BOM_LOG_LEVEL
const EnvPrefix = "BOM"

// Config is the full bom configuration
type Config struct {
	Workers   int             `mapstructure:"workers"`
	Log       logging.Config  `mapstructure:"log"`
	Explosion ExplosionConfig `mapstructure:"explosion"`
	Costing   CostingConfig   `mapstructure:"costing"`
	Output    OutputConfig    `mapstructure:"output"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Database  DatabaseConfig  `mapstructure:"database"`
}

// ExplosionConfig holds explosion defaults
type ExplosionConfig struct {
	IncludePaths bool `mapstructure:"include_paths"`
}

// CostingConfig holds costing defaults
type CostingConfig struct {
	TopDrivers int `mapstructure:"top_drivers"`
}

// OutputConfig selects the CLI renderer
type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// TelemetryConfig configures tracing export
type TelemetryConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

// DatabaseConfig points at a PostgreSQL BOM store
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// flagKeys maps CLI flag names onto configuration keys
var flagKeys = map[string]string{
	"workers":       "workers",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"format":        "output.format",
	"include-paths": "explosion.include_paths",
	"top":           "costing.top_drivers",
	"otel-endpoint": "telemetry.endpoint",
	"database-url":  "database.url",
}

// SetDefaults registers every default on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("workers", runtime.GOMAXPROCS(0))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_path", "")
	v.SetDefault("log.development", false)
	v.SetDefault("explosion.include_paths", false)
	v.SetDefault("costing.top_drivers", 10)
	v.SetDefault("output.format", "table")
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.service_name", "bom")
	v.SetDefault("database.url", "")
}

// Load reads configuration. path may be empty; flags may be nil. Only flags the user
// actually set override file and environment values.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.Costing.TopDrivers < 0 {
		return fmt.Errorf("costing.top_drivers must not be negative, got %d", c.Costing.TopDrivers)
	}
	switch c.Output.Format {
	case "table", "json", "csv":
	default:
		return fmt.Errorf("unknown output format %q (want table, json or csv)", c.Output.Format)
	}
	return nil
}
