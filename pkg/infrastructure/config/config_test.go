package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, runtime.GOMAXPROCS(0), cfg.Workers)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.False(t, cfg.Explosion.IncludePaths)
	assert.Equal(t, 10, cfg.Costing.TopDrivers)
	assert.Equal(t, "table", cfg.Output.Format)
	assert.Equal(t, "", cfg.Telemetry.Endpoint)
	assert.Equal(t, "bom", cfg.Telemetry.ServiceName)
}

func TestLoad_FileEnvAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bom.yaml")
	yaml := `workers: 2
log:
  level: debug
costing:
  top_drivers: 3
output:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("BOM_LOG_LEVEL", "warn")
	t.Setenv("BOM_EXPLOSION_INCLUDE_PATHS", "true")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("workers", 1, "")
	flags.String("format", "table", "")
	flags.Int("top", 10, "")
	require.NoError(t, flags.Parse([]string{"--format", "csv"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Workers, "unset flag must not override the file")
	assert.Equal(t, "warn", cfg.Log.Level, "env overrides file")
	assert.True(t, cfg.Explosion.IncludePaths)
	assert.Equal(t, 3, cfg.Costing.TopDrivers)
	assert.Equal(t, "csv", cfg.Output.Format, "set flag overrides everything")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"negative workers", func(c *Config) { c.Workers = -1 }, true},
		{"negative drivers", func(c *Config) { c.Costing.TopDrivers = -2 }, true},
		{"unknown format", func(c *Config) { c.Output.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Workers: 1, Output: OutputConfig{Format: "table"}}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
