package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the loader at an empty directory so a stray config.toml
// never leaks into a test.
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, k := range []string{"APP_ENV", "LISTEN_ADDR", "DATABASE_URL", "SCAN_WORKERS",
		"REDIS_URL", "LOG_LEVEL", "REGISTRY_BASE_URL", "CONFIG_FILE", "DISCOVERY_WORKERS"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 5*time.Second, cfg.Verifier.DNSTimeout)
	assert.Equal(t, 5*time.Second, cfg.Verifier.ProbeTimeout)
	assert.Equal(t, 8, cfg.Discovery.Workers)
	assert.Equal(t, 4, cfg.Pipeline.EntityWorkers)
	assert.Equal(t, 1000, cfg.Pipeline.MaxCompanies)
	assert.Equal(t, 10, cfg.Pipeline.MinEmployees)
	assert.Equal(t, 20, cfg.Registry.PageSize)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.False(t, cfg.Discovery.HarvestLinks)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/domainfinder")
	t.Setenv("SCAN_WORKERS", "3")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REGISTRY_BASE_URL", "http://registry.test")
	t.Setenv("DISCOVERY_WORKERS", "16")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "postgres://localhost/domainfinder", cfg.DatabaseURL)
	assert.Equal(t, 3, cfg.ScanWorkers)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "http://registry.test", cfg.Registry.BaseURL)
	assert.Equal(t, 16, cfg.Discovery.Workers)
}

func TestLoad_ConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "finder.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[pipeline]
min_employees = 0
entity_workers = 2

[discovery]
harvest_links = true
`), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Pipeline.MinEmployees)
	assert.Equal(t, 2, cfg.Pipeline.EntityWorkers)
	assert.True(t, cfg.Discovery.HarvestLinks)
}

func TestLoad_FlagsWin(t *testing.T) {
	isolate(t)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--max-companies=50", "--output-format=CSV", "--output-file=s3://bucket/out.csv", "--include-deleted"}))

	cfg, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Pipeline.MaxCompanies)
	assert.Equal(t, 10, cfg.Pipeline.MinEmployees)
	assert.Equal(t, "csv", cfg.Output.Format)
	assert.Equal(t, "s3://bucket/out.csv", cfg.Output.File)
	assert.True(t, cfg.Pipeline.IncludeDeleted)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{name: "unknown format", args: []string{"--output-format=xml"}},
		{name: "zero companies", args: []string{"--max-companies=0"}},
		{name: "negative employees", args: []string{"--min-employees=-1"}},
		{name: "zero workers", env: map[string]string{"DISCOVERY_WORKERS": "0"}},
		{name: "page size", env: map[string]string{"REGISTRY_PAGE_SIZE": "500"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			RegisterFlags(fs)
			require.NoError(t, fs.Parse(tt.args))

			_, err := Load(fs)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}
