package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/2beens/wodcareer/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToml = `
[development]
host = "localhost"
port = 9000
log_level = "trace"
storage_backend = "memory"
redis_host = "localhost"
redis_port = "6379"

[production]
host = "0.0.0.0"
port = 8080
log_level = "info"
postgres_host = "db"
postgres_port = "5432"
postgres_db_name = "wodcareer"
apply_rate_limit_allowed_per_min = 10
`

func TestParse_Development(t *testing.T) {
	cfg, err := config.Parse("dev", testToml)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, config.StorageBackendMemory, cfg.StorageBackend)
	assert.Equal(t, 30, cfg.ApplyRateLimitAllowedPerMin)
	assert.Equal(t, 1024*1024, cfg.CapacityCacheSize)
	assert.Equal(t, "2112", cfg.PrometheusMetricsPort)
}

func TestParse_Production(t *testing.T) {
	cfg, err := config.Parse("production", testToml)
	require.NoError(t, err)

	assert.Equal(t, config.StorageBackendPostgres, cfg.StorageBackend)
	assert.Equal(t, "wodcareer", cfg.PostgresDBName)
	assert.Equal(t, 10, cfg.ApplyRateLimitAllowedPerMin)
}

func TestParse_EnvironmentIsCanonical(t *testing.T) {
	for env, want := range map[string]string{
		"dev":         "development",
		"DEV":         "development",
		"development": "development",
		"prod":        "production",
		"Production":  "production",
	} {
		cfg, err := config.Parse(env, testToml)
		require.NoError(t, err, env)
		assert.Equal(t, want, cfg.Environment, env)
	}

	_, err := config.CanonicalEnv("staging")
	assert.ErrorContains(t, err, "unknown env")
}

func TestParse_Errors(t *testing.T) {
	_, err := config.Parse("staging", testToml)
	assert.ErrorContains(t, err, "unknown env")

	_, err = config.Parse("dev", `[production]
port = 1`)
	assert.ErrorContains(t, err, "missing")

	_, err = config.Parse("dev", `[development]
port = 1
storage_backend = "cassandra"`)
	assert.ErrorContains(t, err, "unknown storage backend")

	_, err = config.Parse("dev", `[development]
port = 1`)
	assert.ErrorContains(t, err, "postgres storage needs")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(testToml), 0o600))

	cfg, err := config.Load("development", path)
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Host)

	_, err = config.Load("development", filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
