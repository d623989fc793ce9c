package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	StorageBackendPostgres = "postgres"
	StorageBackendMemory   = "memory"
)

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`
	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`
	// storage
	StorageBackend string `toml:"storage_backend"`
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`
	// capacity code cache, in bytes
	CapacityCacheSize int `toml:"capacity_cache_size"`
	// redis (sessions, rate limiting)
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`
	// browser origins allowed by CORS
	AllowedOrigins []string `toml:"allowed_origins"`
	// max apply/result requests per athlete per minute
	ApplyRateLimitAllowedPerMin int `toml:"apply_rate_limit_allowed_per_min"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

// CanonicalEnv maps the accepted env aliases to their section name.
func CanonicalEnv(env string) (string, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return "development", nil
	case "prod", "production":
		return "production", nil
	default:
		return "", fmt.Errorf("unknown env: %s", env)
	}
}

func (t *Toml) Get(env string) (*Config, error) {
	name, err := CanonicalEnv(env)
	if err != nil {
		return nil, err
	}
	if name == "production" {
		return t.Production, nil
	}
	return t.Development, nil
}

// Load reads the TOML file at path and returns the section for env,
// with defaults applied to the unset fields.
func Load(env, path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(env, string(content))
}

func Parse(env, content string) (*Config, error) {
	var t Toml
	if _, err := toml.Decode(content, &t); err != nil {
		return nil, fmt.Errorf("decode toml config: %w", err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("config section for env [%s] missing", env)
	}

	// Get already rejected unknown aliases
	name, _ := CanonicalEnv(env)
	cfg.applyDefaults(name)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults(env string) {
	if c.Environment == "" {
		c.Environment = env
	}
	if c.StorageBackend == "" {
		c.StorageBackend = StorageBackendPostgres
	}
	if c.CapacityCacheSize <= 0 {
		c.CapacityCacheSize = 1024 * 1024
	}
	if c.ApplyRateLimitAllowedPerMin <= 0 {
		c.ApplyRateLimitAllowedPerMin = 30
	}
	if c.PrometheusMetricsHost == "" {
		c.PrometheusMetricsHost = "localhost"
	}
	if c.PrometheusMetricsPort == "" {
		c.PrometheusMetricsPort = "2112"
	}
}

func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageBackendPostgres:
		if c.PostgresHost == "" || c.PostgresPort == "" || c.PostgresDBName == "" {
			return fmt.Errorf("postgres storage needs host, port and db name")
		}
	case StorageBackendMemory:
	default:
		return fmt.Errorf("unknown storage backend: %s", c.StorageBackend)
	}
	if c.Port <= 0 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}
