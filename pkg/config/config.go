// Package config loads service configuration. Defaults are overridden by an
// optional YAML file, which is in turn overridden by AUTHWARD_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/authward/authward/pkg/auth"
	"github.com/authward/authward/pkg/observability"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Store         StoreConfig         `yaml:"store"`
	Session       SessionConfig       `yaml:"session"`
	Token         TokenConfig         `yaml:"token"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server on a separate port for probes.
	HealthPort string `yaml:"health_port"`
}

// Addr returns the listen address for the API server.
func (s ServerConfig) Addr() string { return s.Host + ":" + s.Port }

// HealthAddr returns the listen address for the health/metrics server.
func (s ServerConfig) HealthAddr() string { return s.Host + ":" + s.HealthPort }

// StoreConfig selects and configures the credential store backend.
type StoreConfig struct {
	// Backend is memory, postgres or sqlite.
	Backend string `yaml:"backend"`

	PostgresURL string `yaml:"postgres_url"`
	SQLitePath  string `yaml:"sqlite_path"`

	// Seed loads the fixture accounts at startup.
	Seed bool `yaml:"seed"`

	// Read-through record cache in front of SQL backends.
	CacheEnabled bool          `yaml:"cache_enabled"`
	CacheSize    int           `yaml:"cache_size"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

// SessionConfig configures the session-cookie mode.
type SessionConfig struct {
	// Backend is memory or redis.
	Backend string `yaml:"backend"`

	TTL time.Duration `yaml:"ttl"`

	RedisURL      string `yaml:"redis_url"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// SweepSchedule is a cron expression for the expired-session sweeper.
	SweepSchedule string `yaml:"sweep_schedule"`
}

// TokenConfig configures the stateless token mode.
type TokenConfig struct {
	// SigningKey is the HS256 key. SigningKeyFile, when set, wins and is
	// watched for rotation.
	SigningKey     string `yaml:"signing_key"`
	SigningKeyFile string `yaml:"signing_key_file"`

	Issuer      string        `yaml:"issuer"`
	Audience    string        `yaml:"audience"`
	BearerTTL   time.Duration `yaml:"bearer_ttl"`
	IdentityTTL time.Duration `yaml:"identity_ttl"`
	AccessTTL   time.Duration `yaml:"access_ttl"`

	// Scopes embedded into issued access tokens.
	Scopes []string `yaml:"scopes"`
}

// Options converts the token section into auth.TokenOptions.
func (t TokenConfig) Options() auth.TokenOptions {
	return auth.TokenOptions{
		Issuer:      t.Issuer,
		Audience:    t.Audience,
		BearerTTL:   t.BearerTTL,
		IdentityTTL: t.IdentityTTL,
		AccessTTL:   t.AccessTTL,
		Scopes:      t.Scopes,
	}
}

// ObservabilityConfig holds logging, metrics and tracing settings.
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// Level parses the configured log level.
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLevel(o.LogLevel)
}

// OTel converts the section into observability.OTelConfig.
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
	}
}

// LoadConfig builds the configuration: defaults, then the YAML file named by
// AUTHWARD_CONFIG_FILE (if any), then environment variables.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := getEnv("AUTHWARD_CONFIG_FILE", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Store: StoreConfig{
			Backend:      "memory",
			SQLitePath:   "authward.db",
			Seed:         true,
			CacheEnabled: false,
			CacheTTL:     30 * time.Second,
		},
		Session: SessionConfig{
			Backend:       "memory",
			TTL:           auth.DefaultSessionTTL,
			SweepSchedule: "@every 1m",
		},
		Token: TokenConfig{
			Issuer:      "authward",
			Audience:    "authward-clients",
			BearerTTL:   auth.DefaultBearerTTL,
			IdentityTTL: auth.DefaultIdentityTTL,
			AccessTTL:   auth.DefaultAccessTTL,
			Scopes:      []string{"items", "auth"},
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelServiceName:    "authward",
			OTelServiceVersion: "dev",
			OTelInsecure:       true,
		},
	}
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnv("AUTHWARD_HOST", c.Server.Host)
	c.Server.Port = getEnv("AUTHWARD_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("AUTHWARD_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("AUTHWARD_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("AUTHWARD_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("AUTHWARD_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.HealthPort = getEnv("AUTHWARD_HEALTH_PORT", c.Server.HealthPort)

	c.Store.Backend = getEnv("AUTHWARD_STORE_BACKEND", c.Store.Backend)
	c.Store.PostgresURL = getEnv("AUTHWARD_POSTGRES_URL", c.Store.PostgresURL)
	c.Store.SQLitePath = getEnv("AUTHWARD_SQLITE_PATH", c.Store.SQLitePath)
	c.Store.Seed = getEnvBool("AUTHWARD_SEED_USERS", c.Store.Seed)
	c.Store.CacheEnabled = getEnvBool("AUTHWARD_CACHE_ENABLED", c.Store.CacheEnabled)
	c.Store.CacheSize = getEnvInt("AUTHWARD_CACHE_SIZE", c.Store.CacheSize)
	c.Store.CacheTTL = getEnvDuration("AUTHWARD_CACHE_TTL", c.Store.CacheTTL)

	c.Session.Backend = getEnv("AUTHWARD_SESSION_BACKEND", c.Session.Backend)
	c.Session.TTL = getEnvDuration("AUTHWARD_SESSION_TTL", c.Session.TTL)
	c.Session.RedisURL = getEnv("AUTHWARD_REDIS_URL", c.Session.RedisURL)
	c.Session.RedisPassword = getEnv("AUTHWARD_REDIS_PASSWORD", c.Session.RedisPassword)
	c.Session.RedisDB = getEnvInt("AUTHWARD_REDIS_DB", c.Session.RedisDB)
	c.Session.SweepSchedule = getEnv("AUTHWARD_SWEEP_SCHEDULE", c.Session.SweepSchedule)

	c.Token.SigningKey = getEnv("AUTHWARD_SIGNING_KEY", c.Token.SigningKey)
	c.Token.SigningKeyFile = getEnv("AUTHWARD_SIGNING_KEY_FILE", c.Token.SigningKeyFile)
	c.Token.Issuer = getEnv("AUTHWARD_TOKEN_ISSUER", c.Token.Issuer)
	c.Token.Audience = getEnv("AUTHWARD_TOKEN_AUDIENCE", c.Token.Audience)
	c.Token.BearerTTL = getEnvDuration("AUTHWARD_BEARER_TTL", c.Token.BearerTTL)
	c.Token.IdentityTTL = getEnvDuration("AUTHWARD_IDENTITY_TTL", c.Token.IdentityTTL)
	c.Token.AccessTTL = getEnvDuration("AUTHWARD_ACCESS_TTL", c.Token.AccessTTL)
	if scopes := getEnv("AUTHWARD_TOKEN_SCOPES", ""); scopes != "" {
		c.Token.Scopes = splitAndTrim(scopes)
	}

	c.Observability.LogLevel = getEnv("AUTHWARD_LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.MetricsEnabled = getEnvBool("AUTHWARD_METRICS_ENABLED", c.Observability.MetricsEnabled)
	c.Observability.OTelEnabled = getEnvBool("AUTHWARD_OTEL_ENABLED", c.Observability.OTelEnabled)
	c.Observability.OTelEndpoint = getEnv("AUTHWARD_OTEL_ENDPOINT", c.Observability.OTelEndpoint)
	c.Observability.OTelServiceName = getEnv("AUTHWARD_OTEL_SERVICE_NAME", c.Observability.OTelServiceName)
	c.Observability.OTelServiceVersion = getEnv("AUTHWARD_OTEL_SERVICE_VERSION", c.Observability.OTelServiceVersion)
	c.Observability.OTelInsecure = getEnvBool("AUTHWARD_OTEL_INSECURE", c.Observability.OTelInsecure)
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory":
	case "postgres":
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("postgres store requires AUTHWARD_POSTGRES_URL")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("sqlite store requires AUTHWARD_SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unknown store backend: %q", c.Store.Backend)
	}

	switch c.Session.Backend {
	case "memory":
	case "redis":
		if c.Session.RedisURL == "" {
			return fmt.Errorf("redis session backend requires AUTHWARD_REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown session backend: %q", c.Session.Backend)
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive, got %s", c.Session.TTL)
	}
	if c.Token.SigningKey == "" && c.Token.SigningKeyFile == "" {
		return fmt.Errorf("either AUTHWARD_SIGNING_KEY or AUTHWARD_SIGNING_KEY_FILE must be set")
	}
	if c.Token.Issuer == "" || c.Token.Audience == "" {
		return fmt.Errorf("token issuer and audience must be set")
	}
	return nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnv returns a string environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
