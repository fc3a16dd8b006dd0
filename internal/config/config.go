// Package config loads catmaid-go configuration from file, environment
// variables and built-in defaults, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultTimeout is the default per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default request budget per second against
	// the CATMAID server.
	DefaultRateLimit = 10.0

	// DefaultCacheTTLHours is the default lifetime of cached responses.
	DefaultCacheTTLHours = 24
)

// Config holds all configuration for catmaid-go.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Neo4j   Neo4jConfig   `mapstructure:"neo4j"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds CATMAID server connection settings.
type ServerConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	APIToken       string  `mapstructure:"api_token"`
	ProjectID      int64   `mapstructure:"project_id"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	MaxParallel    int     `mapstructure:"max_parallel"`
}

// Timeout returns the per-request timeout as a duration.
func (c ServerConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// String returns a safe representation of ServerConfig with the token masked.
func (c ServerConfig) String() string {
	return fmt.Sprintf("ServerConfig{BaseURL:%s, APIToken:%s, ProjectID:%d}",
		c.BaseURL, maskToken(c.APIToken), c.ProjectID)
}

// maskToken shows first 4 + last 4 chars, replacing the middle with asterisks.
func maskToken(token string) string {
	const visible = 4
	if len(token) <= visible*2 {
		return "***"
	}
	return token[:visible] + "****" + token[len(token)-visible:]
}

// CacheConfig holds local response cache settings.
type CacheConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Path     string `mapstructure:"path"`
	TTLHours int    `mapstructure:"ttl_hours"`
}

// TTL returns the cache entry lifetime as a duration.
func (c CacheConfig) TTL() time.Duration {
	if c.TTLHours <= 0 {
		return DefaultCacheTTLHours * time.Hour
	}
	return time.Duration(c.TTLHours) * time.Hour
}

// Neo4jConfig holds settings for the optional skeleton graph export target.
type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.base_url", "http://localhost:8000")
	v.SetDefault("server.api_token", "")
	v.SetDefault("server.project_id", 1)
	v.SetDefault("server.timeout_seconds", int(DefaultTimeout/time.Second))
	v.SetDefault("server.rate_limit_rps", DefaultRateLimit)
	v.SetDefault("server.max_parallel", 4)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.path", filepath.Join(homeDir(), ".catmaid-go", "cache.db"))
	v.SetDefault("cache.ttl_hours", DefaultCacheTTLHours)

	v.SetDefault("neo4j.uri", "bolt://localhost:7687")
	v.SetDefault("neo4j.user", "neo4j")
	v.SetDefault("neo4j.password", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(homeDir(), ".catmaid-go"))
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("CATMAID")
	v.AutomaticEnv()

	// Map specific env vars
	_ = v.BindEnv("server.base_url", "CATMAID_SERVER_BASE_URL")
	_ = v.BindEnv("server.api_token", "CATMAID_API_TOKEN")
	_ = v.BindEnv("server.project_id", "CATMAID_PROJECT_ID")
	_ = v.BindEnv("cache.path", "CATMAID_CACHE_PATH")
	_ = v.BindEnv("neo4j.uri", "CATMAID_NEO4J_URI")
	_ = v.BindEnv("neo4j.password", "CATMAID_NEO4J_PASSWORD")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url must not be empty")
	}
	if c.Server.ProjectID <= 0 {
		return fmt.Errorf("server.project_id must be greater than 0")
	}
	if c.Server.TimeoutSeconds < 0 {
		return fmt.Errorf("server.timeout_seconds must be >= 0")
	}
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("server.rate_limit_rps must be >= 0")
	}
	if c.Server.MaxParallel <= 0 {
		return fmt.Errorf("server.max_parallel must be greater than 0")
	}
	if c.Cache.Enabled && c.Cache.Path == "" {
		return fmt.Errorf("cache.path must not be empty when cache is enabled")
	}
	if c.Cache.TTLHours < 0 {
		return fmt.Errorf("cache.ttl_hours must be >= 0")
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
