// Package config defines the top-level configuration for the market daemon
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by MARKETD_* environment
// variables.
type Config struct {
	Market   MarketConfig   `toml:"market"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Archiver ArchiverConfig `toml:"archiver"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// MarketConfig holds deployment parameters for the in-memory market stack.
type MarketConfig struct {
	CollateralSymbol string `toml:"collateral_symbol"`
	// OraclePrice is the per-token price of the development oracle, in
	// collateral units.
	OraclePrice uint64 `toml:"oracle_price"`
	// MaxFeeFraction caps the fee fraction accepted at market creation,
	// over the engine's fixed fee range of 1,000,000.
	MaxFeeFraction uint64 `toml:"max_fee_fraction"`
}

// PostgresConfig holds PostgreSQL connection parameters. An empty DSN and
// host disables the persistent read model.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// Enabled reports whether a PostgreSQL connection is configured.
func (c PostgresConfig) Enabled() bool {
	return strings.TrimSpace(c.DSN) != "" || strings.TrimSpace(c.Host) != ""
}

// RedisConfig holds Redis connection parameters. An empty address disables
// the cache and signal bus.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	CacheTTL   string `toml:"cache_ttl"`
}

// Enabled reports whether a Redis connection is configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// CacheTTLDuration parses the Redis cache TTL, defaulting to five minutes.
func (c RedisConfig) CacheTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// S3Config holds S3-compatible object storage parameters. An empty bucket
// disables trade archival.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// Enabled reports whether object storage is configured.
func (c S3Config) Enabled() bool {
	return strings.TrimSpace(c.Bucket) != ""
}

// ServerConfig holds the HTTP API server configuration.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// ArchiverConfig controls the periodic trade history export.
type ArchiverConfig struct {
	Enabled  bool   `toml:"enabled"`
	Interval string `toml:"interval"`
}

// IntervalDuration parses the archiver interval, defaulting to one hour.
func (c ArchiverConfig) IntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// Defaults returns the built-in configuration used when the TOML file leaves
// a key unset.
func Defaults() Config {
	return Config{
		Market: MarketConfig{
			CollateralSymbol: "USD",
			OraclePrice:      1,
			MaxFeeFraction:   500_000,
		},
		Postgres: PostgresConfig{
			Port:         5432,
			SSLMode:      "disable",
			PoolMaxConns: 10,
			PoolMinConns: 2,
		},
		Redis: RedisConfig{
			PoolSize:   10,
			MaxRetries: 3,
			CacheTTL:   "5m",
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Archiver: ArchiverConfig{
			Interval: "1h",
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// Validate checks the configuration for inconsistencies. It returns the
// first problem found.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "serve", "demo":
	default:
		return fmt.Errorf("config: unsupported mode %q", c.Mode)
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unsupported log level %q", c.LogLevel)
	}

	if strings.TrimSpace(c.Market.CollateralSymbol) == "" {
		return fmt.Errorf("config: market.collateral_symbol must not be empty")
	}
	if c.Market.OraclePrice == 0 {
		return fmt.Errorf("config: market.oracle_price must be positive")
	}
	if c.Market.MaxFeeFraction >= 1_000_000 {
		return fmt.Errorf("config: market.max_fee_fraction %d must be below 1000000", c.Market.MaxFeeFraction)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}

	if c.Archiver.Enabled && !c.S3.Enabled() {
		return fmt.Errorf("config: archiver enabled without s3.bucket")
	}
	if c.Redis.Enabled() {
		if _, err := time.ParseDuration(c.Redis.CacheTTL); err != nil {
			return fmt.Errorf("config: redis.cache_ttl: %w", err)
		}
	}

	return nil
}
