package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate defaults: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Market.CollateralSymbol != "USD" || cfg.Server.Port != 8080 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "marketd.toml")
	data := `
mode = "demo"

[market]
collateral_symbol = "EUR"
oracle_price = 3

[server]
port = 9999
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("MARKETD_SERVER_PORT", "7777")
	t.Setenv("MARKETD_MARKET_ORACLE_PRICE", "5")
	t.Setenv("MARKETD_REDIS_ADDR", "localhost:6379")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != "demo" {
		t.Fatalf("mode: got=%q want=demo", cfg.Mode)
	}
	if cfg.Market.CollateralSymbol != "EUR" {
		t.Fatalf("collateral: got=%q want=EUR", cfg.Market.CollateralSymbol)
	}
	// Environment wins over the file.
	if cfg.Server.Port != 7777 {
		t.Fatalf("port: got=%d want=7777", cfg.Server.Port)
	}
	if cfg.Market.OraclePrice != 5 {
		t.Fatalf("oracle price: got=%d want=5", cfg.Market.OraclePrice)
	}
	if !cfg.Redis.Enabled() {
		t.Fatalf("redis should be enabled via env")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad mode", func(c *Config) { c.Mode = "turbo" }, "mode"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
		{"empty collateral", func(c *Config) { c.Market.CollateralSymbol = " " }, "collateral_symbol"},
		{"zero price", func(c *Config) { c.Market.OraclePrice = 0 }, "oracle_price"},
		{"fee cap too high", func(c *Config) { c.Market.MaxFeeFraction = 1_000_000 }, "max_fee_fraction"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "port"},
		{"archiver without s3", func(c *Config) { c.Archiver.Enabled = true }, "archiver"},
		{"bad cache ttl", func(c *Config) { c.Redis.Addr = "x:1"; c.Redis.CacheTTL = "soon" }, "cache_ttl"},
	}
	for _, tc := range cases {
		cfg := Defaults()
		tc.mutate(&cfg)
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: got err=%v want substring %q", tc.name, err, tc.want)
		}
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.Server.APIKey = "secret"

	red := RedactedConfig(&cfg)
	if red.Postgres.Password != "***" || red.Server.APIKey != "***" {
		t.Fatalf("secrets not redacted: %+v", red)
	}
	// The original is untouched.
	if cfg.Postgres.Password != "hunter2" {
		t.Fatalf("original mutated: %q", cfg.Postgres.Password)
	}
	// Empty fields stay empty rather than gaining a placeholder.
	if red.Redis.Password != "" {
		t.Fatalf("empty secret gained placeholder: %q", red.Redis.Password)
	}
}

func TestDurationHelpers(t *testing.T) {
	a := ArchiverConfig{Interval: "30m"}
	if got := a.IntervalDuration(); got != 30*time.Minute {
		t.Fatalf("interval: got=%v want=30m", got)
	}
	a.Interval = "bogus"
	if got := a.IntervalDuration(); got != time.Hour {
		t.Fatalf("fallback interval: got=%v want=1h", got)
	}

	r := RedisConfig{CacheTTL: "90s"}
	if got := r.CacheTTLDuration(); got != 90*time.Second {
		t.Fatalf("ttl: got=%v want=90s", got)
	}
}
