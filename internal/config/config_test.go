package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Wallet.Address = "wallet-1"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults with wallet", func(c *Config) {}, ""},
		{"missing wallet", func(c *Config) { c.Wallet.Address = " " }, "wallet"},
		{"bad mode", func(c *Config) { c.Mode = "yolo" }, "mode"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
		{"missing engine url", func(c *Config) { c.Engine.BaseURL = "" }, "base_url"},
		{"bad postgres port", func(c *Config) { c.Postgres.Port = 99999 }, "port"},
		{"dsn skips discrete checks", func(c *Config) {
			c.Postgres.DSN = "postgres://u:p@host/db"
			c.Postgres.Host = ""
			c.Postgres.Port = 0
		}, ""},
		{"pool min exceeds max", func(c *Config) {
			c.Postgres.PoolMinConns = 20
			c.Postgres.PoolMaxConns = 5
		}, "pool_min_conns"},
		{"missing redis addr", func(c *Config) { c.Redis.Addr = "" }, "redis"},
		{"archive without bucket", func(c *Config) {
			c.Archive.Enabled = true
			c.S3.Bucket = ""
		}, "bucket"},
		{"zero call timeout", func(c *Config) { c.Orders.CallTimeout = duration{} }, "call_timeout"},
		{"bad server port", func(c *Config) { c.Server.Port = 0 }, "server"},
		{"server disabled skips port", func(c *Config) {
			c.Server.Enabled = false
			c.Server.Port = 0
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_TOMLAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	toml := `
mode = "monitor"

[wallet]
address = "file-wallet"

[orders]
call_timeout = "3s"
`
	if err := os.WriteFile(path, []byte(toml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SOLTRADE_WALLET_ADDRESS", "env-wallet")
	t.Setenv("SOLTRADE_SERVER_PORT", "9100")
	t.Setenv("SOLTRADE_SERVER_CORS_ORIGINS", "http://a.example, http://b.example")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Mode != "monitor" {
		t.Errorf("mode = %q, want monitor from file", cfg.Mode)
	}
	if cfg.Wallet.Address != "env-wallet" {
		t.Errorf("wallet = %q, env override should win", cfg.Wallet.Address)
	}
	if cfg.Orders.CallTimeout.Duration != 3*time.Second {
		t.Errorf("call_timeout = %v, want 3s", cfg.Orders.CallTimeout.Duration)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("server port = %d, want 9100", cfg.Server.Port)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "http://b.example" {
		t.Errorf("cors origins = %v", cfg.Server.CORSOrigins)
	}
	// Untouched fields keep their defaults.
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("redis addr = %q, want default", cfg.Redis.Addr)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
}

func TestDurationRoundTrip(t *testing.T) {
	d := duration{90 * time.Second}
	text, err := d.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var back duration
	if err := back.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if back.Duration != d.Duration {
		t.Errorf("round trip = %v, want %v", back.Duration, d.Duration)
	}
}
