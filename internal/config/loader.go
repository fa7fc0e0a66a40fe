package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SOLTRADE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SOLTRADE_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.Address, "SOLTRADE_WALLET_ADDRESS")

	// ── Engine ──
	setStr(&cfg.Engine.BaseURL, "SOLTRADE_ENGINE_BASE_URL")
	setStr(&cfg.Engine.WsURL, "SOLTRADE_ENGINE_WS_URL")
	setStr(&cfg.Engine.APIKey, "SOLTRADE_ENGINE_API_KEY")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SOLTRADE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SOLTRADE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SOLTRADE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SOLTRADE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SOLTRADE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SOLTRADE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SOLTRADE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SOLTRADE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SOLTRADE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SOLTRADE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SOLTRADE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SOLTRADE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SOLTRADE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SOLTRADE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SOLTRADE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SOLTRADE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "SOLTRADE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SOLTRADE_S3_REGION")
	setStr(&cfg.S3.Bucket, "SOLTRADE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SOLTRADE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SOLTRADE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SOLTRADE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SOLTRADE_S3_FORCE_PATH_STYLE")

	// ── Orders ──
	setDuration(&cfg.Orders.CallTimeout, "SOLTRADE_ORDERS_CALL_TIMEOUT")
	setInt(&cfg.Orders.CreateLimitPerSec, "SOLTRADE_ORDERS_CREATE_LIMIT_PER_SEC")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "SOLTRADE_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "SOLTRADE_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "SOLTRADE_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SOLTRADE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SOLTRADE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SOLTRADE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "SOLTRADE_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SOLTRADE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SOLTRADE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SOLTRADE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SOLTRADE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SOLTRADE_MODE")
	setStr(&cfg.LogLevel, "SOLTRADE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
