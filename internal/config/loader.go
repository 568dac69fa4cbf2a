package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies YIELDBET_* environment variable overrides, and
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

// applyEnvOverrides reads well-known YIELDBET_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "YIELDBET_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "DATABASE_URL") // deployment platform convention
	setStr(&cfg.Database.Host, "YIELDBET_DATABASE_HOST")
	setInt(&cfg.Database.Port, "YIELDBET_DATABASE_PORT")
	setStr(&cfg.Database.Database, "YIELDBET_DATABASE_NAME")
	setStr(&cfg.Database.User, "YIELDBET_DATABASE_USER")
	setStr(&cfg.Database.Password, "YIELDBET_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "YIELDBET_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "YIELDBET_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "YIELDBET_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "YIELDBET_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "YIELDBET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "YIELDBET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "YIELDBET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "YIELDBET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "YIELDBET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "YIELDBET_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "YIELDBET_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "YIELDBET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "YIELDBET_S3_REGION")
	setStr(&cfg.S3.Bucket, "YIELDBET_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "YIELDBET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "YIELDBET_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "YIELDBET_S3_FORCE_PATH_STYLE")

	// ── Sync ──
	setInt64(&cfg.Sync.IndexerSyncIntervalSecs, "INDEXER_SYNC_INTERVAL_SECS")
	setInt64(&cfg.Sync.YieldCalcIntervalSecs, "YIELD_CALC_INTERVAL_SECS")
	setBool(&cfg.Sync.EnableIndexerSync, "ENABLE_INDEXER_SYNC")
	setBool(&cfg.Sync.EnableYieldCalc, "ENABLE_YIELD_CALC")
	setBool(&cfg.Sync.EnableListener, "YIELDBET_SYNC_ENABLE_LISTENER")
	setStr(&cfg.Sync.WebhookURL, "YIELDBET_SYNC_WEBHOOK_URL")
	setInt(&cfg.Sync.MarketBatchSize, "YIELDBET_SYNC_MARKET_BATCH_SIZE")
	setInt(&cfg.Sync.BetBatchSize, "YIELDBET_SYNC_BET_BATCH_SIZE")
	setInt(&cfg.Sync.YieldSweepLimit, "YIELDBET_SYNC_YIELD_SWEEP_LIMIT")
	setInt(&cfg.Sync.ArchiveRetentionDays, "YIELDBET_SYNC_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Sync.ArchiveCron, "YIELDBET_SYNC_ARCHIVE_CRON")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "YIELDBET_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "YIELDBET_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "YIELDBET_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "YIELDBET_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.WebhookURL, "YIELDBET_NOTIFY_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "YIELDBET_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "YIELDBET_MODE")
	setStr(&cfg.LogLevel, "YIELDBET_LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
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
