// Package config defines the top-level configuration for marketd and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by YIELDBET_* environment
// variables.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Sync     SyncConfig     `toml:"sync"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// DatabaseConfig holds PostgreSQL connection parameters. The same database
// hosts both the indexer-owned ledger tables and the serving tables.
type DatabaseConfig struct {
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for audit-log
// archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// SyncConfig holds the synchronization core parameters: the periodic
// reconciliation and yield jobs, the event listener, and the optional
// post-write webhook.
type SyncConfig struct {
	IndexerSyncIntervalSecs int64  `toml:"indexer_sync_interval_secs"`
	YieldCalcIntervalSecs   int64  `toml:"yield_calc_interval_secs"`
	EnableIndexerSync       bool   `toml:"enable_indexer_sync"`
	EnableYieldCalc         bool   `toml:"enable_yield_calc"`
	EnableListener          bool   `toml:"enable_listener"`
	WebhookURL              string `toml:"webhook_url"`
	MarketBatchSize         int    `toml:"market_batch_size"`
	BetBatchSize            int    `toml:"bet_batch_size"`
	YieldSweepLimit         int    `toml:"yield_sweep_limit"`
	ArchiveRetentionDays    int    `toml:"archive_retention_days"`
	ArchiveCron             string `toml:"archive_cron"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds webhook notification settings for operator alerts.
type NotifyConfig struct {
	WebhookURL string   `toml:"webhook_url"`
	Events     []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values. These
// match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "yieldbet",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "yieldbet-archive",
			ForcePathStyle: true,
		},
		Sync: SyncConfig{
			IndexerSyncIntervalSecs: 300,
			YieldCalcIntervalSecs:   1800,
			EnableIndexerSync:       true,
			EnableYieldCalc:         true,
			EnableListener:          true,
			MarketBatchSize:         100,
			BetBatchSize:            500,
			YieldSweepLimit:         100,
			ArchiveRetentionDays:    90,
			ArchiveCron:             "0 3 1 * *",
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        3002,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"sync_failed", "listener_down"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"full":   true, // API server + background sync jobs
	"sync":   true, // background sync jobs only
	"server": true, // API server only, relies on an external sync process
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: full, sync, server)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 (only when archival is enabled)
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
	}

	// Sync
	if c.Sync.IndexerSyncIntervalSecs <= 0 {
		errs = append(errs, "sync: indexer_sync_interval_secs must be > 0")
	}
	if c.Sync.YieldCalcIntervalSecs <= 0 {
		errs = append(errs, "sync: yield_calc_interval_secs must be > 0")
	}
	if c.Sync.MarketBatchSize < 1 {
		errs = append(errs, "sync: market_batch_size must be >= 1")
	}
	if c.Sync.BetBatchSize < 1 {
		errs = append(errs, "sync: bet_batch_size must be >= 1")
	}
	if c.Sync.YieldSweepLimit < 1 {
		errs = append(errs, "sync: yield_sweep_limit must be >= 1")
	}
	if c.Sync.ArchiveRetentionDays < 1 {
		errs = append(errs, "sync: archive_retention_days must be >= 1")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
