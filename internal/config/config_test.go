package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, int64(300), cfg.Sync.IndexerSyncIntervalSecs)
	assert.Equal(t, int64(1800), cfg.Sync.YieldCalcIntervalSecs)
	assert.True(t, cfg.Sync.EnableIndexerSync)
	assert.True(t, cfg.Sync.EnableYieldCalc)
	assert.Equal(t, 100, cfg.Sync.MarketBatchSize)
	assert.Equal(t, 500, cfg.Sync.BetBatchSize)
	assert.Equal(t, 10, cfg.Database.PoolMaxConns)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.Sync.IndexerSyncIntervalSecs = 0
	cfg.Sync.BetBatchSize = 0
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "indexer_sync_interval_secs")
	assert.Contains(t, err.Error(), "bet_batch_size")
	assert.Contains(t, err.Error(), "redis: addr")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
mode = "sync"
log_level = "debug"

[sync]
indexer_sync_interval_secs = 60

[database]
host = "db.internal"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sync", cfg.Mode)
	assert.Equal(t, int64(60), cfg.Sync.IndexerSyncIntervalSecs)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	// Untouched fields keep their defaults.
	assert.Equal(t, int64(1800), cfg.Sync.YieldCalcIntervalSecs)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("INDEXER_SYNC_INTERVAL_SECS", "45")
	t.Setenv("ENABLE_YIELD_CALC", "false")
	t.Setenv("YIELDBET_SYNC_WEBHOOK_URL", "https://hooks.example.com/sync")
	t.Setenv("YIELDBET_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, int64(45), cfg.Sync.IndexerSyncIntervalSecs)
	assert.False(t, cfg.Sync.EnableYieldCalc)
	assert.Equal(t, "https://hooks.example.com/sync", cfg.Sync.WebhookURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}
