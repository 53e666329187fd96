package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gappsops/message-recall/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/recall")
	t.Setenv("APPS_DOMAIN", "example.com")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "X-Authenticated-Email", cfg.AuthHeader)
	assert.Equal(t, "imap.gmail.com:993", cfg.IMAPAddr)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 10, cfg.RecallConcurrency)
	assert.Equal(t, 6, cfg.RetrievalWorkers)
	assert.Equal(t, 2*time.Minute, cfg.LeaseDuration)
	assert.Equal(t, time.Minute, cfg.HeartbeatInterval)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("APPS_DOMAIN", "example.com")

	_, err := config.Load()
	require.ErrorIs(t, err, config.ErrMissingDatabaseURL)
}

func TestLoadRequiresAppsDomain(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/recall")
	t.Setenv("APPS_DOMAIN", "")

	_, err := config.Load()
	require.ErrorIs(t, err, config.ErrMissingAppsDomain)
}

func TestLoadClampsWorkerCount(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/recall")
	t.Setenv("APPS_DOMAIN", "example.com")
	t.Setenv("RECALL_WORKERS", "50")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Workers)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/recall")
	t.Setenv("APPS_DOMAIN", "example.com")
	t.Setenv("RECALL_CONCURRENCY", "not-a-number")
	t.Setenv("TASK_LEASE_SECONDS", "-5")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.RecallConcurrency)
	assert.Equal(t, 2*time.Minute, cfg.LeaseDuration)
}
