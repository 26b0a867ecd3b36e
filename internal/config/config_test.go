package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.MaxWorkers)
	assert.Equal(t, 10, cfg.TopDiscover)
	assert.Equal(t, 10, cfg.WebMaxResults)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 20000, cfg.MaxContentLen)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5*time.Minute, cfg.VideoTimeout)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Empty(t, cfg.StoreDriver)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PULSE_SEARCH_URL", "http://search.local/v1")
	t.Setenv("PULSE_MAX_WORKERS", "8")
	t.Setenv("PULSE_REQUEST_TIMEOUT", "10s")
	t.Setenv("PULSE_STORE_DRIVER", "sqlite")
	t.Setenv("PULSE_STORE_DSN", "file:runs.db")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "http://search.local/v1", cfg.SearchURL)
	assert.Equal(t, 8, cfg.MaxWorkers)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, "file:runs.db", cfg.StoreDSN)
}

func TestFromEnvRejectsBadInt(t *testing.T) {
	t.Setenv("PULSE_MAX_WORKERS", "many")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PULSE_MAX_WORKERS")
}

func TestFromEnvRejectsUnknownStoreDriver(t *testing.T) {
	t.Setenv("PULSE_STORE_DRIVER", "redis")
	t.Setenv("PULSE_STORE_DSN", "whatever")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
}

func TestFromEnvRequiresDSNWithDriver(t *testing.T) {
	t.Setenv("PULSE_STORE_DRIVER", "postgres")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PULSE_STORE_DSN")
}
