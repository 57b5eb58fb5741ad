package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_UsesDefaultsWhenUnset(t *testing.T) {
	cfg := FromEnv()
	assert.Equal(t, DefaultDBPath, cfg.DBPath)
	assert.Equal(t, 5*time.Second, cfg.RequestDeadline)
	assert.EqualValues(t, 32, cfg.HybridSemaphoreSize)
	assert.Equal(t, 60*time.Second, cfg.QueryCacheTTL)
}

func TestFromEnv_OverridesFromEnvironment(t *testing.T) {
	t.Setenv(envDBPath, "/tmp/custom.db")
	t.Setenv(envRequestDeadline, "1500")
	t.Setenv(envHybridConcurrency, "8")

	cfg := FromEnv()
	assert.Equal(t, "/tmp/custom.db", cfg.DBPath)
	assert.Equal(t, 1500*time.Millisecond, cfg.RequestDeadline)
	assert.EqualValues(t, 8, cfg.HybridSemaphoreSize)
}

func TestFromEnv_IgnoresUnparseableOverrides(t *testing.T) {
	t.Setenv(envHybridConcurrency, "not-a-number")
	cfg := FromEnv()
	assert.EqualValues(t, 32, cfg.HybridSemaphoreSize)
}
