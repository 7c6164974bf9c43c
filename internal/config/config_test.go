package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.True(t, cfg.Server.RateLimit.Enabled)
	assert.Equal(t, float64(10), cfg.Server.RateLimit.RPS)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.False(t, cfg.RabbitMQ.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Redis.TTL)
	assert.Empty(t, cfg.Batch.DefaultSchedule)
	assert.Equal(t, 90*24*time.Hour, cfg.Batch.DefaultAfter)
}
