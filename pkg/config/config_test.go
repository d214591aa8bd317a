package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// 環境の影響を受けないよう明示的に未設定にする
	for _, key := range []string{
		"SERVER_PORT", "RATE_LIMIT_PER_MINUTE", "RATE_LIMIT_PER_HOUR",
		"RATE_LIMIT_FAIL_CLOSED", "RATE_LIMIT_STORE", "JOB_WORKERS",
		"COURSE_ANALYSIS_TTL_DAYS", "RESOURCE_RESULTS_TTL_DAYS",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2, cfg.RateLimit.PerMinute)
	assert.Equal(t, 10, cfg.RateLimit.PerHour)
	assert.False(t, cfg.RateLimit.FailClosed)
	assert.Equal(t, "memory", cfg.RateLimit.Store)
	assert.Equal(t, 4, cfg.Jobs.Workers)
	assert.Equal(t, 30, cfg.Cache.AnalysisTTLDays)
	assert.Equal(t, 7, cfg.Cache.FullTTLDays)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("RATE_LIMIT_FAIL_CLOSED", "true")
	t.Setenv("RATE_LIMIT_STORE", "postgres")
	t.Setenv("JOB_WORKERS", "16")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.RateLimit.FailClosed)
	assert.Equal(t, "postgres", cfg.RateLimit.Store)
	assert.Equal(t, 16, cfg.Jobs.Workers)
}

func TestLoadInvalidIntFallsBackToDefault(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}
