package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psmlab/realtime/pkg/observability"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "redis://localhost:6379/0", cfg.Store.URL)
	assert.Equal(t, ":8080", cfg.Monitor.Addr)
	assert.Equal(t, "@hourly", cfg.Monitor.SweepSchedule)
	assert.Equal(t, 7*24*time.Hour, cfg.Monitor.SweepMaxAge)
	assert.Equal(t, 300, cfg.Monitor.RateLimit)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.MetricsEnabled)
	assert.True(t, cfg.Monitor.WatchRules)
	assert.Empty(t, cfg.Monitor.RulesPath)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PSM_REDIS_URL", "redis://cache.internal:6380/2")
	t.Setenv("PSM_MONITOR_ADDR", ":9000")
	t.Setenv("PSM_LOG_LEVEL", "debug")
	t.Setenv("PSM_SWEEP_MAX_AGE", "48h")
	t.Setenv("PSM_RATE_LIMIT", "50")
	t.Setenv("PSM_METRICS_ENABLED", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "redis://cache.internal:6380/2", cfg.Store.URL)
	assert.Equal(t, ":9000", cfg.Monitor.Addr)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.Equal(t, 48*time.Hour, cfg.Monitor.SweepMaxAge)
	assert.Equal(t, 50, cfg.Monitor.RateLimit)
	assert.False(t, cfg.Observability.MetricsEnabled)
}

func TestLoadConfig_RulesPathMustExist(t *testing.T) {
	t.Setenv("PSM_RULES_PATH", "/nonexistent/alert-rules.yaml")

	_, err := LoadConfig()
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "alert-rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: []\n"), 0644))
	t.Setenv("PSM_RULES_PATH", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Monitor.RulesPath)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadConfig()
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Store.URL = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Monitor.Addr = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Monitor.SweepMaxAge = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Monitor.RateLimit = -1
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Monitor.RateLimitWindow = 0
	assert.Error(t, cfg.Validate())
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("PSM_TEST_STRING", "value")
	t.Setenv("PSM_TEST_BOOL", "1")
	t.Setenv("PSM_TEST_INT", "42")
	t.Setenv("PSM_TEST_BAD_INT", "not-a-number")
	t.Setenv("PSM_TEST_DURATION", "90s")

	assert.Equal(t, "value", getEnv("PSM_TEST_STRING", "default"))
	assert.Equal(t, "default", getEnv("PSM_TEST_MISSING", "default"))
	assert.True(t, getEnvBool("PSM_TEST_BOOL", false))
	assert.Equal(t, 42, getEnvInt("PSM_TEST_INT", 0))
	assert.Equal(t, 7, getEnvInt("PSM_TEST_BAD_INT", 7))
	assert.Equal(t, 90*time.Second, getEnvDuration("PSM_TEST_DURATION", time.Minute))
	assert.Equal(t, time.Minute, getEnvDuration("PSM_TEST_MISSING", time.Minute))
}
