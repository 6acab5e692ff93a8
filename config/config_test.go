package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)

	// Buffer defaults
	assert.Equal(t, 3, cfg.Buffer.AppendErrorMaxRetry)
	assert.True(t, math.IsInf(cfg.Buffer.LiveBackBufferLength, 1))
	assert.False(t, cfg.Buffer.LiveDurationInfinity)
	assert.Equal(t, 0.5, cfg.Buffer.MaxBufferHole)

	// ABR defaults
	assert.Equal(t, 3.0, cfg.ABR.EWMAFastLive)
	assert.Equal(t, 9.0, cfg.ABR.EWMASlowLive)
	assert.Equal(t, 3.0, cfg.ABR.EWMAFastVoD)
	assert.Equal(t, 9.0, cfg.ABR.EWMASlowVoD)
	assert.Equal(t, 500000.0, cfg.ABR.EWMADefaultEstimate)

	// Loader defaults
	assert.Equal(t, 10*time.Second, cfg.Loader.ManifestLoadingTimeout)
	assert.Equal(t, 10*time.Second, cfg.Loader.LevelLoadingTimeout)
	assert.Equal(t, 20*time.Second, cfg.Loader.FragLoadingTimeout)

	assert.Equal(t, Default(), cfg)
}

func TestLoad_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "hlsengine.yaml")

	configContent := `
logging:
  level: "debug"
  format: "json"

buffer:
  append_error_max_retry: 5
  live_back_buffer_length: 30
  live_duration_infinity: true

abr:
  ewma_fast_live: 2
  ewma_default_estimate: 1000000

loader:
  level_loading_timeout: 4s
`
	err := os.WriteFile(configPath, []byte(configContent), 0o600)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 5, cfg.Buffer.AppendErrorMaxRetry)
	assert.Equal(t, 30.0, cfg.Buffer.LiveBackBufferLength)
	assert.True(t, cfg.Buffer.LiveDurationInfinity)
	assert.Equal(t, 2.0, cfg.ABR.EWMAFastLive)
	assert.Equal(t, 9.0, cfg.ABR.EWMASlowLive)
	assert.Equal(t, 1e6, cfg.ABR.EWMADefaultEstimate)
	assert.Equal(t, 4*time.Second, cfg.Loader.LevelLoadingTimeout)
	assert.Equal(t, 10*time.Second, cfg.Loader.ManifestLoadingTimeout)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HLSENGINE_LOGGING_LEVEL", "warn")
	t.Setenv("HLSENGINE_BUFFER_MAX_BUFFER_HOLE", "0.25")
	t.Setenv("HLSENGINE_LOADER_FRAG_LOADING_TIMEOUT", "45s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 0.25, cfg.Buffer.MaxBufferHole)
	assert.Equal(t, 45*time.Second, cfg.Loader.FragLoadingTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "hlsengine.yaml")

	configContent := `
buffer:
  append_error_max_retry: 5
logging:
  format: "json"
`
	err := os.WriteFile(configPath, []byte(configContent), 0o600)
	require.NoError(t, err)

	t.Setenv("HLSENGINE_BUFFER_APPEND_ERROR_MAX_RETRY", "1")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Buffer.AppendErrorMaxRetry)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_InvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "hlsengine.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("logging: [unclosed"), 0o600))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"negative retries", func(c *Config) { c.Buffer.AppendErrorMaxRetry = -1 }, "append_error_max_retry"},
		{"negative hole", func(c *Config) { c.Buffer.MaxBufferHole = -0.1 }, "max_buffer_hole"},
		{"NaN back buffer", func(c *Config) { c.Buffer.LiveBackBufferLength = math.NaN() }, "live_back_buffer_length"},
		{"zero half-life", func(c *Config) { c.ABR.EWMASlowVoD = 0 }, "abr.ewma_slow_vod"},
		{"zero estimate", func(c *Config) { c.ABR.EWMADefaultEstimate = 0 }, "ewma_default_estimate"},
		{"zero timeout", func(c *Config) { c.Loader.LevelLoadingTimeout = 0 }, "loader timeouts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestBufferConfig_LiveBackBufferEnabled(t *testing.T) {
	cfg := Default().Buffer
	assert.False(t, cfg.LiveBackBufferEnabled())

	cfg.LiveBackBufferLength = 30
	assert.True(t, cfg.LiveBackBufferEnabled())

	cfg.LiveBackBufferLength = -1
	assert.False(t, cfg.LiveBackBufferEnabled())
}
