// Package config provides configuration management for hlsengine using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultAppendErrorMaxRetry    = 3
	defaultMaxBufferHole          = 0.5
	defaultEWMAFastHalfLife       = 3.0
	defaultEWMASlowHalfLife       = 9.0
	defaultEWMADefaultEstimate    = 5e5 // 500 kbps
	defaultManifestLoadingTimeout = 10 * time.Second
	defaultLevelLoadingTimeout    = 10 * time.Second
	defaultFragLoadingTimeout     = 20 * time.Second
	defaultUserAgent              = "hlsengine"
)

// Config holds all configuration for the engine.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Buffer  BufferConfig  `mapstructure:"buffer"`
	ABR     ABRConfig     `mapstructure:"abr"`
	Loader  LoaderConfig  `mapstructure:"loader"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// BufferConfig holds buffer controller configuration.
type BufferConfig struct {
	AppendErrorMaxRetry  int     `mapstructure:"append_error_max_retry"`
	LiveBackBufferLength float64 `mapstructure:"live_back_buffer_length"` // seconds kept behind the playhead for live streams (+Inf = keep all)
	LiveDurationInfinity bool    `mapstructure:"live_duration_infinity"`
	MaxBufferHole        float64 `mapstructure:"max_buffer_hole"` // seconds
}

// ABRConfig holds bandwidth estimation configuration. Half-lives are in seconds.
type ABRConfig struct {
	EWMAFastLive        float64 `mapstructure:"ewma_fast_live"`
	EWMASlowLive        float64 `mapstructure:"ewma_slow_live"`
	EWMAFastVoD         float64 `mapstructure:"ewma_fast_vod"`
	EWMASlowVoD         float64 `mapstructure:"ewma_slow_vod"`
	EWMADefaultEstimate float64 `mapstructure:"ewma_default_estimate"` // bits per second
}

// LoaderConfig holds playlist loading configuration.
type LoaderConfig struct {
	ManifestLoadingTimeout time.Duration `mapstructure:"manifest_loading_timeout"`
	LevelLoadingTimeout    time.Duration `mapstructure:"level_loading_timeout"`
	FragLoadingTimeout     time.Duration `mapstructure:"frag_loading_timeout"`
	UserAgent              string        `mapstructure:"user_agent"`
}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			TimeFormat: time.RFC3339,
		},
		Buffer: BufferConfig{
			AppendErrorMaxRetry:  defaultAppendErrorMaxRetry,
			LiveBackBufferLength: math.Inf(1),
			MaxBufferHole:        defaultMaxBufferHole,
		},
		ABR: ABRConfig{
			EWMAFastLive:        defaultEWMAFastHalfLife,
			EWMASlowLive:        defaultEWMASlowHalfLife,
			EWMAFastVoD:         defaultEWMAFastHalfLife,
			EWMASlowVoD:         defaultEWMASlowHalfLife,
			EWMADefaultEstimate: defaultEWMADefaultEstimate,
		},
		Loader: LoaderConfig{
			ManifestLoadingTimeout: defaultManifestLoadingTimeout,
			LevelLoadingTimeout:    defaultLevelLoadingTimeout,
			FragLoadingTimeout:     defaultFragLoadingTimeout,
			UserAgent:              defaultUserAgent,
		},
	}
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with HLSENGINE_ and use underscores for nesting.
// Example: HLSENGINE_BUFFER_MAX_BUFFER_HOLE=0.3.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("hlsengine")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.hlsengine")
	}

	v.SetEnvPrefix("HLSENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	d := Default()

	// Logging defaults
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.add_source", d.Logging.AddSource)
	v.SetDefault("logging.time_format", d.Logging.TimeFormat)

	// Buffer defaults
	v.SetDefault("buffer.append_error_max_retry", d.Buffer.AppendErrorMaxRetry)
	v.SetDefault("buffer.live_back_buffer_length", d.Buffer.LiveBackBufferLength)
	v.SetDefault("buffer.live_duration_infinity", d.Buffer.LiveDurationInfinity)
	v.SetDefault("buffer.max_buffer_hole", d.Buffer.MaxBufferHole)

	// ABR defaults
	v.SetDefault("abr.ewma_fast_live", d.ABR.EWMAFastLive)
	v.SetDefault("abr.ewma_slow_live", d.ABR.EWMASlowLive)
	v.SetDefault("abr.ewma_fast_vod", d.ABR.EWMAFastVoD)
	v.SetDefault("abr.ewma_slow_vod", d.ABR.EWMASlowVoD)
	v.SetDefault("abr.ewma_default_estimate", d.ABR.EWMADefaultEstimate)

	// Loader defaults
	v.SetDefault("loader.manifest_loading_timeout", d.Loader.ManifestLoadingTimeout)
	v.SetDefault("loader.level_loading_timeout", d.Loader.LevelLoadingTimeout)
	v.SetDefault("loader.frag_loading_timeout", d.Loader.FragLoadingTimeout)
	v.SetDefault("loader.user_agent", d.Loader.UserAgent)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	// Buffer validation
	if c.Buffer.AppendErrorMaxRetry < 0 {
		return fmt.Errorf("buffer.append_error_max_retry must not be negative")
	}
	if math.IsNaN(c.Buffer.MaxBufferHole) || c.Buffer.MaxBufferHole < 0 {
		return fmt.Errorf("buffer.max_buffer_hole must not be negative")
	}
	if math.IsNaN(c.Buffer.LiveBackBufferLength) {
		return fmt.Errorf("buffer.live_back_buffer_length must be a number")
	}

	// ABR validation
	for name, hl := range map[string]float64{
		"abr.ewma_fast_live": c.ABR.EWMAFastLive,
		"abr.ewma_slow_live": c.ABR.EWMASlowLive,
		"abr.ewma_fast_vod":  c.ABR.EWMAFastVoD,
		"abr.ewma_slow_vod":  c.ABR.EWMASlowVoD,
	} {
		if !(hl > 0) {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if !(c.ABR.EWMADefaultEstimate > 0) {
		return fmt.Errorf("abr.ewma_default_estimate must be positive")
	}

	// Loader validation
	if c.Loader.ManifestLoadingTimeout <= 0 || c.Loader.LevelLoadingTimeout <= 0 || c.Loader.FragLoadingTimeout <= 0 {
		return fmt.Errorf("loader timeouts must be positive")
	}

	return nil
}

// LiveBackBufferEnabled reports whether live back-buffer trimming applies.
func (c *BufferConfig) LiveBackBufferEnabled() bool {
	return !math.IsInf(c.LiveBackBufferLength, 0) && c.LiveBackBufferLength >= 0
}
