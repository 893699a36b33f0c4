// Package config implements the probekit configuration resolver. A base
// document and an environment overlay are deep-merged into one immutable
// EffectiveConfig: maps merge recursively, scalars overlay-wins, arrays
// replace wholesale. Environment variable overrides are applied last.
// The resolved configuration is read-only for the process lifetime.
package config

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Feature flags recognized by the built-in tool catalog.
const (
	FeatureAPITools     = "enableApiTools"
	FeatureBrowserTools = "enableBrowserTools"
	FeatureFileTools    = "enableFileTools"
	FeatureNetworkTools = "enableNetworkTools"
)

// ToolSettings holds per-tool execution parameters.
type ToolSettings struct {
	TimeoutMs    int `mapstructure:"timeout_ms" toml:"timeout_ms" validate:"min=0"`
	MaxRetries   int `mapstructure:"max_retries" toml:"max_retries" validate:"min=0"`
	RetryDelayMs int `mapstructure:"retry_delay_ms" toml:"retry_delay_ms" validate:"min=0"`
}

// SecurityConfig holds session and rate limits for the session manager.
type SecurityConfig struct {
	MaxSessions           int      `mapstructure:"max_sessions" toml:"max_sessions" validate:"min=1"`
	MaxHistoryEntries     int      `mapstructure:"max_history_entries" toml:"max_history_entries" validate:"min=1"`
	MaxRequestsPerSecond  int      `mapstructure:"max_requests_per_second" toml:"max_requests_per_second" validate:"min=1"`
	RateLimitEnabled      bool     `mapstructure:"rate_limit_enabled" toml:"rate_limit_enabled"`
	SessionTimeoutSeconds int      `mapstructure:"session_timeout_seconds" toml:"session_timeout_seconds" validate:"min=1"`
	MaxRequestTimeoutMs   int      `mapstructure:"max_request_timeout_ms" toml:"max_request_timeout_ms" validate:"min=1"`
	RetryableStatuses     []int    `mapstructure:"retryable_statuses" toml:"retryable_statuses" validate:"dive,min=100,max=599"`
	RedactHeaders         []string `mapstructure:"redact_headers" toml:"redact_headers"`
}

// LoggingConfig holds logging parameters.
type LoggingConfig struct {
	Level string `mapstructure:"level" toml:"level" validate:"omitempty,oneof=trace debug info warn error"`
}

// ServerConfig holds HTTP transport parameters.
type ServerConfig struct {
	Port       string `mapstructure:"port" toml:"port"`
	HandleCORS bool   `mapstructure:"handle_cors" toml:"handle_cors"`
}

// OutputConfig holds artifact persistence parameters.
type OutputConfig struct {
	Dir                    string `mapstructure:"dir" toml:"dir"`
	CompressReports        bool   `mapstructure:"compress_reports" toml:"compress_reports"`
	CompressThresholdBytes int    `mapstructure:"compress_threshold_bytes" toml:"compress_threshold_bytes" validate:"min=0"`
}

// EffectiveConfig is the fully merged, environment-resolved configuration
// governing features, limits, and tool parameters. Immutable after Resolve.
type EffectiveConfig struct {
	Features map[string]bool         `mapstructure:"features" toml:"features"`
	Tools    map[string]ToolSettings `mapstructure:"tools" toml:"tools"`
	Security SecurityConfig          `mapstructure:"security" toml:"security"`
	Logging  LoggingConfig           `mapstructure:"logging" toml:"logging"`
	Server   ServerConfig            `mapstructure:"server" toml:"server"`
	Output   OutputConfig            `mapstructure:"output" toml:"output"`
}

// FeatureEnabled reports whether the named feature flag is true.
// Flags missing after the merge are disabled.
func (c *EffectiveConfig) FeatureEnabled(flag string) bool {
	if flag == "" {
		return true
	}
	return c.Features[flag]
}

// ToolSettingsFor returns the settings for the named tool, falling back to
// process-wide defaults for any unset field.
func (c *EffectiveConfig) ToolSettingsFor(name string) ToolSettings {
	s := c.Tools[name]
	if s.TimeoutMs == 0 {
		s.TimeoutMs = defaultToolTimeoutMs
	}
	if s.TimeoutMs > c.Security.MaxRequestTimeoutMs {
		s.TimeoutMs = c.Security.MaxRequestTimeoutMs
	}
	if s.RetryDelayMs == 0 {
		s.RetryDelayMs = defaultRetryDelayMs
	}
	return s
}

// SessionTimeout returns the idle-expiry window for sessions.
func (c *EffectiveConfig) SessionTimeout() time.Duration {
	return time.Duration(c.Security.SessionTimeoutSeconds) * time.Second
}

// MaxRequestTimeout returns the ceiling applied to per-call timeout overrides.
func (c *EffectiveConfig) MaxRequestTimeout() time.Duration {
	return time.Duration(c.Security.MaxRequestTimeoutMs) * time.Millisecond
}

// IsRetryableStatus reports whether the HTTP status is configured as retryable.
func (c *EffectiveConfig) IsRetryableStatus(status int) bool {
	for _, s := range c.Security.RetryableStatuses {
		if s == status {
			return true
		}
	}
	return false
}

const (
	defaultToolTimeoutMs = 10000
	defaultRetryDelayMs  = 250
)

// applyDefaults fills process defaults for any limit left unset after merge.
func (c *EffectiveConfig) applyDefaults() {
	if c.Features == nil {
		c.Features = map[string]bool{}
	}
	if c.Tools == nil {
		c.Tools = map[string]ToolSettings{}
	}
	if c.Security.MaxSessions == 0 {
		c.Security.MaxSessions = 25
	}
	if c.Security.MaxHistoryEntries == 0 {
		c.Security.MaxHistoryEntries = 100
	}
	if c.Security.MaxRequestsPerSecond == 0 {
		c.Security.MaxRequestsPerSecond = 10
	}
	if c.Security.SessionTimeoutSeconds == 0 {
		c.Security.SessionTimeoutSeconds = 300
	}
	if c.Security.MaxRequestTimeoutMs == 0 {
		c.Security.MaxRequestTimeoutMs = 30000
	}
	if c.Security.RetryableStatuses == nil {
		c.Security.RetryableStatuses = []int{500, 502, 503, 504}
	}
	if c.Security.RedactHeaders == nil {
		c.Security.RedactHeaders = []string{"Authorization", "Cookie", "X-Api-Key"}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Server.Port == "" {
		c.Server.Port = "8711"
	}
	if c.Output.CompressThresholdBytes == 0 {
		c.Output.CompressThresholdBytes = 64 * 1024
	}
}

// decode converts a merged configuration tree into the typed EffectiveConfig
// and validates it. The schema is closed: unknown keys are rejected so typos
// surface at startup instead of silently resolving to defaults.
func decode(tree map[string]any) (*EffectiveConfig, error) {
	cfg := &EffectiveConfig{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      cfg,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(tree); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := validate.Struct(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()
