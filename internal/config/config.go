package config

import (
	"os"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Log       LogConfig                 `mapstructure:"log"`
	Server    ServerConfig              `mapstructure:"server"`
	Engine    EngineConfig              `mapstructure:"engine"`
	State     StateConfig               `mapstructure:"state"`
	Catalog   CatalogConfig             `mapstructure:"catalog"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string   `mapstructure:"host"`
	Port            int      `mapstructure:"port"`
	ReadTimeout     string   `mapstructure:"read_timeout"`
	WriteTimeout    string   `mapstructure:"write_timeout"`
	ShutdownTimeout string   `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string `mapstructure:"cors_origins"`
}

// EngineConfig configures workflow execution.
type EngineConfig struct {
	StepDelay       string `mapstructure:"step_delay"`
	StepTimeout     string `mapstructure:"step_timeout"`
	FallbackRole    string `mapstructure:"fallback_role"`
	DefaultProvider string `mapstructure:"default_provider"`
	MaxRuns         int    `mapstructure:"max_runs"` // 0 = unlimited
}

// StepDelayDuration returns the parsed step delay. Invalid values yield zero.
func (c EngineConfig) StepDelayDuration() time.Duration {
	return parseDuration(c.StepDelay)
}

// StepTimeoutDuration returns the parsed step timeout. Zero means unbounded.
func (c EngineConfig) StepTimeoutDuration() time.Duration {
	return parseDuration(c.StepTimeout)
}

// StateConfig configures task and catalog persistence.
type StateConfig struct {
	Backend string `mapstructure:"backend"` // sqlite, json
	Path    string `mapstructure:"path"`
}

// CatalogConfig configures where role and template files are read from.
type CatalogConfig struct {
	Dir   string `mapstructure:"dir"`
	Watch bool   `mapstructure:"watch"`
}

// ProviderConfig configures a single provider. Providers are keyed by name
// under "providers"; roles refer to them by that name.
type ProviderConfig struct {
	Type        string  `mapstructure:"type"` // openai, anthropic, echo
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	APIKeyEnv   string  `mapstructure:"api_key_env"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	Timeout     string  `mapstructure:"timeout"`
}

// ResolveAPIKey returns the inline key, or the value of APIKeyEnv.
func (c ProviderConfig) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.APIKeyEnv != "" {
		return os.Getenv(c.APIKeyEnv)
	}
	return ""
}

// TimeoutDuration returns the parsed request timeout.
func (c ProviderConfig) TimeoutDuration() time.Duration {
	return parseDuration(c.Timeout)
}

// Durations returns the server timeouts.
func (c ServerConfig) Durations() (read, write, shutdown time.Duration) {
	return parseDuration(c.ReadTimeout), parseDuration(c.WriteTimeout), parseDuration(c.ShutdownTimeout)
}

func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
