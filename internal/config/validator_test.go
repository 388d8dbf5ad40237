package config

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Log:    LogConfig{Level: "info", Format: "auto"},
		Server: ServerConfig{Host: "127.0.0.1", Port: 8080, ReadTimeout: "30s"},
		Engine: EngineConfig{
			StepDelay:       "1s",
			StepTimeout:     "0s",
			FallbackRole:    "assistant",
			DefaultProvider: "echo",
		},
		State:   StateConfig{Backend: "sqlite", Path: "state/rolechain.db"},
		Catalog: CatalogConfig{Dir: "catalog", Watch: true},
		Providers: map[string]ProviderConfig{
			"echo": {Type: "echo"},
			"openai": {
				Type:        "openai",
				Model:       "gpt-4o-mini",
				MaxTokens:   1024,
				Temperature: 0.5,
				Timeout:     "60s",
			},
		},
	}
}

func TestValidator_Valid(t *testing.T) {
	if err := ValidateConfig(validConfig()); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidator_Fields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"server port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"read timeout", func(c *Config) { c.Server.ReadTimeout = "soon" }, "server.read_timeout"},
		{"step delay", func(c *Config) { c.Engine.StepDelay = "-1s" }, "engine.step_delay"},
		{"step timeout", func(c *Config) { c.Engine.StepTimeout = "forever" }, "engine.step_timeout"},
		{"fallback role", func(c *Config) { c.Engine.FallbackRole = " " }, "engine.fallback_role"},
		{"default provider", func(c *Config) { c.Engine.DefaultProvider = "ghost" }, "engine.default_provider"},
		{"state backend", func(c *Config) { c.State.Backend = "postgres" }, "state.backend"},
		{"state path", func(c *Config) { c.State.Path = "" }, "state.path"},
		{"catalog dir", func(c *Config) { c.Catalog.Dir = "" }, "catalog.dir"},
		{"provider type", func(c *Config) { c.Providers["x"] = ProviderConfig{Type: "grpc"} }, "providers.x.type"},
		{"provider model", func(c *Config) {
			p := c.Providers["openai"]
			p.Model = ""
			c.Providers["openai"] = p
		}, "providers.openai.model"},
		{"provider temperature", func(c *Config) {
			p := c.Providers["openai"]
			p.Temperature = 3
			c.Providers["openai"] = p
		}, "providers.openai.temperature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("error type = %T, want ValidationErrors", err)
			}
			found := false
			for _, e := range verrs {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for %s in %v", tt.field, err)
			}
		})
	}
}

func TestValidator_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Log.Level = "loud"
	cfg.State.Backend = "mongo"

	v := NewValidator()
	err := v.Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(v.Errors()) != 2 {
		t.Errorf("got %d errors, want 2: %v", len(v.Errors()), err)
	}
	if !strings.Contains(err.Error(), "log.level") || !strings.Contains(err.Error(), "state.backend") {
		t.Errorf("error message missing fields: %v", err)
	}
}
