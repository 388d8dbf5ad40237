package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateServer(&cfg.Server)
	v.validateEngine(&cfg.Engine, cfg.Providers)
	v.validateState(&cfg.State)
	v.validateCatalog(&cfg.Catalog)
	v.validateProviders(cfg.Providers)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[cfg.Level] {
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"auto": true, "text": true, "json": true,
	}
	if !validFormats[cfg.Format] {
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}

	if cfg.File != "" && !isValidPath(cfg.File) {
		v.addError("log.file", cfg.File, "invalid file path")
	}
}

func (v *Validator) validateServer(cfg *ServerConfig) {
	if cfg.Port < 0 || cfg.Port > 65535 {
		v.addError("server.port", cfg.Port, "must be between 0 and 65535")
	}
	v.validateDuration("server.read_timeout", cfg.ReadTimeout)
	v.validateDuration("server.write_timeout", cfg.WriteTimeout)
	v.validateDuration("server.shutdown_timeout", cfg.ShutdownTimeout)
}

func (v *Validator) validateEngine(cfg *EngineConfig, providers map[string]ProviderConfig) {
	v.validateDuration("engine.step_delay", cfg.StepDelay)
	v.validateDuration("engine.step_timeout", cfg.StepTimeout)

	if strings.TrimSpace(cfg.FallbackRole) == "" {
		v.addError("engine.fallback_role", cfg.FallbackRole, "fallback role required")
	}

	if cfg.DefaultProvider == "" {
		v.addError("engine.default_provider", cfg.DefaultProvider, "default provider required")
	} else if _, ok := providers[cfg.DefaultProvider]; !ok {
		v.addError("engine.default_provider", cfg.DefaultProvider, "unknown provider")
	}

	if cfg.MaxRuns < 0 {
		v.addError("engine.max_runs", cfg.MaxRuns, "must be >= 0")
	}
}

func (v *Validator) validateState(cfg *StateConfig) {
	switch cfg.Backend {
	case "sqlite", "json":
	default:
		v.addError("state.backend", cfg.Backend, "must be one of: sqlite, json")
	}

	if cfg.Path == "" {
		v.addError("state.path", cfg.Path, "path required")
	} else if !isValidPath(cfg.Path) {
		v.addError("state.path", cfg.Path, "invalid file path")
	}
}

func (v *Validator) validateCatalog(cfg *CatalogConfig) {
	if cfg.Watch && cfg.Dir == "" {
		v.addError("catalog.dir", cfg.Dir, "directory required when watch is enabled")
	}
}

func (v *Validator) validateProviders(providers map[string]ProviderConfig) {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v.validateProvider("providers."+name, providers[name])
	}
}

func (v *Validator) validateProvider(prefix string, cfg ProviderConfig) {
	switch cfg.Type {
	case "echo":
		return
	case "openai", "anthropic":
	default:
		v.addError(prefix+".type", cfg.Type, "must be one of: openai, anthropic, echo")
		return
	}

	if cfg.Model == "" {
		v.addError(prefix+".model", cfg.Model, "model required")
	}

	if cfg.MaxTokens < 0 || cfg.MaxTokens > 200000 {
		v.addError(prefix+".max_tokens", cfg.MaxTokens, "must be between 0 and 200000")
	}

	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		v.addError(prefix+".temperature", cfg.Temperature, "must be between 0 and 2")
	}

	v.validateDuration(prefix+".timeout", cfg.Timeout)
}

func (v *Validator) validateDuration(field, value string) {
	if value == "" {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		v.addError(field, value, "invalid duration format")
		return
	}
	if d < 0 {
		v.addError(field, value, "must not be negative")
	}
}

func isValidPath(path string) bool {
	dir := filepath.Dir(path)
	_, err := os.Stat(dir)
	return err == nil || os.IsNotExist(err)
}

// ValidateConfig is a convenience function that creates a validator and validates config.
func ValidateConfig(cfg *Config) error {
	v := NewValidator()
	return v.Validate(cfg)
}
