package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoader_Defaults(t *testing.T) {
	loader := NewLoader().WithConfigFile(writeConfig(t, "log:\n  level: info\n"))
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Format != "auto" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "auto")
	}
	if cfg.Engine.StepDelayDuration() != time.Second {
		t.Errorf("Engine.StepDelay = %v, want 1s", cfg.Engine.StepDelayDuration())
	}
	if cfg.Engine.StepTimeoutDuration() != 0 {
		t.Errorf("Engine.StepTimeout = %v, want 0", cfg.Engine.StepTimeoutDuration())
	}
	if cfg.Engine.FallbackRole != "assistant" {
		t.Errorf("Engine.FallbackRole = %q, want %q", cfg.Engine.FallbackRole, "assistant")
	}
	if cfg.State.Backend != "sqlite" {
		t.Errorf("State.Backend = %q, want %q", cfg.State.Backend, "sqlite")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Providers["echo"].Type != "echo" {
		t.Errorf("Providers[echo].Type = %q, want %q", cfg.Providers["echo"].Type, "echo")
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoader_EnvOverride(t *testing.T) {
	t.Setenv("ROLECHAIN_LOG_LEVEL", "debug")
	t.Setenv("ROLECHAIN_ENGINE_STEP_DELAY", "250ms")
	t.Setenv("ROLECHAIN_STATE_BACKEND", "json")

	cfg, err := NewLoader().WithConfigFile(writeConfig(t, "engine:\n  step_delay: 2s\n")).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
	if cfg.Engine.StepDelayDuration() != 250*time.Millisecond {
		t.Errorf("Engine.StepDelay = %v, want 250ms", cfg.Engine.StepDelayDuration())
	}
	if cfg.State.Backend != "json" {
		t.Errorf("State.Backend = %q, want %q", cfg.State.Backend, "json")
	}
}

func TestLoader_ConfigFile(t *testing.T) {
	path := writeConfig(t, DefaultConfigYAML)

	loader := NewLoader().WithConfigFile(path)
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loader.ConfigFile() != path {
		t.Errorf("ConfigFile() = %q, want %q", loader.ConfigFile(), path)
	}

	openai, ok := cfg.Providers["openai"]
	if !ok {
		t.Fatal("openai provider missing")
	}
	if openai.Type != "openai" || openai.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("openai provider = %+v", openai)
	}
	if openai.TimeoutDuration() != 120*time.Second {
		t.Errorf("openai timeout = %v, want 120s", openai.TimeoutDuration())
	}
	if _, ok := cfg.Providers["echo"]; !ok {
		t.Error("echo provider missing")
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("default YAML should validate: %v", err)
	}
}

func TestLoader_InvalidFile(t *testing.T) {
	path := writeConfig(t, "engine: [unclosed\n")
	if _, err := NewLoader().WithConfigFile(path).Load(); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestProviderConfig_ResolveAPIKey(t *testing.T) {
	t.Setenv("ROLECHAIN_TEST_KEY", "from-env")

	inline := ProviderConfig{APIKey: "inline", APIKeyEnv: "ROLECHAIN_TEST_KEY"}
	if got := inline.ResolveAPIKey(); got != "inline" {
		t.Errorf("ResolveAPIKey() = %q, want inline", got)
	}
	env := ProviderConfig{APIKeyEnv: "ROLECHAIN_TEST_KEY"}
	if got := env.ResolveAPIKey(); got != "from-env" {
		t.Errorf("ResolveAPIKey() = %q, want from-env", got)
	}
	if got := (ProviderConfig{}).ResolveAPIKey(); got != "" {
		t.Errorf("ResolveAPIKey() = %q, want empty", got)
	}
}

func TestEnsureProjectConfig(t *testing.T) {
	root := t.TempDir()

	path, created, err := EnsureProjectConfig(root, false)
	if err != nil {
		t.Fatalf("EnsureProjectConfig() error = %v", err)
	}
	if !created {
		t.Error("expected file to be created")
	}
	if path != filepath.Join(root, ".rolechain", "config.yaml") {
		t.Errorf("path = %q", path)
	}

	if err := os.WriteFile(path, []byte("custom"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, created, err = EnsureProjectConfig(root, false); err != nil || created {
		t.Errorf("second call: created=%v err=%v, want existing file kept", created, err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "custom" {
		t.Errorf("existing config overwritten: %q", data)
	}

	if _, created, err = EnsureProjectConfig(root, true); err != nil || !created {
		t.Errorf("forced call: created=%v err=%v", created, err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != DefaultConfigYAML {
		t.Error("forced call should rewrite the default config")
	}
}

func TestAtomicWrite_PreservesPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := AtomicWrite(path, []byte("a")); err != nil {
		t.Fatalf("AtomicWrite error: %v", err)
	}
	if err := os.Chmod(path, 0o640); err != nil {
		t.Fatal(err)
	}
	if err := AtomicWrite(path, []byte("b")); err != nil {
		t.Fatalf("AtomicWrite error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o640 {
		t.Errorf("perm = %v, want 0640", info.Mode().Perm())
	}
	data, _ := os.ReadFile(path)
	if string(data) != "b" {
		t.Errorf("content = %q, want b", data)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
