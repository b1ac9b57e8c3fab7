package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/af-corp/prediction-orchestrator/internal/failure"
)

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("TEST_VAR", "hello")
	defer os.Unsetenv("TEST_VAR")

	tests := []struct {
		input    string
		expected string
	}{
		{"${TEST_VAR}", "hello"},
		{"${TEST_VAR:default}", "hello"},
		{"${UNSET_VAR:fallback}", "fallback"},
		{"${UNSET_VAR}", ""},
		{"no vars here", "no vars here"},
		{"prefix-${TEST_VAR}-suffix", "prefix-hello-suffix"},
	}

	for _, tt := range tests {
		got := expandEnvVars(tt.input)
		if got != tt.expected {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestLoadFile(t *testing.T) {
	// Create a temp YAML file
	tmpFile, err := os.CreateTemp("", "test-config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpFile.Name())

	content := `
server:
  host: "0.0.0.0"
  port: 9999
`
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatal(err)
	}
	tmpFile.Close()

	var cfg Config
	if err := LoadFile(tmpFile.Name(), &cfg); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected host 0.0.0.0, got %s", cfg.Server.Host)
	}
}

func TestLoadFile_WithEnvVars(t *testing.T) {
	os.Setenv("TEST_PORT", "7777")
	defer os.Unsetenv("TEST_PORT")

	tmpFile, err := os.CreateTemp("", "test-config-env-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpFile.Name())

	content := `
server:
  host: "${TEST_HOST:127.0.0.1}"
  port: ${TEST_PORT}
`
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatal(err)
	}
	tmpFile.Close()

	var cfg Config
	if err := LoadFile(tmpFile.Name(), &cfg); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected host 127.0.0.1 (default), got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("expected port 7777, got %d", cfg.Server.Port)
	}
}

const testProvidersYAML = `
providers:
  synthetic:
    type: synthetic
    base_url: https://api.synthetic.new/v1
    api_key: "${TEST_SYNTHETIC_KEY:syn-key}"
    requests_per_second: 2
  together:
    type: openai
    base_url: https://api.together.xyz/v1
    api_key: "${TEST_TOGETHER_KEY:}"
`

const testModelsYAML = `
models:
  deepseek-r1:
    display_name: DeepSeek R1
    provider: synthetic
    model: hf:deepseek-ai/DeepSeek-R1
    reasoning: true
    timeout: 120s
    pricing:
      input: 0.55
      output: 2.19
  deepseek-r1-together:
    display_name: DeepSeek R1 (Together)
    provider: together
    model: deepseek-ai/DeepSeek-R1
    active: false
    pricing:
      input: 3
      output: 7
fallbacks:
  deepseek-r1: deepseek-r1-together
`

func writeConfigDir(t *testing.T, predictor, models, providers string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"predictor.yaml": predictor,
		"models.yaml":    models,
		"providers.yaml": providers,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoader_Load(t *testing.T) {
	dir := writeConfigDir(t, "orchestration:\n  max_concurrency: 4\n", testModelsYAML, testProvidersYAML)

	l := NewLoader(dir, testLogger())
	if err := l.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := l.Config()
	if cfg.Orchestration.MaxConcurrency != 4 {
		t.Errorf("expected max_concurrency 4, got %d", cfg.Orchestration.MaxConcurrency)
	}
	// Untouched defaults survive the partial file.
	if cfg.Orchestration.Health.FailureThreshold != 5 {
		t.Errorf("expected default failure threshold 5, got %d", cfg.Orchestration.Health.FailureThreshold)
	}
	if cfg.Orchestration.ReasoningTimeout != 90*time.Second {
		t.Errorf("expected default reasoning timeout 90s, got %s", cfg.Orchestration.ReasoningTimeout)
	}

	models := l.Models()
	r1 := models.Models["deepseek-r1"]
	if !r1.Reasoning || r1.Timeout != 120*time.Second || r1.Pricing.Output != 2.19 {
		t.Errorf("unexpected model config: %+v", r1)
	}
	if !r1.IsActive() {
		t.Error("model without active flag should default to active")
	}
	if models.Models["deepseek-r1-together"].IsActive() {
		t.Error("expected explicit active: false to be honoured")
	}
	if models.Fallbacks["deepseek-r1"] != "deepseek-r1-together" {
		t.Errorf("unexpected fallbacks: %v", models.Fallbacks)
	}

	providers := l.Providers()
	if !providers.Providers["synthetic"].HasCredential() {
		t.Error("expected synthetic key from env default")
	}
	if providers.Providers["together"].HasCredential() {
		t.Error("expected together to have no credential")
	}
}

func TestLoader_Load_UnknownProvider(t *testing.T) {
	models := `
models:
  orphan:
    provider: nowhere
    model: x
`
	dir := writeConfigDir(t, "", models, testProvidersYAML)

	err := NewLoader(dir, testLogger()).Load()
	var ce *failure.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *failure.ConfigError, got %v", err)
	}
}

func TestLoader_Load_MissingFile(t *testing.T) {
	dir := t.TempDir()
	if err := NewLoader(dir, testLogger()).Load(); err == nil {
		t.Fatal("expected error for missing files")
	}
}

func TestLoader_OnReloadHooks(t *testing.T) {
	l := NewLoader(t.TempDir(), testLogger())
	called := 0
	l.OnReload(func() { called++ })
	for _, fn := range l.reloadHooks() {
		fn()
	}
	if called != 1 {
		t.Errorf("expected hook to run once, ran %d times", called)
	}
}

func TestIsConfigFile(t *testing.T) {
	if !isConfigFile("/etc/predictor/models.yaml") {
		t.Error("models.yaml should be watched")
	}
	if isConfigFile("/etc/predictor/.models.yaml.swp") {
		t.Error("editor swap files should be ignored")
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, Name: "p", User: "u", Password: "pw", MaxOpenConns: 10}
	want := "postgres://u:pw@db:5432/p?sslmode=disable&pool_max_conns=10"
	if got := d.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
