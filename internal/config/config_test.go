package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"cveroast/internal/model"
	"cveroast/internal/report"
	"cveroast/internal/state"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func validConfig() Config {
	cfg := Default()
	cfg.WebhookURL = "https://discord.example/hook"
	cfg.APIKey = "key"
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.CommitID != "latest" || cfg.RunMode != RunModeScan {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.MaxMessageLength != 1900 || cfg.Temperature != 0.7 {
		t.Errorf("unexpected delivery defaults %+v", cfg)
	}
	if cfg.ScannerTimeout() != 10*time.Minute || cfg.NarrationTimeout() != 2*time.Minute || cfg.WebhookTimeout() != 30*time.Second {
		t.Error("unexpected default timeouts")
	}
}

func TestLoadFile_TOML(t *testing.T) {
	cfg := Default()
	if err := LoadFile(&cfg, filepath.Join("testdata", "cveroast.toml")); err != nil {
		t.Fatal(err)
	}
	if cfg.APIKey != "toml-key" || cfg.CommitID != "abc123" || cfg.RunMode != RunModeServe {
		t.Errorf("unexpected values %+v", cfg)
	}
	if cfg.Threshold() != model.SeverityHigh {
		t.Errorf("expected HIGH threshold, got %s", cfg.Threshold())
	}
	if cfg.MaxPromptFindings != 10 || cfg.Temperature != 0.2 || !cfg.OWASPNoUpdate {
		t.Errorf("unexpected numeric values %+v", cfg)
	}
	if cfg.ScannerTimeout() != 5*time.Minute {
		t.Errorf("expected 5m scanner timeout, got %s", cfg.ScannerTimeout())
	}
	// Untouched keys keep their defaults.
	if cfg.ListenAddr != ":8080" {
		t.Errorf("expected default listen addr, got %s", cfg.ListenAddr)
	}
}

func TestLoadFile_YAML(t *testing.T) {
	cfg := Default()
	if err := LoadFile(&cfg, filepath.Join("testdata", "cveroast.yaml")); err != nil {
		t.Fatal(err)
	}
	if cfg.APIKey != "yaml-key" || cfg.TargetDir != "./src" || cfg.ListenAddr != "127.0.0.1:9090" {
		t.Errorf("unexpected values %+v", cfg)
	}
	if cfg.MaxMessageLength != 1500 || cfg.WebhookTimeout() != 10*time.Second || cfg.LogFormat != "json" {
		t.Errorf("unexpected values %+v", cfg)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	cfg := Default()
	if err := LoadFile(&cfg, filepath.Join("testdata", "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
	if err := LoadFile(&cfg, filepath.Join("testdata", "humor.txt")); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(&cfg, envMap(map[string]string{
		"DISCORD_WEBHOOK_URL": "https://discord.example/env",
		"DEEPSEEK_API_KEY":    " env-key ",
		"COMMIT_ID":           "deadbeef",
		"MAX_PROMPT_FINDINGS": "7",
		"SCANNER_TIMEOUT":     "90s",
		"NARRATION_TIMEOUT":   "45",
		"TEMPERATURE":         "1.1",
		"OWASP_NO_UPDATE":     "true",
		"LISTEN_ADDR":         "",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIKey != "env-key" || cfg.CommitID != "deadbeef" || cfg.MaxPromptFindings != 7 {
		t.Errorf("unexpected values %+v", cfg)
	}
	if cfg.ScannerTimeout() != 90*time.Second || cfg.NarrationTimeout() != 45*time.Second {
		t.Errorf("unexpected timeouts %s %s", cfg.ScannerTimeout(), cfg.NarrationTimeout())
	}
	if cfg.Temperature != 1.1 || !cfg.OWASPNoUpdate {
		t.Errorf("unexpected values %+v", cfg)
	}
	if cfg.ListenAddr != ":8080" {
		t.Error("expected empty env value to be ignored")
	}
}

func TestApplyEnv_BadValues(t *testing.T) {
	for _, tc := range []struct{ key, val string }{
		{"MAX_MESSAGE_LENGTH", "lots"},
		{"WEBHOOK_TIMEOUT", "soon"},
		{"TEMPERATURE", "hot"},
		{"OWASP_NO_UPDATE", "maybe"},
		{"SCANNER_TIMEOUT", "500ms"},
		{"NARRATION_TIMEOUT", "-5"},
		{"WEBHOOK_TIMEOUT", "0"},
	} {
		key, val := tc.key, tc.val
		cfg := Default()
		if err := ApplyEnv(&cfg, envMap(map[string]string{key: val})); err == nil {
			t.Errorf("%s=%s: expected error", key, val)
		}
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	dotenv := "DEEPSEEK_API_KEY=dotenv-key\nCOMMIT_ID=from-dotenv\nDISCORD_WEBHOOK_URL=https://discord.example/dotenv\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(dotenv), 0o644); err != nil {
		t.Fatal(err)
	}
	yml := "api_key: file-key\nrun_mode: serve\ncommit_id: from-file\n"
	if err := os.WriteFile(filepath.Join(dir, "c.yml"), []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	// The real environment wins over .env.
	t.Setenv("COMMIT_ID", "from-env")
	t.Setenv("DEEPSEEK_API_KEY", "")
	os.Unsetenv("DEEPSEEK_API_KEY")
	t.Setenv("DISCORD_WEBHOOK_URL", "")
	os.Unsetenv("DISCORD_WEBHOOK_URL")

	cfg, err := Load("c.yml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CommitID != "from-env" {
		t.Errorf("expected env to win, got %s", cfg.CommitID)
	}
	if cfg.APIKey != "dotenv-key" {
		t.Errorf("expected .env to override the file, got %s", cfg.APIKey)
	}
	if cfg.RunMode != RunModeServe {
		t.Errorf("expected file value for run mode, got %s", cfg.RunMode)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"webhook", func(c *Config) { c.WebhookURL = "" }, ErrMissingWebhook},
		{"api key", func(c *Config) { c.APIKey = "" }, ErrMissingAPIKey},
		{"run mode", func(c *Config) { c.RunMode = "batch" }, ErrInvalidRunMode},
		{"threshold", func(c *Config) { c.SeverityThreshold = "spicy" }, ErrInvalidThreshold},
		{"variant", func(c *Config) { c.Variant = "legacy" }, ErrInvalidVariant},
		{"identifier", func(c *Config) { c.CommitID = "../etc" }, ErrInvalidIdentifier},
		{"no prompt findings", func(c *Config) { c.MaxPromptFindings = 0 }, ErrInvalidPromptFindings},
		{"negative prompt findings", func(c *Config) { c.MaxPromptFindings = -3 }, ErrInvalidPromptFindings},
		{"zero temperature", func(c *Config) { c.Temperature = 0 }, ErrInvalidTemperature},
		{"hot temperature", func(c *Config) { c.Temperature = 2.5 }, ErrInvalidTemperature},
		{"scanner timeout", func(c *Config) { c.ScannerTimeoutSeconds = 0 }, ErrInvalidTimeout},
		{"webhook timeout", func(c *Config) { c.WebhookTimeoutSeconds = -1 }, ErrInvalidTimeout},
	}
	for _, tc := range cases {
		c := validConfig()
		tc.mutate(&c)
		if err := c.Validate(); !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	empty := Default()
	err := empty.Validate()
	if !errors.Is(err, ErrMissingWebhook) || !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected both missing errors, got %v", err)
	}
}

func TestSignoffAndVariant(t *testing.T) {
	cfg := validConfig()
	if cfg.NarrativeVariant() != state.VariantMain || cfg.EffectiveSignoff() != "" {
		t.Errorf("unexpected main defaults")
	}
	cfg.Variant = "bazinga"
	if cfg.NarrativeVariant() != state.VariantBazinga || cfg.EffectiveSignoff() != "Bazinga! ⚛️" {
		t.Errorf("unexpected bazinga defaults")
	}
	cfg.Signoff = "Stay patched."
	if cfg.EffectiveSignoff() != "Stay patched." {
		t.Error("expected explicit signoff to win")
	}
}

func TestLoadTemplate(t *testing.T) {
	cfg := validConfig()
	log := zap.NewNop()

	if got := cfg.LoadTemplate(log); got != report.DefaultPersona {
		t.Error("expected built-in persona without a path")
	}

	cfg.TemplatePath = filepath.Join("testdata", "humor.txt")
	if got := cfg.LoadTemplate(log); got != "You are a weary SOC analyst.\nKeep it short." {
		t.Errorf("unexpected template %q", got)
	}

	cfg.TemplatePath = filepath.Join("testdata", "nope.txt")
	if got := cfg.LoadTemplate(log); got != report.DefaultPersona {
		t.Error("expected built-in persona for unreadable template")
	}
}
