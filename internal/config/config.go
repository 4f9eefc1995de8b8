package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"cveroast/internal/model"
	"cveroast/internal/report"
	"cveroast/internal/state"
)

const (
	RunModeScan  = "scan"
	RunModeServe = "serve"
)

var (
	ErrMissingWebhook    = errors.New("DISCORD_WEBHOOK_URL is required")
	ErrMissingAPIKey     = errors.New("DEEPSEEK_API_KEY is required")
	ErrInvalidRunMode    = errors.New("RUN_MODE must be scan or serve")
	ErrInvalidThreshold  = errors.New("invalid SEVERITY_THRESHOLD")
	ErrInvalidVariant    = errors.New("invalid NARRATIVE_VARIANT")
	ErrInvalidIdentifier = errors.New("invalid COMMIT_ID")

	ErrInvalidPromptFindings = errors.New("MAX_PROMPT_FINDINGS must be at least 1")
	ErrInvalidTemperature    = errors.New("invalid TEMPERATURE")
	ErrInvalidTimeout        = errors.New("timeouts must be at least one second")
)

// Config is built once at startup and passed by pointer to every component.
type Config struct {
	WebhookURL   string `toml:"webhook_url" yaml:"webhook_url"`
	APIKey       string `toml:"api_key" yaml:"api_key"`
	BaseURL      string `toml:"base_url" yaml:"base_url"`
	Model        string `toml:"model" yaml:"model"`
	TemplatePath string `toml:"humor_template" yaml:"humor_template"`

	CommitID   string `toml:"commit_id" yaml:"commit_id"`
	RunMode    string `toml:"run_mode" yaml:"run_mode"`
	TargetDir  string `toml:"target_dir" yaml:"target_dir"`
	DataDir    string `toml:"data_dir" yaml:"data_dir"`
	ListenAddr string `toml:"listen_addr" yaml:"listen_addr"`

	Variant           string  `toml:"narrative_variant" yaml:"narrative_variant"`
	Signoff           string  `toml:"signoff" yaml:"signoff"`
	SeverityThreshold string  `toml:"severity_threshold" yaml:"severity_threshold"`
	MaxPromptFindings int     `toml:"max_prompt_findings" yaml:"max_prompt_findings"`
	MaxMessageLength  int     `toml:"max_message_length" yaml:"max_message_length"`
	Temperature       float64 `toml:"temperature" yaml:"temperature"`
	OWASPNoUpdate     bool    `toml:"owasp_no_update" yaml:"owasp_no_update"`

	ScannerTimeoutSeconds   int `toml:"scanner_timeout_seconds" yaml:"scanner_timeout_seconds"`
	NarrationTimeoutSeconds int `toml:"narration_timeout_seconds" yaml:"narration_timeout_seconds"`
	WebhookTimeoutSeconds   int `toml:"webhook_timeout_seconds" yaml:"webhook_timeout_seconds"`

	LogLevel  string `toml:"log_level" yaml:"log_level"`
	LogFormat string `toml:"log_format" yaml:"log_format"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		BaseURL:                 "https://api.deepseek.com",
		Model:                   "deepseek-chat",
		CommitID:                state.LatestID,
		RunMode:                 RunModeScan,
		TargetDir:               ".",
		DataDir:                 "data",
		ListenAddr:              ":8080",
		Variant:                 string(state.VariantMain),
		SeverityThreshold:       string(model.SeverityLow),
		MaxPromptFindings:       5,
		MaxMessageLength:        1900,
		Temperature:             0.7,
		ScannerTimeoutSeconds:   600,
		NarrationTimeoutSeconds: 120,
		WebhookTimeoutSeconds:   30,
		LogLevel:                "info",
		LogFormat:               "console",
	}
}

// Load builds the configuration from defaults, an optional config file, a
// .env file in the working directory and the environment, in increasing
// order of precedence. path overrides CONFIG_FILE.
func Load(path string) (Config, error) {
	cfg := Default()

	if err := loadDotEnv(".env"); err != nil {
		return cfg, err
	}

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := LoadFile(&cfg, path); err != nil {
			return cfg, err
		}
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is fine.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadFile overlays a TOML or YAML file onto cfg, chosen by extension.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q", ext)
	}
	return nil
}

// ApplyEnv overlays environment variables onto cfg.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"DISCORD_WEBHOOK_URL": &cfg.WebhookURL,
		"DEEPSEEK_API_KEY":    &cfg.APIKey,
		"DEEPSEEK_BASE_URL":   &cfg.BaseURL,
		"DEEPSEEK_MODEL":      &cfg.Model,
		"MODEL_HUMOR_PATH":    &cfg.TemplatePath,
		"COMMIT_ID":           &cfg.CommitID,
		"RUN_MODE":            &cfg.RunMode,
		"TARGET_DIR":          &cfg.TargetDir,
		"DATA_DIR":            &cfg.DataDir,
		"LISTEN_ADDR":         &cfg.ListenAddr,
		"NARRATIVE_VARIANT":   &cfg.Variant,
		"SIGNOFF":             &cfg.Signoff,
		"SEVERITY_THRESHOLD":  &cfg.SeverityThreshold,
		"LOG_LEVEL":           &cfg.LogLevel,
		"LOG_FORMAT":          &cfg.LogFormat,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	ints := map[string]*int{
		"MAX_PROMPT_FINDINGS": &cfg.MaxPromptFindings,
		"MAX_MESSAGE_LENGTH":  &cfg.MaxMessageLength,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*int{
		"SCANNER_TIMEOUT":   &cfg.ScannerTimeoutSeconds,
		"NARRATION_TIMEOUT": &cfg.NarrationTimeoutSeconds,
		"WEBHOOK_TIMEOUT":   &cfg.WebhookTimeoutSeconds,
	}
	for key, dst := range durations {
		if v, ok := lookup(key); ok && v != "" {
			secs, err := parseSeconds(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = secs
		}
	}

	if v, ok := lookup("TEMPERATURE"); ok && v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("TEMPERATURE: %w", err)
		}
		cfg.Temperature = f
	}
	if v, ok := lookup("OWASP_NO_UPDATE"); ok && v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("OWASP_NO_UPDATE: %w", err)
		}
		cfg.OWASPNoUpdate = b
	}
	return nil
}

// parseSeconds accepts a Go duration ("90s", "2m") or a bare number of
// seconds. The result must be at least one second.
func parseSeconds(v string) (int, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		if n < 1 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimeout, v)
		}
		return n, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d < time.Second {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeout, v)
	}
	return int(d / time.Second), nil
}

// Validate fails fast on configuration the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.WebhookURL == "" {
		errs = append(errs, ErrMissingWebhook)
	}
	if c.APIKey == "" {
		errs = append(errs, ErrMissingAPIKey)
	}
	if c.RunMode != RunModeScan && c.RunMode != RunModeServe {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidRunMode, c.RunMode))
	}
	if _, err := model.ParseSeverity(c.SeverityThreshold); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidThreshold, err))
	}
	if v, err := state.ParseVariant(c.Variant); err != nil || v == state.VariantLegacy {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidVariant, c.Variant))
	}
	if err := state.ValidIdentifier(c.CommitID); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidIdentifier, err))
	}
	if c.MaxPromptFindings < 1 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidPromptFindings, c.MaxPromptFindings))
	}
	// The completion request omits a zero temperature, which would silently
	// fall back to the server default.
	if c.Temperature <= 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("%w: %v (want 0 < t <= 2)", ErrInvalidTemperature, c.Temperature))
	}
	timeouts := []struct {
		name string
		secs int
	}{
		{"scanner", c.ScannerTimeoutSeconds},
		{"narration", c.NarrationTimeoutSeconds},
		{"webhook", c.WebhookTimeoutSeconds},
	}
	for _, t := range timeouts {
		if t.secs < 1 {
			errs = append(errs, fmt.Errorf("%w: %s timeout %ds", ErrInvalidTimeout, t.name, t.secs))
		}
	}
	return errors.Join(errs...)
}

// Threshold is the parsed severity threshold. Call Validate first.
func (c *Config) Threshold() model.Severity {
	return model.Normalize(c.SeverityThreshold)
}

// NarrativeVariant is the message artifact the pipeline writes.
func (c *Config) NarrativeVariant() state.Variant {
	v, err := state.ParseVariant(c.Variant)
	if err != nil {
		return state.VariantMain
	}
	return v
}

// EffectiveSignoff is the configured sign-off, defaulting to the bazinga
// catchphrase for the bazinga variant.
func (c *Config) EffectiveSignoff() string {
	if c.Signoff != "" {
		return c.Signoff
	}
	if c.NarrativeVariant() == state.VariantBazinga {
		return "Bazinga! ⚛️"
	}
	return ""
}

func (c *Config) ScannerTimeout() time.Duration {
	return time.Duration(c.ScannerTimeoutSeconds) * time.Second
}

func (c *Config) NarrationTimeout() time.Duration {
	return time.Duration(c.NarrationTimeoutSeconds) * time.Second
}

func (c *Config) WebhookTimeout() time.Duration {
	return time.Duration(c.WebhookTimeoutSeconds) * time.Second
}

// LoadTemplate reads the humor template. No path yields the built-in
// persona; an unreadable file yields it too, with a warning.
func (c *Config) LoadTemplate(logger *zap.Logger) string {
	if c.TemplatePath == "" {
		return report.DefaultPersona
	}
	data, err := os.ReadFile(c.TemplatePath)
	if err != nil {
		logger.Warn("humor template unreadable, using built-in persona",
			zap.String("path", c.TemplatePath), zap.Error(err))
		return report.DefaultPersona
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return report.DefaultPersona
	}
	return text
}
