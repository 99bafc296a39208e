package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"chatwidget/internal/domain"
)

// StreamingConfig controls the reveal loop
type StreamingConfig struct {
	// ChunkDelay is the pause between revealed characters (or whole tags)
	ChunkDelay time.Duration `yaml:"chunk_delay"`
	// ResponseDelay is the pause after each chunk separator
	ResponseDelay time.Duration `yaml:"response_delay"`
	// MaxRetries bounds RetryWithBackoff. The reveal loop never retries.
	MaxRetries int `yaml:"max_retries"`
	// Timeout is reserved; streams are not timed out
	Timeout time.Duration `yaml:"timeout"`
	// PreserveHTMLStructure enables tag-boundary-aware reveal
	PreserveHTMLStructure bool `yaml:"preserve_html_structure"`
}

type Config struct {
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
	// LogDir enables file logging when set
	LogDir      string `yaml:"log_dir"`
	MaxLogFiles int    `yaml:"max_log_files"`
	// MarkdownEngine is "rules" or "goldmark"
	MarkdownEngine string `yaml:"markdown_engine"`
	// ResponsesFile overrides the embedded reply catalogue
	ResponsesFile string          `yaml:"responses_file"`
	Streaming     StreamingConfig `yaml:"streaming"`
}

// DefaultStreamingConfig returns the reveal loop defaults
func DefaultStreamingConfig() StreamingConfig {
	return StreamingConfig{
		ChunkDelay:            30 * time.Millisecond,
		ResponseDelay:         800 * time.Millisecond,
		MaxRetries:            3,
		Timeout:               30 * time.Second,
		PreserveHTMLStructure: true,
	}
}

// Load builds the configuration from the environment, applying an optional
// YAML file named by CHAT_CONFIG_FILE first so env vars win.
func Load() (*Config, error) {
	env := getEnv("ENVIRONMENT", "dev")

	cfg := &Config{
		Environment:    env,
		LogLevel:       getDefaultLogLevel(env),
		MaxLogFiles:    5,
		MarkdownEngine: "rules",
		Streaming:      DefaultStreamingConfig(),
	}

	if path := os.Getenv("CHAT_CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.LogLevel = getEnv("CHAT_LOG_LEVEL", cfg.LogLevel)
	cfg.LogDir = getEnv("CHAT_LOG_DIR", cfg.LogDir)
	cfg.MarkdownEngine = getEnv("CHAT_MARKDOWN_ENGINE", cfg.MarkdownEngine)
	cfg.ResponsesFile = getEnv("CHAT_RESPONSES_FILE", cfg.ResponsesFile)

	var err error
	s := &cfg.Streaming
	if s.ChunkDelay, err = getEnvMillis("CHAT_CHUNK_DELAY_MS", s.ChunkDelay); err != nil {
		return nil, err
	}
	if s.ResponseDelay, err = getEnvMillis("CHAT_RESPONSE_DELAY_MS", s.ResponseDelay); err != nil {
		return nil, err
	}
	if s.Timeout, err = getEnvMillis("CHAT_TIMEOUT_MS", s.Timeout); err != nil {
		return nil, err
	}
	if s.MaxRetries, err = getEnvInt("CHAT_MAX_RETRIES", s.MaxRetries); err != nil {
		return nil, err
	}
	if s.PreserveHTMLStructure, err = getEnvBool("CHAT_PRESERVE_HTML", s.PreserveHTMLStructure); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks option ranges
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.MarkdownEngine, validation.In("rules", "goldmark")),
		validation.Field(&c.MaxLogFiles, validation.Min(1)),
	)
	if err == nil {
		err = c.Streaming.Validate()
	}
	if err != nil {
		return fmt.Errorf("%w: config: %v", domain.ErrValidation, err)
	}
	return nil
}

// Validate checks streaming option ranges
func (s StreamingConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ChunkDelay, validation.Min(time.Duration(0))),
		validation.Field(&s.ResponseDelay, validation.Min(time.Duration(0))),
		validation.Field(&s.MaxRetries, validation.Min(0), validation.Max(10)),
		validation.Field(&s.Timeout, validation.Min(time.Duration(0))),
	)
}

// mergeFile overlays YAML settings onto c.
// Durations use Go syntax ("30ms", "1s").
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: parse config file %s: %v", domain.ErrValidation, path, err)
	}
	return nil
}

// getDefaultLogLevel returns the default log level based on environment
func getDefaultLogLevel(env string) string {
	if env == "dev" {
		return "debug"
	}
	return "info"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", domain.ErrValidation, key, value)
	}
	return n, nil
}

func getEnvMillis(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	ms, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be milliseconds, got %q", domain.ErrValidation, key, value)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean, got %q", domain.ErrValidation, key, value)
	}
	return b, nil
}
