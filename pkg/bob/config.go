package bob

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the agent's settings. Zero values are replaced with
// defaults by FromEnv and FromFile; hand-built configs should start
// from DefaultConfig.
type Config struct {
	// Anthropic API settings.
	APIKey      string  `yaml:"api_key" json:"api_key"`
	BaseURL     string  `yaml:"base_url" json:"base_url"`
	Model       string  `yaml:"model" json:"model"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
	Temperature float64 `yaml:"temperature" json:"temperature"`

	// Agent settings.
	AgentName     string `yaml:"agent_name" json:"agent_name"`
	SystemMessage string `yaml:"system_message" json:"system_message"`
	MaxIterations int    `yaml:"max_iterations" json:"max_iterations"`
	MaxHistory    int    `yaml:"max_history" json:"max_history"`

	// Retry settings.
	MaxRetries     int           `yaml:"max_retries" json:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" json:"retry_base_delay"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay" json:"retry_max_delay"`

	// Storage and server settings.
	NotesDir   string `yaml:"notes_dir" json:"notes_dir"`
	StorePath  string `yaml:"store_path" json:"store_path"`
	ServerAddr string `yaml:"server_addr" json:"server_addr"`
}

// DefaultConfig returns the built-in defaults. APIKey is left empty;
// callers must supply it before constructing an Anthropic client.
func DefaultConfig() Config {
	return Config{
		Model:          "claude-sonnet-4-5-20250929",
		MaxTokens:      4096,
		Temperature:    0.7,
		AgentName:      "Bob",
		SystemMessage:  "You are Bob, a helpful AI assistant and operations buddy.",
		MaxIterations:  10,
		MaxHistory:     20,
		MaxRetries:     3,
		RetryBaseDelay: time.Second,
		RetryMaxDelay:  60 * time.Second,
		NotesDir:       "notes",
		ServerAddr:     ":8080",
	}
}

// FromEnv builds a Config from environment variables, loading a .env
// file first if one exists. Unset variables keep their defaults.
func FromEnv() (Config, error) {
	// Missing .env is fine; explicit env wins either way.
	_ = godotenv.Load()

	cfg := DefaultConfig()
	cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.BaseURL = os.Getenv("ANTHROPIC_BASE_URL")

	if v := os.Getenv("ANTHROPIC_MODEL_NAME"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("ANTHROPIC_MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse ANTHROPIC_MAX_TOKENS: %w", err)
		}
		cfg.MaxTokens = n
	}
	if v := os.Getenv("ANTHROPIC_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("parse ANTHROPIC_TEMPERATURE: %w", err)
		}
		cfg.Temperature = f
	}
	if v := os.Getenv("AGENT_NAME"); v != "" {
		cfg.AgentName = v
	}
	if v := os.Getenv("SYSTEM_MESSAGE"); v != "" {
		cfg.SystemMessage = v
	}
	if v := os.Getenv("MAX_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse MAX_ITERATIONS: %w", err)
		}
		cfg.MaxIterations = n
	}
	if v := os.Getenv("MAX_CONVERSATION_HISTORY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse MAX_CONVERSATION_HISTORY: %w", err)
		}
		cfg.MaxHistory = n
	}
	if v := os.Getenv("MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse MAX_RETRIES: %w", err)
		}
		cfg.MaxRetries = n
	}
	if v := os.Getenv("RETRY_BASE_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse RETRY_BASE_DELAY: %w", err)
		}
		cfg.RetryBaseDelay = d
	}
	if v := os.Getenv("RETRY_MAX_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse RETRY_MAX_DELAY: %w", err)
		}
		cfg.RetryMaxDelay = d
	}
	if v := os.Getenv("BOB_NOTES_DIR"); v != "" {
		cfg.NotesDir = v
	}
	if v := os.Getenv("BOB_STORE_PATH"); v != "" {
		cfg.StorePath = v
	}
	if v := os.Getenv("BOB_SERVER_ADDR"); v != "" {
		cfg.ServerAddr = v
	}

	return cfg, nil
}

// FromFile loads configuration from a file, auto-detecting format by
// extension. Supported extensions: .yaml, .yml, .json. Fields absent
// from the file keep their defaults.
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse json: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config file extension: %s", filepath.Ext(path))
	}
	return cfg, nil
}

// Validate checks the settings needed to run against a real model.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return errors.New("ANTHROPIC_API_KEY must be provided")
	}
	if c.Model == "" {
		return errors.New("model must not be empty")
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", c.MaxIterations)
	}
	if c.MaxHistory < 2 {
		return fmt.Errorf("max_history must be at least 2, got %d", c.MaxHistory)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries)
	}
	return nil
}
