package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// Enforcement drivers
const (
	DriverPassive = "passive"
	DriverAgent   = "agent"
	DriverWebhook = "webhook"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `json:"server" toml:"server"`
	Database    DatabaseConfig    `json:"database" toml:"database"`
	Security    SecurityConfig    `json:"security" toml:"security"`
	Generator   GeneratorConfig   `json:"generator" toml:"generator"`
	Engine      EngineConfig      `json:"engine" toml:"engine"`
	Enforcement EnforcementConfig `json:"enforcement" toml:"enforcement"`
	Telegram    TelegramConfig    `json:"telegram" toml:"telegram"`
	Bank        BankConfig        `json:"bank" toml:"bank"`
	Logging     LoggingConfig     `json:"logging" toml:"logging"`
	Telemetry   TelemetryConfig   `json:"telemetry" toml:"telemetry"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `json:"host" toml:"host" env:"QUIZGATE_HOST"`
	Port int    `json:"port" toml:"port" env:"QUIZGATE_PORT"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `json:"path" toml:"path" env:"QUIZGATE_DB_PATH"`
}

// SecurityConfig contains security settings. Hashes are bcrypt.
type SecurityConfig struct {
	APIKey         string `json:"api_key" toml:"api_key" env:"QUIZGATE_API_KEY"`
	ParentPINHash  string `json:"parent_pin_hash" toml:"parent_pin_hash" env:"QUIZGATE_PARENT_PIN_HASH"`
	AgentTokenHash string `json:"agent_token_hash" toml:"agent_token_hash" env:"QUIZGATE_AGENT_TOKEN_HASH"`
}

// GeneratorConfig contains remote question generation settings. An empty
// API key disables generation; only the local bank is used.
type GeneratorConfig struct {
	APIKey         string `json:"api_key" toml:"api_key" env:"QUIZGATE_GENERATOR_API_KEY"`
	BaseURL        string `json:"base_url" toml:"base_url" env:"QUIZGATE_GENERATOR_BASE_URL"`
	Model          string `json:"model" toml:"model" env:"QUIZGATE_GENERATOR_MODEL"`
	TimeoutSeconds int    `json:"timeout_seconds" toml:"timeout_seconds" env:"QUIZGATE_GENERATOR_TIMEOUT_SECONDS"`
	MaxRetries     int    `json:"max_retries" toml:"max_retries" env:"QUIZGATE_GENERATOR_MAX_RETRIES"`
}

// EngineConfig contains gatekeeper timings
type EngineConfig struct {
	AnswerTimeoutSeconds    int    `json:"answer_timeout_seconds" toml:"answer_timeout_seconds" env:"QUIZGATE_ANSWER_TIMEOUT_SECONDS"`
	CooldownMinutes         int    `json:"cooldown_minutes" toml:"cooldown_minutes" env:"QUIZGATE_COOLDOWN_MINUTES"`
	CooldownThreshold       int    `json:"cooldown_threshold" toml:"cooldown_threshold" env:"QUIZGATE_COOLDOWN_THRESHOLD"`
	Timezone                string `json:"timezone" toml:"timezone" env:"QUIZGATE_TIMEZONE"`
	RolloverIntervalSeconds int    `json:"rollover_interval_seconds" toml:"rollover_interval_seconds" env:"QUIZGATE_ROLLOVER_INTERVAL_SECONDS"`
	OwnAppID                string `json:"own_app_id" toml:"own_app_id" env:"QUIZGATE_OWN_APP_ID"`
}

// EnforcementConfig selects the enforcement driver
type EnforcementConfig struct {
	Driver        string `json:"driver" toml:"driver" env:"QUIZGATE_ENFORCEMENT_DRIVER"`
	WebhookURL    string `json:"webhook_url" toml:"webhook_url" env:"QUIZGATE_WEBHOOK_URL"`
	WebhookAPIKey string `json:"webhook_api_key" toml:"webhook_api_key" env:"QUIZGATE_WEBHOOK_API_KEY"`
}

// TelegramConfig contains notifier settings. An empty token disables it.
type TelegramConfig struct {
	Token   string  `json:"token" toml:"token" env:"QUIZGATE_TELEGRAM_TOKEN"`
	ChatIDs []int64 `json:"chat_ids" toml:"chat_ids" env:"QUIZGATE_TELEGRAM_CHAT_IDS" envSeparator:","`
}

// BankConfig points at an optional YAML question bank replacing the
// built-in one
type BankConfig struct {
	Path  string `json:"path" toml:"path" env:"QUIZGATE_BANK_PATH"`
	Watch bool   `json:"watch" toml:"watch" env:"QUIZGATE_BANK_WATCH"`
}

// LoggingConfig contains log settings
type LoggingConfig struct {
	Level  string `json:"level" toml:"level" env:"QUIZGATE_LOG_LEVEL"`
	Format string `json:"format" toml:"format" env:"QUIZGATE_LOG_FORMAT"`
}

// TelemetryConfig contains trace export settings
type TelemetryConfig struct {
	Endpoint    string  `json:"endpoint" toml:"endpoint" env:"QUIZGATE_OTEL_ENDPOINT"`
	SampleRatio float64 `json:"sample_ratio" toml:"sample_ratio" env:"QUIZGATE_OTEL_SAMPLE_RATIO"`
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port", ErrInvalidConfig)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("%w: database path is required", ErrInvalidConfig)
	}

	if c.Security.APIKey == "" {
		return fmt.Errorf("%w: API key is required", ErrInvalidConfig)
	}

	if c.Generator.Model == "" {
		c.Generator.Model = "gpt-4o-mini"
	}
	if c.Generator.TimeoutSeconds == 0 {
		c.Generator.TimeoutSeconds = 10
	}
	if c.Generator.TimeoutSeconds < 0 || c.Generator.MaxRetries < 0 {
		return fmt.Errorf("%w: generator timeout and retries cannot be negative", ErrInvalidConfig)
	}

	if c.Engine.AnswerTimeoutSeconds == 0 {
		c.Engine.AnswerTimeoutSeconds = 30
	}
	if c.Engine.CooldownMinutes == 0 {
		c.Engine.CooldownMinutes = 5
	}
	if c.Engine.CooldownThreshold == 0 {
		c.Engine.CooldownThreshold = 2
	}
	if c.Engine.RolloverIntervalSeconds == 0 {
		c.Engine.RolloverIntervalSeconds = 60
	}
	if c.Engine.AnswerTimeoutSeconds < 0 || c.Engine.CooldownMinutes < 0 ||
		c.Engine.CooldownThreshold < 0 || c.Engine.RolloverIntervalSeconds < 0 {
		return fmt.Errorf("%w: engine timings cannot be negative", ErrInvalidConfig)
	}
	if c.Engine.Timezone == "" {
		c.Engine.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(c.Engine.Timezone); err != nil {
		return fmt.Errorf("%w: invalid timezone %q", ErrInvalidConfig, c.Engine.Timezone)
	}
	if c.Engine.OwnAppID == "" {
		c.Engine.OwnAppID = "com.quizgate.app"
	}

	c.Enforcement.Driver = strings.ToLower(c.Enforcement.Driver)
	switch c.Enforcement.Driver {
	case "":
		c.Enforcement.Driver = DriverPassive
	case DriverPassive:
	case DriverAgent:
		if c.Security.AgentTokenHash == "" {
			return fmt.Errorf("%w: agent driver requires an agent token hash", ErrInvalidConfig)
		}
	case DriverWebhook:
		if c.Enforcement.WebhookURL == "" {
			return fmt.Errorf("%w: webhook driver requires a webhook URL", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown enforcement driver %q", ErrInvalidConfig, c.Enforcement.Driver)
	}

	if c.Telegram.Token != "" && len(c.Telegram.ChatIDs) == 0 {
		return fmt.Errorf("%w: telegram chat IDs are required when a token is set", ErrInvalidConfig)
	}

	if c.Bank.Watch && c.Bank.Path == "" {
		return fmt.Errorf("%w: bank watch requires a bank path", ErrInvalidConfig)
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: sample ratio must be between 0 and 1", ErrInvalidConfig)
	}

	return nil
}

// Location returns the engine timezone. Validate must have succeeded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Engine.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AnswerTimeout returns the per-question answer window
func (c *Config) AnswerTimeout() time.Duration {
	return time.Duration(c.Engine.AnswerTimeoutSeconds) * time.Second
}

// Cooldown returns the cooldown length
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Engine.CooldownMinutes) * time.Minute
}

// RolloverInterval returns the rollover sweep interval
func (c *Config) RolloverInterval() time.Duration {
	return time.Duration(c.Engine.RolloverIntervalSeconds) * time.Second
}

// GeneratorTimeout returns the remote generation deadline
func (c *Config) GeneratorTimeout() time.Duration {
	return time.Duration(c.Generator.TimeoutSeconds) * time.Second
}

// Load loads configuration from a JSON or TOML file, chosen by extension
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigFileNotFound
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadFromEnv loads configuration from QUIZGATE_* environment variables.
// This is useful for containerized deployments.
func LoadFromEnv() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{Path: "./quizgate.db"},
	}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("%w: parse env: %w", ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}
