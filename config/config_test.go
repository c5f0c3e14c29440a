package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Database: DatabaseConfig{Path: "/path/to/db"},
		Security: SecurityConfig{APIKey: "test-key"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{"minimal config", func(c *Config) {}, false},
		{"invalid port - negative", func(c *Config) { c.Server.Port = -1 }, true},
		{"invalid port - too large", func(c *Config) { c.Server.Port = 70000 }, true},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, true},
		{"missing API key", func(c *Config) { c.Security.APIKey = "" }, true},
		{"negative timeout", func(c *Config) { c.Engine.AnswerTimeoutSeconds = -5 }, true},
		{"bad timezone", func(c *Config) { c.Engine.Timezone = "Mars/Olympus" }, true},
		{"unknown driver", func(c *Config) { c.Enforcement.Driver = "mdm" }, true},
		{"agent driver without token", func(c *Config) { c.Enforcement.Driver = DriverAgent }, true},
		{"agent driver with token", func(c *Config) {
			c.Enforcement.Driver = "Agent"
			c.Security.AgentTokenHash = "$2a$10$hash"
		}, false},
		{"webhook without URL", func(c *Config) { c.Enforcement.Driver = DriverWebhook }, true},
		{"telegram without chats", func(c *Config) { c.Telegram.Token = "123:abc" }, true},
		{"bank watch without path", func(c *Config) { c.Bank.Watch = true }, true},
		{"sample ratio out of range", func(c *Config) { c.Telemetry.SampleRatio = 1.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DriverPassive, cfg.Enforcement.Driver)
	assert.Equal(t, "gpt-4o-mini", cfg.Generator.Model)
	assert.Equal(t, 30*time.Second, cfg.AnswerTimeout())
	assert.Equal(t, 5*time.Minute, cfg.Cooldown())
	assert.Equal(t, 2, cfg.Engine.CooldownThreshold)
	assert.Equal(t, time.Minute, cfg.RolloverInterval())
	assert.Equal(t, 10*time.Second, cfg.GeneratorTimeout())
	assert.Equal(t, time.UTC, cfg.Location())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_JSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	content := `{
		"server": {"host": "127.0.0.1", "port": 9000},
		"database": {"path": "/path/to/db"},
		"security": {"api_key": "test-key"},
		"engine": {"answer_timeout_seconds": 20, "timezone": "Europe/Berlin"},
		"telegram": {"token": "123:abc", "chat_ids": [42, 43]}
	}`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", config.Server.Host)
	assert.Equal(t, 9000, config.Server.Port)
	assert.Equal(t, "test-key", config.Security.APIKey)
	assert.Equal(t, 20*time.Second, config.AnswerTimeout())
	assert.Equal(t, "Europe/Berlin", config.Location().String())
	assert.Equal(t, []int64{42, 43}, config.Telegram.ChatIDs)

	_, err = Load(filepath.Join(tmpDir, "missing.json"))
	assert.ErrorIs(t, err, ErrConfigFileNotFound)

	invalidPath := filepath.Join(tmpDir, "invalid.json")
	require.NoError(t, os.WriteFile(invalidPath, []byte("invalid json"), 0644))
	_, err = Load(invalidPath)
	assert.Error(t, err)
}

func TestLoad_TOML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "quizgate.toml")

	content := `
[database]
path = "/var/lib/quizgate.db"

[security]
api_key = "toml-key"

[generator]
api_key = "sk-test"
model = "gpt-4o"

[enforcement]
driver = "webhook"
webhook_url = "http://localhost:9999/actions"

[bank]
path = "/etc/quizgate/bank.yaml"
watch = true
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/quizgate.db", config.Database.Path)
	assert.Equal(t, "toml-key", config.Security.APIKey)
	assert.Equal(t, "gpt-4o", config.Generator.Model)
	assert.Equal(t, DriverWebhook, config.Enforcement.Driver)
	assert.True(t, config.Bank.Watch)

	badPath := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(badPath, []byte("[database\npath ="), 0644))
	_, err = Load(badPath)
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("QUIZGATE_HOST", "127.0.0.1")
	t.Setenv("QUIZGATE_PORT", "9090")
	t.Setenv("QUIZGATE_DB_PATH", "/custom/db/path")
	t.Setenv("QUIZGATE_API_KEY", "env-api-key")
	t.Setenv("QUIZGATE_TELEGRAM_TOKEN", "env-bot-token")
	t.Setenv("QUIZGATE_TELEGRAM_CHAT_IDS", "1,2")
	t.Setenv("QUIZGATE_COOLDOWN_MINUTES", "10")
	t.Setenv("QUIZGATE_BANK_WATCH", "false")

	config, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", config.Server.Host)
	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "/custom/db/path", config.Database.Path)
	assert.Equal(t, "env-api-key", config.Security.APIKey)
	assert.Equal(t, "env-bot-token", config.Telegram.Token)
	assert.Equal(t, []int64{1, 2}, config.Telegram.ChatIDs)
	assert.Equal(t, 10*time.Minute, config.Cooldown())
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	t.Setenv("QUIZGATE_API_KEY", "")
	_, err := LoadFromEnv()
	assert.ErrorIs(t, err, ErrInvalidConfig)

	t.Setenv("QUIZGATE_API_KEY", "key")
	t.Setenv("QUIZGATE_PORT", "not-a-number")
	_, err = LoadFromEnv()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
