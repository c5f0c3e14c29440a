// Package deviceagent implements the on-device agent that reports the
// foreground app to quizgate and closes apps the server has blocked.
package deviceagent

import (
	"errors"
	"time"
)

var (
	ErrMissingToken    = errors.New("agent token is required")
	ErrMissingURL      = errors.New("server URL is required")
	ErrInvalidInterval = errors.New("poll interval must be positive")
	ErrInvalidGrace    = errors.New("grace period must be positive")
)

// Config holds the device agent configuration
type Config struct {
	ServerURL    string        // quizgate base URL, e.g. "http://192.168.1.10:8080"
	AgentToken   string        // bearer token matching agent_token_hash
	PollInterval time.Duration // how often to poll (default: 2s)
	GracePeriod  time.Duration // how long to tolerate network errors before failing closed (default: 30s)
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		PollInterval: 2 * time.Second,
		GracePeriod:  30 * time.Second,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.AgentToken == "" {
		return ErrMissingToken
	}
	if c.ServerURL == "" {
		return ErrMissingURL
	}
	if c.PollInterval <= 0 {
		return ErrInvalidInterval
	}
	if c.GracePeriod <= 0 {
		return ErrInvalidGrace
	}
	return nil
}
