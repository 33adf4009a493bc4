package httpclient

import (
	"fmt"
	"log/slog"
	"time"
)

// Config configures the shared HTTP client.
type Config struct {
	// Timeout is the total request timeout.
	// Default: 30s. Must be > 0.
	Timeout time.Duration

	// UserAgent is the client identifier sent with every request.
	// Required.
	UserAgent string

	// MaxIdleConnsPerHost bounds pooled connections per host. The bot talks
	// to two hosts (API and long-poll server), so the default is small.
	// Default: 4.
	MaxIdleConnsPerHost int

	// Logger receives request logs. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with the defaults used by the bot.
func DefaultConfig() Config {
	return Config{
		Timeout:             30 * time.Second,
		UserAgent:           "herald/1.0",
		MaxIdleConnsPerHost: 4,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %v", c.Timeout)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user_agent is required and must be non-empty")
	}
	if c.MaxIdleConnsPerHost < 0 {
		return fmt.Errorf("max_idle_conns_per_host must be >= 0, got %d", c.MaxIdleConnsPerHost)
	}
	return nil
}
