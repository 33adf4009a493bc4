// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads herald's configuration from a YAML file and the
// environment.
//
// Precedence, lowest first: built-in defaults, the config file, HERALD_*
// environment variables. The token may be a literal or a secret reference
// ("keyring:<account>", "env:<VAR>") resolved later by internal/secrets.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tombee/herald/internal/api"
	"github.com/tombee/herald/internal/events"
	"github.com/tombee/herald/internal/longpoll"
	"github.com/tombee/herald/internal/tracing"
	heralderrors "github.com/tombee/herald/pkg/errors"
)

var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// Config is the complete herald configuration.
type Config struct {
	API      APIConfig      `yaml:"api" json:"api"`
	LongPoll LongPollConfig `yaml:"longpoll" json:"longpoll"`
	Commands CommandsConfig `yaml:"commands" json:"commands"`
	Log      LogConfig      `yaml:"log" json:"log"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
	NATS     NATSConfig     `yaml:"nats" json:"nats"`
	Tracing  tracing.Config `yaml:"tracing" json:"tracing"`
}

// APIConfig configures the RPC client.
type APIConfig struct {
	// Token is the community access token or a secret reference.
	// Environment: HERALD_TOKEN
	Token string `yaml:"token" json:"token"`

	// Host is the API host. Environment: HERALD_API_HOST
	Host string `yaml:"host,omitempty" json:"host,omitempty"`

	// Version is the API version sent as "v". Environment: HERALD_API_VERSION
	Version string `yaml:"version,omitempty" json:"version,omitempty"`

	// Lang is the response language. Environment: HERALD_LANG
	Lang string `yaml:"lang,omitempty" json:"lang,omitempty"`

	UserAgent string `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`

	// MaxRetries bounds retries of "too many requests" answers. Negative
	// disables them.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`

	// RequestsPerSecond limits outbound calls. Negative disables the limit.
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty" json:"requests_per_second,omitempty"`

	// Timeout is the per-request deadline.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// LongPollConfig configures the update session.
type LongPollConfig struct {
	// GroupID is the community to poll. Environment: HERALD_GROUP_ID
	GroupID int64 `yaml:"group_id" json:"group_id"`

	// Wait is the server hold hint in seconds.
	Wait int `yaml:"wait,omitempty" json:"wait,omitempty"`

	FailedBackoff  time.Duration `yaml:"failed_backoff,omitempty" json:"failed_backoff,omitempty"`
	AcquireBackoff time.Duration `yaml:"acquire_backoff,omitempty" json:"acquire_backoff,omitempty"`
}

// CommandsConfig configures command loading.
type CommandsConfig struct {
	// Dir holds declarative command files. Empty disables file commands.
	// Environment: HERALD_COMMANDS_DIR
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty"`

	// Watch reloads command files as they change.
	Watch bool `yaml:"watch" json:"watch"`

	// Debounce delays reloads after a change.
	Debounce time.Duration `yaml:"debounce,omitempty" json:"debounce,omitempty"`

	// Builtins registers the typing and ping commands.
	Builtins bool `yaml:"builtins" json:"builtins"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is trace, debug, info, warn or error. Environment: LOG_LEVEL
	Level string `yaml:"level" json:"level"`

	// Format is json or text. Empty picks text on a terminal and json
	// otherwise. Environment: LOG_FORMAT
	Format string `yaml:"format,omitempty" json:"format,omitempty"`

	AddSource bool `yaml:"add_source" json:"add_source"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables it.
	// Environment: HERALD_METRICS_ADDR
	Addr string `yaml:"addr,omitempty" json:"addr,omitempty"`
}

// NATSConfig configures the update forwarder.
type NATSConfig struct {
	// URL of the NATS server. Empty disables forwarding.
	// Environment: HERALD_NATS_URL
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	// Prefix is the subject prefix; updates go to <prefix>.<type>.
	Prefix string `yaml:"prefix,omitempty" json:"prefix,omitempty"`

	// Types limits forwarding to these update types. Empty forwards all.
	Types []string `yaml:"types,omitempty" json:"types,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			Host:              api.DefaultHost,
			Version:           api.DefaultVersion,
			Lang:              api.DefaultLang,
			UserAgent:         api.DefaultUserAgent,
			MaxRetries:        api.DefaultMaxRetries,
			RequestsPerSecond: api.DefaultRequestsPerSecond,
			Timeout:           30 * time.Second,
		},
		LongPoll: LongPollConfig{
			Wait: longpoll.DefaultWait,
		},
		Commands: CommandsConfig{
			Watch:    true,
			Debounce: 200 * time.Millisecond,
			Builtins: true,
		},
		Log: LogConfig{
			Level: "info",
		},
		NATS: NATSConfig{
			Prefix: events.DefaultSubjectPrefix,
		},
		Tracing: tracing.DefaultConfig(),
	}
}

// Load builds the configuration from defaults, the YAML file at path and
// the environment. An empty path reads the default config file if one
// exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		var err error
		if path, err = ConfigPath(); err != nil {
			path = ""
		}
	}

	if path != "" {
		err := cfg.loadFromFile(path)
		switch {
		case err == nil:
		case !explicit && errors.Is(err, fs.ErrNotExist):
		default:
			return nil, &heralderrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", path),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, &heralderrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// applyDefaults fills zero values left by a minimal config file.
func (c *Config) applyDefaults() {
	d := Default()

	if c.API.Host == "" {
		c.API.Host = d.API.Host
	}
	if c.API.Version == "" {
		c.API.Version = d.API.Version
	}
	if c.API.Lang == "" {
		c.API.Lang = d.API.Lang
	}
	if c.API.UserAgent == "" {
		c.API.UserAgent = d.API.UserAgent
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = d.API.Timeout
	}
	if c.LongPoll.Wait == 0 {
		c.LongPoll.Wait = d.LongPoll.Wait
	}
	if c.Commands.Debounce == 0 {
		c.Commands.Debounce = d.Commands.Debounce
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.NATS.Prefix == "" {
		c.NATS.Prefix = d.NATS.Prefix
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = d.Tracing.ServiceName
	}
}

// loadFromEnv applies environment overrides.
func (c *Config) loadFromEnv() error {
	if val := os.Getenv("HERALD_TOKEN"); val != "" {
		c.API.Token = val
	}
	if val := os.Getenv("HERALD_API_HOST"); val != "" {
		c.API.Host = val
	}
	if val := os.Getenv("HERALD_API_VERSION"); val != "" {
		c.API.Version = val
	}
	if val := os.Getenv("HERALD_LANG"); val != "" {
		c.API.Lang = val
	}
	if val := os.Getenv("HERALD_GROUP_ID"); val != "" {
		id, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return &heralderrors.ConfigError{
				Key:    "longpoll.group_id",
				Reason: fmt.Sprintf("HERALD_GROUP_ID is not an integer: %q", val),
				Cause:  err,
			}
		}
		c.LongPoll.GroupID = id
	}
	if val := os.Getenv("HERALD_COMMANDS_DIR"); val != "" {
		c.Commands.Dir = val
	}
	if val := os.Getenv("HERALD_METRICS_ADDR"); val != "" {
		c.Metrics.Addr = val
	}
	if val := os.Getenv("HERALD_NATS_URL"); val != "" {
		c.NATS.URL = val
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_SOURCE"); val != "" {
		c.Log.AddSource = val == "1" || strings.ToLower(val) == "true"
	}
	return nil
}

// Validate checks value ranges. It does not require credentials; see
// RequireCredentials.
func (c *Config) Validate() error {
	var errs []string

	if c.API.Host == "" {
		errs = append(errs, "api.host is required")
	}
	if c.API.Version == "" {
		errs = append(errs, "api.version is required")
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("api.timeout must be positive, got %v", c.API.Timeout))
	}
	if c.LongPoll.Wait < 1 || c.LongPoll.Wait > 90 {
		errs = append(errs, fmt.Sprintf("longpoll.wait must be between 1 and 90, got %d", c.LongPoll.Wait))
	}
	if c.LongPoll.FailedBackoff < 0 {
		errs = append(errs, fmt.Sprintf("longpoll.failed_backoff must be non-negative, got %v", c.LongPoll.FailedBackoff))
	}
	if c.LongPoll.AcquireBackoff < 0 {
		errs = append(errs, fmt.Sprintf("longpoll.acquire_backoff must be non-negative, got %v", c.LongPoll.AcquireBackoff))
	}
	if c.API.Timeout > 0 && time.Duration(c.LongPoll.Wait)*time.Second >= c.API.Timeout {
		errs = append(errs, fmt.Sprintf("longpoll.wait (%ds) must be shorter than api.timeout (%v)", c.LongPoll.Wait, c.API.Timeout))
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"": true, "json": true, "text": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("tracing: %v", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(errs, "\n  - "))
	}
	return nil
}

// RequireCredentials reports a missing token or group id, which only the
// commands that talk to the API need.
func (c *Config) RequireCredentials(needGroup bool) error {
	if c.API.Token == "" {
		return &heralderrors.ConfigError{
			Key:    "api.token",
			Reason: "access token is not set",
			Cause:  fmt.Errorf("set api.token, HERALD_TOKEN or run 'herald token set'"),
		}
	}
	if needGroup && c.LongPoll.GroupID <= 0 {
		return &heralderrors.ConfigError{
			Key:    "longpoll.group_id",
			Reason: "group id must be a positive community id",
		}
	}
	return nil
}
