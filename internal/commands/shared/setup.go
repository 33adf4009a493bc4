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

package shared

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/metric"

	"github.com/tombee/herald/internal/bot"
	"github.com/tombee/herald/internal/config"
	"github.com/tombee/herald/internal/log"
	"github.com/tombee/herald/internal/secrets"
	"github.com/tombee/herald/internal/transport"
)

// LoadConfig loads the configuration named by --config, or the default
// file when the flag is unset.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigPath())
	if err != nil {
		return nil, NewConfigError("failed to load configuration", err)
	}
	return cfg, nil
}

// LoggerConfig derives the logging setup. HERALD_DEBUG and
// HERALD_LOG_LEVEL win over the config file; --verbose and --quiet win over
// both.
func LoggerConfig(cfg *config.Config) *log.Config {
	lc := log.FromEnv()
	if os.Getenv("HERALD_DEBUG") == "" && os.Getenv("HERALD_LOG_LEVEL") == "" && cfg.Log.Level != "" {
		lc.Level = cfg.Log.Level
	}
	if cfg.Log.Format != "" {
		lc.Format = log.Format(cfg.Log.Format)
	}
	lc.AddSource = lc.AddSource || cfg.Log.AddSource

	switch {
	case GetVerbose():
		lc.Level = "debug"
	case GetQuiet():
		lc.Level = "error"
	}
	return lc
}

// NewLogger builds the process logger and installs it as slog's default.
func NewLogger(cfg *config.Config) *slog.Logger {
	logger := log.New(LoggerConfig(cfg))
	slog.SetDefault(logger)
	return logger
}

// ResolveToken resolves the configured token, which may be a secret
// reference.
func ResolveToken(ctx context.Context, cfg *config.Config, resolver *secrets.Resolver) (string, error) {
	token, err := resolver.Resolve(ctx, cfg.API.Token)
	if err != nil {
		return "", NewConfigError("failed to resolve api.token", err)
	}
	return token, nil
}

// NewBot builds a bot from cfg. needGroup additionally requires a group id.
func NewBot(ctx context.Context, cfg *config.Config, needGroup bool, logger *slog.Logger, meterProvider metric.MeterProvider) (*bot.Bot, error) {
	if err := cfg.RequireCredentials(needGroup); err != nil {
		return nil, NewConfigError("missing credentials", err)
	}
	token, err := ResolveToken(ctx, cfg, secrets.Default())
	if err != nil {
		return nil, err
	}

	tr, err := transport.NewHTTPTransport(transport.HTTPConfig{Timeout: cfg.API.Timeout})
	if err != nil {
		return nil, NewConfigError("invalid api.timeout", err)
	}

	b, err := bot.New(bot.Options{
		Token:             token,
		Host:              cfg.API.Host,
		Version:           cfg.API.Version,
		Lang:              cfg.API.Lang,
		UserAgent:         cfg.API.UserAgent,
		MaxRetries:        cfg.API.MaxRetries,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Transport:         tr,
		Wait:              cfg.LongPoll.Wait,
		FailedBackoff:     cfg.LongPoll.FailedBackoff,
		AcquireBackoff:    cfg.LongPoll.AcquireBackoff,
		Logger:            logger,
		MeterProvider:     meterProvider,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return b, nil
}
