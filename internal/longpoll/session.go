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

// Package longpoll keeps a Bots Long Poll session alive and feeds its
// updates to a publisher.
//
// A Session alternates between two states. While Acquiring it asks the
// ServerSource for a fresh {server, key, ts}; while Polling it issues
// a_check requests against that server, advancing ts to the value each
// response returns. A "failed": 1 answer keeps the session and adopts the
// server's ts. "failed" greater than 1, a transport error or an
// undecodable body discards the session and returns to Acquiring. Every
// failure is logged and recovered; only Stop or context cancellation ends
// Run.
package longpoll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/tombee/herald/internal/api"
	"github.com/tombee/herald/internal/events"
	"github.com/tombee/herald/internal/tracing"
	"github.com/tombee/herald/internal/transport"
)

// DefaultWait is the server-side hold hint in seconds. It must stay below
// the transport deadline.
const DefaultWait = 25

// ErrSessionExpired means the current session must be re-acquired. It never
// leaves Run.
var ErrSessionExpired = errors.New("long-poll session expired")

// State is the session's position in its lifecycle.
type State int32

const (
	StateAcquiring State = iota
	StatePolling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateAcquiring:
		return "acquiring"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// Server is one acquired session.
type Server = api.LongPollServer

// ServerSource acquires sessions. *api.Client implements it.
type ServerSource interface {
	GetLongPollServer(ctx context.Context, groupID int64) (api.LongPollServer, error)
}

// Publisher receives decoded updates. *events.Bus implements it.
type Publisher interface {
	Publish(ctx context.Context, u events.Update) int
}

// Config configures a Session.
type Config struct {
	// Source acquires sessions. Required.
	Source ServerSource

	// Transport issues poll requests. Required.
	Transport transport.Transport

	// Publisher receives every update in order. Required.
	Publisher Publisher

	// Wait is the server hold hint in seconds. Default: DefaultWait.
	Wait int

	// FailedBackoff is slept after a "failed": 1 answer. Default: 0.
	FailedBackoff time.Duration

	// AcquireBackoff is slept after a failed acquisition. Default: 0.
	AcquireBackoff time.Duration

	// Logger is the structured logger. Default: slog.Default().
	Logger *slog.Logger

	// MeterProvider receives session metrics. Default: the global provider.
	MeterProvider metric.MeterProvider
}

// Session runs one long-poll loop. A Session is single-use: once stopped,
// Run returns immediately.
type Session struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metricsCollector

	stopped atomic.Bool
	state   atomic.Int32
}

// New creates a Session.
func New(cfg Config) (*Session, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("longpoll: server source is required")
	}
	if cfg.Transport == nil {
		return nil, fmt.Errorf("longpoll: transport is required")
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("longpoll: publisher is required")
	}
	if cfg.Wait <= 0 {
		cfg.Wait = DefaultWait
	}
	if cfg.FailedBackoff < 0 || cfg.AcquireBackoff < 0 {
		return nil, fmt.Errorf("longpoll: backoff must be >= 0")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	meterProvider := cfg.MeterProvider
	if meterProvider == nil {
		meterProvider = otel.GetMeterProvider()
	}
	metrics, err := newMetricsCollector(meterProvider)
	if err != nil {
		return nil, fmt.Errorf("longpoll: create metrics: %w", err)
	}

	return &Session{
		cfg:     cfg,
		logger:  logger.With("component", "longpoll"),
		metrics: metrics,
	}, nil
}

// State returns the current state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Stop asks Run to return. A request already in flight settles first; no
// further request is issued.
func (s *Session) Stop() {
	s.stopped.Store(true)
}

// Run acquires and polls sessions for groupID until Stop is called, which
// returns nil, or ctx is done, which returns ctx.Err().
func (s *Session) Run(ctx context.Context, groupID int64) error {
	defer s.state.Store(int32(StateStopped))
	logger := s.logger.With(slog.Int64("group_id", groupID))

	for {
		if s.stopped.Load() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		s.state.Store(int32(StateAcquiring))
		srv, err := s.acquire(ctx, groupID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("failed to acquire long-poll server", slog.Any("error", err))
			if err := sleep(ctx, s.cfg.AcquireBackoff); err != nil {
				return err
			}
			continue
		}
		logger.Info("long-poll session acquired", slog.String("ts", srv.TS.String()))

		err = s.poll(ctx, logger, srv)
		if errors.Is(err, ErrSessionExpired) {
			logger.Info("long-poll session expired, re-acquiring", slog.Any("reason", err))
			continue
		}
		return err
	}
}

func (s *Session) acquire(ctx context.Context, groupID int64) (Server, error) {
	srv, err := s.cfg.Source.GetLongPollServer(ctx, groupID)
	if err == nil && !srv.Complete() {
		err = fmt.Errorf("incomplete long-poll server (server=%t key=%t ts=%t)",
			srv.Server != "", srv.Key != "", srv.TS != "")
	}
	s.metrics.recordAcquisition(ctx, err == nil)
	if err != nil {
		return Server{}, err
	}
	return srv, nil
}

type pollResponse struct {
	TS      api.Cursor      `json:"ts"`
	Updates []events.Update `json:"updates"`
	Failed  int             `json:"failed"`
}

// poll runs the Polling state for one session. It returns nil on Stop,
// ctx.Err() on cancellation, or an error wrapping ErrSessionExpired.
func (s *Session) poll(ctx context.Context, logger *slog.Logger, srv Server) error {
	s.state.Store(int32(StatePolling))

	for {
		if s.stopped.Load() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		pollURL, err := buildPollURL(srv, s.cfg.Wait)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}

		start := time.Now()
		resp, err := s.cfg.Transport.Execute(ctx, &transport.Request{
			Method: http.MethodGet,
			URL:    pollURL,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.metrics.recordPoll(ctx, outcomeError, time.Since(start))
			logger.Warn("long-poll request failed", slog.Any("error", err))
			return fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}

		var pr pollResponse
		if err := json.Unmarshal(resp.Body, &pr); err != nil {
			s.metrics.recordPoll(ctx, outcomeError, time.Since(start))
			logger.Warn("undecodable long-poll response", slog.Any("error", err))
			return fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}

		switch {
		case pr.Failed == 1:
			s.metrics.recordPoll(ctx, outcomeStale, time.Since(start))
			if pr.TS != "" {
				srv.TS = pr.TS
			}
			logger.Debug("long-poll history outdated, continuing with server ts", slog.String("ts", srv.TS.String()))
			if err := sleep(ctx, s.cfg.FailedBackoff); err != nil {
				return err
			}

		case pr.Failed > 1:
			s.metrics.recordPoll(ctx, outcomeExpired, time.Since(start))
			return fmt.Errorf("%w: failed=%d", ErrSessionExpired, pr.Failed)

		case pr.TS == "":
			s.metrics.recordPoll(ctx, outcomeError, time.Since(start))
			return fmt.Errorf("%w: response carries no ts", ErrSessionExpired)

		default:
			s.metrics.recordPoll(ctx, outcomeOK, time.Since(start))
			srv.TS = pr.TS
			for _, u := range pr.Updates {
				s.metrics.recordUpdate(ctx, u.Type)
				s.cfg.Publisher.Publish(tracing.ToContext(ctx, tracing.NewCorrelationID()), u)
			}
		}
	}
}

// buildPollURL appends act, key, ts and wait to the server URL.
func buildPollURL(srv Server, wait int) (string, error) {
	server := srv.Server
	if !strings.Contains(server, "://") {
		server = "https://" + server
	}
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid long-poll server: %w", err)
	}
	q := u.Query()
	q.Set("act", "a_check")
	q.Set("key", srv.Key)
	q.Set("ts", srv.TS.String())
	q.Set("wait", strconv.Itoa(wait))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
