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

// Package bot assembles the client, event bus, long-poll session and
// command registry into a running bot.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/tombee/herald/internal/api"
	"github.com/tombee/herald/internal/command"
	"github.com/tombee/herald/internal/events"
	"github.com/tombee/herald/internal/log"
	"github.com/tombee/herald/internal/longpoll"
	"github.com/tombee/herald/internal/transport"
)

// ErrRunning is returned by Start while a session is still running.
var ErrRunning = errors.New("bot: long-poll session already running")

// Options configures a Bot. Only Token is required.
type Options struct {
	Token     string
	Host      string
	Version   string
	Lang      string
	UserAgent string

	// MaxRetries and RequestsPerSecond follow api.Config.
	MaxRetries        int
	RequestsPerSecond float64

	// Transport is shared by API calls and polls. Default: an HTTP
	// transport with a 30s per-exchange deadline.
	Transport transport.Transport

	// Wait, FailedBackoff and AcquireBackoff follow longpoll.Config.
	Wait           int
	FailedBackoff  time.Duration
	AcquireBackoff time.Duration

	// OnError receives isolated handler failures. Default: log at error.
	OnError func(ctx context.Context, err *command.HandlerError)

	Logger        *slog.Logger
	MeterProvider metric.MeterProvider
}

// Bot is the process-level facade.
type Bot struct {
	opts      Options
	transport transport.Transport
	client    *api.Client
	bus       *events.Bus
	registry  *command.Registry
	logger    *slog.Logger

	mu      sync.Mutex
	current *Task
}

// New builds a Bot. Inbound message_new updates are routed to the command
// registry.
func New(opts Options) (*Bot, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger

	tr := opts.Transport
	if tr == nil {
		httpTransport, err := transport.NewHTTPTransport(transport.HTTPConfig{})
		if err != nil {
			return nil, fmt.Errorf("bot: create transport: %w", err)
		}
		tr = httpTransport
	}

	client, err := api.New(api.Config{
		Credentials: api.Credentials{
			AccessToken: opts.Token,
			Version:     opts.Version,
			Lang:        opts.Lang,
		},
		Host:              opts.Host,
		UserAgent:         opts.UserAgent,
		MaxRetries:        opts.MaxRetries,
		RequestsPerSecond: opts.RequestsPerSecond,
		Transport:         tr,
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("bot: %w", err)
	}

	b := &Bot{
		opts:      opts,
		transport: tr,
		client:    client,
		bus:       events.NewBus(logger),
		logger:    log.WithComponent(logger, "bot"),
	}

	onError := opts.OnError
	if onError == nil {
		onError = b.logHandlerError
	}
	b.registry = command.NewRegistry(command.Config{
		Host:    &command.Host{Caller: client, Events: b.bus, Logger: logger},
		OnError: onError,
		Logger:  logger,
	})

	b.bus.Subscribe(command.MessageNew, b.registry.HandleUpdate)
	b.bus.Subscribe(events.Wildcard, func(ctx context.Context, u events.Update) {
		log.Trace(ctx, log.WithContext(ctx, b.logger), "update received",
			slog.String(log.EventTypeKey, u.Type),
			slog.Int64(log.GroupIDKey, u.GroupID))
	})
	return b, nil
}

func (b *Bot) logHandlerError(ctx context.Context, err *command.HandlerError) {
	log.WithCommand(log.WithContext(ctx, b.logger), err.Command).Error("command failed",
		log.Error(err.Err),
		slog.Bool("panicked", err.Panicked))
}

// Start launches a long-poll session for groupID in its own goroutine.
// The session ends on Stop or when ctx is done.
func (b *Bot) Start(ctx context.Context, groupID int64) (*Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current != nil && !b.current.finished() {
		return nil, ErrRunning
	}

	session, err := longpoll.New(longpoll.Config{
		Source:         b.client,
		Transport:      b.transport,
		Publisher:      b.bus,
		Wait:           b.opts.Wait,
		FailedBackoff:  b.opts.FailedBackoff,
		AcquireBackoff: b.opts.AcquireBackoff,
		Logger:         b.opts.Logger,
		MeterProvider:  b.opts.MeterProvider,
	})
	if err != nil {
		return nil, fmt.Errorf("bot: %w", err)
	}

	t := &Task{session: session, done: make(chan struct{})}
	b.current = t
	go func() {
		defer close(t.done)
		t.err = session.Run(ctx, groupID)
	}()
	b.logger.Info("bot started", slog.Int64(log.GroupIDKey, groupID))
	return t, nil
}

// Stop asks the running session to finish. It does not wait; use
// Task.Wait for that.
func (b *Bot) Stop() {
	b.mu.Lock()
	t := b.current
	b.mu.Unlock()
	if t != nil {
		t.session.Stop()
	}
}

// Call issues an API method.
func (b *Bot) Call(ctx context.Context, method string, params api.Params) (json.RawMessage, error) {
	return b.client.Call(ctx, method, params)
}

// On subscribes listener to eventType and returns its unsubscribe func.
func (b *Bot) On(eventType string, listener events.Listener) func() {
	return b.bus.Subscribe(eventType, listener)
}

// Commands returns the command registry.
func (b *Bot) Commands() *command.Registry { return b.registry }

// Events returns the event bus.
func (b *Bot) Events() *events.Bus { return b.bus }

// Client returns the API client.
func (b *Bot) Client() *api.Client { return b.client }

// Task is one started session.
type Task struct {
	session *longpoll.Session
	done    chan struct{}
	err     error
}

// Done is closed when the session has returned.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the session returns. It is nil after Stop and
// ctx.Err() after cancellation.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// State reports the session state.
func (t *Task) State() longpoll.State { return t.session.State() }

func (t *Task) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
