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

package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/tombee/herald/internal/api"
	"github.com/tombee/herald/internal/events"
)

// MessageNew is the update type carrying inbound messages.
const MessageNew = "message_new"

// Config configures a Registry.
type Config struct {
	// Host is passed to entries implementing Attacher. Its Caller also
	// binds messages decoded by HandleUpdate.
	Host *Host

	// OnError receives every isolated handler failure.
	OnError func(ctx context.Context, err *HandlerError)

	// Logger is the structured logger. Default: slog.Default().
	Logger *slog.Logger
}

// Result reports one dispatch.
type Result struct {
	// Matched lists the entries that ran, in order.
	Matched []string

	// Errors holds one HandlerError per failed invocation.
	Errors []*HandlerError
}

// Registry is the ordered command set.
type Registry struct {
	// writeMu serializes Register and Unregister so lifecycle hooks run
	// outside mu.
	writeMu sync.Mutex

	mu      sync.RWMutex
	entries map[string]Entry
	order   []string

	host    *Host
	onError func(ctx context.Context, err *HandlerError)
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	host := cfg.Host
	if host == nil {
		host = &Host{}
	}
	if host.Logger == nil {
		host.Logger = logger
	}
	return &Registry{
		entries: make(map[string]Entry),
		host:    host,
		onError: cfg.OnError,
		logger:  logger.With("component", "command"),
	}
}

// Register adds e at the end of the order. An existing entry with the same
// name is removed and detached first. If e implements Attacher and Attach
// fails, e is not registered and the error is returned.
func (r *Registry) Register(e Entry) error {
	if e == nil {
		return errors.New("command: entry is nil")
	}
	name := e.Name()
	if name == "" {
		return errors.New("command: entry name is required")
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if old, ok := r.remove(name); ok {
		r.detach(old)
	}

	if a, ok := e.(Attacher); ok {
		if err := a.Attach(r.host); err != nil {
			return fmt.Errorf("command %s: attach: %w", name, err)
		}
	}

	r.mu.Lock()
	r.entries[name] = e
	r.order = append(r.order, name)
	r.mu.Unlock()

	r.logger.Debug("command registered", slog.String("command", name))
	return nil
}

// Unregister removes and detaches the named entry. It reports whether the
// entry existed.
func (r *Registry) Unregister(name string) bool {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	old, ok := r.remove(name)
	if ok {
		r.detach(old)
		r.logger.Debug("command unregistered", slog.String("command", name))
	}
	return ok
}

func (r *Registry) remove(name string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	delete(r.entries, name)
	order := make([]string, 0, len(r.order))
	for _, n := range r.order {
		if n != name {
			order = append(order, n)
		}
	}
	r.order = order
	return old, true
}

func (r *Registry) detach(e Entry) {
	d, ok := e.(Detacher)
	if !ok {
		return
	}
	if err := d.Detach(); err != nil {
		r.logger.Warn("command detach failed",
			slog.String("command", e.Name()),
			slog.Any("error", err),
		)
	}
}

// Get returns the named entry.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Entries returns a snapshot of the entries in order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Dispatch runs every entry whose pattern matches msg.Text, in
// registration order. Handler failures are isolated and collected.
func (r *Registry) Dispatch(ctx context.Context, msg *Message) Result {
	var res Result
	for _, e := range r.Entries() {
		pattern := e.Pattern()
		if pattern == nil {
			continue
		}
		match := pattern.FindStringSubmatch(msg.Text)
		if match == nil {
			continue
		}

		name := e.Name()
		res.Matched = append(res.Matched, name)
		if herr := r.invoke(api.WithOrigin(ctx, "command:"+name), e, msg, match[1:]); herr != nil {
			res.Errors = append(res.Errors, herr)
			r.logger.ErrorContext(ctx, "command failed",
				slog.String("command", name),
				slog.Int64("peer_id", msg.PeerID),
				slog.Any("error", herr.Err),
			)
			if r.onError != nil {
				r.onError(ctx, herr)
			}
		}
	}
	return res
}

func (r *Registry) invoke(ctx context.Context, e Entry, msg *Message, args []string) (herr *HandlerError) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Debug("command panic stack", slog.String("command", e.Name()), slog.String("stack", string(debug.Stack())))
			herr = &HandlerError{Command: e.Name(), Err: fmt.Errorf("%v", p), Panicked: true}
		}
	}()
	if err := e.Handle(ctx, msg, args...); err != nil {
		return &HandlerError{Command: e.Name(), Err: err}
	}
	return nil
}

// HandleUpdate is an events.Listener for MessageNew updates. The decoded
// message is bound to the host caller and dispatched.
func (r *Registry) HandleUpdate(ctx context.Context, u events.Update) {
	msg, err := ParseMessageNew(u.Object, r.host.Caller)
	if err != nil {
		r.logger.WarnContext(ctx, "dropping malformed message", slog.String("event_type", u.Type), slog.Any("error", err))
		return
	}
	r.Dispatch(ctx, msg)
}
