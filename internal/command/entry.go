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

// Package command holds the ordered set of pattern-matched commands and
// dispatches inbound messages to them.
//
// Entries are kept in registration order and indexed by Name. Dispatch
// tests every entry's pattern against the message text and runs every
// match, in order; a failing or panicking handler is reported and the
// remaining handlers still run. Registering a name that already exists
// detaches the old entry and appends the new one at the end.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/tombee/herald/internal/api"
	"github.com/tombee/herald/internal/events"
)

// Entry is a registered command.
type Entry interface {
	// Name is the stable identifier used for replacement and removal.
	Name() string

	// Pattern is matched against message text. A nil pattern never
	// matches, which suits entries that only listen to events.
	Pattern() *regexp.Regexp

	// Handle runs for a matching message with the pattern's capture
	// groups as args.
	Handle(ctx context.Context, msg *Message, args ...string) error
}

// Attacher is implemented by entries that need setup when registered.
type Attacher interface {
	Attach(host *Host) error
}

// Detacher is implemented by entries that need cleanup when removed or
// replaced.
type Detacher interface {
	Detach() error
}

// Subscriber registers update listeners. *events.Bus implements it.
type Subscriber interface {
	Subscribe(eventType string, listener events.Listener) func()
}

// Host is what an entry receives on Attach.
type Host struct {
	Caller api.Caller
	Events Subscriber
	Logger *slog.Logger
}

// HandlerFunc is the signature of a command handler.
type HandlerFunc func(ctx context.Context, msg *Message, args ...string) error

// FuncEntry is an Entry built from a function.
type FuncEntry struct {
	name    string
	pattern *regexp.Regexp
	handler HandlerFunc
}

// New returns an Entry that runs handler for text matching pattern.
func New(name string, pattern *regexp.Regexp, handler HandlerFunc) *FuncEntry {
	return &FuncEntry{name: name, pattern: pattern, handler: handler}
}

// MustCompile is New with a pattern compiled from expr.
func MustCompile(name, expr string, handler HandlerFunc) *FuncEntry {
	return New(name, regexp.MustCompile(expr), handler)
}

func (e *FuncEntry) Name() string            { return e.name }
func (e *FuncEntry) Pattern() *regexp.Regexp { return e.pattern }

func (e *FuncEntry) Handle(ctx context.Context, msg *Message, args ...string) error {
	if e.handler == nil {
		return nil
	}
	return e.handler(ctx, msg, args...)
}

// HandlerError is a failure isolated to one handler invocation.
type HandlerError struct {
	Command string
	Err     error

	// Panicked is set when the handler panicked rather than returning Err.
	Panicked bool
}

func (e *HandlerError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("command %s panicked: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("command %s: %v", e.Command, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
