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

// Package events is the in-process update bus.
//
// Publish is synchronous: every listener for the update's type runs on the
// publishing goroutine, in subscription order, before Publish returns.
// Updates with no listener are dropped.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Wildcard subscribes a listener to every update type. Wildcard listeners
// run after the typed listeners.
const Wildcard = "*"

// Update is one long-poll event.
type Update struct {
	Type    string          `json:"type"`
	Object  json.RawMessage `json:"object"`
	GroupID int64           `json:"group_id,omitempty"`
	EventID string          `json:"event_id,omitempty"`
}

// Listener handles an update.
type Listener func(ctx context.Context, u Update)

type subscription struct {
	listener Listener
}

// Bus dispatches updates to listeners keyed by update type.
type Bus struct {
	mu        sync.RWMutex
	listeners map[string][]*subscription
	logger    *slog.Logger
}

// NewBus creates an empty bus. A nil logger uses slog.Default().
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		listeners: make(map[string][]*subscription),
		logger:    logger.With("component", "events"),
	}
}

// Subscribe registers listener for updates of type eventType and returns a
// function that removes it. The returned function is safe to call more than
// once.
func (b *Bus) Subscribe(eventType string, listener Listener) func() {
	sub := &subscription{listener: listener}

	b.mu.Lock()
	b.listeners[eventType] = append(b.listeners[eventType], sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(eventType, sub) })
	}
}

// On is Subscribe.
func (b *Bus) On(eventType string, listener Listener) func() {
	return b.Subscribe(eventType, listener)
}

func (b *Bus) remove(eventType string, sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.listeners[eventType]
	for i, s := range subs {
		if s == sub {
			// Copy so snapshots taken by in-flight publishes stay intact.
			next := make([]*subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(b.listeners, eventType)
			} else {
				b.listeners[eventType] = next
			}
			return
		}
	}
}

// Publish delivers u to its typed listeners and then to wildcard listeners.
// It returns the number of listeners invoked.
func (b *Bus) Publish(ctx context.Context, u Update) int {
	b.mu.RLock()
	typed := b.listeners[u.Type]
	var wildcard []*subscription
	if u.Type != Wildcard {
		wildcard = b.listeners[Wildcard]
	}
	b.mu.RUnlock()

	// Slices are never mutated in place, so the snapshot is safe to range
	// over while listeners subscribe or unsubscribe.
	for _, sub := range typed {
		b.invoke(ctx, sub, u)
	}
	for _, sub := range wildcard {
		b.invoke(ctx, sub, u)
	}
	return len(typed) + len(wildcard)
}

// Len returns the number of listeners for eventType.
func (b *Bus) Len(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[eventType])
}

func (b *Bus) invoke(ctx context.Context, sub *subscription, u Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.ErrorContext(ctx, "listener panicked",
				slog.String("event_type", u.Type),
				slog.String("panic", fmt.Sprint(r)),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	sub.listener(ctx, u)
}
