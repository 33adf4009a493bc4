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

package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"regexp"
	"sync"

	"github.com/tombee/herald/internal/api"
	"github.com/tombee/herald/internal/command"
	"github.com/tombee/herald/internal/events"
)

// TypingStateEvent is the update type sent while a user is typing.
const TypingStateEvent = "message_typing_state"

// Builtins returns the commands compiled into the binary.
func Builtins() []command.Entry {
	return []command.Entry{NewTyping(), NewPing()}
}

// NewPing answers "ping" or "/ping" with "pong".
func NewPing() *command.FuncEntry {
	return command.MustCompile("ping", `^/?ping$`, func(ctx context.Context, msg *command.Message, _ ...string) error {
		_, err := msg.Send(ctx, "pong", nil)
		return err
	})
}

// Typing mirrors a user's typing indicator back into their conversation.
// It matches no messages; it only listens for typing updates.
type Typing struct {
	mu          sync.Mutex
	host        *command.Host
	unsubscribe func()
}

// NewTyping returns an unattached Typing entry.
func NewTyping() *Typing { return &Typing{} }

func (t *Typing) Name() string            { return "typing" }
func (t *Typing) Pattern() *regexp.Regexp { return nil }

// Description implements the optional describer used by listings.
func (t *Typing) Description() string { return "Shows typing back to users who start typing" }

func (t *Typing) Handle(context.Context, *command.Message, ...string) error { return nil }

// Attach subscribes to typing updates on the host's event bus.
func (t *Typing) Attach(host *command.Host) error {
	if host == nil || host.Events == nil || host.Caller == nil {
		return errors.New("typing: host needs an event source and a caller")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.unsubscribe != nil {
		t.unsubscribe()
	}
	t.host = host
	t.unsubscribe = host.Events.Subscribe(TypingStateEvent, t.onTyping)
	return nil
}

// Detach drops the subscription.
func (t *Typing) Detach() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.unsubscribe != nil {
		t.unsubscribe()
		t.unsubscribe = nil
	}
	t.host = nil
	return nil
}

type typingState struct {
	FromID int64  `json:"from_id"`
	ToID   int64  `json:"to_id"`
	State  string `json:"state"`
}

func (t *Typing) onTyping(ctx context.Context, u events.Update) {
	t.mu.Lock()
	host := t.host
	t.mu.Unlock()
	if host == nil {
		return
	}

	var st typingState
	if err := json.Unmarshal(u.Object, &st); err != nil {
		hostLogger(host).Debug("malformed typing update", slog.String("error", err.Error()))
		return
	}
	// Negative ids are communities.
	if st.FromID <= 0 {
		return
	}

	ctx = api.WithOrigin(ctx, "command:typing")
	if err := api.SetActivity(ctx, host.Caller, st.FromID, "typing"); err != nil {
		hostLogger(host).Warn("set typing activity failed",
			slog.Int64("peer_id", st.FromID),
			slog.String("error", err.Error()))
	}
}

func hostLogger(host *command.Host) *slog.Logger {
	if host.Logger != nil {
		return host.Logger
	}
	return slog.Default()
}
