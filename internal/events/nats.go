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

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is prepended to the update type to form the subject.
const DefaultSubjectPrefix = "herald.updates"

// Publisher is the subset of *nats.Conn the forwarder needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// ForwarderConfig configures a NATSForwarder.
type ForwarderConfig struct {
	// Prefix is the subject prefix. Default: DefaultSubjectPrefix.
	Prefix string

	// Types limits forwarding to these update types. Empty forwards all.
	Types []string

	Logger *slog.Logger
}

// NATSForwarder republishes bus updates to NATS subjects
// "<prefix>.<type>" as JSON.
type NATSForwarder struct {
	pub    Publisher
	prefix string
	types  map[string]bool
	logger *slog.Logger
}

// NewNATSForwarder creates a forwarder publishing through pub.
func NewNATSForwarder(pub Publisher, cfg ForwarderConfig) *NATSForwarder {
	prefix := strings.TrimSuffix(cfg.Prefix, ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var types map[string]bool
	if len(cfg.Types) > 0 {
		types = make(map[string]bool, len(cfg.Types))
		for _, t := range cfg.Types {
			types[t] = true
		}
	}

	return &NATSForwarder{
		pub:    pub,
		prefix: prefix,
		types:  types,
		logger: logger.With("component", "nats_forwarder"),
	}
}

// Attach subscribes the forwarder to every update on bus. The returned
// function detaches it.
func (f *NATSForwarder) Attach(bus *Bus) func() {
	return bus.Subscribe(Wildcard, f.Forward)
}

// Subject returns the subject an update type is published on.
func (f *NATSForwarder) Subject(eventType string) string {
	return f.prefix + "." + eventType
}

// Forward publishes u if its type is selected. Publish failures are logged;
// the bus never sees them.
func (f *NATSForwarder) Forward(ctx context.Context, u Update) {
	if f.types != nil && !f.types[u.Type] {
		return
	}

	data, err := json.Marshal(u)
	if err != nil {
		f.logger.WarnContext(ctx, "failed to encode update", slog.String("event_type", u.Type), slog.Any("error", err))
		return
	}

	if err := f.pub.Publish(f.Subject(u.Type), data); err != nil {
		f.logger.WarnContext(ctx, "failed to forward update", slog.String("event_type", u.Type), slog.Any("error", err))
	}
}

// ConnectNATS dials a NATS server with reconnects enabled.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}

var _ Publisher = (*nats.Conn)(nil)
