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

package tracing

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"console", Config{Exporter: ExporterConfig{Type: ExporterConsole}}, false},
		{"otlp without endpoint", Config{Exporter: ExporterConfig{Type: ExporterOTLPHTTP}}, true},
		{"otlp with endpoint", Config{Exporter: ExporterConfig{Type: ExporterOTLPHTTP, Endpoint: "localhost:4318"}}, false},
		{"grpc without endpoint", Config{Exporter: ExporterConfig{Type: ExporterOTLPGRPC}}, true},
		{"grpc with endpoint", Config{Exporter: ExporterConfig{Type: ExporterOTLPGRPC, Endpoint: "localhost:4317"}}, false},
		{"unknown", Config{Exporter: ExporterConfig{Type: "zipkin"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProvider_MetricsHandler(t *testing.T) {
	ctx := context.Background()
	p, err := NewProvider(ctx, DefaultConfig())
	require.NoError(t, err)
	defer p.Shutdown(ctx)

	counter, err := p.MeterProvider().Meter(InstrumentationName).Int64Counter("herald_test_events")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	srv := httptest.NewServer(p.MetricsHandler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "herald_test_events_total")
}

func TestProvider_ConsoleExporter(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Exporter = ExporterConfig{Type: ExporterConsole, Output: &buf}

	p, err := NewProvider(ctx, cfg)
	require.NoError(t, err)

	_, span := Tracer().Start(ctx, "api.call")
	span.End()

	require.NoError(t, p.Shutdown(ctx))
	assert.Contains(t, buf.String(), "api.call")
}

func TestProvider_OTLPGRPCExporter(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Exporter = ExporterConfig{Type: ExporterOTLPGRPC, Endpoint: "127.0.0.1:4317", Insecure: true}

	// The gRPC client connects lazily, so construction succeeds without a
	// collector.
	p, err := NewProvider(ctx, cfg)
	require.NoError(t, err)
	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_ = p.Shutdown(shutdownCtx)
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Exporter: ExporterConfig{Type: "zipkin"}})
	assert.Error(t, err)
}
