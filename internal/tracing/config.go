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
	"fmt"
	"io"
)

// Exporter types accepted by ExporterConfig.Type.
const (
	ExporterNone     = "none"
	ExporterConsole  = "console"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

// Config configures the telemetry Provider.
type Config struct {
	// ServiceName identifies this process in traces and metrics.
	ServiceName string `yaml:"service_name,omitempty" json:"service_name,omitempty"`

	// ServiceVersion is the application version.
	ServiceVersion string `yaml:"-" json:"-"`

	// Exporter selects where spans are sent. Metrics are always available
	// through the Prometheus handler.
	Exporter ExporterConfig `yaml:"exporter,omitempty" json:"exporter,omitempty"`
}

// ExporterConfig selects a span exporter.
type ExporterConfig struct {
	// Type is "none" (default), "console", "otlp-http" or "otlp-grpc".
	Type string `yaml:"type,omitempty" json:"type,omitempty"`

	// Endpoint is the OTLP receiver host:port.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// URLPath overrides the default /v1/traces path (otlp-http only).
	URLPath string `yaml:"url_path,omitempty" json:"url_path,omitempty"`

	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure,omitempty" json:"insecure,omitempty"`

	// Headers are sent with every export request, typically for auth.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	// Output receives console spans. Defaults to stdout.
	Output io.Writer `yaml:"-" json:"-"`
}

// DefaultConfig returns a Config with tracing export disabled.
func DefaultConfig() Config {
	return Config{
		ServiceName: "herald",
		Exporter:    ExporterConfig{Type: ExporterNone},
	}
}

// Validate checks the exporter settings.
func (c Config) Validate() error {
	switch c.Exporter.Type {
	case "", ExporterNone, ExporterConsole:
		return nil
	case ExporterOTLPHTTP, "otlp_http", ExporterOTLPGRPC, "otlp", "otlp_grpc":
		if c.Exporter.Endpoint == "" {
			return fmt.Errorf("exporter endpoint is required for %s", c.Exporter.Type)
		}
		return nil
	default:
		return fmt.Errorf("unknown exporter type: %s", c.Exporter.Type)
	}
}
