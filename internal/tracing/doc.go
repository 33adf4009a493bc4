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

// Package tracing wires OpenTelemetry into herald.
//
// It owns correlation IDs, which tag every API call issued while handling
// one update, and the Provider, which builds the tracer and meter providers.
// Metrics are exported through Prometheus; spans go to stdout or an
// OTLP collector (HTTP or gRPC) when an exporter is configured.
//
// When no Provider is installed the global otel no-op providers are used,
// so packages may call otel.Tracer unconditionally.
package tracing
