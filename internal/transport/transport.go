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

// Package transport performs single HTTP exchanges for the API client and the
// long-poll session.
//
// A Transport never retries. Every exchange runs under its own deadline
// (DefaultTimeout unless configured), so Execute always returns. A response
// other than HTTP 200 and any network-level failure is reported as a
// *TransportError whose Code follows the wire convention: the negated HTTP
// status, or -1 when no response was received.
package transport

import (
	"context"
	"time"
)

// DefaultTimeout bounds a single exchange. It must stay larger than the
// long-poll wait hint so a held poll settles before the deadline.
const DefaultTimeout = 30 * time.Second

// MaxResponseBytes caps how much of a response body is read.
const MaxResponseBytes = 8 << 20

// Transport executes one request/response cycle.
type Transport interface {
	// Execute sends req and returns the response. Failures are returned as
	// *TransportError.
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// Request describes one outbound exchange.
type Request struct {
	// Method is the HTTP method. Required.
	Method string

	// URL is the full request URL including any query string. Required.
	URL string

	// Headers are set on the outgoing request, overriding defaults.
	Headers map[string]string

	// Body is the request body. May be nil.
	Body []byte
}

// Response is a successful (HTTP 200) exchange.
type Response struct {
	StatusCode int
	Headers    map[string][]string
	Body       []byte
}

// Func adapts a function to the Transport interface.
type Func func(ctx context.Context, req *Request) (*Response, error)

// Execute calls f(ctx, req).
func (f Func) Execute(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
