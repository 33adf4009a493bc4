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

package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tombee/herald/pkg/httpclient"
)

// HTTPConfig configures an HTTPTransport.
type HTTPConfig struct {
	// Client performs the exchange. If nil, a client from
	// httpclient.DefaultConfig is used.
	Client *http.Client

	// Timeout is the per-exchange deadline. Default: DefaultTimeout.
	Timeout time.Duration
}

// HTTPTransport is a Transport over net/http.
type HTTPTransport struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPTransport creates an HTTPTransport from cfg.
func NewHTTPTransport(cfg HTTPConfig) (*HTTPTransport, error) {
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0, got %v", cfg.Timeout)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	client := cfg.Client
	if client == nil {
		hcfg := httpclient.DefaultConfig()
		hcfg.Timeout = cfg.Timeout
		var err error
		client, err = httpclient.New(hcfg)
		if err != nil {
			return nil, fmt.Errorf("create http client: %w", err)
		}
	}

	return &HTTPTransport{client: client, timeout: cfg.Timeout}, nil
}

// Execute implements Transport.
func (t *HTTPTransport) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := validateRequest(req); err != nil {
		return nil, &TransportError{
			Type:    ErrorTypeInvalidReq,
			Message: fmt.Sprintf("invalid request: %s", err.Error()),
			Cause:   err,
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var bodyReader io.Reader
	if req.Body != nil {
		bodyReader = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(callCtx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, &TransportError{
			Type:    ErrorTypeInvalidReq,
			Message: "failed to build HTTP request",
			Cause:   err,
		}
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, classifyNetworkError(ctx, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, MaxResponseBytes+1))
	if err != nil {
		return nil, classifyNetworkError(ctx, err)
	}
	if len(body) > MaxResponseBytes {
		return nil, &TransportError{
			Type:    ErrorTypeServer,
			Message: fmt.Sprintf("response body exceeds %d bytes", MaxResponseBytes),
		}
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyStatus(httpResp.StatusCode, body)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
	}, nil
}

func validateRequest(req *Request) error {
	if req == nil {
		return errors.New("request is nil")
	}
	if req.Method == "" {
		return errors.New("method is required")
	}
	if req.URL == "" {
		return errors.New("URL is required")
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	return nil
}

// classifyNetworkError maps a failed exchange to a TransportError. parent is
// the caller's context, used to tell caller cancellation apart from the
// per-exchange deadline.
func classifyNetworkError(parent context.Context, err error) *TransportError {
	if parent.Err() != nil {
		return &TransportError{
			Type:    ErrorTypeCancelled,
			Message: "request cancelled",
			Cause:   err,
		}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &TransportError{
			Type:    ErrorTypeTimeout,
			Message: "request timeout",
			Cause:   err,
		}
	}

	message := "connection error"
	lower := strings.ToLower(err.Error())
	for _, keyword := range []string{"connection refused", "connection reset", "no such host", "tls", "eof"} {
		if strings.Contains(lower, keyword) {
			message = "connection error: " + keyword
			break
		}
	}

	return &TransportError{
		Type:    ErrorTypeConnection,
		Message: message,
		Cause:   err,
	}
}
