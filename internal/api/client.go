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

// Package api is the client for the remote method-call API.
//
// Every call is a form-encoded POST to <base>/method/<name> carrying the
// client's credentials merged with the caller's parameters. The response is
// an envelope holding either "response" or "error"; an error with code
// CodeRetry is answered by reissuing the identical call, every other error
// is returned as a *CallFailedError.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/tombee/herald/internal/tracing"
	"github.com/tombee/herald/internal/transport"
)

// Defaults used when the corresponding Config field is empty.
const (
	DefaultHost              = "api.vk.com"
	DefaultVersion           = "5.103"
	DefaultLang              = "ru"
	DefaultUserAgent         = "herald/1.0"
	DefaultMaxRetries        = 3
	DefaultRequestsPerSecond = 20
)

// MethodExecute is the batch pseudo-method whose whole envelope is returned.
const MethodExecute = "execute"

// Caller issues API calls. *Client implements it.
type Caller interface {
	Call(ctx context.Context, method string, params Params) (json.RawMessage, error)
}

// Credentials are merged into every call.
type Credentials struct {
	AccessToken string
	Version     string
	Lang        string
}

func (c Credentials) params() Params {
	return Params{
		"access_token": c.AccessToken,
		"v":            c.Version,
		"lang":         c.Lang,
	}
}

// Config configures a Client.
type Config struct {
	Credentials Credentials

	// Host is the API host, optionally with a scheme ("http://127.0.0.1:8080").
	// Default: api.vk.com over https.
	Host string

	// UserAgent is the fixed client identifier. Default: herald/1.0.
	UserAgent string

	// MaxRetries bounds how many times a CodeRetry answer is retried.
	// Default: 3. Negative disables the retry.
	MaxRetries int

	// RequestsPerSecond limits outbound calls. Default: 20. Negative disables.
	RequestsPerSecond float64

	// Transport performs the exchange. Required.
	Transport transport.Transport

	// Logger receives call logs. Default: slog.Default().
	Logger *slog.Logger
}

// Client issues authenticated calls.
type Client struct {
	baseURL    string
	userAgent  string
	defaults   Params
	maxRetries int
	limiter    *rate.Limiter
	transport  transport.Transport
	logger     *slog.Logger
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("api: transport is required")
	}
	if cfg.Credentials.AccessToken == "" {
		return nil, fmt.Errorf("api: access token is required")
	}
	if cfg.Credentials.Version == "" {
		cfg.Credentials.Version = DefaultVersion
	}
	if cfg.Credentials.Lang == "" {
		cfg.Credentials.Lang = DefaultLang
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = DefaultMaxRetries
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	baseURL := strings.TrimRight(cfg.Host, "/")
	if !strings.Contains(baseURL, "://") {
		baseURL = "https://" + baseURL
	}

	c := &Client{
		baseURL:    baseURL,
		userAgent:  cfg.UserAgent,
		defaults:   cfg.Credentials.params(),
		maxRetries: cfg.MaxRetries,
		transport:  cfg.Transport,
		logger:     logger.With("component", "api"),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c, nil
}

// Call issues method with params merged over the client credentials and
// returns the "response" member of the envelope, or the whole envelope for
// MethodExecute.
func (c *Client) Call(ctx context.Context, method string, params Params) (json.RawMessage, error) {
	origin := Origin{
		Source:        OriginFromContext(ctx),
		CorrelationID: tracing.FromContextOrEmpty(ctx).String(),
		IssuedAt:      time.Now(),
	}

	ctx, span := tracing.Tracer().Start(ctx, "api.call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("api.method", method)),
	)
	defer span.End()

	fail := func(err error) (json.RawMessage, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &CallFailedError{
			Method: method,
			Params: params.Clone(),
			Origin: origin,
			Err:    err,
		}
	}

	body, err := Merge(c.defaults, params).Encode()
	if err != nil {
		return fail(err)
	}
	req := &transport.Request{
		Method: http.MethodPost,
		URL:    c.baseURL + "/method/" + method,
		Headers: map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
			"User-Agent":   c.userAgent,
		},
		Body: []byte(body),
	}

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fail(err)
			}
		}

		start := time.Now()
		resp, err := c.transport.Execute(ctx, req)
		if err != nil {
			return fail(err)
		}

		result, apiErr, err := decodeEnvelope(method, resp.Body)
		if err != nil {
			return fail(err)
		}

		if apiErr == nil {
			c.logger.DebugContext(ctx, "api call",
				slog.String("method", method),
				slog.Int("attempt", attempt+1),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
			return result, nil
		}

		span.SetAttributes(attribute.Int("api.error_code", apiErr.Code))
		if apiErr.Code == CodeRetry && attempt < c.maxRetries {
			c.logger.DebugContext(ctx, "api call answered with retry code, reissuing",
				slog.String("method", method),
				slog.Int("attempt", attempt+1),
			)
			continue
		}

		// The echoed request_params include the merged credentials.
		apiErr.RequestParams = requestParamsFrom(params)
		return fail(apiErr)
	}
}

type envelope struct {
	Response json.RawMessage `json:"response"`
	Error    json.RawMessage `json:"error"`
}

func decodeEnvelope(method string, body []byte) (json.RawMessage, *Error, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, nil, fmt.Errorf("decode response envelope: %w", err)
	}

	if len(env.Error) > 0 && string(env.Error) != "null" {
		apiErr := &Error{}
		if err := json.Unmarshal(env.Error, apiErr); err != nil {
			return nil, nil, fmt.Errorf("decode error envelope: %w", err)
		}
		apiErr.Raw = env.Error
		return nil, apiErr, nil
	}

	if method == MethodExecute {
		return json.RawMessage(body), nil, nil
	}
	return env.Response, nil, nil
}
