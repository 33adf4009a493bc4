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

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CodeRetry is the remote error code answered by reissuing the identical
// call instead of surfacing an error.
const CodeRetry = 6

// RequestParam is one entry of the request_params list echoed in a remote
// error.
type RequestParam struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Error is the remote error envelope.
type Error struct {
	Code          int            `json:"error_code"`
	Message       string         `json:"error_msg"`
	RequestParams []RequestParam `json:"request_params,omitempty"`

	// Raw is the error object as received.
	Raw json.RawMessage `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

// ErrorType implements errors.ErrorClassifier.
func (e *Error) ErrorType() string {
	return "api"
}

// IsRetryable implements errors.ErrorClassifier. CodeRetry is already
// handled inside the client, so nothing that reaches a caller is retryable.
func (e *Error) IsRetryable() bool {
	return false
}

// Origin records where a call was issued.
type Origin struct {
	// Source names the issuing component, e.g. "command:ping".
	Source string

	// CorrelationID is the correlation ID of the call context, if any.
	CorrelationID string

	// IssuedAt is when the call was first issued, before any retry.
	IssuedAt time.Time
}

func (o Origin) String() string {
	s := o.Source
	if s == "" {
		s = "unknown"
	}
	if o.CorrelationID != "" {
		s += " correlation_id=" + o.CorrelationID
	}
	return s
}

type originKeyType struct{}

var originKey = originKeyType{}

// WithOrigin tags ctx so calls issued with it record source in their errors.
func WithOrigin(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, originKey, source)
}

// OriginFromContext returns the source set by WithOrigin, or "".
func OriginFromContext(ctx context.Context) string {
	s, _ := ctx.Value(originKey).(string)
	return s
}

// CallFailedError is returned by Client.Call for every failure other than a
// recovered CodeRetry.
type CallFailedError struct {
	// Method is the API method that failed.
	Method string

	// Params are the caller's parameters, without the merged credentials.
	Params Params

	// Origin is the call-site context captured when the call was issued.
	Origin Origin

	// Err is either an *Error or a *transport.TransportError, or a decode
	// failure.
	Err error
}

// Error implements the error interface.
func (e *CallFailedError) Error() string {
	return fmt.Sprintf("call %s failed (origin %s): %v", e.Method, e.Origin, e.Err)
}

// Unwrap returns the underlying error.
func (e *CallFailedError) Unwrap() error {
	return e.Err
}

// IsErrorCode reports whether err carries a remote error with the given code.
func IsErrorCode(err error, code int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// requestParamsFrom renders p in the request_params wire shape.
func requestParamsFrom(p Params) []RequestParam {
	out := make([]RequestParam, 0, len(p))
	for _, k := range p.Keys() {
		s, ok, err := encodeValue(p[k])
		if !ok || err != nil {
			continue
		}
		out = append(out, RequestParam{Key: k, Value: s})
	}
	return out
}
