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
	"errors"
	"fmt"
)

// ErrorType classifies transport failures.
type ErrorType string

const (
	// ErrorTypeConnection indicates network-level failures (DNS, refused, reset, TLS)
	ErrorTypeConnection ErrorType = "connection"

	// ErrorTypeTimeout indicates the per-exchange deadline was exceeded
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeAuth indicates 401 or 403
	ErrorTypeAuth ErrorType = "auth"

	// ErrorTypeRateLimit indicates 429 Too Many Requests
	ErrorTypeRateLimit ErrorType = "rate_limit"

	// ErrorTypeServer indicates 5xx, or a response that could not be read
	ErrorTypeServer ErrorType = "server"

	// ErrorTypeClient indicates any other non-200 status
	ErrorTypeClient ErrorType = "client"

	// ErrorTypeInvalidReq indicates the request itself was malformed
	ErrorTypeInvalidReq ErrorType = "invalid_request"

	// ErrorTypeCancelled indicates the caller's context was cancelled
	ErrorTypeCancelled ErrorType = "cancelled"
)

// TransportError is the failure returned by every Transport.
type TransportError struct {
	// Type classifies the error.
	Type ErrorType

	// StatusCode is the HTTP status, zero if no response was received.
	StatusCode int

	// Message is safe to log; it never includes request URLs or bodies.
	Message string

	// Body holds up to the first 512 bytes of a non-200 response.
	Body []byte

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Code returns the negated HTTP status, or -1 when no status was received.
func (e *TransportError) Code() int {
	if e.StatusCode != 0 {
		return -e.StatusCode
	}
	return -1
}

// ErrorType implements errors.ErrorClassifier.
func (e *TransportError) ErrorType() string {
	return string(e.Type)
}

// IsRetryable reports whether repeating the exchange could succeed:
// network failures, timeouts, 5xx and 429.
func (e *TransportError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeConnection, ErrorTypeTimeout, ErrorTypeServer, ErrorTypeRateLimit:
		return true
	default:
		return false
	}
}

// IsTransportError reports whether err is or wraps a *TransportError,
// returning it if so.
func IsTransportError(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// classifyStatus builds the error for a non-200 response.
func classifyStatus(statusCode int, body []byte) *TransportError {
	var errorType ErrorType
	switch {
	case statusCode == 401 || statusCode == 403:
		errorType = ErrorTypeAuth
	case statusCode == 429:
		errorType = ErrorTypeRateLimit
	case statusCode == 408:
		errorType = ErrorTypeTimeout
	case statusCode >= 500:
		errorType = ErrorTypeServer
	default:
		errorType = ErrorTypeClient
	}

	if len(body) > 512 {
		body = body[:512]
	}

	return &TransportError{
		Type:       errorType,
		StatusCode: statusCode,
		Message:    fmt.Sprintf("HTTP %d", statusCode),
		Body:       body,
	}
}
