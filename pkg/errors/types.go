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

// Package errors holds the error types shared across herald packages.
// Component-specific errors (transport failures, remote call failures,
// handler failures) live next to the component that produces them.
package errors

import (
	"fmt"
)

// ValidationError reports invalid user input such as a malformed
// --param flag or a command file with a bad pattern.
type ValidationError struct {
	// Field identifies the offending input.
	Field string

	// Message describes what is wrong.
	Message string

	// Hint is optional guidance shown by the CLI.
	Hint string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// UserMessage implements UserVisibleError.
func (e *ValidationError) UserMessage() string {
	return e.Message
}

// Suggestion implements UserVisibleError.
func (e *ValidationError) Suggestion() string {
	return e.Hint
}

// ConfigError reports a configuration problem: an unreadable file, a
// missing access token, an unresolvable secret reference.
type ConfigError struct {
	// Key is the configuration key at fault (e.g. "api.token", "longpoll.wait").
	Key string

	// Reason explains the problem.
	Reason string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := "config error"
	if e.Key != "" {
		msg = fmt.Sprintf("config error at %s", e.Key)
	}
	msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *ConfigError) ErrorType() string {
	return "config"
}

// IsRetryable implements ErrorClassifier. Configuration problems need a
// human to fix them.
func (e *ConfigError) IsRetryable() bool {
	return false
}
