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

package shared

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/tombee/herald/internal/api"
	"github.com/tombee/herald/internal/config"
	"github.com/tombee/herald/internal/transport"
	pkgerrors "github.com/tombee/herald/pkg/errors"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitFailed},
		{"usage", NewUsageError("bad flag", nil), ExitInvalidUsage},
		{"config error", &pkgerrors.ConfigError{Key: "api.token", Reason: "missing"}, ExitConfigError},
		{"wrapped exit error", fmt.Errorf("outer: %w", NewConfigError("x", nil)), ExitConfigError},
		{
			"remote error",
			NewCallError("call failed", &api.CallFailedError{Method: "users.get", Err: &api.Error{Code: 5, Message: "auth"}}),
			ExitAPIError,
		},
		{
			"network error",
			NewCallError("call failed", &api.CallFailedError{Method: "users.get", Err: &transport.TransportError{Type: transport.ErrorTypeConnection}}),
			ExitNetworkError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitError_Message(t *testing.T) {
	err := NewConfigError("failed to load configuration", errors.New("no such file"))
	if err.Error() != "failed to load configuration: no such file" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, err.Cause) {
		t.Error("expected Unwrap to expose the cause")
	}
}

func TestPrintError_Suggestion(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, fmt.Errorf("load: %w", &pkgerrors.ValidationError{
		Field:   "pattern",
		Message: "bad pattern",
		Hint:    "patterns use RE2 syntax",
	}))

	out := buf.String()
	if !bytes.Contains([]byte(out), []byte("Suggestion: patterns use RE2 syntax")) {
		t.Errorf("expected suggestion, got %q", out)
	}
}

func TestLoggerConfig(t *testing.T) {
	t.Setenv("HERALD_DEBUG", "")
	t.Setenv("HERALD_LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")

	cfg := config.Default()
	cfg.Log.Level = "warn"
	cfg.Log.Format = "text"

	lc := LoggerConfig(cfg)
	if lc.Level != "warn" || lc.Format != "text" {
		t.Errorf("expected warn/text, got %s/%s", lc.Level, lc.Format)
	}

	t.Setenv("HERALD_LOG_LEVEL", "error")
	if lc := LoggerConfig(cfg); lc.Level != "error" {
		t.Errorf("expected HERALD_LOG_LEVEL to win, got %s", lc.Level)
	}

	flags.verbose = true
	defer ResetFlagsForTest()
	if lc := LoggerConfig(cfg); lc.Level != "debug" {
		t.Errorf("expected --verbose to win, got %s", lc.Level)
	}
}
