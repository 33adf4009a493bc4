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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tombee/herald/internal/api"
	"github.com/tombee/herald/internal/transport"
	pkgerrors "github.com/tombee/herald/pkg/errors"
)

// Exit codes for herald commands
const (
	ExitSuccess      = 0
	ExitFailed       = 1
	ExitInvalidUsage = 2
	ExitConfigError  = 3
	ExitAPIError     = 4
	ExitNetworkError = 5
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewUsageError creates an error for bad arguments or flags
func NewUsageError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitInvalidUsage, Message: msg, Cause: cause}
}

// NewConfigError creates an error for configuration problems
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitConfigError, Message: msg, Cause: cause}
}

// NewCallError classifies an API call failure: remote errors exit with
// ExitAPIError, transport failures with ExitNetworkError.
func NewCallError(msg string, cause error) *ExitError {
	code := ExitFailed
	var apiErr *api.Error
	if errors.As(cause, &apiErr) {
		code = ExitAPIError
	} else if _, ok := transport.IsTransportError(cause); ok {
		code = ExitNetworkError
	}
	return &ExitError{Code: code, Message: msg, Cause: cause}
}

// ExitCode returns the exit code err maps to.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var cfgErr *pkgerrors.ConfigError
	if errors.As(err, &cfgErr) {
		return ExitConfigError
	}
	return ExitFailed
}

// HandleExitError prints err and exits with its code.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	printError(os.Stderr, err)
	os.Exit(ExitCode(err))
}

func printError(w io.Writer, err error) {
	fmt.Fprintln(w, "Error:", err.Error())
	printUserVisibleSuggestion(w, err)
}

// printUserVisibleSuggestion prints the hint of the first UserVisibleError
// in the chain.
func printUserVisibleSuggestion(w io.Writer, err error) {
	var userErr pkgerrors.UserVisibleError
	if errors.As(err, &userErr) {
		if suggestion := userErr.Suggestion(); suggestion != "" {
			fmt.Fprintf(w, "\nSuggestion: %s\n", suggestion)
		}
	}
}
