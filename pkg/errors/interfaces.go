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

package errors

// UserVisibleError is implemented by errors that carry a hint for the
// person running the CLI. The exit-code handler prints the suggestion
// after the error message.
type UserVisibleError interface {
	error

	// UserMessage returns a short message without implementation detail.
	UserMessage() string

	// Suggestion returns guidance for resolving the error, or "".
	Suggestion() string
}

// ErrorClassifier is implemented by errors that can be routed by category,
// for example by the long-poll loop when deciding whether to re-acquire a
// server or by metrics that count failures by kind.
type ErrorClassifier interface {
	error

	// ErrorType returns the error category ("transport", "remote", "config").
	ErrorType() string

	// IsRetryable reports whether repeating the operation may succeed.
	IsRetryable() bool
}
