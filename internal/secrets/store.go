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

package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrSecretNotFound means the store has nothing under the key.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrStoreUnavailable means no usable store answers to the scheme.
	ErrStoreUnavailable = errors.New("secret store unavailable")

	// ErrReadOnly is returned by stores that cannot be written.
	ErrReadOnly = errors.New("secret store is read-only")
)

// Store holds secrets addressed as "<scheme>:<key>".
type Store interface {
	Scheme() string
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Prober is implemented by stores that may be missing on the host. A store
// that reports false is left out of a Resolver.
type Prober interface {
	Available() bool
}

// EnvStore reads secrets from the process environment. Surrounding
// whitespace is trimmed and a blank variable counts as unset.
type EnvStore struct {
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(key string) (string, bool)
}

func (EnvStore) Scheme() string { return "env" }

func (e EnvStore) Get(_ context.Context, key string) (string, error) {
	lookup := e.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	value, _ := lookup(key)
	if value = strings.TrimSpace(value); value == "" {
		return "", fmt.Errorf("%w: environment variable %s not set", ErrSecretNotFound, key)
	}
	return value, nil
}

func (EnvStore) Set(context.Context, string, string) error { return ErrReadOnly }

func (EnvStore) Delete(context.Context, string) error { return ErrReadOnly }
