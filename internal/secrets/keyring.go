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
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service name herald's keyring entries live under.
const KeyringService = "herald"

// probeAccount is looked up once to tell a missing entry from a missing
// or locked keyring service.
const probeAccount = "__herald_probe__"

// KeyringStore keeps tokens in the OS credential store: Keychain on macOS,
// the Secret Service on Linux, Credential Manager on Windows.
type KeyringStore struct {
	once      sync.Once
	available bool
}

// NewKeyringStore creates a store over the OS keyring. The service is
// probed lazily on first use.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func (k *KeyringStore) Scheme() string { return "keyring" }

// Available reports whether the keyring service answered the probe.
func (k *KeyringStore) Available() bool {
	k.once.Do(func() {
		_, err := keyring.Get(KeyringService, probeAccount)
		k.available = err == nil || errors.Is(err, keyring.ErrNotFound)
	})
	return k.available
}

func (k *KeyringStore) Get(_ context.Context, account string) (string, error) {
	if !k.Available() {
		return "", errUnavailable
	}
	value, err := keyring.Get(KeyringService, account)
	if err != nil {
		return "", keyringError(account, err)
	}
	return value, nil
}

func (k *KeyringStore) Set(_ context.Context, account, token string) error {
	if !k.Available() {
		return errUnavailable
	}
	return keyringError(account, keyring.Set(KeyringService, account, token))
}

func (k *KeyringStore) Delete(_ context.Context, account string) error {
	if !k.Available() {
		return errUnavailable
	}
	return keyringError(account, keyring.Delete(KeyringService, account))
}

var errUnavailable = fmt.Errorf("%w: keyring service not reachable", ErrStoreUnavailable)

// keyringError maps go-keyring failures onto the package sentinels. It
// returns nil for a nil err.
func keyringError(account string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, keyring.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrSecretNotFound, account)
	case isLockedError(err):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("keyring: %w", err)
	}
}

// lockedIndicators are fragments of the messages platforms produce when the
// keyring exists but cannot be used.
var lockedIndicators = []string{
	"locked",
	"cannot access",
	"permission denied",
	"failed to unlock",
	"user interaction required",
	"secret service",
	"dbus",
	"user canceled",
}

func isLockedError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, frag := range lockedIndicators {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}
