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
	"testing"

	"github.com/zalando/go-keyring"
)

type unavailableStore struct{ EnvStore }

func (unavailableStore) Scheme() string  { return "keyring" }
func (unavailableStore) Available() bool { return false }

func TestParseReference(t *testing.T) {
	tests := []struct {
		in         string
		wantScheme string
		wantKey    string
		wantOK     bool
	}{
		{"keyring:main", "keyring", "main", true},
		{"env:VK_TOKEN", "env", "VK_TOKEN", true},
		{"vk1.a.plain-token", "", "", false},
		{"keyring:", "", "", false},
		{"vault:path", "", "", false},
	}
	for _, tt := range tests {
		scheme, key, ok := ParseReference(tt.in)
		if scheme != tt.wantScheme || key != tt.wantKey || ok != tt.wantOK {
			t.Errorf("ParseReference(%q) = %q, %q, %v", tt.in, scheme, key, ok)
		}
	}
}

func TestResolver_Keyring(t *testing.T) {
	keyring.MockInit()
	ctx := context.Background()
	r := NewResolver(NewKeyringStore(), EnvStore{})

	if err := r.Set(ctx, "keyring", "main", "secret-token"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := r.Resolve(ctx, "keyring:main")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "secret-token" {
		t.Errorf("Resolve() = %q, want %q", got, "secret-token")
	}

	if err := r.Delete(ctx, "keyring", "main"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := r.Resolve(ctx, "keyring:main"); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("expected ErrSecretNotFound after delete, got %v", err)
	}
	if err := r.Delete(ctx, "keyring", "main"); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("expected ErrSecretNotFound deleting twice, got %v", err)
	}
}

func TestResolver_Env(t *testing.T) {
	t.Setenv("HERALD_TEST_TOKEN", "from-env")
	ctx := context.Background()
	r := NewResolver(EnvStore{})

	got, err := r.Resolve(ctx, "env:HERALD_TEST_TOKEN")
	if err != nil || got != "from-env" {
		t.Errorf("Resolve() = %q, %v", got, err)
	}

	if _, err := r.Resolve(ctx, "env:HERALD_TEST_UNSET"); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("expected ErrSecretNotFound, got %v", err)
	}
	t.Setenv("HERALD_TEST_BLANK", "   ")
	if _, err := r.Resolve(ctx, "env:HERALD_TEST_BLANK"); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("expected ErrSecretNotFound, got %v", err)
	}
	if err := r.Set(ctx, "env", "X", "y"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
}

func TestResolver_PlainValue(t *testing.T) {
	got, err := NewResolver().Resolve(context.Background(), "plain")
	if err != nil || got != "plain" {
		t.Errorf("Resolve() = %q, %v", got, err)
	}
}

func TestResolver_UnavailableStoreSkipped(t *testing.T) {
	r := NewResolver(unavailableStore{})
	if _, err := r.Resolve(context.Background(), "keyring:main"); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestIsLockedError(t *testing.T) {
	if !isLockedError(errors.New("The Secret Service is locked")) {
		t.Error("expected locked keychain to be unavailable")
	}
	if isLockedError(errors.New("boom")) {
		t.Error("unexpected unavailable classification")
	}
	if isLockedError(nil) {
		t.Error("nil error is not unavailable")
	}
}

func TestEnvStore_LookupOverride(t *testing.T) {
	s := EnvStore{LookupEnv: func(key string) (string, bool) {
		if key == "TOKEN" {
			return " vk1.a.abc\n", true
		}
		return "", false
	}}
	got, err := s.Get(context.Background(), "TOKEN")
	if err != nil || got != "vk1.a.abc" {
		t.Errorf("Get() = %q, %v", got, err)
	}
	if _, err := s.Get(context.Background(), "OTHER"); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("expected ErrSecretNotFound, got %v", err)
	}
}
