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
	"fmt"
	"strings"
)

// Resolver dispatches secret references to stores by scheme.
type Resolver struct {
	stores map[string]Store
}

// NewResolver creates a resolver over stores, skipping any Prober that
// reports itself unavailable. A later store with the same scheme replaces
// an earlier one.
func NewResolver(stores ...Store) *Resolver {
	r := &Resolver{stores: make(map[string]Store, len(stores))}
	for _, s := range stores {
		if p, ok := s.(Prober); ok && !p.Available() {
			continue
		}
		r.stores[s.Scheme()] = s
	}
	return r
}

// Default returns a resolver with the keyring and environment stores.
func Default() *Resolver {
	return NewResolver(NewKeyringStore(), EnvStore{})
}

// ParseReference splits "scheme:key". ok is false for plain values.
func ParseReference(value string) (scheme, key string, ok bool) {
	scheme, key, found := strings.Cut(value, ":")
	if !found || scheme == "" || key == "" {
		return "", "", false
	}
	switch scheme {
	case "keyring", "env":
		return scheme, key, true
	}
	return "", "", false
}

// Resolve returns the secret a reference points to, or value itself when
// it is not a reference.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {
	scheme, key, ok := ParseReference(value)
	if !ok {
		return value, nil
	}
	store, err := r.store(scheme)
	if err != nil {
		return "", err
	}
	secret, err := store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", value, err)
	}
	return secret, nil
}

// Set stores value under key in the store for scheme.
func (r *Resolver) Set(ctx context.Context, scheme, key, value string) error {
	store, err := r.store(scheme)
	if err != nil {
		return err
	}
	if err := store.Set(ctx, key, value); err != nil {
		return fmt.Errorf("failed to set secret in %s: %w", scheme, err)
	}
	return nil
}

// Delete removes key from the store for scheme.
func (r *Resolver) Delete(ctx context.Context, scheme, key string) error {
	store, err := r.store(scheme)
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete secret from %s: %w", scheme, err)
	}
	return nil
}

func (r *Resolver) store(name string) (Store, error) {
	b, ok := r.stores[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrStoreUnavailable, name)
	}
	return b, nil
}
