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

/*
Package secrets resolves secret references in configuration values.

A value of the form "<scheme>:<key>" is looked up in the store registered
under that scheme; anything else is returned unchanged. Two stores ship
with herald:

	keyring - the OS credential store (macOS Keychain, Secret Service,
	          Windows Credential Manager), service "herald"
	env     - a named environment variable, read-only

Usage:

	resolver := secrets.NewResolver(secrets.NewKeyringStore(), secrets.EnvStore{})
	token, err := resolver.Resolve(ctx, "keyring:my-community")

The CLI stores tokens with Resolver.Set so that config files carry only the
reference.
*/
package secrets
