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

// Package token implements "herald token", which stores access tokens in
// the system keyring.
package token

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/tombee/herald/internal/commands/shared"
	"github.com/tombee/herald/internal/secrets"
)

// tokenScheme is the store tokens are written to.
const tokenScheme = "keyring"

// NewCommand creates the token command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage access tokens in the system keyring",
		Long: `Store and remove community access tokens in the system keyring.

A stored token is referenced from the configuration file instead of being
written there in plain text:

  api:
    token: keyring:<account>`,
	}
	cmd.AddCommand(newSetCommand(), newDeleteCommand())
	return cmd
}

func newSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <account>",
		Short: "Store a token",
		Long: `Store a token under <account>. The token is read from stdin when it
is piped, otherwise it is prompted for with hidden input.

Examples:
  herald token set mybot
  echo "$TOKEN" | herald token set mybot`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account := args[0]
			if err := validateAccount(account); err != nil {
				return shared.NewUsageError("invalid account", err)
			}

			value, err := readToken(cmd.InOrStdin(), account)
			if err != nil {
				return fmt.Errorf("failed to read token: %w", err)
			}
			if value == "" {
				return shared.NewUsageError("token cannot be empty", nil)
			}

			if err := secrets.Default().Set(cmd.Context(), tokenScheme, account, value); err != nil {
				if errors.Is(err, secrets.ErrStoreUnavailable) {
					return fmt.Errorf("keyring unavailable: %w\n\nSet HERALD_TOKEN or use token: env:<VAR> instead", err)
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Token stored in %s as %q\n\n", tokenScheme, account)
			fmt.Fprintln(out, "Reference it from the configuration file:")
			fmt.Fprintf(out, "  api:\n    token: %s:%s\n", tokenScheme, account)
			return nil
		},
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <account>",
		Short: "Remove a stored token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := secrets.Default().Delete(cmd.Context(), tokenScheme, args[0]); err != nil {
				if errors.Is(err, secrets.ErrSecretNotFound) {
					return shared.NewUsageError(fmt.Sprintf("no token stored for %q", args[0]), nil)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token %q deleted\n", args[0])
			return nil
		},
	}
}

// readToken reads a piped token, or prompts when in is an interactive
// stdin.
func readToken(in io.Reader, account string) (string, error) {
	if f, ok := in.(*os.File); !ok || f != os.Stdin || !shared.IsInteractive() {
		data, err := io.ReadAll(in)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}

	var value string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("Access token for %s:", account)).
				Description("Community settings > API usage > Access tokens").
				EchoMode(huh.EchoModePassword).
				Value(&value).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("token is required")
					}
					return nil
				}),
		),
	).WithTheme(shared.Theme())
	if err := form.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func validateAccount(account string) error {
	if account == "" {
		return errors.New("account cannot be empty")
	}
	if strings.ContainsAny(account, " \t\n:") {
		return errors.New("account cannot contain whitespace or ':'")
	}
	return nil
}
