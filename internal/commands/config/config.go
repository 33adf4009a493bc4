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

// Package config implements "herald config".
package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/herald/internal/commands/shared"
	"github.com/tombee/herald/internal/config"
	"github.com/tombee/herald/internal/secrets"
)

// NewConfigCommand creates the config command with subcommands
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and check configuration",
		Long: `View and check herald configuration.

Subcommands:
  show     - Display the effective configuration
  path     - Show config file location
  validate - Check the configuration and that the token resolves`,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigPathCommand())
	cmd.AddCommand(newConfigValidateCommand())

	// If no subcommand provided, default to 'show'
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runConfigShow(cmd, args)
	}

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long: `Display the configuration after defaults and environment overrides
are applied. The access token is masked unless it is a secret reference.`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file location",
		Args:  cobra.NoArgs,
		RunE:  runConfigPath,
	}
}

func newConfigValidateCommand() *cobra.Command {
	var needGroup bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration",
		Long: `Validate the configuration, check that credentials are present and
resolve the token reference. With --run, a group id is also required.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := shared.LoadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireCredentials(needGroup); err != nil {
				return shared.NewConfigError("missing credentials", err)
			}
			if _, err := shared.ResolveToken(cmd.Context(), cfg, secrets.Default()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), shared.OKStyle.Render("Configuration is valid"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&needGroup, "run", false, "Also require the settings herald run needs")
	return cmd
}

func configPath() (string, error) {
	if p := shared.GetConfigPath(); p != "" {
		return p, nil
	}
	p, err := config.ConfigPath()
	if err != nil {
		return "", fmt.Errorf("failed to determine config path: %w", err)
	}
	return p, nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}
	masked := *cfg
	masked.API.Token = maskToken(cfg.API.Token)

	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), masked)
	}
	path, err := configPath()
	if err != nil {
		return err
	}
	return outputConfigYAML(cmd.OutOrStdout(), path, &masked)
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

// maskToken hides a literal token. Secret references are shown as is.
func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if _, _, ok := secrets.ParseReference(token); ok {
		return token
	}
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}

func outputConfigYAML(out io.Writer, path string, cfg *config.Config) error {
	fmt.Fprintln(out, shared.MutedStyle.Render("# "+path))

	encoder := yaml.NewEncoder(out)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return encoder.Close()
}
