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

package cli

import (
	"github.com/spf13/cobra"

	"github.com/tombee/herald/internal/commands/call"
	"github.com/tombee/herald/internal/commands/commandlist"
	"github.com/tombee/herald/internal/commands/completion"
	"github.com/tombee/herald/internal/commands/diagnostics"
	configcmd "github.com/tombee/herald/internal/commands/config"
	"github.com/tombee/herald/internal/commands/run"
	"github.com/tombee/herald/internal/commands/shared"
	"github.com/tombee/herald/internal/commands/token"
	versioncmd "github.com/tombee/herald/internal/commands/version"
)

// Command groups shown in help output.
const (
	GroupBot   = "bot"
	GroupSetup = "setup"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root command with every subcommand attached.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "herald",
		Short: "herald - long-poll community bot runtime",
		Long: `herald runs a community bot over the Bots Long Poll API. It keeps a
long-poll session alive, publishes every update on an event bus and answers
messages with pattern-matched commands defined in Go or in YAML files.

Run 'herald token set <account>' to store an access token.
Run 'herald run' to start the bot.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	shared.AddGlobalFlags(cmd.PersistentFlags())

	cmd.AddGroup(
		&cobra.Group{ID: GroupBot, Title: "Bot Commands:"},
		&cobra.Group{ID: GroupSetup, Title: "Setup Commands:"},
	)

	add := func(group string, sub *cobra.Command) {
		sub.GroupID = group
		cmd.AddCommand(sub)
	}
	add(GroupBot, run.NewCommand())
	add(GroupBot, call.NewCommand())
	add(GroupBot, commandlist.NewCommand())
	add(GroupSetup, token.NewCommand())
	add(GroupSetup, configcmd.NewConfigCommand())
	add(GroupSetup, diagnostics.NewPingCommand())
	add(GroupSetup, completion.NewCommand())
	cmd.AddCommand(versioncmd.NewVersionCommand())

	cmd.SetHelpCommand(NewHelpCommand(cmd))
	return cmd
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// HandleExitError handles exit errors with proper exit codes
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
