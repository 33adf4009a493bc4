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

// Package commandlist implements "herald commands", which lists the
// commands a bot would register and checks the command files.
package commandlist

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tombee/herald/internal/command"
	"github.com/tombee/herald/internal/commands/shared"
	"github.com/tombee/herald/internal/plugins"
)

// Item is one listed command.
type Item struct {
	Name        string `json:"name"`
	Pattern     string `json:"pattern,omitempty"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source"`
	Error       string `json:"error,omitempty"`
}

// Response is the --json payload.
type Response struct {
	shared.JSONResponse
	Commands []Item `json:"commands"`
}

// NewCommand creates the commands command.
func NewCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "commands",
		Short: "List bot commands and check command files",
		Long: `List the built-in commands and every command file in the commands
directory. Files that fail to parse or compile are listed with their error
and make the command exit non-zero.

Examples:
  herald commands
  herald commands --dir ./commands --json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := shared.LoadConfig()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.Commands.Dir
			}

			var items []Item
			if cfg.Commands.Builtins {
				items = append(items, builtinItems()...)
			}
			fileItems, err := fileItems(dir)
			if err != nil {
				return fmt.Errorf("failed to list %s: %w", dir, err)
			}
			items = append(items, fileItems...)

			failed := 0
			for _, it := range items {
				if it.Error != "" {
					failed++
				}
			}

			if shared.GetJSON() {
				resp := Response{
					JSONResponse: shared.NewResponse("commands", failed == 0),
					Commands:     items,
				}
				if err := shared.EmitJSON(cmd.OutOrStdout(), resp); err != nil {
					return err
				}
			} else {
				printTable(cmd.OutOrStdout(), items)
			}

			if failed > 0 {
				return &shared.ExitError{Code: shared.ExitFailed, Message: fmt.Sprintf("%d command file(s) invalid", failed)}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Commands directory (default: commands.dir)")
	return cmd
}

func builtinItems() []Item {
	var items []Item
	for _, e := range plugins.Builtins() {
		items = append(items, itemFor(e, "builtin"))
	}
	return items
}

func fileItems(dir string) ([]Item, error) {
	if dir == "" {
		return nil, nil
	}
	loader := plugins.NewLoader(dir, nil)
	paths, err := loader.Discover()
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(paths))
	for _, path := range paths {
		e, err := loader.LoadFile(path)
		if err != nil {
			items = append(items, Item{Source: path, Error: err.Error()})
			continue
		}
		items = append(items, itemFor(e, path))
	}
	return items, nil
}

type describer interface {
	Description() string
}

func itemFor(e command.Entry, source string) Item {
	it := Item{Name: e.Name(), Source: source}
	if p := e.Pattern(); p != nil {
		it.Pattern = p.String()
	}
	if d, ok := e.(describer); ok {
		it.Description = d.Description()
	}
	return it
}

func printTable(out io.Writer, items []Item) {
	if len(items) == 0 {
		fmt.Fprintln(out, mutedText("No commands."))
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, shared.HeaderStyle.Render("NAME")+"\t"+shared.HeaderStyle.Render("PATTERN")+"\t"+shared.HeaderStyle.Render("SOURCE"))
	for _, it := range items {
		if it.Error != "" {
			fmt.Fprintf(w, "%s\t%s\t%s\n", shared.ErrorStyle.Render("invalid"), it.Error, it.Source)
			continue
		}
		pattern := it.Pattern
		if pattern == "" {
			pattern = mutedText("(events only)")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", it.Name, pattern, it.Source)
	}
	w.Flush()
}

func mutedText(s string) string {
	return shared.MutedStyle.Render(s)
}
