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
	"bytes"
	"encoding/json"
	"testing"
)

func TestHelpCommandJSON_All(t *testing.T) {
	root := NewRootCommand()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"help", "--json"})
	if err := root.Execute(); err != nil {
		t.Fatalf("help failed: %v", err)
	}

	var resp HelpResponse
	if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse JSON output: %v\n%s", err, buf.String())
	}
	if !resp.Success || resp.DocsURL == "" {
		t.Errorf("unexpected envelope: %+v", resp.JSONResponse)
	}
	names := map[string]CommandMetadata{}
	for _, c := range resp.Commands {
		names[c.Name] = c
	}
	for _, want := range []string{"run", "call", "commands", "token", "config", "version"} {
		if _, ok := names[want]; !ok {
			t.Errorf("expected %q in command list", want)
		}
	}
	if names["run"].Group != GroupBot {
		t.Errorf("run group = %q, want %q", names["run"].Group, GroupBot)
	}
	if len(resp.GlobalFlags) == 0 {
		t.Error("expected global flags")
	}
}

func TestHelpCommandJSON_Single(t *testing.T) {
	root := NewRootCommand()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"help", "token", "--json"})
	if err := root.Execute(); err != nil {
		t.Fatalf("help failed: %v", err)
	}

	var resp HelpResponse
	if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}
	if resp.Command == nil {
		t.Fatal("expected command metadata")
	}
	if resp.Command.Name != "herald token" {
		t.Errorf("name = %q", resp.Command.Name)
	}
	if len(resp.Command.Subcommands) != 2 {
		t.Errorf("subcommands = %v", resp.Command.Subcommands)
	}
}

func TestHelpCommand_Unknown(t *testing.T) {
	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"help", "nope"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected error for unknown command")
	}
}
