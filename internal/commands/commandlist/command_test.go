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

package commandlist

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/herald/internal/commands/shared"
)

func writeConfig(t *testing.T, body string) {
	t.Helper()
	t.Setenv("HERALD_COMMANDS_DIR", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	shared.SetConfigPathForTest(path)
	t.Cleanup(func() { shared.SetConfigPathForTest("") })
}

func TestCommands_ListsBuiltinsAndFiles(t *testing.T) {
	writeConfig(t, "{}\n")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.yaml"), []byte("pattern: '^hello$'\nreply: hi\ndescription: greets\n"), 0o600))

	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--dir", dir})
	require.NoError(t, cmd.Execute())

	text := out.String()
	assert.Contains(t, text, "ping")
	assert.Contains(t, text, "typing")
	assert.Contains(t, text, "hello")
	assert.Contains(t, text, "^hello$")
}

func TestFileItems_ReportsInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.yml"), []byte("pattern: x\nreply: y\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("pattern: '('\nreply: y\n"), 0o600))

	items, err := fileItems(dir)
	require.NoError(t, err)
	require.Len(t, items, 2)

	byName := map[string]Item{}
	for _, it := range items {
		byName[filepath.Base(it.Source)] = it
	}
	assert.NotEmpty(t, byName["bad.yaml"].Error)
	assert.Equal(t, "good", byName["good.yml"].Name)
	assert.Empty(t, byName["good.yml"].Error)
}

func TestCommands_InvalidFileFails(t *testing.T) {
	writeConfig(t, "commands:\n  builtins: false\n")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("reply: y\n"), 0o600))

	shared.SetJSONForTest(true)
	defer shared.SetJSONForTest(false)

	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--dir", dir})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, shared.ExitFailed, shared.ExitCode(err))

	var resp Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.Len(t, resp.Commands, 1)
	assert.NotEmpty(t, resp.Commands[0].Error)
}
