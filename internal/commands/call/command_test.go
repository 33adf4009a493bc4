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

package call

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/herald/internal/commands/shared"
)

func setup(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	t.Setenv("HERALD_TOKEN", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := fmt.Sprintf("api:\n  token: secret\n  host: %s\n  requests_per_second: -1\n", srv.URL)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	shared.SetConfigPathForTest(path)
	t.Cleanup(func() { shared.SetConfigPathForTest("") })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCall_PrintsResponse(t *testing.T) {
	var gotPath, gotUser, gotToken string
	setup(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotPath = r.URL.Path
		gotUser = r.PostForm.Get("user_ids")
		gotToken = r.PostForm.Get("access_token")
		fmt.Fprint(w, `{"response":[{"id":1,"first_name":"Pavel"}]}`)
	})

	out, err := execute(t, "users.get", "--param", "user_ids=1")
	require.NoError(t, err)
	assert.Equal(t, "/method/users.get", gotPath)
	assert.Equal(t, "1", gotUser)
	assert.Equal(t, "secret", gotToken)
	assert.JSONEq(t, `[{"id":1,"first_name":"Pavel"}]`, out)
}

func TestCall_JQRaw(t *testing.T) {
	setup(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":[{"id":1,"name":"club"}]}`)
	})

	out, err := execute(t, "groups.getById", "--jq", ".[0].name", "--raw")
	require.NoError(t, err)
	assert.Equal(t, "club\n", out)
}

func TestCall_RemoteErrorExitCode(t *testing.T) {
	setup(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"error_code":5,"error_msg":"User authorization failed"}}`)
	})

	_, err := execute(t, "users.get")
	require.Error(t, err)
	assert.Equal(t, shared.ExitAPIError, shared.ExitCode(err))
	assert.Contains(t, err.Error(), "User authorization failed")
}

func TestCall_InvalidParam(t *testing.T) {
	_, err := execute(t, "users.get", "--param", "novalue")
	require.Error(t, err)
	assert.Equal(t, shared.ExitInvalidUsage, shared.ExitCode(err))
}

func TestParseParams(t *testing.T) {
	p, err := parseParams([]string{"a=1", "b=x=y", "a=2"})
	require.NoError(t, err)
	assert.Equal(t, "2", p["a"])
	assert.Equal(t, "x=y", p["b"])

	_, err = parseParams([]string{"=v"})
	assert.Error(t, err)
}
