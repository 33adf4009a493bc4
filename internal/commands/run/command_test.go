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

package run

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/herald/internal/config"
	"github.com/tombee/herald/internal/log"
)

type fakeVK struct {
	*httptest.Server

	mu    sync.Mutex
	sends []string
	polls atomic.Int32
}

func newFakeVK(t *testing.T, text string) *fakeVK {
	s := &fakeVK{}
	mux := http.NewServeMux()
	mux.HandleFunc("/method/groups.getLongPollServer", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"response":{"key":"k","server":%q,"ts":"1"}}`, s.URL+"/lp")
	})
	mux.HandleFunc("/method/messages.send", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		s.mu.Lock()
		s.sends = append(s.sends, r.PostForm.Get("message"))
		s.mu.Unlock()
		fmt.Fprint(w, `{"response":1}`)
	})
	mux.HandleFunc("/lp", func(w http.ResponseWriter, r *http.Request) {
		if s.polls.Add(1) == 1 {
			fmt.Fprintf(w, `{"ts":"2","updates":[{"type":"message_new","group_id":1,"event_id":"e1",
				"object":{"message":{"id":1,"peer_id":5,"from_id":5,"text":%q}}}]}`, text)
			return
		}
		time.Sleep(10 * time.Millisecond)
		fmt.Fprintf(w, `{"ts":"%d","updates":[]}`, s.polls.Load()+1)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *fakeVK) Sends() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sends...)
}

func testConfig(srv *fakeVK) *config.Config {
	cfg := config.Default()
	cfg.API.Token = "token"
	cfg.API.Host = srv.URL
	cfg.API.RequestsPerSecond = -1
	cfg.LongPoll.GroupID = 1
	return cfg
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestServe_BuiltinsAndSignalStop(t *testing.T) {
	srv := newFakeVK(t, "ping")
	cfg := testConfig(srv)
	cfg.Metrics.Addr = freeAddr(t)

	sigCh := make(chan os.Signal, 2)
	errCh := make(chan error, 1)
	go func() {
		errCh <- serve(context.Background(), cfg, log.Discard(), 5*time.Second, sigCh)
	}()

	require.Eventually(t, func() bool { return len(srv.Sends()) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"pong"}, srv.Sends())

	var resp *http.Response
	require.Eventually(t, func() bool {
		r, err := http.Get("http://" + cfg.Metrics.Addr + "/healthz")
		if err != nil {
			return false
		}
		resp = r
		return true
	}, 5*time.Second, 20*time.Millisecond)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	sigCh <- syscall.SIGTERM
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after signal")
	}
}

func TestServe_FileCommandsLoaded(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.yaml"), []byte(`
pattern: '^hello (\w+)$'
reply: 'hi {{ index .Args 0 }}'
`), 0o600))

	srv := newFakeVK(t, "hello bob")
	cfg := testConfig(srv)
	cfg.Commands.Dir = dir
	cfg.Commands.Watch = false
	cfg.Commands.Builtins = false

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- serve(ctx, cfg, log.Discard(), time.Second, make(chan os.Signal))
	}()

	require.Eventually(t, func() bool { return len(srv.Sends()) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"hi bob"}, srv.Sends())

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestServe_MissingGroup(t *testing.T) {
	srv := newFakeVK(t, "ping")
	cfg := testConfig(srv)
	cfg.LongPoll.GroupID = 0

	err := serve(context.Background(), cfg, log.Discard(), time.Second, make(chan os.Signal))
	assert.Error(t, err)
}
