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

package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/herald/internal/command"
	"github.com/tombee/herald/internal/events"
	"github.com/tombee/herald/internal/log"
	"github.com/tombee/herald/internal/longpoll"
)

// vkServer serves the API and the long-poll endpoint from one listener.
type vkServer struct {
	*httptest.Server

	mu    sync.Mutex
	sends []string
	polls atomic.Int32
}

func newVKServer(t *testing.T) *vkServer {
	s := &vkServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/method/groups.getLongPollServer", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"response":{"key":"k","server":%q,"ts":"1"}}`, s.URL+"/lp")
	})
	mux.HandleFunc("/method/messages.send", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		s.mu.Lock()
		s.sends = append(s.sends, r.PostForm.Get("message"))
		s.mu.Unlock()
		fmt.Fprint(w, `{"response":100}`)
	})
	mux.HandleFunc("/lp", func(w http.ResponseWriter, r *http.Request) {
		if s.polls.Add(1) == 1 {
			fmt.Fprint(w, `{"ts":"2","updates":[
				{"type":"message_new","group_id":1,"event_id":"e1",
				 "object":{"message":{"id":5,"peer_id":77,"from_id":77,"text":"ping"},"client_info":{"keyboard":true}}},
				{"type":"group_join","group_id":1,"event_id":"e2","object":{"user_id":77}}
			]}`)
			return
		}
		time.Sleep(10 * time.Millisecond)
		fmt.Fprintf(w, `{"ts":"%d","updates":[]}`, s.polls.Load()+1)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *vkServer) Sends() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sends...)
}

func newBot(t *testing.T, srv *vkServer) *Bot {
	t.Helper()
	b, err := New(Options{
		Token:             "token",
		Host:              srv.URL,
		RequestsPerSecond: -1,
		Logger:            log.Discard(),
	})
	require.NoError(t, err)
	return b
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New(Options{Logger: log.Discard()})
	assert.Error(t, err)
}

func TestBot_EndToEnd(t *testing.T) {
	srv := newVKServer(t)
	b := newBot(t, srv)

	var clientInfoSeen atomic.Bool
	require.NoError(t, b.Commands().Register(command.MustCompile("ping", `^ping$`, func(ctx context.Context, msg *command.Message, _ ...string) error {
		clientInfoSeen.Store(msg.ClientInfo != nil && msg.ClientInfo.Keyboard)
		_, err := msg.Send(ctx, "pong", nil)
		return err
	})))

	joined := make(chan json.RawMessage, 1)
	b.On("group_join", func(ctx context.Context, u events.Update) {
		joined <- u.Object
	})

	task, err := b.Start(context.Background(), 1)
	require.NoError(t, err)

	select {
	case obj := <-joined:
		assert.JSONEq(t, `{"user_id":77}`, string(obj))
	case <-time.After(5 * time.Second):
		t.Fatal("group_join not delivered")
	}
	require.Eventually(t, func() bool { return len(srv.Sends()) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"pong"}, srv.Sends())
	assert.True(t, clientInfoSeen.Load())

	_, err = b.Start(context.Background(), 1)
	assert.ErrorIs(t, err, ErrRunning)

	b.Stop()
	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop")
	}
	assert.NoError(t, task.Wait())
	assert.Equal(t, longpoll.StateStopped, task.State())

	// A stopped bot can be started again.
	task, err = b.Start(context.Background(), 1)
	require.NoError(t, err)
	b.Stop()
	assert.NoError(t, task.Wait())
}

func TestBot_ContextCancel(t *testing.T) {
	srv := newVKServer(t)
	b := newBot(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	task, err := b.Start(ctx, 1)
	require.NoError(t, err)
	cancel()
	assert.ErrorIs(t, task.Wait(), context.Canceled)
}

func TestBot_HandlerErrorsReported(t *testing.T) {
	srv := newVKServer(t)
	reported := make(chan *command.HandlerError, 1)
	b, err := New(Options{
		Token:             "token",
		Host:              srv.URL,
		RequestsPerSecond: -1,
		Logger:            log.Discard(),
		OnError: func(ctx context.Context, err *command.HandlerError) {
			reported <- err
		},
	})
	require.NoError(t, err)
	require.NoError(t, b.Commands().Register(command.MustCompile("boom", `.`, func(context.Context, *command.Message, ...string) error {
		panic("boom")
	})))

	task, err := b.Start(context.Background(), 1)
	require.NoError(t, err)
	defer func() {
		b.Stop()
		_ = task.Wait()
	}()

	select {
	case herr := <-reported:
		assert.Equal(t, "boom", herr.Command)
		assert.True(t, herr.Panicked)
	case <-time.After(5 * time.Second):
		t.Fatal("handler error not reported")
	}
}

func TestBot_Call(t *testing.T) {
	srv := newVKServer(t)
	b := newBot(t, srv)

	raw, err := b.Call(context.Background(), "messages.send", map[string]any{"peer_id": 1, "message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "100", string(raw))
	assert.Equal(t, []string{"hi"}, srv.Sends())
}
