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

package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransport(t *testing.T, timeout time.Duration) *HTTPTransport {
	t.Helper()
	tr, err := NewHTTPTransport(HTTPConfig{Timeout: timeout})
	require.NoError(t, err)
	return tr
}

func TestNewHTTPTransport_Defaults(t *testing.T) {
	tr := newTestTransport(t, 0)
	assert.Equal(t, DefaultTimeout, tr.timeout)
	assert.NotNil(t, tr.client)

	_, err := NewHTTPTransport(HTTPConfig{Timeout: -time.Second})
	assert.Error(t, err)
}

func TestHTTPTransport_Success(t *testing.T) {
	var gotMethod, gotContentType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Write([]byte(`{"response":1}`))
	}))
	defer srv.Close()

	tr := newTestTransport(t, time.Second)
	resp, err := tr.Execute(context.Background(), &Request{
		Method:  http.MethodPost,
		URL:     srv.URL + "/method/users.get",
		Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Body:    []byte("v=5.103"),
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"response":1}`, string(resp.Body))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	assert.Equal(t, "v=5.103", gotBody)
}

func TestHTTPTransport_StatusErrors(t *testing.T) {
	tests := []struct {
		status   int
		wantType ErrorType
		retry    bool
	}{
		{http.StatusNoContent, ErrorTypeClient, false},
		{http.StatusNotFound, ErrorTypeClient, false},
		{http.StatusUnauthorized, ErrorTypeAuth, false},
		{http.StatusTooManyRequests, ErrorTypeRateLimit, true},
		{http.StatusBadGateway, ErrorTypeServer, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := newTestTransport(t, time.Second).Execute(context.Background(), &Request{
				Method: http.MethodGet,
				URL:    srv.URL,
			})
			require.Error(t, err)

			te, ok := IsTransportError(err)
			require.True(t, ok, "expected *TransportError, got %T", err)
			assert.Equal(t, tt.wantType, te.Type)
			assert.Equal(t, -tt.status, te.Code())
			assert.Equal(t, tt.retry, te.IsRetryable())
		})
	}
}

func TestHTTPTransport_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := newTestTransport(t, 50*time.Millisecond).Execute(context.Background(), &Request{
		Method: http.MethodGet,
		URL:    srv.URL,
	})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	te, ok := IsTransportError(err)
	require.True(t, ok)
	assert.Equal(t, ErrorTypeTimeout, te.Type)
	assert.Equal(t, -1, te.Code())
	assert.True(t, te.IsRetryable())
}

func TestHTTPTransport_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := newTestTransport(t, 5*time.Second).Execute(ctx, &Request{
		Method: http.MethodGet,
		URL:    srv.URL,
	})
	te, ok := IsTransportError(err)
	require.True(t, ok)
	assert.Equal(t, ErrorTypeCancelled, te.Type)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestHTTPTransport_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestTransport(t, time.Second).Execute(context.Background(), &Request{
		Method: http.MethodGet,
		URL:    url,
	})
	te, ok := IsTransportError(err)
	require.True(t, ok)
	assert.Equal(t, ErrorTypeConnection, te.Type)
	assert.Equal(t, -1, te.Code())
}

func TestHTTPTransport_BodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", MaxResponseBytes+1)))
	}))
	defer srv.Close()

	_, err := newTestTransport(t, 5*time.Second).Execute(context.Background(), &Request{
		Method: http.MethodGet,
		URL:    srv.URL,
	})
	te, ok := IsTransportError(err)
	require.True(t, ok)
	assert.Equal(t, ErrorTypeServer, te.Type)
}

func TestHTTPTransport_InvalidRequest(t *testing.T) {
	tr := newTestTransport(t, time.Second)
	tests := []*Request{
		nil,
		{URL: "https://api.vk.com"},
		{Method: http.MethodGet},
		{Method: http.MethodGet, URL: "ftp://api.vk.com"},
	}
	for _, req := range tests {
		_, err := tr.Execute(context.Background(), req)
		te, ok := IsTransportError(err)
		require.True(t, ok)
		assert.Equal(t, ErrorTypeInvalidReq, te.Type)
		assert.False(t, te.IsRetryable())
	}
}

func TestFunc(t *testing.T) {
	var called bool
	tr := Func(func(ctx context.Context, req *Request) (*Response, error) {
		called = true
		return &Response{StatusCode: 200}, nil
	})
	_, err := tr.Execute(context.Background(), &Request{})
	require.NoError(t, err)
	assert.True(t, called)
}
