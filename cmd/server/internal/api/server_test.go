package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasirciogluhq/xtransform-server/cmd/server/internal/core"
)

type fixedSource struct {
	status core.Status
}

func (f fixedSource) Snapshot() core.Status { return f.status }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthAndReady(t *testing.T) {
	hs := NewHealthServer(":0")
	h := hs.Handler()

	rec := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/ready").Code)
	hs.SetReady(true)
	assert.Equal(t, http.StatusOK, get(t, h, "/ready").Code)
	hs.SetReady(false)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/ready").Code)
}

func TestStatus(t *testing.T) {
	hs := NewHealthServer(":0")

	rec := get(t, hs.Handler(), "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":0,"clients":[]}`, rec.Body.String())

	hs.SetStatusSource(fixedSource{status: core.Status{Clients: []core.ClientStatus{
		{Session: "a", Remote: "127.0.0.1:4000", Requests: 3},
		{Session: "b", Remote: "127.0.0.1:4001", Requests: 1},
	}}})

	rec = get(t, hs.Handler(), "/status")
	var body statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, 3, body.Clients[0].Requests)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func readEvent(t *testing.T, r *bufio.Reader) statusResponse {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if data, ok := strings.CutPrefix(line, "data:"); ok {
			var st statusResponse
			require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(data)), &st))
			return st
		}
	}
}

func TestStatusStream(t *testing.T) {
	hs := NewHealthServer(":0")
	srv := httptest.NewServer(hs.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/status/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	r := bufio.NewReader(resp.Body)
	first := readEvent(t, r)
	assert.Zero(t, first.Count)

	// The handler subscribes before sending the first event.
	hs.Publish(core.Status{Clients: []core.ClientStatus{{Session: "s", Remote: "r", Requests: 7}}})
	next := readEvent(t, r)
	require.Equal(t, 1, next.Count)
	assert.Equal(t, 7, next.Clients[0].Requests)

	require.NoError(t, hs.Stop(context.Background()))
	_, err = io.Copy(io.Discard, r)
	assert.NoError(t, err, "stream ends cleanly after Stop")
}
