package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T, mux *http.ServeMux) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewHTTPClient(MustParseOrigin(srv.URL), "secret", time.Second)
}

func TestChatHistory(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/chat/history", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(HistoryResponse{
			Success: true,
			Messages: []ChatFrame{
				{Username: "alice", Message: "hi", Timestamp: "2026-01-01T10:00:00Z"},
				{Username: "bob", Message: "yo", Timestamp: "2026-01-01T10:01:00Z"},
			},
		})
	})
	hc := newTestAPI(t, mux)

	msgs, err := hc.ChatHistory(t.Context())
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "alice", msgs[0].Username)
	assert.Equal(t, "yo", msgs[1].Message)
}

func TestChatHistory_Unsuccessful(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/chat/history", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false}`))
	})
	hc := newTestAPI(t, mux)

	_, err := hc.ChatHistory(t.Context())
	assert.ErrorIs(t, err, ErrHistoryUnavailable)
}

func TestChatHistory_ServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/chat/history", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	hc := newTestAPI(t, mux)

	_, err := hc.ChatHistory(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestScreenFrame(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/screen/frame/{id}", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("frame-" + r.PathValue("id")))
	})
	hc := newTestAPI(t, mux)

	data, err := hc.ScreenFrame(t.Context(), "7")
	require.NoError(t, err)
	assert.Nil(t, data)

	data, err = hc.ScreenFrame(t.Context(), "7")
	require.NoError(t, err)
	assert.Equal(t, "frame-7", string(data))
}

func TestFramePoller_EmitsFrames(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/screen/frame/{id}", func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Write([]byte{byte(n)})
	})
	hc := newTestAPI(t, mux)

	p := NewFramePoller(hc, hc.Origin().ScreenFrame("7"), 5*time.Millisecond, nil)
	p.Open(t.Context())

	assert.Equal(t, EventOpen, nextEvent(t, p.Events()).Kind)
	ev := nextEvent(t, p.Events())
	assert.Equal(t, EventBinary, ev.Kind)
	assert.Len(t, ev.Data, 1)
	assert.Equal(t, StateOpen, p.State())

	require.ErrorIs(t, p.Send([]byte("x")), ErrNotOpen)

	p.Close()
	kinds := drainEvents(t, p.Events())
	require.NotEmpty(t, kinds)
	assert.Equal(t, EventClose, kinds[len(kinds)-1])
	assert.Equal(t, StateClosed, p.State())
}

func TestFramePoller_ReportsFailureOnce(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/screen/frame/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent offline", http.StatusBadGateway)
	})
	hc := newTestAPI(t, mux)

	p := PollerFactory(hc, 2*time.Millisecond, nil)(hc.Origin().ScreenFrame("7"))
	p.Open(t.Context())
	assert.Equal(t, EventError, nextEvent(t, p.Events()).Kind)

	time.Sleep(30 * time.Millisecond)
	p.Close()
	assert.Equal(t, []EventKind{EventClose}, drainEvents(t, p.Events()))
}

func TestBackoff(t *testing.T) {
	b := Backoff{}
	assert.Equal(t, time.Second, b.Next(0))
	assert.Equal(t, 2*time.Second, b.Next(1))
	assert.Equal(t, 16*time.Second, b.Next(4))
	assert.Equal(t, 30*time.Second, b.Next(5))
	assert.Equal(t, 30*time.Second, b.Next(50))

	b = Backoff{Base: 100 * time.Millisecond, Max: 250 * time.Millisecond}
	assert.Equal(t, 200*time.Millisecond, b.Next(1))
	assert.Equal(t, 250*time.Millisecond, b.Next(2))
}
