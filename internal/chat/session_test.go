package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authdash/console/internal/client"
	"github.com/authdash/console/internal/logging"
)

// fakeTransport is a scriptable client.Transport. Open moves straight to
// StateOpen unless holdOpen is set.
type fakeTransport struct {
	holdOpen bool
	events   chan client.Event

	mu        sync.Mutex
	state     client.State
	sent      [][]byte
	sendErr   error
	opens     int
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan client.Event, 64)}
}

func (f *fakeTransport) Open(context.Context) {
	f.mu.Lock()
	f.opens++
	if f.state != client.StateIdle {
		f.mu.Unlock()
		return
	}
	if f.holdOpen {
		f.state = client.StateConnecting
		f.mu.Unlock()
		return
	}
	f.state = client.StateOpen
	f.mu.Unlock()
	f.events <- client.Event{Kind: client.EventOpen}
}

func (f *fakeTransport) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != client.StateOpen {
		return client.ErrNotOpen
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, append([]byte(nil), payload...))
	return nil
}

func (f *fakeTransport) Close() {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.state = client.StateClosed
		f.mu.Unlock()
		f.events <- client.Event{Kind: client.EventClose}
		close(f.events)
	})
}

func (f *fakeTransport) State() client.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTransport) Events() <-chan client.Event { return f.events }

func (f *fakeTransport) text(payload string) {
	f.events <- client.Event{Kind: client.EventText, Data: []byte(payload)}
}

func (f *fakeTransport) sentFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

type historyFunc func(ctx context.Context) ([]client.ChatFrame, error)

func (h historyFunc) ChatHistory(ctx context.Context) ([]client.ChatFrame, error) { return h(ctx) }

func staticHistory(frames ...client.ChatFrame) HistoryFetcher {
	return historyFunc(func(context.Context) ([]client.ChatFrame, error) { return frames, nil })
}

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestSession(t *testing.T, history HistoryFetcher, ft *fakeTransport) *Session {
	t.Helper()
	s := New(Config{
		Endpoint:  "ws://relay.test/api/ws/chat",
		History:   history,
		Factory:   func(string) client.Transport { return ft },
		Logger:    logging.Discard(),
		StatusTTL: 150 * time.Millisecond,
		Now:       func() time.Time { return fixedNow },
	})
	t.Cleanup(s.Close)
	return s
}

func logLines(snap Snapshot) []string {
	lines := make([]string, len(snap.Messages))
	for i, m := range snap.Messages {
		lines[i] = m.Sender + ": " + m.Body
	}
	return lines
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestInitialize_HistoryThenLive(t *testing.T) {
	ft := newFakeTransport()
	s := newTestSession(t, staticHistory(
		client.ChatFrame{Username: "alice", Message: "hi", Timestamp: "2026-03-14T09:00:00Z"},
	), ft)

	require.NoError(t, s.Initialize(t.Context(), Identity{Name: "root"}))
	ft.text(`{"username":"bob","message":"yo"}`)

	waitFor(t, func() bool { return len(s.Snapshot().Messages) == 2 })
	snap := s.Snapshot()
	assert.Equal(t, []string{"alice: hi", "bob: yo"}, logLines(snap))
	assert.Equal(t, client.StateOpen, snap.State)
	assert.False(t, snap.Loading)
	assert.Equal(t, 2026, snap.Messages[0].SentAt.Year())
}

func TestInitialize_OpensSocketAfterHistory(t *testing.T) {
	ft := newFakeTransport()
	var factoryCalled bool
	s := New(Config{
		History: historyFunc(func(context.Context) ([]client.ChatFrame, error) {
			assert.False(t, factoryCalled, "socket created before history finished")
			return nil, nil
		}),
		Factory: func(string) client.Transport {
			factoryCalled = true
			return ft
		},
		Logger: logging.Discard(),
	})
	defer s.Close()

	require.NoError(t, s.Initialize(t.Context(), Identity{Name: "root"}))
	assert.True(t, factoryCalled)
	assert.Equal(t, 1, ft.opens)
}

func TestInitialize_HistoryFailureContinues(t *testing.T) {
	ft := newFakeTransport()
	s := newTestSession(t, historyFunc(func(context.Context) ([]client.ChatFrame, error) {
		return nil, errors.New("relay down")
	}), ft)

	require.NoError(t, s.Initialize(t.Context(), Identity{Name: "root"}))
	ft.text(`{"username":"bob","message":"still here"}`)

	waitFor(t, func() bool { return len(s.Snapshot().Messages) == 1 })
	assert.Equal(t, client.StateOpen, s.Snapshot().State)
}

func TestInitialize_SkipsMalformedHistoryEntries(t *testing.T) {
	ft := newFakeTransport()
	s := newTestSession(t, staticHistory(
		client.ChatFrame{Username: "alice", Message: "hi"},
		client.ChatFrame{Username: "ghost"},
		client.ChatFrame{Error: "stale"},
	), ft)

	require.NoError(t, s.Initialize(t.Context(), Identity{}))
	assert.Equal(t, []string{"alice: hi"}, logLines(s.Snapshot()))
}

func TestInitialize_Twice(t *testing.T) {
	s := newTestSession(t, staticHistory(), newFakeTransport())
	require.NoError(t, s.Initialize(t.Context(), Identity{}))
	assert.ErrorIs(t, s.Initialize(t.Context(), Identity{}), ErrAlreadyStarted)
}

func TestClose_DiscardsLateHistory(t *testing.T) {
	release := make(chan struct{})
	fetching := make(chan struct{})
	factoryCalled := false
	s := New(Config{
		History: historyFunc(func(ctx context.Context) ([]client.ChatFrame, error) {
			close(fetching)
			<-release
			return []client.ChatFrame{{Username: "alice", Message: "late"}}, nil
		}),
		Factory: func(string) client.Transport {
			factoryCalled = true
			return newFakeTransport()
		},
		Logger: logging.Discard(),
	})

	done := make(chan error, 1)
	go func() { done <- s.Initialize(context.Background(), Identity{}) }()

	<-fetching
	assert.True(t, s.Snapshot().Loading)
	s.Close()
	close(release)

	assert.ErrorIs(t, <-done, ErrClosed)
	snap := s.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.False(t, snap.Loading)
	assert.Equal(t, client.StateClosed, snap.State)
	assert.False(t, factoryCalled)
}

func TestInitialize_AfterClose(t *testing.T) {
	s := newTestSession(t, staticHistory(), newFakeTransport())
	s.Close()
	assert.ErrorIs(t, s.Initialize(t.Context(), Identity{}), ErrClosed)
}

func TestMalformedFrameIsDropped(t *testing.T) {
	ft := newFakeTransport()
	s := newTestSession(t, staticHistory(client.ChatFrame{Username: "alice", Message: "hi"}), ft)
	require.NoError(t, s.Initialize(t.Context(), Identity{}))

	ft.text("not-json")
	ft.text(`{"unexpected":true}`)
	ft.events <- client.Event{Kind: client.EventBinary, Data: []byte{1, 2, 3}}
	ft.text(`{"username":"bob","message":"after"}`)

	waitFor(t, func() bool { return len(s.Snapshot().Messages) == 2 })
	snap := s.Snapshot()
	assert.Equal(t, []string{"alice: hi", "bob: after"}, logLines(snap))
	assert.Equal(t, client.StateOpen, snap.State)
	assert.Empty(t, snap.Status)
}

func TestErrorEnvelopeIsTransient(t *testing.T) {
	ft := newFakeTransport()
	s := newTestSession(t, staticHistory(), ft)
	require.NoError(t, s.Initialize(t.Context(), Identity{}))

	ft.text(`{"error":"Message too long"}`)
	waitFor(t, func() bool { return s.Snapshot().Status == "Message too long" })
	waitFor(t, func() bool { return s.Snapshot().Status == "" })
	assert.Empty(t, s.Snapshot().Messages)
}

func TestTransportErrorSurfacesAsStatus(t *testing.T) {
	ft := newFakeTransport()
	s := newTestSession(t, staticHistory(), ft)
	require.NoError(t, s.Initialize(t.Context(), Identity{}))

	ft.events <- client.Event{Kind: client.EventError, Err: errors.New("connection reset")}
	waitFor(t, func() bool { return strings.Contains(s.Snapshot().Status, "connection reset") })
}

func TestSend_Success(t *testing.T) {
	ft := newFakeTransport()
	s := newTestSession(t, staticHistory(), ft)
	id := Identity{Name: "root", AvatarURL: "https://cdn.test/a.png", Email: "root@example.com"}
	require.NoError(t, s.Initialize(t.Context(), id))

	d := NewDraft("  ship it  ")
	require.NoError(t, s.Send(d))
	assert.Empty(t, d.Text())

	frames := ft.sentFrames()
	require.Len(t, frames, 1)
	var got client.ChatFrame
	require.NoError(t, json.Unmarshal(frames[0], &got))
	assert.Equal(t, client.ChatFrame{
		Username:  "root",
		Message:   "ship it",
		Timestamp: "2026-03-14T09:26:53Z",
		AvatarURL: "https://cdn.test/a.png",
		Email:     "root@example.com",
	}, got)
}

func TestSend_OmitsEmptyOptionalFields(t *testing.T) {
	ft := newFakeTransport()
	s := newTestSession(t, staticHistory(), ft)
	require.NoError(t, s.Initialize(t.Context(), Identity{Name: "root"}))

	require.NoError(t, s.Send(NewDraft("hello")))
	frames := ft.sentFrames()
	require.Len(t, frames, 1)
	assert.NotContains(t, string(frames[0]), "avatar_url")
	assert.NotContains(t, string(frames[0]), "email")
}

func TestSend_Rejections(t *testing.T) {
	tooLong := strings.TrimSpace(strings.Repeat("word ", MaxWords+1))

	tests := []struct {
		name       string
		draft      string
		connected  bool
		wantErr    error
		wantStatus string
	}{
		{"empty", "", true, ErrEmptyMessage, StatusEmpty},
		{"whitespace", " \t\n ", true, ErrEmptyMessage, StatusEmpty},
		{"too long while open", tooLong, true, ErrTooLong, StatusTooLong},
		{"too long while connecting", tooLong, false, ErrTooLong, StatusTooLong},
		{"not connected", "hello there", false, ErrNotConnected, StatusNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := newFakeTransport()
			ft.holdOpen = !tt.connected
			s := newTestSession(t, staticHistory(), ft)
			require.NoError(t, s.Initialize(t.Context(), Identity{Name: "root"}))

			d := NewDraft(tt.draft)
			err := s.Send(d)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantStatus, s.Snapshot().Status)
			assert.Equal(t, tt.draft, d.Text(), "rejected draft must be kept")
			assert.Empty(t, ft.sentFrames())
		})
	}
}

func TestSend_TooLongStatusMentionsLimit(t *testing.T) {
	assert.Contains(t, StatusTooLong, "max 30 words")
}

func TestSend_BeforeInitialize(t *testing.T) {
	s := newTestSession(t, staticHistory(), newFakeTransport())
	assert.ErrorIs(t, s.Send(NewDraft("hi")), ErrNotConnected)
}

func TestSend_TransportFailureKeepsDraft(t *testing.T) {
	ft := newFakeTransport()
	ft.sendErr = errors.New("broken pipe")
	s := newTestSession(t, staticHistory(), ft)
	require.NoError(t, s.Initialize(t.Context(), Identity{Name: "root"}))

	d := NewDraft("hello")
	err := s.Send(d)
	require.Error(t, err)
	assert.Equal(t, "hello", d.Text())
	assert.Equal(t, "Failed to send message", s.Snapshot().Status)
}

func TestClose(t *testing.T) {
	ft := newFakeTransport()
	s := newTestSession(t, staticHistory(client.ChatFrame{Username: "alice", Message: "hi"}), ft)
	require.NoError(t, s.Initialize(t.Context(), Identity{}))

	s.Close()
	s.Close()

	snap := s.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.Equal(t, client.StateClosed, snap.State)

	// A frame that was already in flight must not touch the closed session.
	s.handleText([]byte(`{"username":"bob","message":"late"}`))
	s.handleText([]byte(`{"error":"late error"}`))
	snap = s.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.Status)
}

func TestClose_RealConnEndsClosedNotFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	var conns []client.Transport
	factory := client.Factory(client.Options{Logger: logging.Discard()})
	for range 10 {
		s := New(Config{
			Endpoint: "ws" + strings.TrimPrefix(srv.URL, "http"),
			Factory: func(endpoint string) client.Transport {
				c := factory(endpoint)
				conns = append(conns, c)
				return c
			},
			Logger: logging.Discard(),
		})
		require.NoError(t, s.Initialize(t.Context(), Identity{Name: "root"}))
		waitFor(t, func() bool { return s.Snapshot().State == client.StateOpen })
		s.Close()
	}

	for _, c := range conns {
		waitFor(t, func() bool { return c.State().Terminal() })
		assert.Equal(t, client.StateClosed, c.State())
	}
}

func TestChangedCoalesces(t *testing.T) {
	ft := newFakeTransport()
	s := newTestSession(t, staticHistory(), ft)
	require.NoError(t, s.Initialize(t.Context(), Identity{}))

	for i := range 5 {
		ft.text(fmt.Sprintf(`{"username":"u","message":"m%d"}`, i))
	}
	waitFor(t, func() bool { return len(s.Snapshot().Messages) == 5 })

	select {
	case <-s.Changed():
	case <-time.After(time.Second):
		t.Fatal("no change notification")
	}
	assert.LessOrEqual(t, len(s.Changed()), 1)
}
