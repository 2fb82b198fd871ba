// Package chat keeps the global chat log live: it seeds the log from the
// history endpoint, streams new messages over a socket and enforces the
// outgoing word limit.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/authdash/console/internal/client"
)

const (
	defaultStatusTTL      = 3 * time.Second
	defaultHistoryTimeout = 10 * time.Second
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrTooLong        = fmt.Errorf("message exceeds %d words", MaxWords)
	ErrNotConnected   = errors.New("chat not connected")
	ErrAlreadyStarted = errors.New("chat session already started")
	ErrClosed         = errors.New("chat session closed")
)

// Status texts shown for local rejections.
const (
	StatusEmpty        = "Message cannot be empty"
	StatusTooLong      = "Message too long: max 30 words"
	StatusNotConnected = "Not connected to chat"
)

// HistoryFetcher loads the chat backlog, oldest first.
type HistoryFetcher interface {
	ChatHistory(ctx context.Context) ([]client.ChatFrame, error)
}

// Config wires a Session to its collaborators.
type Config struct {
	Endpoint       string // chat socket URL
	History        HistoryFetcher
	Factory        client.ConnFactory
	Logger         *slog.Logger
	StatusTTL      time.Duration
	HistoryTimeout time.Duration
	Now            func() time.Time
}

// Snapshot is a consistent copy of session state for rendering.
type Snapshot struct {
	Identity Identity
	Messages []Message
	Status   string
	State    client.State
	Loading  bool
}

// Session is one activation of the chat stream. It owns its transport and
// is not reusable after Close.
type Session struct {
	cfg     Config
	logger  *slog.Logger
	changed chan struct{}

	mu        sync.Mutex
	identity  Identity
	messages  []Message
	status    string
	statusGen uint64
	timer     *time.Timer
	loading   bool
	started   bool
	closed    bool
	conn      client.Transport
	cancel    context.CancelFunc
}

// New creates an idle session.
func New(cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.StatusTTL <= 0 {
		cfg.StatusTTL = defaultStatusTTL
	}
	if cfg.HistoryTimeout <= 0 {
		cfg.HistoryTimeout = defaultHistoryTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Factory == nil {
		cfg.Factory = client.Factory(client.Options{Logger: cfg.Logger})
	}
	return &Session{
		cfg:     cfg,
		logger:  cfg.Logger.With("component", "chat"),
		changed: make(chan struct{}, 1),
	}
}

// Changed receives a value whenever the snapshot may have changed.
// Notifications coalesce; read Snapshot after each one.
func (s *Session) Changed() <-chan struct{} {
	return s.changed
}

func (s *Session) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// Initialize fetches the history, seeds the log and only then opens the
// socket, so live messages always follow the backlog. A failed fetch is
// logged and the session continues with an empty log. It blocks for the
// duration of the fetch.
func (s *Session) Initialize(ctx context.Context, id Identity) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.identity = id
	s.loading = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	s.notify()

	var history []client.ChatFrame
	if s.cfg.History != nil {
		fetchCtx, cancelFetch := context.WithTimeout(ctx, s.cfg.HistoryTimeout)
		var err error
		history, err = s.cfg.History.ChatHistory(fetchCtx)
		cancelFetch()
		if err != nil {
			s.logger.Warn("chat history unavailable", "err", err)
			history = nil
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug("discarding history for closed session", "messages", len(history))
		return ErrClosed
	}
	for _, f := range history {
		if !f.IsMessage() {
			continue
		}
		s.messages = append(s.messages, messageFromFrame(f))
	}
	s.loading = false
	conn := s.cfg.Factory(s.cfg.Endpoint)
	s.conn = conn
	s.mu.Unlock()

	s.logger.Debug("history loaded", "messages", len(history))
	conn.Open(ctx)
	go s.dispatch(conn)
	s.notify()
	return nil
}

// dispatch is the single consumer of the transport's event stream.
func (s *Session) dispatch(conn client.Transport) {
	for ev := range conn.Events() {
		switch ev.Kind {
		case client.EventOpen:
			s.logger.Info("chat connected")
		case client.EventText:
			s.handleText(ev.Data)
		case client.EventBinary:
			s.logger.Debug("ignoring binary chat frame", "bytes", len(ev.Data))
			continue
		case client.EventError:
			if errors.Is(ev.Err, client.ErrNotOpen) {
				continue
			}
			s.logger.Warn("chat connection error", "err", ev.Err)
			s.setStatus("Connection error: " + ev.Err.Error())
		case client.EventClose:
			s.logger.Info("chat disconnected", "state", conn.State())
		}
		s.notify()
	}
}

func (s *Session) handleText(data []byte) {
	var f client.ChatFrame
	if err := json.Unmarshal(data, &f); err != nil {
		s.logger.Warn("dropping malformed chat frame", "err", err, "bytes", len(data))
		return
	}

	switch {
	case f.IsError():
		s.setStatus(f.Error)
	case f.IsMessage():
		s.mu.Lock()
		if !s.closed {
			s.messages = append(s.messages, messageFromFrame(f))
		}
		s.mu.Unlock()
	default:
		s.logger.Debug("dropping unrecognised chat frame", "payload", string(data))
	}
}

// Send validates d and hands it to the transport. Rejections never touch
// the network and each sets its own status. The draft is cleared only when
// the transport accepted the frame.
func (s *Session) Send(d *Draft) error {
	body := strings.TrimSpace(d.Text())
	if body == "" {
		s.setStatus(StatusEmpty)
		return ErrEmptyMessage
	}
	if WordCount(body) > MaxWords {
		s.setStatus(StatusTooLong)
		return ErrTooLong
	}

	s.mu.Lock()
	conn, id, closed := s.conn, s.identity, s.closed
	s.mu.Unlock()
	if closed || conn == nil || conn.State() != client.StateOpen {
		s.setStatus(StatusNotConnected)
		return ErrNotConnected
	}

	payload, err := json.Marshal(client.ChatFrame{
		Username:  id.Name,
		Message:   body,
		Timestamp: s.cfg.Now().UTC().Format(time.RFC3339),
		AvatarURL: id.AvatarURL,
		Email:     id.Email,
	})
	if err != nil {
		return fmt.Errorf("encoding chat frame: %w", err)
	}
	if err := conn.Send(payload); err != nil {
		s.logger.Warn("chat send failed", "err", err)
		s.setStatus("Failed to send message")
		return fmt.Errorf("sending chat frame: %w", err)
	}

	d.Clear()
	s.clearStatus()
	return nil
}

// setStatus shows text until StatusTTL passes or another status replaces it.
func (s *Session) setStatus(text string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.statusGen++
	gen := s.statusGen
	s.status = text
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.cfg.StatusTTL, func() {
		s.mu.Lock()
		expired := s.statusGen == gen
		if expired {
			s.status = ""
		}
		s.mu.Unlock()
		if expired {
			s.notify()
		}
	})
	s.mu.Unlock()
	s.notify()
}

func (s *Session) clearStatus() {
	s.mu.Lock()
	s.statusGen++
	s.status = ""
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	s.notify()
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Identity: s.identity,
		Messages: append([]Message(nil), s.messages...),
		Status:   s.status,
		Loading:  s.loading,
	}
	switch {
	case s.conn != nil:
		snap.State = s.conn.State()
	case s.closed:
		snap.State = client.StateClosed
	case s.started:
		snap.State = client.StateConnecting
	default:
		snap.State = client.StateIdle
	}
	return snap
}

// Close cancels any in-flight history fetch, closes the transport and
// discards the log. It is safe to call repeatedly.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.messages = nil
	s.status = ""
	s.loading = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	conn, cancel := s.conn, s.cancel
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if cancel != nil {
		cancel()
	}
	s.notify()
}
