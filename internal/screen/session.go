// Package screen shows the live frame stream of a remote agent. Only the
// newest frame is kept; each one replaces and releases its predecessor.
package screen

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/authdash/console/internal/client"
)

// ErrAlreadyOpen is returned by Open while a stream is active.
var ErrAlreadyOpen = errors.New("screen session already open")

// Config wires a Session to its collaborators.
type Config struct {
	// Endpoint maps a target id onto the URL handed to Factory. Defaults to
	// the WebSocket view endpoint on the default origin.
	Endpoint func(target string) string
	Factory  client.ConnFactory
	Logger   *slog.Logger
	// Decode turns a binary message into a Frame. Defaults to DecodeFrame.
	Decode func(data []byte) (*Frame, error)
}

// Snapshot is a consistent copy of session state for rendering. Frame is
// only set while connected.
type Snapshot struct {
	Target    string
	Connected bool
	HasFrame  bool
	Frame     *Frame
	Frames    int
	Dropped   int
	Status    string
	State     client.State
}

// Session views one target at a time. Each Open uses a fresh transport;
// events from earlier transports are ignored.
type Session struct {
	cfg     Config
	logger  *slog.Logger
	changed chan struct{}
	slot    Slot

	mu        sync.Mutex
	gen       uint64
	conn      client.Transport
	active    bool
	connected bool
	target    string
	frames    int
	dropped   int
	status    string
}

// New creates an idle session.
func New(cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Endpoint == nil {
		cfg.Endpoint = client.MustParseOrigin(client.DefaultOrigin).ScreenSocket
	}
	if cfg.Factory == nil {
		cfg.Factory = client.Factory(client.Options{Logger: cfg.Logger})
	}
	if cfg.Decode == nil {
		cfg.Decode = DecodeFrame
	}
	return &Session{
		cfg:     cfg,
		logger:  cfg.Logger.With("component", "screen"),
		changed: make(chan struct{}, 1),
	}
}

// Changed receives a value whenever the snapshot may have changed.
func (s *Session) Changed() <-chan struct{} {
	return s.changed
}

func (s *Session) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// Open starts streaming target. Opening again after Close, or after the
// remote side ended the stream, is allowed.
func (s *Session) Open(ctx context.Context, target string) error {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return ErrAlreadyOpen
	}
	stale := s.conn
	s.gen++
	gen := s.gen
	conn := s.cfg.Factory(s.cfg.Endpoint(target))
	s.conn = conn
	s.active = true
	s.connected = false
	s.target = target
	s.frames = 0
	s.dropped = 0
	s.status = "Connecting..."
	s.mu.Unlock()

	if stale != nil {
		stale.Close()
	}
	s.logger.Info("opening screen stream", "target", target)
	conn.Open(ctx)
	go s.dispatch(conn, gen)
	s.notify()
	return nil
}

// dispatch consumes one transport's events. Queued binary events collapse
// to the newest before decoding.
func (s *Session) dispatch(conn client.Transport, gen uint64) {
	events := conn.Events()
	var pending *client.Event
	for {
		var ev client.Event
		if pending != nil {
			ev, pending = *pending, nil
		} else {
			var ok bool
			if ev, ok = <-events; !ok {
				return
			}
		}

		if ev.Kind != client.EventBinary {
			s.handleEvent(gen, conn, ev)
			continue
		}

		latest, next, skipped, open := coalesce(ev, events)
		if skipped > 0 {
			s.addDropped(gen, skipped)
		}
		s.handleFrame(gen, latest.Data)
		pending = next
		if !open && pending == nil {
			return
		}
	}
}

// coalesce drains the binary events already queued behind first and returns
// the newest, the first non-binary event it hit (if any), how many binary
// events were skipped and whether the stream is still open.
func coalesce(first client.Event, events <-chan client.Event) (latest client.Event, next *client.Event, skipped int, open bool) {
	latest = first
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return latest, nil, skipped, false
			}
			if ev.Kind == client.EventBinary {
				latest = ev
				skipped++
				continue
			}
			return latest, &ev, skipped, true
		default:
			return latest, nil, skipped, true
		}
	}
}

func (s *Session) handleFrame(gen uint64, data []byte) {
	frame, err := s.cfg.Decode(data)

	s.mu.Lock()
	if gen != s.gen || !s.active {
		s.mu.Unlock()
		if frame != nil {
			frame.Release()
		}
		return
	}
	if err != nil {
		s.dropped++
		s.mu.Unlock()
		s.logger.Debug("dropping undecodable frame", "err", err, "bytes", len(data))
		s.notify()
		return
	}
	s.slot.Install(frame)
	s.frames++
	s.connected = true
	s.status = ""
	s.mu.Unlock()
	s.notify()
}

func (s *Session) addDropped(gen uint64, n int) {
	s.mu.Lock()
	if gen == s.gen {
		s.dropped += n
	}
	s.mu.Unlock()
}

func (s *Session) handleEvent(gen uint64, conn client.Transport, ev client.Event) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	switch ev.Kind {
	case client.EventOpen:
		s.connected = true
		s.status = ""
	case client.EventError:
		s.logger.Warn("screen stream error", "target", s.target, "err", ev.Err)
		s.status = "Stream error: " + ev.Err.Error()
	case client.EventClose:
		s.active = false
		s.connected = false
		s.slot.Clear()
		if conn.State() == client.StateFailed {
			s.status = "Disconnected"
		} else {
			s.status = "Stream ended"
		}
		s.logger.Info("screen stream closed", "target", s.target, "state", conn.State())
	default:
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.notify()
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Target:    s.target,
		Connected: s.connected,
		Frames:    s.frames,
		Dropped:   s.dropped,
		Status:    s.status,
		State:     client.StateIdle,
	}
	switch {
	case s.conn != nil:
		snap.State = s.conn.State()
	case s.gen > 0:
		snap.State = client.StateClosed
	}
	if s.connected {
		snap.Frame = s.slot.Current()
		snap.HasFrame = snap.Frame != nil
	}
	return snap
}

// Close releases the current frame and closes the transport. Frames still in
// flight are released on arrival. Safe to call repeatedly.
func (s *Session) Close() {
	s.mu.Lock()
	conn := s.conn
	if conn == nil {
		s.mu.Unlock()
		return
	}
	target := s.target
	s.gen++
	s.conn = nil
	s.active = false
	s.connected = false
	s.status = ""
	s.slot.Clear()
	s.mu.Unlock()

	conn.Close()
	s.logger.Info("screen stream closed by viewer", "target", target)
	s.notify()
}
