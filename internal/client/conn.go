package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultPongTimeout      = 60 * time.Second
	defaultPingInterval     = 30 * time.Second

	eventBuffer = 64
)

// ErrNotOpen is returned by Send when the transport is not in StateOpen.
var ErrNotOpen = errors.New("connection not open")

// State is the lifecycle position of a transport.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
	StateFailed
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// EventKind tags an Event.
type EventKind int

const (
	EventOpen EventKind = iota
	EventText
	EventBinary
	EventError
	EventClose
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventText:
		return "text"
	case EventBinary:
		return "binary"
	case EventError:
		return "error"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// Event is one item on a transport's event stream.
type Event struct {
	Kind EventKind
	Data []byte // EventText, EventBinary
	Err  error  // EventError
}

// Transport is the surface a session needs from its connection. The stream
// returned by Events carries exactly one EventClose and is closed right after
// it; consumers must keep draining until then.
type Transport interface {
	Open(ctx context.Context)
	Send(payload []byte) error
	Close()
	State() State
	Events() <-chan Event
}

// ConnFactory builds a fresh, idle transport for an endpoint. Sessions call
// it once per activation and never reuse the result.
type ConnFactory func(endpoint string) Transport

// Options tunes a Conn. Zero values take the package defaults.
type Options struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PongTimeout      time.Duration
	PingInterval     time.Duration
	Logger           *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = defaultHandshakeTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = defaultPongTimeout
	}
	if o.PingInterval <= 0 {
		o.PingInterval = defaultPingInterval
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Factory returns a ConnFactory producing WebSocket connections with opts.
func Factory(opts Options) ConnFactory {
	return func(endpoint string) Transport {
		return NewConn(endpoint, opts)
	}
}

// Conn owns a single WebSocket connection for its whole life. It is never
// reused: once Closed or Failed a new Conn must be created.
type Conn struct {
	url    string
	opts   Options
	logger *slog.Logger
	events *eventStream

	mu      sync.Mutex
	state   State
	ws      *websocket.Conn
	cancel  context.CancelFunc
	closing bool

	writeMu sync.Mutex // serialises data frames and pings
}

// NewConn creates an idle connection for endpoint. It never fails; a bad
// endpoint surfaces as EventError when Open dials it.
func NewConn(endpoint string, opts Options) *Conn {
	opts = opts.withDefaults()
	return &Conn{
		url:    endpoint,
		opts:   opts,
		logger: opts.Logger.With("component", "conn", "url", endpoint),
		events: newEventStream(eventBuffer),
	}
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Events returns the connection's event stream.
func (c *Conn) Events() <-chan Event {
	return c.events.ch
}

// Open starts dialing in the background. It is a no-op unless the
// connection is Idle.
func (c *Conn) Open(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(ctx)
}

// Send writes payload as a single text frame. Outside StateOpen it reports
// an EventError and returns ErrNotOpen.
func (c *Conn) Send(payload []byte) error {
	c.mu.Lock()
	ws, state := c.ws, c.state
	c.mu.Unlock()

	if state != StateOpen || ws == nil {
		err := fmt.Errorf("send while %s: %w", state, ErrNotOpen)
		c.events.tryEmit(Event{Kind: EventError, Err: err})
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// Close shuts the connection down. It is safe to call at any time, any
// number of times, including before Open. It never blocks on the network:
// the close frame is written by the connection's own goroutine.
func (c *Conn) Close() {
	c.mu.Lock()
	switch c.state {
	case StateIdle:
		c.state = StateClosed
		c.mu.Unlock()
		c.events.emit(Event{Kind: EventClose})
		c.events.close()
		return
	case StateClosing, StateClosed, StateFailed:
		c.mu.Unlock()
		return
	}
	c.state = StateClosing
	c.closing = true
	cancel := c.cancel
	c.mu.Unlock()

	cancel()
}

// shutdown marks a close requested through Close or the Open context.
func (c *Conn) shutdown() {
	c.mu.Lock()
	c.closing = true
	if c.state == StateConnecting || c.state == StateOpen {
		c.state = StateClosing
	}
	c.mu.Unlock()
}

func (c *Conn) run(ctx context.Context) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.opts.HandshakeTimeout,
	}

	ws, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if ctx.Err() != nil {
			c.shutdown()
		}
		c.finish(fmt.Errorf("dialing: %w", err))
		return
	}

	c.mu.Lock()
	if c.closing || ctx.Err() != nil {
		// Close won the race against the handshake.
		c.closing = true
		c.mu.Unlock()
		ws.Close()
		c.finish(nil)
		return
	}
	c.ws = ws
	c.state = StateOpen
	c.mu.Unlock()

	c.logger.Debug("connection open")
	c.events.emit(Event{Kind: EventOpen})

	go c.pingLoop(ctx, ws)
	stop := context.AfterFunc(ctx, func() {
		c.shutdown()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.opts.WriteTimeout)); err != nil {
			c.logger.Debug("close frame not sent", "err", err)
		}
		ws.Close()
	})

	err = c.readLoop(ws)
	stop()
	ws.Close()
	c.finish(err)
}

func (c *Conn) readLoop(ws *websocket.Conn) error {
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	})
	ws.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))

	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		ws.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))

		switch kind {
		case websocket.TextMessage:
			c.events.emit(Event{Kind: EventText, Data: data})
		case websocket.BinaryMessage:
			c.events.emit(Event{Kind: EventBinary, Data: data})
		}
	}
}

// pingLoop sends periodic pings until ctx is cancelled or a write fails.
func (c *Conn) pingLoop(ctx context.Context, ws *websocket.Conn) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			err := ws.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// finish records the terminal state and ends the event stream. A nil err,
// a requested close, or a normal close from the peer end in StateClosed;
// anything else is a transport failure.
func (c *Conn) finish(err error) {
	c.mu.Lock()
	clean := c.closing || err == nil ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
	if clean {
		c.state = StateClosed
	} else {
		c.state = StateFailed
	}
	c.ws = nil
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if clean {
		c.logger.Debug("connection closed")
	} else {
		c.logger.Warn("connection failed", "err", err)
		c.events.emit(Event{Kind: EventError, Err: err})
	}
	c.events.emit(Event{Kind: EventClose})
	c.events.close()
}

// eventStream is a buffered event channel that may be written from several
// goroutines and closed exactly once.
type eventStream struct {
	mu   sync.RWMutex
	ch   chan Event
	done bool
}

func newEventStream(size int) *eventStream {
	return &eventStream{ch: make(chan Event, size)}
}

// emit delivers ev, blocking while the buffer is full.
func (s *eventStream) emit(ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.done {
		return
	}
	s.ch <- ev
}

// tryEmit delivers ev only if there is room.
func (s *eventStream) tryEmit(ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.done {
		return
	}
	select {
	case s.ch <- ev:
	default:
	}
}

func (s *eventStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.done {
		s.done = true
		close(s.ch)
	}
}
