package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultPollInterval matches the cadence of the browser screen viewer.
const DefaultPollInterval = 100 * time.Millisecond

// FramePoller is a receive-only Transport that polls the latest-frame REST
// endpoint instead of holding a socket. It emits EventOpen after the first
// successful poll, EventBinary for every non-empty frame and EventError at
// the start of each run of failed polls. It only closes when asked to.
type FramePoller struct {
	http     *HTTPClient
	url      string
	interval time.Duration
	logger   *slog.Logger
	events   *eventStream

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
}

// NewFramePoller creates an idle poller for a frame URL such as
// Origin.ScreenFrame(id).
func NewFramePoller(hc *HTTPClient, url string, interval time.Duration, logger *slog.Logger) *FramePoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FramePoller{
		http:     hc,
		url:      url,
		interval: interval,
		logger:   logger.With("component", "poller", "url", url),
		events:   newEventStream(eventBuffer),
	}
}

// PollerFactory returns a ConnFactory whose endpoints are frame URLs.
func PollerFactory(hc *HTTPClient, interval time.Duration, logger *slog.Logger) ConnFactory {
	return func(endpoint string) Transport {
		return NewFramePoller(hc, endpoint, interval, logger)
	}
}

// State returns the current lifecycle state.
func (p *FramePoller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Events returns the poller's event stream.
func (p *FramePoller) Events() <-chan Event {
	return p.events.ch
}

// Open starts polling. It is a no-op unless the poller is Idle.
func (p *FramePoller) Open(ctx context.Context) {
	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return
	}
	p.state = StateConnecting
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	go p.run(ctx)
}

// Send always fails: the frame endpoint is read-only.
func (p *FramePoller) Send([]byte) error {
	err := fmt.Errorf("frame poller is receive-only: %w", ErrNotOpen)
	p.events.tryEmit(Event{Kind: EventError, Err: err})
	return err
}

// Close stops polling. Safe to call repeatedly and before Open.
func (p *FramePoller) Close() {
	p.mu.Lock()
	switch p.state {
	case StateIdle:
		p.state = StateClosed
		p.mu.Unlock()
		p.events.emit(Event{Kind: EventClose})
		p.events.close()
		return
	case StateClosing, StateClosed, StateFailed:
		p.mu.Unlock()
		return
	}
	p.state = StateClosing
	cancel := p.cancel
	p.mu.Unlock()
	cancel()
}

func (p *FramePoller) run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	failing := false
	for {
		data, err := p.http.FrameAt(ctx, p.url)
		if ctx.Err() != nil {
			p.finish()
			return
		}

		if err != nil {
			if !failing {
				p.logger.Warn("frame poll failed", "err", err)
				p.events.emit(Event{Kind: EventError, Err: err})
			}
			failing = true
		} else {
			failing = false
			if p.markOpen() {
				p.events.emit(Event{Kind: EventOpen})
			}
			if len(data) > 0 {
				p.events.emit(Event{Kind: EventBinary, Data: data})
			}
		}

		select {
		case <-ctx.Done():
			p.finish()
			return
		case <-ticker.C:
		}
	}
}

func (p *FramePoller) finish() {
	p.mu.Lock()
	p.state = StateClosed
	p.mu.Unlock()
	p.events.emit(Event{Kind: EventClose})
	p.events.close()
}

// markOpen moves Connecting to Open and reports whether it did.
func (p *FramePoller) markOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateConnecting {
		return false
	}
	p.state = StateOpen
	return true
}
