package client

import "time"

const (
	ReconnectBaseDelay = 1 * time.Second
	ReconnectMaxDelay  = 30 * time.Second
)

// Backoff computes reconnect delays for callers that choose to replace a
// failed Conn. Conn itself never reconnects.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Next returns the delay before reconnect attempt n (0-based), doubling from
// Base and capped at Max.
func (b Backoff) Next(n int) time.Duration {
	base, max := b.Base, b.Max
	if base <= 0 {
		base = ReconnectBaseDelay
	}
	if max <= 0 {
		max = ReconnectMaxDelay
	}
	delay := base
	for i := 0; i < n && delay < max; i++ {
		delay *= 2
	}
	return min(delay, max)
}
