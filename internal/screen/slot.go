package screen

import "sync"

// Slot owns at most one live Frame. Installing a frame releases the one it
// replaces, so a session can never hold two.
type Slot struct {
	mu  sync.Mutex
	cur *Frame
}

// Install makes f current and releases the previous frame.
func (s *Slot) Install(f *Frame) {
	s.mu.Lock()
	old := s.cur
	s.cur = f
	s.mu.Unlock()

	if old != nil && old != f {
		old.Release()
	}
}

// Current returns the installed frame, or nil.
func (s *Slot) Current() *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Clear releases and removes the installed frame.
func (s *Slot) Clear() {
	s.mu.Lock()
	old := s.cur
	s.cur = nil
	s.mu.Unlock()

	if old != nil {
		old.Release()
	}
}
