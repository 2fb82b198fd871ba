package relay

import (
	"log/slog"
	"slices"
	"sync"
	"time"
)

// viewer holds at most one pending frame; a newer frame replaces an unsent
// one.
type viewer struct {
	frames chan []byte
}

func newViewer() *viewer {
	return &viewer{frames: make(chan []byte, 1)}
}

func (v *viewer) offer(frame []byte) (replaced bool) {
	for {
		select {
		case v.frames <- frame:
			return replaced
		default:
		}
		select {
		case <-v.frames:
			replaced = true
		default:
		}
	}
}

type screenTarget struct {
	latest  []byte
	updated time.Time
	viewers map[*viewer]struct{}
}

// ScreenHub keeps the newest frame per target and hands it to viewers.
type ScreenHub struct {
	mu      sync.Mutex
	targets map[string]*screenTarget
	logger  *slog.Logger
}

func NewScreenHub(logger *slog.Logger) *ScreenHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScreenHub{
		targets: make(map[string]*screenTarget),
		logger:  logger.With("component", "screen-hub"),
	}
}

func (h *ScreenHub) target(id string) *screenTarget {
	t, ok := h.targets[id]
	if !ok {
		t = &screenTarget{viewers: make(map[*viewer]struct{})}
		h.targets[id] = t
	}
	return t
}

// Publish records frame as the newest for id and offers it to every viewer.
func (h *ScreenHub) Publish(id string, frame []byte) {
	h.mu.Lock()
	t := h.target(id)
	t.latest = frame
	t.updated = time.Now()
	viewers := make([]*viewer, 0, len(t.viewers))
	for v := range t.viewers {
		viewers = append(viewers, v)
	}
	h.mu.Unlock()

	skipped := 0
	for _, v := range viewers {
		if v.offer(frame) {
			skipped++
		}
	}
	if skipped > 0 {
		h.logger.Debug("viewers behind, frames replaced", "target", id, "viewers", skipped)
	}
}

// Latest returns the newest frame for id.
func (h *ScreenHub) Latest(id string) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.targets[id]
	if !ok || t.latest == nil {
		return nil, false
	}
	return t.latest, true
}

// Subscribe registers a viewer for id, primed with the latest frame if
// there is one. Call the returned func to unsubscribe.
func (h *ScreenHub) Subscribe(id string) (*viewer, func()) {
	v := newViewer()

	h.mu.Lock()
	t := h.target(id)
	t.viewers[v] = struct{}{}
	if t.latest != nil {
		v.offer(t.latest)
	}
	h.mu.Unlock()

	return v, func() {
		h.mu.Lock()
		delete(t.viewers, v)
		h.mu.Unlock()
	}
}

// ViewerCount returns the number of viewers watching id.
func (h *ScreenHub) ViewerCount(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.targets[id]; ok {
		return len(t.viewers)
	}
	return 0
}

// Targets lists ids that have published at least one frame.
func (h *ScreenHub) Targets() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.targets))
	for id, t := range h.targets {
		if t.latest != nil {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}
