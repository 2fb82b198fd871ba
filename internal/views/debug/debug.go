// Package debug provides a scrollable debug event log overlay. The log is
// fed by slog, so everything the sessions report shows up here.
package debug

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/authdash/console/internal/theme"
)

const maxEntries = 200

// Entry is a single event log line.
type Entry struct {
	Time    time.Time
	Kind    string // "chat", "scr", "app", "err"
	Message string
}

type buffer struct {
	mu      sync.Mutex
	entries []Entry
}

func (b *buffer) add(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, e)
	if len(b.entries) > maxEntries {
		b.entries = b.entries[len(b.entries)-maxEntries:]
	}
}

func (b *buffer) snapshot() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Entry(nil), b.entries...)
}

// Log is a bounded record buffer that doubles as a slog.Handler. It is safe
// for concurrent use; handlers derived with WithAttrs share the buffer.
type Log struct {
	buf   *buffer
	level slog.Leveler
	attrs []slog.Attr
	group string
}

// NewLog creates an empty log accepting records at level and above.
func NewLog(level slog.Leveler) *Log {
	if level == nil {
		level = slog.LevelInfo
	}
	return &Log{buf: &buffer{}, level: level}
}

// Add appends an entry directly.
func (l *Log) Add(kind, message string) {
	l.buf.add(Entry{Time: time.Now(), Kind: kind, Message: message})
}

// Entries returns a copy of the buffered entries, oldest first.
func (l *Log) Entries() []Entry {
	return l.buf.snapshot()
}

func (l *Log) Enabled(_ context.Context, level slog.Level) bool {
	return level >= l.level.Level()
}

func (l *Log) Handle(_ context.Context, r slog.Record) error {
	kind := "app"
	var b strings.Builder
	b.WriteString(r.Message)

	write := func(prefix string, a slog.Attr) {
		if a.Key == "component" {
			kind = componentKind(a.Value.String())
			return
		}
		fmt.Fprintf(&b, " %s%s=%s", prefix, a.Key, a.Value.String())
	}
	for _, a := range l.attrs {
		write("", a)
	}
	prefix := ""
	if l.group != "" {
		prefix = l.group + "."
	}
	r.Attrs(func(a slog.Attr) bool {
		write(prefix, a)
		return true
	})

	if r.Level >= slog.LevelError {
		kind = "err"
	}
	l.buf.add(Entry{Time: r.Time, Kind: kind, Message: b.String()})
	return nil
}

func (l *Log) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append([]slog.Attr(nil), l.attrs...)
	for _, a := range attrs {
		if l.group != "" {
			a.Key = l.group + "." + a.Key
		}
		merged = append(merged, a)
	}
	return &Log{buf: l.buf, level: l.level, attrs: merged, group: l.group}
}

func (l *Log) WithGroup(name string) slog.Handler {
	if name == "" {
		return l
	}
	group := name
	if l.group != "" {
		group = l.group + "." + name
	}
	return &Log{buf: l.buf, level: l.level, attrs: l.attrs, group: group}
}

func componentKind(component string) string {
	switch component {
	case "chat":
		return "chat"
	case "screen":
		return "scr"
	case "conn", "poller":
		return "ws"
	default:
		return "app"
	}
}

// Model holds the overlay's scroll position over a Log.
type Model struct {
	Log    *Log
	Offset int // scroll offset (from bottom)
}

// New creates a debug model over log.
func New(log *Log) Model {
	if log == nil {
		log = NewLog(slog.LevelDebug)
	}
	return Model{Log: log}
}

// ScrollUp moves the viewport up.
func (m *Model) ScrollUp(n int) {
	m.Offset += n
	limit := max(len(m.Log.Entries())-1, 0)
	if m.Offset > limit {
		m.Offset = limit
	}
}

// ScrollDown moves the viewport down.
func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

// panelStyle returns the shared border style for the debug overlay.
func panelStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)
}

// View renders the debug log as an overlay panel.
func (m Model) View(width, height int) string {
	innerW := max(width-4, 20)
	visibleLines := max(height-6, 3)

	entries := m.Log.Entries()
	title := theme.StyleHeader.Render(" DEBUG LOG ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("pgup/pgdn:scroll  esc:close  %d entries", len(entries)))

	if len(entries) == 0 {
		body := theme.StyleDimmed.Render("  No events recorded yet.")
		content := lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help)
		return panelStyle(innerW).Render(content)
	}

	// Build visible lines from bottom (minus offset).
	offset := min(m.Offset, len(entries)-1)
	end := len(entries) - offset
	start := max(end-visibleLines, 0)

	var lines []string
	for i := start; i < end; i++ {
		e := entries[i]
		tsStr := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
		kindStr := lipgloss.NewStyle().Foreground(kindToColor(e.Kind)).Width(4).Render(e.Kind)
		msgStr := e.Message
		if len(msgStr) > innerW-20 && innerW > 23 {
			msgStr = msgStr[:innerW-23] + "..."
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", tsStr, kindStr, msgStr))
	}

	body := strings.Join(lines, "\n")
	scrollIndicator := ""
	if offset > 0 {
		scrollIndicator = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", offset))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, title, body, scrollIndicator, help)
	return panelStyle(innerW).Render(content)
}

func kindToColor(kind string) lipgloss.Color {
	switch kind {
	case "ws":
		return theme.ColorConnecting
	case "err":
		return theme.ColorDanger
	case "chat":
		return theme.ColorSender
	case "scr":
		return theme.ColorAccent
	default:
		return theme.ColorDimmed
	}
}
