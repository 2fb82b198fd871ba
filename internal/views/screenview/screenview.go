// Package screenview draws the live screen viewer overlay from a screen
// session snapshot.
package screenview

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/authdash/console/internal/screen"
	"github.com/authdash/console/internal/theme"
)

// Model holds viewer presentation state. The frame itself is owned by the
// session and only borrowed for rendering.
type Model struct {
	Snapshot   screen.Snapshot
	Fullscreen bool
}

// Badge returns the Live/Offline marker.
func Badge(connected bool) string {
	if connected {
		return theme.Badge("LIVE", theme.ColorConnected)
	}
	return theme.Badge("OFFLINE", theme.ColorClosed)
}

// View renders the viewer into width x height cells. Fullscreen drops the
// panel chrome and gives the frame every cell but the title line.
func (m Model) View(width, height int) string {
	snap := m.Snapshot
	title := lipgloss.JoinHorizontal(lipgloss.Center,
		theme.StyleHeader.Render(fmt.Sprintf(" Screen %s ", snap.Target)),
		Badge(snap.Connected),
		theme.StyleDimmed.Render(fmt.Sprintf("  %d frames  %d dropped", snap.Frames, snap.Dropped)),
	)
	help := theme.StyleDimmed.Render("f:fullscreen  esc:close")

	if m.Fullscreen {
		body := m.body(width, height-1)
		return lipgloss.JoinVertical(lipgloss.Left, title, body)
	}

	innerW := max(width-6, 10)
	innerH := max(height-8, 3)
	body := m.body(innerW, innerH)
	content := lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help)
	return lipgloss.NewStyle().
		Width(innerW).
		Padding(1, 2).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

func (m Model) body(cols, rows int) string {
	snap := m.Snapshot
	var out string
	if snap.HasFrame {
		// Empty when the session released the frame since the snapshot.
		out = snap.Frame.Render(cols, rows)
	}
	if out == "" {
		msg := "Waiting for stream..."
		if !snap.Connected && snap.Status != "" && snap.Status != "Connecting..." {
			msg = snap.Status
		}
		out = lipgloss.Place(cols, rows, lipgloss.Center, lipgloss.Center, theme.StyleDimmed.Render(msg))
	}
	if snap.Connected && snap.Status != "" {
		out = lipgloss.JoinVertical(lipgloss.Left, out, theme.StyleStatus.Render(snap.Status))
	}
	return out
}
