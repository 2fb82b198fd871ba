package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/authdash/console/internal/client"
	"github.com/authdash/console/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	Host        string
	User        string
	Verified    bool
	ChatState   client.State
	Messages    int
	Screen      string // target being viewed, empty when the viewer is closed
	ScreenState client.State
	Reconnect   string // pending reconnect notice
	Width       int
}

// New creates a status bar model.
func New(host, user string, verified bool) Model {
	return Model{Host: host, User: user, Verified: verified}
}

func stateLabel(prefix string, s client.State) string {
	name := s.String()
	return lipgloss.NewStyle().
		Foreground(theme.StateColor(name)).
		Render(fmt.Sprintf("%s %s: %s", theme.StateGlyph(name), prefix, name))
}

// View renders the status bar.
func (m Model) View() string {
	width := max(m.Width, 40)

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")

	user := m.User
	if m.Verified {
		user += " " + lipgloss.NewStyle().Foreground(theme.ColorVerified).Render("✓")
	}

	content := stateLabel("chat", m.ChatState) + sep +
		fmt.Sprintf("%d messages", m.Messages) + sep +
		user + sep +
		theme.StyleDimmed.Render(m.Host)
	if m.Screen != "" {
		content += sep + stateLabel("screen "+m.Screen, m.ScreenState)
	}
	if m.Reconnect != "" {
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorWarning).Render(m.Reconnect)
	}

	bar := lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)

	return bar
}
