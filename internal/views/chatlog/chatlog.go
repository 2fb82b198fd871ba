// Package chatlog renders the global chat: the message log, the transient
// status line, the input box with its live word gauge, and the emoji
// palette.
package chatlog

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/authdash/console/internal/chat"
	"github.com/authdash/console/internal/theme"
)

const (
	inputHeight = 3
	sendHint    = "⏎ send"
)

// Model holds the chat panel state. The textarea is edited directly and
// draft mirrors its text; the session only sees it on send.
type Model struct {
	log     viewport.Model
	input   textarea.Model
	spinner spinner.Model
	gauge   Gauge
	draft   chat.Draft

	snap        chat.Snapshot
	paletteOpen bool
	width       int
	height      int
}

func New() Model {
	ta := textarea.New()
	ta.Placeholder = "Type a message..."
	ta.ShowLineNumbers = false
	ta.Prompt = "┃ "
	ta.SetHeight(inputHeight)
	// Enter sends; the app handles it before the textarea sees it.
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	return Model{
		log:     viewport.New(40, 10),
		input:   ta,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(theme.StyleDimmed)),
		gauge:   NewGauge(),
	}
}

// Init starts the loading spinner and cursor blink.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textarea.Blink)
}

// SetSize lays the panel out in width x height cells.
func (m *Model) SetSize(width, height int) {
	m.width, m.height = width, height
	m.input.SetWidth(width)
	m.log.Width = width
	m.log.Height = m.logHeight()
	m.refresh()
}

func (m Model) logHeight() int {
	// header, status line, input, gauge, optional palette
	chrome := 1 + 1 + inputHeight + 1
	if m.paletteOpen {
		chrome++
	}
	return max(m.height-chrome, 1)
}

// SetSnapshot replaces the rendered session state. The log stays pinned to
// the newest message unless the user scrolled up.
func (m *Model) SetSnapshot(s chat.Snapshot) {
	m.snap = s
	m.refresh()
}

func (m *Model) refresh() {
	atBottom := m.log.AtBottom()
	m.log.SetContent(renderMessages(m.snap.Messages, m.width))
	if atBottom {
		m.log.GotoBottom()
	}
}

// Value returns the current draft text.
func (m Model) Value() string { return m.input.Value() }

// SetValue replaces the draft text and updates the gauge.
func (m *Model) SetValue(s string) tea.Cmd {
	m.input.SetValue(s)
	return m.syncDraft()
}

func (m *Model) syncDraft() tea.Cmd {
	m.draft.Set(m.input.Value())
	return m.gauge.SetWords(m.draft.Words())
}

// Sendable reports whether the current draft would pass the send checks.
func (m Model) Sendable() bool { return m.draft.Sendable() }

// PaletteOpen reports whether the emoji palette is showing.
func (m Model) PaletteOpen() bool { return m.paletteOpen }

// TogglePalette shows or hides the emoji palette.
func (m *Model) TogglePalette() {
	m.paletteOpen = !m.paletteOpen
	m.log.Height = m.logHeight()
}

// InsertEmoji appends palette entry i to the end of the draft.
func (m *Model) InsertEmoji(i int) tea.Cmd {
	if i < 0 || i >= len(Emoji) {
		return nil
	}
	m.draft.Insert(Emoji[i])
	return m.SetValue(m.draft.Text())
}

// Gauge exposes the live word counter.
func (m Model) Gauge() Gauge { return m.gauge }

// Update routes keys to the input, scroll keys to the log and animation
// ticks to the spinner and gauge.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case GaugeFrameMsg:
		return m, m.gauge.Step()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.log, cmd = m.log.Update(msg)
			return m, cmd
		}
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return m, cmd
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	if m.input.Value() != before {
		cmds = append(cmds, m.syncDraft())
	}
	return m, tea.Batch(cmds...)
}

// View renders the panel.
func (m Model) View() string {
	sections := []string{m.header()}

	if m.snap.Loading {
		sections = append(sections, lipgloss.NewStyle().Height(m.log.Height).Render(
			m.spinner.View()+" "+theme.StyleDimmed.Render("Loading messages...")))
	} else if len(m.snap.Messages) == 0 {
		sections = append(sections, lipgloss.NewStyle().Height(m.log.Height).Render(
			theme.StyleDimmed.Render("  No messages yet. Say hello!")))
	} else {
		sections = append(sections, m.log.View())
	}

	sections = append(sections, theme.StyleStatus.Render(m.snap.Status))
	if m.paletteOpen {
		sections = append(sections, paletteView())
	}
	sections = append(sections, m.input.View(), m.footer())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// footer is the word gauge followed by the send hint, dimmed while the
// draft can't be sent.
func (m Model) footer() string {
	hint := theme.StyleDimmed.Render(sendHint)
	if m.draft.Sendable() {
		hint = lipgloss.NewStyle().Bold(true).Foreground(theme.ColorAccent).Render(sendHint)
	}
	return m.gauge.View(m.width-lipgloss.Width(sendHint)-2) + "  " + hint
}

func (m Model) header() string {
	title := theme.StyleHeader.Render("Global Chat")
	return title + "  " + theme.StyleDimmed.Render(CountLabel(len(m.snap.Messages)))
}

// CountLabel is the message count shown next to the title.
func CountLabel(n int) string {
	switch n {
	case 0:
		return "No messages"
	case 1:
		return "1 message"
	default:
		return fmt.Sprintf("%d messages", n)
	}
}

func renderMessages(msgs []chat.Message, width int) string {
	var b strings.Builder
	bodyStyle := lipgloss.NewStyle().PaddingLeft(4).Width(max(width, 10))
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(MessageHeader(msg))
		b.WriteString("\n")
		b.WriteString(bodyStyle.Render(msg.Body))
	}
	return b.String()
}

// MessageHeader renders avatar, sender, verified badge and time.
func MessageHeader(msg chat.Message) string {
	var avatar string
	if msg.AvatarURL == "" {
		avatar = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorBright).
			Background(theme.AvatarColor(msg.Sender)).
			Render(" " + msg.Initial() + " ")
	} else {
		// Remote avatars can't be drawn in a terminal.
		avatar = lipgloss.NewStyle().Foreground(theme.ColorAccent).Render(" ◉ ")
	}

	parts := []string{
		avatar,
		lipgloss.NewStyle().Bold(true).Foreground(theme.ColorSender).Render(msg.Sender),
	}
	if msg.Verified() {
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.ColorVerified).Render("✓ verified"))
	}
	parts = append(parts, theme.StyleDimmed.Render(MessageTime(msg)))
	return strings.Join(parts, " ")
}

// MessageTime formats the send time as local HH:MM.
func MessageTime(msg chat.Message) string {
	if msg.SentAt.IsZero() {
		return "--:--"
	}
	return msg.SentAt.Local().Format("15:04")
}
