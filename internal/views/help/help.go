// Package help renders the key binding reference as Markdown through
// glamour.
package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/authdash/console/internal/theme"
)

// Section is a titled group of bindings.
type Section struct {
	Title    string
	Bindings []key.Binding
}

// Markdown builds the help document.
func Markdown(sections []Section) string {
	var b strings.Builder
	b.WriteString("# Keys\n")
	for _, s := range sections {
		fmt.Fprintf(&b, "\n## %s\n\n| Key | Action |\n|---|---|\n", s.Title)
		for _, kb := range s.Bindings {
			h := kb.Help()
			if h.Key == "" {
				continue
			}
			fmt.Fprintf(&b, "| `%s` | %s |\n", h.Key, h.Desc)
		}
	}
	b.WriteString("\nMessages are limited to 30 words. The counter turns amber above 20 and red above 30.\n")
	return b.String()
}

// Model caches the rendered document per width.
type Model struct {
	sections []Section
	style    string
	width    int
	rendered string
}

// New creates a help overlay. style is a glamour standard style name such as
// "dark" or "notty".
func New(style string, sections ...Section) Model {
	if style == "" {
		style = "dark"
	}
	return Model{sections: sections, style: style}
}

// Render renders the document for width, reusing the last result when the
// width is unchanged.
func (m *Model) Render(width int) (string, error) {
	if m.rendered != "" && m.width == width {
		return m.rendered, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.style),
		glamour.WithWordWrap(max(width-8, 20)),
	)
	if err != nil {
		return "", fmt.Errorf("creating renderer: %w", err)
	}
	out, err := r.Render(Markdown(m.sections))
	if err != nil {
		return "", fmt.Errorf("rendering help: %w", err)
	}
	m.width, m.rendered = width, out
	return out, nil
}

// View renders the overlay panel. Rendering failures fall back to the raw
// Markdown.
func (m *Model) View(width, height int) string {
	body, err := m.Render(width)
	if err != nil {
		body = Markdown(m.sections)
	}
	return lipgloss.NewStyle().
		Width(max(width-4, 20)).
		MaxHeight(max(height, 5)).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(strings.TrimRight(body, "\n"))
}
