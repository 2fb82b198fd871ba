package help

import (
	"testing"

	"github.com/charmbracelet/bubbles/key"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSections() []Section {
	return []Section{{
		Title: "Chat",
		Bindings: []key.Binding{
			key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send message")),
			key.NewBinding(key.WithKeys("x")), // no help, skipped
		},
	}}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(testSections())
	assert.Contains(t, md, "## Chat")
	assert.Contains(t, md, "| `enter` | send message |")
	assert.Contains(t, md, "30 words")
}

func TestRenderCachesPerWidth(t *testing.T) {
	m := New("notty", testSections()...)

	first, err := m.Render(80)
	require.NoError(t, err)
	assert.Contains(t, first, "send message")

	again, err := m.Render(80)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	_, err = m.Render(60)
	require.NoError(t, err)
	assert.Equal(t, 60, m.width)
}

func TestViewFallsBackOnUnknownStyle(t *testing.T) {
	m := New("no-such-style", testSections()...)
	assert.Contains(t, m.View(80, 40), "send message")
}
