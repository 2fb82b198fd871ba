package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard bindings for the TUI. Printable keys belong
// to the chat input, so global bindings use control and function keys.
type KeyMap struct {
	Send       key.Binding
	Palette    key.Binding
	Screen     key.Binding
	Fullscreen key.Binding
	Reconnect  key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Escape     key.Binding
	Help       key.Binding
	Debug      key.Binding
	Quit       key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send message"),
		),
		Palette: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("ctrl+e", "emoji palette (then 1-9, 0)"),
		),
		Screen: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("ctrl+o", "open screen viewer"),
		),
		Fullscreen: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "toggle fullscreen (viewer)"),
		),
		Reconnect: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "reconnect chat"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll down"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close overlay"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("f1", "help"),
		),
		Debug: key.NewBinding(
			key.WithKeys("f2"),
			key.WithHelp("f2", "debug log"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// ChatBindings lists the bindings active on the chat panel.
func (k KeyMap) ChatBindings() []key.Binding {
	return []key.Binding{k.Send, k.Palette, k.ScrollUp, k.ScrollDown, k.Reconnect}
}

// GlobalBindings lists bindings that open overlays or exit.
func (k KeyMap) GlobalBindings() []key.Binding {
	return []key.Binding{k.Screen, k.Fullscreen, k.Help, k.Debug, k.Escape, k.Quit}
}
