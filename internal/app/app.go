package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/authdash/console/internal/chat"
	"github.com/authdash/console/internal/client"
	"github.com/authdash/console/internal/screen"
	"github.com/authdash/console/internal/theme"
	"github.com/authdash/console/internal/views/chatlog"
	"github.com/authdash/console/internal/views/debug"
	"github.com/authdash/console/internal/views/help"
	"github.com/authdash/console/internal/views/screenview"
	"github.com/authdash/console/internal/views/status"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayScreen
	OverlayDebug
	OverlayHelp
)

// Options wires the model to its sessions.
type Options struct {
	Identity     chat.Identity
	Host         string
	ScreenTarget string
	// NewChat builds a fresh chat session; called once at start and again
	// for every reconnect.
	NewChat func() *chat.Session
	Screen  *screen.Session
	// Reconnect replaces a failed chat session after Backoff.Next(attempt).
	Reconnect bool
	Backoff   client.Backoff
	Debug     *debug.Log
	HelpStyle string
	Logger    *slog.Logger
}

type chatChangedMsg struct{ s *chat.Session }

type chatStartedMsg struct {
	s   *chat.Session
	err error
}

type screenChangedMsg struct{}

type reconnectMsg struct{ attempt int }

// Model is the root Bubble Tea model.
type Model struct {
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	keys   KeyMap
	width  int
	height int

	chat     *chat.Session
	chatSnap chat.Snapshot
	screen   *screen.Session
	overlay  Overlay

	// Reconnect bookkeeping.
	attempt int
	pending bool

	// Sub-views.
	chatView  chatlog.Model
	viewer    screenview.Model
	statusBar status.Model
	debug     debug.Model
	help      *help.Model
}

// New creates the root model. The chat session is created here but not
// started until Init.
func New(opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ScreenTarget == "" {
		opts.ScreenTarget = "1"
	}
	ctx, cancel := context.WithCancel(context.Background())
	keys := DefaultKeyMap()
	h := help.New(opts.HelpStyle,
		help.Section{Title: "Chat", Bindings: keys.ChatBindings()},
		help.Section{Title: "Console", Bindings: keys.GlobalBindings()},
	)
	return Model{
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		logger:    opts.Logger.With("component", "app"),
		keys:      keys,
		chat:      opts.NewChat(),
		screen:    opts.Screen,
		chatView:  chatlog.New(),
		statusBar: status.New(opts.Host, opts.Identity.Name, opts.Identity.Verified()),
		debug:     debug.New(opts.Debug),
		help:      &h,
	}
}

// Init starts the chat session and begins listening to both sessions.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.startChat(m.chat),
		waitChat(m.chat),
		m.chatView.Init(),
	}
	if m.screen != nil {
		cmds = append(cmds, waitScreen(m.screen))
	}
	return tea.Batch(cmds...)
}

func (m Model) startChat(s *chat.Session) tea.Cmd {
	ctx, id := m.ctx, m.opts.Identity
	return func() tea.Msg {
		return chatStartedMsg{s: s, err: s.Initialize(ctx, id)}
	}
}

func waitChat(s *chat.Session) tea.Cmd {
	return func() tea.Msg {
		<-s.Changed()
		return chatChangedMsg{s: s}
	}
}

func waitScreen(s *screen.Session) tea.Cmd {
	return func() tea.Msg {
		<-s.Changed()
		return screenChangedMsg{}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.chatView.SetSize(msg.Width, m.chatHeight())
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case chatStartedMsg:
		if msg.err != nil && msg.s == m.chat && !errors.Is(msg.err, chat.ErrClosed) {
			m.logger.Error("starting chat", "err", msg.err)
		}
		return m, nil

	case chatChangedMsg:
		if msg.s != m.chat {
			// A replaced session's last notification.
			return m, nil
		}
		cmd := m.refreshChat()
		return m, tea.Batch(cmd, waitChat(m.chat))

	case reconnectMsg:
		if !m.pending || msg.attempt != m.attempt {
			return m, nil
		}
		return m, m.replaceChat()

	case screenChangedMsg:
		m.refreshScreen()
		return m, waitScreen(m.screen)
	}

	var cmd tea.Cmd
	m.chatView, cmd = m.chatView.Update(msg)
	return m, cmd
}

// refreshChat copies the session state into the views and schedules a
// reconnect when the session failed.
func (m *Model) refreshChat() tea.Cmd {
	m.chatSnap = m.chat.Snapshot()
	m.chatView.SetSnapshot(m.chatSnap)
	m.statusBar.ChatState = m.chatSnap.State
	m.statusBar.Messages = len(m.chatSnap.Messages)

	switch m.chatSnap.State {
	case client.StateOpen:
		m.attempt = 0
	case client.StateFailed:
		if m.opts.Reconnect && !m.pending {
			return m.scheduleReconnect(m.opts.Backoff.Next(m.attempt))
		}
	}
	return nil
}

func (m *Model) scheduleReconnect(delay time.Duration) tea.Cmd {
	m.pending = true
	attempt := m.attempt
	m.statusBar.Reconnect = fmt.Sprintf("reconnecting in %s", delay.Round(time.Second))
	m.logger.Info("scheduling chat reconnect", "attempt", attempt+1, "delay", delay)
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return reconnectMsg{attempt: attempt}
	})
}

// replaceChat tears down the current session and starts a fresh one.
func (m *Model) replaceChat() tea.Cmd {
	m.pending = false
	m.attempt++
	m.statusBar.Reconnect = ""

	m.chat.Close()
	m.chat = m.opts.NewChat()
	m.chatSnap = chat.Snapshot{}
	m.chatView.SetSnapshot(m.chatSnap)
	return tea.Batch(m.startChat(m.chat), waitChat(m.chat))
}

func (m *Model) refreshScreen() {
	if m.screen == nil {
		return
	}
	snap := m.screen.Snapshot()
	m.viewer.Snapshot = snap
	if m.overlay == OverlayScreen {
		m.statusBar.Screen = snap.Target
	} else {
		m.statusBar.Screen = ""
	}
	m.statusBar.ScreenState = snap.State
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.chat.Close()
		if m.screen != nil {
			m.screen.Close()
		}
		m.cancel()
		return m, tea.Quit
	}

	if m.overlay != OverlayNone {
		return m.handleOverlayKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
		return m, nil

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		m.debug.Offset = 0
		return m, nil

	case key.Matches(msg, m.keys.Screen):
		if m.screen == nil {
			return m, nil
		}
		if err := m.screen.Open(m.ctx, m.opts.ScreenTarget); err != nil && !errors.Is(err, screen.ErrAlreadyOpen) {
			m.logger.Error("opening screen viewer", "err", err)
			return m, nil
		}
		m.overlay = OverlayScreen
		m.refreshScreen()
		return m, nil

	case key.Matches(msg, m.keys.Palette):
		m.chatView.TogglePalette()
		return m, nil

	case key.Matches(msg, m.keys.Reconnect):
		if m.pending || !m.chatSnap.State.Terminal() {
			return m, nil
		}
		m.pending = true
		attempt := m.attempt
		return m, func() tea.Msg { return reconnectMsg{attempt: attempt} }

	case key.Matches(msg, m.keys.Send):
		return m, m.send()
	}

	if m.chatView.PaletteOpen() {
		if i, ok := chatlog.EmojiIndex(msg.String()); ok {
			return m, m.chatView.InsertEmoji(i)
		}
	}

	var cmd tea.Cmd
	m.chatView, cmd = m.chatView.Update(msg)
	return m, cmd
}

func (m *Model) send() tea.Cmd {
	d := chat.NewDraft(m.chatView.Value())
	err := m.chat.Send(d)
	// Rejections set the session status synchronously; show it now.
	cmd := m.refreshChat()
	if err != nil {
		m.logger.Debug("message not sent", "err", err)
		return cmd
	}
	return tea.Batch(cmd, m.chatView.SetValue(d.Text()))
}

func (m Model) handleOverlayKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Escape) {
		if m.overlay == OverlayScreen {
			m.screen.Close()
			m.viewer.Fullscreen = false
		}
		m.overlay = OverlayNone
		m.refreshScreen()
		return m, nil
	}

	switch m.overlay {
	case OverlayScreen:
		if key.Matches(msg, m.keys.Fullscreen) {
			m.viewer.Fullscreen = !m.viewer.Fullscreen
		}
	case OverlayDebug:
		switch {
		case key.Matches(msg, m.keys.ScrollUp):
			m.debug.ScrollUp(5)
		case key.Matches(msg, m.keys.ScrollDown):
			m.debug.ScrollDown(5)
		}
	}
	return m, nil
}

// statusHeight is the double-bordered status bar: one line plus borders.
const statusHeight = 3

func (m Model) chatHeight() int {
	return max(m.height-statusHeight-1, 4)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.overlay == OverlayScreen && m.viewer.Fullscreen {
		return m.viewer.View(m.width, m.height)
	}

	var main string
	switch m.overlay {
	case OverlayScreen:
		main = m.viewer.View(m.width, m.chatHeight())
	case OverlayDebug:
		main = m.debug.View(m.width, m.chatHeight())
	case OverlayHelp:
		main = m.help.View(m.width, m.chatHeight())
	default:
		main = m.chatView.View()
	}

	sections := []string{
		m.statusBar.View(),
		main,
		theme.StyleDimmed.Render("  enter:send  ctrl+e:emoji  ctrl+o:screen  f1:help  f2:debug  ctrl+c:quit"),
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
