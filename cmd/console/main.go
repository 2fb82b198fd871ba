// Command console is the terminal admin console: global chat with live
// history plus the screen viewer, talking to the dashboard API.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/authdash/console/internal/app"
	"github.com/authdash/console/internal/chat"
	"github.com/authdash/console/internal/client"
	"github.com/authdash/console/internal/config"
	"github.com/authdash/console/internal/logging"
	"github.com/authdash/console/internal/screen"
	"github.com/authdash/console/internal/views/debug"
)

type flags struct {
	config string
	origin string
	token  string
	user   string
	avatar string
	email  string
	screen string
	poll   bool
	retry  bool
	log    string
	style  string
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", "console.yaml", "Path to config file (yaml or toml)")
	flag.StringVar(&f.origin, "origin", "", "Dashboard API origin, e.g. https://auth.example.com")
	flag.StringVar(&f.token, "token", "", "Bearer token for the API")
	flag.StringVar(&f.user, "user", "", "Display name for outgoing messages")
	flag.StringVar(&f.avatar, "avatar", "", "Avatar URL for outgoing messages")
	flag.StringVar(&f.email, "email", "", "Verified email for outgoing messages")
	flag.StringVar(&f.screen, "screen", "", "Screen target id for the viewer")
	flag.BoolVar(&f.poll, "poll", false, "Poll the frame endpoint instead of streaming")
	flag.BoolVar(&f.retry, "reconnect", false, "Reconnect the chat automatically after a failure")
	flag.StringVar(&f.log, "log", "", "Append logs to this file")
	flag.StringVar(&f.style, "help-style", "dark", "Glamour style for the help overlay")
	flag.Parse()

	if err := run(f); err != nil {
		fmt.Fprintf(os.Stderr, "console: %v\n", err)
		os.Exit(1)
	}
}

func (f flags) apply(cfg *config.Config) {
	if f.origin != "" {
		cfg.Origin = f.origin
	}
	if f.token != "" {
		cfg.Token = f.token
	}
	if f.user != "" {
		cfg.Identity.Name = f.user
	}
	if f.avatar != "" {
		cfg.Identity.AvatarURL = f.avatar
	}
	if f.email != "" {
		cfg.Identity.Email = f.email
	}
	if f.screen != "" {
		cfg.Screen.Target = f.screen
	}
	if f.poll {
		cfg.Screen.Transport = config.TransportPoll
	}
	if f.retry {
		cfg.Chat.Reconnect = true
	}
	if f.log != "" {
		cfg.Logging.File = f.log
	}
}

func run(f flags) error {
	cfg, err := config.LoadOrDefault(f.config)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The terminal belongs to the UI: records go to the debug overlay and,
	// when configured, to a log file.
	debugLog := debug.NewLog(logging.ParseLevel(cfg.Logging.Level))
	handler := slog.Handler(debugLog)
	if cfg.Logging.File != "" {
		file, err := tea.LogToFile(cfg.Logging.File, "")
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer file.Close()
		handler = logging.Tee(debugLog, logging.New(cfg.Logging, file, true).Handler())
	}
	logger := slog.New(handler)

	origin := cfg.ParsedOrigin()
	hc := client.NewHTTPClient(origin, cfg.Token, cfg.Chat.HistoryTimeout)
	connOpts := cfg.ConnOptions()
	connOpts.Logger = logger

	newChat := func() *chat.Session {
		return chat.New(chat.Config{
			Endpoint:       origin.ChatSocket(),
			History:        hc,
			Factory:        client.Factory(connOpts),
			Logger:         logger,
			StatusTTL:      cfg.Chat.StatusTTL,
			HistoryTimeout: cfg.Chat.HistoryTimeout,
		})
	}

	screenCfg := screen.Config{
		Endpoint: origin.ScreenSocket,
		Factory:  client.Factory(connOpts),
		Logger:   logger,
	}
	if cfg.Screen.Transport == config.TransportPoll {
		screenCfg.Endpoint = origin.ScreenFrame
		screenCfg.Factory = client.PollerFactory(hc, cfg.Screen.PollInterval, logger)
	}
	viewer := screen.New(screenCfg)
	defer viewer.Close()

	logger.Info("console starting", "component", "app", "origin", origin.String(), "screen_transport", cfg.Screen.Transport)

	m := app.New(app.Options{
		Identity: chat.Identity{
			Name:      cfg.Identity.Name,
			AvatarURL: cfg.Identity.AvatarURL,
			Email:     cfg.Identity.Email,
		},
		Host:         origin.Host(),
		ScreenTarget: cfg.Screen.Target,
		NewChat:      newChat,
		Screen:       viewer,
		Reconnect:    cfg.Chat.Reconnect,
		Backoff:      cfg.Backoff(),
		Debug:        debugLog,
		HelpStyle:    f.style,
		Logger:       logger,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}
