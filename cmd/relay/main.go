// Command relay serves the dashboard's realtime endpoints for local
// development: chat with SQLite-backed history and the screen view and push
// sockets. With -mock it also runs synthetic screen agents.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/authdash/console/internal/config"
	"github.com/authdash/console/internal/logging"
	"github.com/authdash/console/internal/mock"
	"github.com/authdash/console/internal/relay"
	"github.com/authdash/console/internal/store"
)

func main() {
	configPath := flag.String("config", "relay.yaml", "Path to config file (yaml or toml)")
	addr := flag.String("addr", "", "Override listen address")
	dbPath := flag.String("db", "", "Override chat history database path")
	mockMode := flag.Bool("mock", false, "Publish synthetic screen frames")
	noColor := flag.Bool("no-color", false, "Disable colored log output")
	flag.Parse()

	if err := run(*configPath, *addr, *dbPath, *mockMode, *noColor); err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addr, dbPath string, mockMode, noColor bool) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if addr != "" {
		cfg.Relay.Addr = addr
	}
	if dbPath != "" {
		cfg.Relay.DBPath = dbPath
	}

	out := os.Stdout
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		out = f
		noColor = true
	}
	logger := logging.New(cfg.Logging, out, noColor)

	st, err := store.NewSQLiteStore(cfg.Relay.DBPath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	chatHub := relay.NewBroadcaster(st, 0, logger)
	defer chatHub.Close()
	screens := relay.NewScreenHub(logger)

	server := relay.NewServer(relay.Options{
		Chat:           chatHub,
		Screens:        screens,
		Store:          st,
		HistoryLimit:   cfg.Relay.HistoryLimit,
		AllowedOrigins: cfg.Relay.AllowedOrigins,
		Token:          cfg.Token,
		Logger:         logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if mockMode {
		targets := cfg.Relay.MockTargets
		if len(targets) == 0 {
			targets = []string{"1"}
		}
		mock.NewGenerator(screens, targets, cfg.Relay.MockFPS, nil, logger).Start(ctx)
	}

	if err := relay.Run(ctx, cfg.Relay.Addr, server.Handler(), logger); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	logger.Info("relay stopped")
	return nil
}
