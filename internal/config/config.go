// Package config loads the console and relay configuration from YAML or TOML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/authdash/console/internal/client"
)

// OriginEnv overrides Config.Origin when set.
const OriginEnv = "AUTHDASH_API_URL"

// Screen transports.
const (
	TransportWebSocket = "websocket"
	TransportPoll      = "poll"
)

type Config struct {
	Origin    string          `yaml:"origin" toml:"origin"`
	Token     string          `yaml:"token" toml:"token"`
	Identity  IdentityConfig  `yaml:"identity" toml:"identity"`
	Chat      ChatConfig      `yaml:"chat" toml:"chat"`
	Screen    ScreenConfig    `yaml:"screen" toml:"screen"`
	Transport TransportConfig `yaml:"transport" toml:"transport"`
	Reconnect ReconnectConfig `yaml:"reconnect" toml:"reconnect"`
	Relay     RelayConfig     `yaml:"relay" toml:"relay"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// IdentityConfig is the display identity attached to outgoing chat messages.
type IdentityConfig struct {
	Name      string `yaml:"name" toml:"name"`
	AvatarURL string `yaml:"avatar_url" toml:"avatar_url"`
	Email     string `yaml:"email" toml:"email"`
}

type ChatConfig struct {
	StatusTTL      time.Duration `yaml:"status_ttl" toml:"status_ttl"`
	HistoryTimeout time.Duration `yaml:"history_timeout" toml:"history_timeout"`
	// Reconnect replaces a failed chat session with a fresh one after a
	// backoff delay. Off by default.
	Reconnect bool `yaml:"reconnect" toml:"reconnect"`
}

type ScreenConfig struct {
	Target       string        `yaml:"target" toml:"target"`
	Transport    string        `yaml:"transport" toml:"transport"`
	PollInterval time.Duration `yaml:"poll_interval" toml:"poll_interval"`
}

type TransportConfig struct {
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" toml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout" toml:"write_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval" toml:"ping_interval"`
	PongTimeout      time.Duration `yaml:"pong_timeout" toml:"pong_timeout"`
}

type ReconnectConfig struct {
	BaseDelay time.Duration `yaml:"base_delay" toml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay" toml:"max_delay"`
}

type RelayConfig struct {
	Addr           string   `yaml:"addr" toml:"addr"`
	DBPath         string   `yaml:"db_path" toml:"db_path"`
	HistoryLimit   int      `yaml:"history_limit" toml:"history_limit"`
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
	MockTargets    []string `yaml:"mock_targets" toml:"mock_targets"`
	MockFPS        int      `yaml:"mock_fps" toml:"mock_fps"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	File   string `yaml:"file" toml:"file"`
}

func defaultConfig() *Config {
	return &Config{
		Origin: client.DefaultOrigin,
		Identity: IdentityConfig{
			Name: "admin",
		},
		Chat: ChatConfig{
			StatusTTL:      3 * time.Second,
			HistoryTimeout: 10 * time.Second,
		},
		Screen: ScreenConfig{
			Transport:    TransportWebSocket,
			PollInterval: client.DefaultPollInterval,
		},
		Transport: TransportConfig{
			HandshakeTimeout: 10 * time.Second,
			WriteTimeout:     10 * time.Second,
			PingInterval:     30 * time.Second,
			PongTimeout:      60 * time.Second,
		},
		Reconnect: ReconnectConfig{
			BaseDelay: client.ReconnectBaseDelay,
			MaxDelay:  client.ReconnectMaxDelay,
		},
		Relay: RelayConfig{
			Addr:         "127.0.0.1:8000",
			DBPath:       "relay.db",
			HistoryLimit: 100,
			MockFPS:      5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Default returns the built-in configuration with environment overrides
// applied.
func Default() *Config {
	cfg := defaultConfig()
	cfg.applyEnv()
	return cfg
}

// Load reads path, expands ${VAR} references, decodes it over the defaults
// (TOML for .toml files, YAML otherwise), applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaultConfig()
	expanded := expandEnvVars(string(data))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validating config: %w", err)
		}
		return cfg, nil
	}
	return cfg, err
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(OriginEnv)); v != "" {
		c.Origin = v
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value, or with the
// empty string when it is unset.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if _, err := client.ParseOrigin(c.Origin); err != nil {
		return fmt.Errorf("origin: %w", err)
	}

	switch c.Screen.Transport {
	case TransportWebSocket, TransportPoll:
	default:
		return fmt.Errorf("screen.transport must be %q or %q, got %q",
			TransportWebSocket, TransportPoll, c.Screen.Transport)
	}

	if c.Chat.StatusTTL <= 0 {
		return fmt.Errorf("chat.status_ttl must be positive")
	}
	if c.Screen.PollInterval <= 0 {
		return fmt.Errorf("screen.poll_interval must be positive")
	}
	if c.Transport.PingInterval >= c.Transport.PongTimeout {
		return fmt.Errorf("transport.ping_interval (%s) must be shorter than transport.pong_timeout (%s)",
			c.Transport.PingInterval, c.Transport.PongTimeout)
	}
	if c.Relay.HistoryLimit < 0 {
		return fmt.Errorf("relay.history_limit must not be negative")
	}
	if c.Relay.MockFPS <= 0 {
		return fmt.Errorf("relay.mock_fps must be positive")
	}

	return nil
}

// ParsedOrigin returns the validated origin. Call Validate first.
func (c *Config) ParsedOrigin() client.Origin {
	o, err := client.ParseOrigin(c.Origin)
	if err != nil {
		return client.MustParseOrigin(client.DefaultOrigin)
	}
	return o
}

// ConnOptions maps the transport section onto client.Options.
func (c *Config) ConnOptions() client.Options {
	return client.Options{
		HandshakeTimeout: c.Transport.HandshakeTimeout,
		WriteTimeout:     c.Transport.WriteTimeout,
		PingInterval:     c.Transport.PingInterval,
		PongTimeout:      c.Transport.PongTimeout,
	}
}

// Backoff returns the reconnect policy.
func (c *Config) Backoff() client.Backoff {
	return client.Backoff{Base: c.Reconnect.BaseDelay, Max: c.Reconnect.MaxDelay}
}
