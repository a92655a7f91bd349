package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Notification modes.
const (
	ModeSingleLatest = "single_latest"
	ModeQueue        = "queue"
	ModeMultiple     = "multiple"
)

// Config represents the global ~/.chatsync/config.toml.
type Config struct {
	DefaultProfile string        `toml:"default_profile"`
	Server         Server        `toml:"server"`
	Ack            Ack           `toml:"ack"`
	Notifications  Notifications `toml:"notifications"`
	Live           Live          `toml:"live"`
	Metrics        Metrics       `toml:"metrics"`
}

// Server holds the chat server endpoint and credentials.
type Server struct {
	BaseURL string `toml:"base_url"`
	WSPath  string `toml:"ws_path"`
	Token   string `toml:"token"`
	UserID  string `toml:"user_id"`
}

// Ack holds acknowledgment timeouts for outbound sends.
type Ack struct {
	TextTimeoutMs int `toml:"text_timeout_ms"`
	FileTimeoutMs int `toml:"file_timeout_ms"`
}

// Notifications holds the toast surfacing policy.
type Notifications struct {
	Enabled         bool   `toml:"enabled"`
	Mode            string `toml:"mode"`
	Grouping        bool   `toml:"grouping"`
	Position        string `toml:"position"`
	DurationMs      int    `toml:"duration_ms"`
	MaxVisible      int    `toml:"max_visible"`
	Sound           bool   `toml:"sound"`
	TransitionGapMs int    `toml:"transition_gap_ms"`
	System          bool   `toml:"system"`
}

// Live holds live channel tuning.
type Live struct {
	HeartbeatMs      int `toml:"heartbeat_ms"`
	ReconnectBaseMs  int `toml:"reconnect_base_ms"`
	ReconnectMaxMs   int `toml:"reconnect_max_ms"`
	HistoryPageLimit int `toml:"history_page_limit"`
}

// Metrics configures the optional prometheus listener.
type Metrics struct {
	Listen string `toml:"listen"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DefaultProfile: "main",
		Server: Server{
			BaseURL: "http://localhost:8000",
			WSPath:  "/ws",
		},
		Ack: Ack{
			TextTimeoutMs: 3000,
			FileTimeoutMs: 5000,
		},
		Notifications: Notifications{
			Enabled:         true,
			Mode:            ModeSingleLatest,
			Grouping:        true,
			Position:        "bottom-right",
			DurationMs:      4500,
			MaxVisible:      5,
			Sound:           true,
			TransitionGapMs: 300,
			System:          true,
		},
		Live: Live{
			HeartbeatMs:      25000,
			ReconnectBaseMs:  1000,
			ReconnectMaxMs:   30000,
			HistoryPageLimit: 200,
		},
	}
}

// Load reads config from the given path on top of Default. Returns error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

// LoadOrDefault reads config from path, falling back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	return cfg, err
}

// Normalize replaces unknown or out-of-range values with defaults.
// DurationMs of zero is kept: it means toasts stay until closed.
func (c *Config) Normalize() {
	d := Default()
	switch c.Notifications.Mode {
	case ModeSingleLatest, ModeQueue, ModeMultiple:
	default:
		c.Notifications.Mode = ModeSingleLatest
	}
	if c.Notifications.MaxVisible <= 0 {
		c.Notifications.MaxVisible = d.Notifications.MaxVisible
	}
	if c.Notifications.DurationMs < 0 {
		c.Notifications.DurationMs = d.Notifications.DurationMs
	}
	if c.Notifications.TransitionGapMs < 0 {
		c.Notifications.TransitionGapMs = d.Notifications.TransitionGapMs
	}
	if c.Ack.TextTimeoutMs <= 0 {
		c.Ack.TextTimeoutMs = d.Ack.TextTimeoutMs
	}
	if c.Ack.FileTimeoutMs <= 0 {
		c.Ack.FileTimeoutMs = d.Ack.FileTimeoutMs
	}
	if c.Live.HeartbeatMs <= 0 {
		c.Live.HeartbeatMs = d.Live.HeartbeatMs
	}
	if c.Live.ReconnectBaseMs <= 0 {
		c.Live.ReconnectBaseMs = d.Live.ReconnectBaseMs
	}
	if c.Live.ReconnectMaxMs < c.Live.ReconnectBaseMs {
		c.Live.ReconnectMaxMs = max(d.Live.ReconnectMaxMs, c.Live.ReconnectBaseMs)
	}
	if c.Live.HistoryPageLimit <= 0 {
		c.Live.HistoryPageLimit = d.Live.HistoryPageLimit
	}
	if c.Server.WSPath == "" {
		c.Server.WSPath = d.Server.WSPath
	}
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// TextTimeout is the ack timeout for text, sticker and reaction sends.
func (a Ack) TextTimeout() time.Duration { return ms(a.TextTimeoutMs) }

// FileTimeout is the ack timeout for file sends.
func (a Ack) FileTimeout() time.Duration { return ms(a.FileTimeoutMs) }

// Duration is the toast auto-dismiss delay; zero means manual close.
func (n Notifications) Duration() time.Duration { return ms(n.DurationMs) }

// TransitionGap is the delay between dismissing one toast and showing the next.
func (n Notifications) TransitionGap() time.Duration { return ms(n.TransitionGapMs) }

// Heartbeat is the ping interval on the live channel.
func (l Live) Heartbeat() time.Duration { return ms(l.HeartbeatMs) }

// ReconnectBase is the initial reconnect delay.
func (l Live) ReconnectBase() time.Duration { return ms(l.ReconnectBaseMs) }

// ReconnectMax caps the reconnect delay.
func (l Live) ReconnectMax() time.Duration { return ms(l.ReconnectMaxMs) }
