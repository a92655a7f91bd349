package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultProfile = "work"
	cfg.Notifications.Mode = ModeQueue
	cfg.Server.Token = "secret"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
	if loaded.Notifications.Mode != ModeQueue {
		t.Errorf("Mode = %q, want %q", loaded.Notifications.Mode, ModeQueue)
	}
	if loaded.Server.Token != "secret" {
		t.Errorf("Token = %q, want secret", loaded.Server.Token)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoadOrDefaultMissing(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "none.toml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Notifications.Mode != ModeSingleLatest {
		t.Errorf("Mode = %q, want single_latest", cfg.Notifications.Mode)
	}
	if cfg.Ack.TextTimeout() != 3*time.Second || cfg.Ack.FileTimeout() != 5*time.Second {
		t.Errorf("ack timeouts = %v/%v, want 3s/5s", cfg.Ack.TextTimeout(), cfg.Ack.FileTimeout())
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := "[notifications]\nmode = \"loud\"\nduration_ms = 0\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Notifications.Mode != ModeSingleLatest {
		t.Errorf("unknown mode normalized to %q, want single_latest", cfg.Notifications.Mode)
	}
	if cfg.Notifications.Duration() != 0 {
		t.Errorf("Duration = %v, want 0 (manual close)", cfg.Notifications.Duration())
	}
	if cfg.Notifications.MaxVisible != 5 {
		t.Errorf("MaxVisible = %d, want 5", cfg.Notifications.MaxVisible)
	}
	if cfg.Live.ReconnectMax() != 30*time.Second {
		t.Errorf("ReconnectMax = %v, want 30s", cfg.Live.ReconnectMax())
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*Config)
		check func(*Config) bool
	}{
		{"max visible", func(c *Config) { c.Notifications.MaxVisible = -1 }, func(c *Config) bool { return c.Notifications.MaxVisible == 5 }},
		{"text timeout", func(c *Config) { c.Ack.TextTimeoutMs = 0 }, func(c *Config) bool { return c.Ack.TextTimeoutMs == 3000 }},
		{"reconnect max below base", func(c *Config) { c.Live.ReconnectBaseMs = 60000; c.Live.ReconnectMaxMs = 10 }, func(c *Config) bool { return c.Live.ReconnectMaxMs == 60000 }},
		{"ws path", func(c *Config) { c.Server.WSPath = "" }, func(c *Config) bool { return c.Server.WSPath == "/ws" }},
		{"multiple mode kept", func(c *Config) { c.Notifications.Mode = ModeMultiple }, func(c *Config) bool { return c.Notifications.Mode == ModeMultiple }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mut(cfg)
			cfg.Normalize()
			if !tt.check(cfg) {
				t.Errorf("unexpected config after Normalize: %+v", cfg)
			}
		})
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
