package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worldsim.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
[world]
name = "arena"
tick_rate = "20ms"
workers = 4

[snapshot]
keep = 3

[logging]
format = "json"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.World.Name != "arena" || cfg.World.TickRate != 20*time.Millisecond || cfg.World.Workers != 4 {
		t.Errorf("unexpected world section: %+v", cfg.World)
	}
	if cfg.Snapshot.Keep != 3 || cfg.Snapshot.Interval != 5*time.Minute {
		t.Errorf("expected keep overridden and interval defaulted, got %+v", cfg.Snapshot)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "info" {
		t.Errorf("unexpected logging section: %+v", cfg.Logging)
	}
	if cfg.Database.Enabled {
		t.Error("expected database disabled by default")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero tick", "[world]\ntick_rate = \"0s\"\n"},
		{"negative workers", "[world]\nworkers = -1\n"},
		{"syntax", "[world\n"},
		{"profile mode", "[profiling]\nmode = \"heap\"\n"},
	}
	for _, tt := range tests {
		if _, err := Load(writeConfig(t, tt.body)); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}
