package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vibescape/vibescape-backend/internal/domain/catalog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.loadFile(filepath.Join(t.TempDir(), "absent.toml"), false); err != nil {
		t.Fatalf("optional missing file should be ignored: %v", err)
	}
	if err := cfg.validate(); err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}
	if cfg.Output != OutputBrowser || cfg.Port != "3030" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Catalog.RefreshInterval != catalog.DefaultRefreshInterval {
		t.Errorf("RefreshInterval = %v, want %v", cfg.Catalog.RefreshInterval, catalog.DefaultRefreshInterval)
	}
}

func TestLoadConfigExplicitFileMustExist(t *testing.T) {
	_, err := loadConfig([]string{"-config", filepath.Join(t.TempDir(), "absent.toml")})
	if err == nil {
		t.Fatal("expected error for explicit missing config file")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
port = "8080"
output = "MPD"
jwt_secret = "from-file"
debug = true

[mpd]
host = "speaker.local"
port = 6601
media_base = "http://192.168.1.10:8080/"

[catalog]
url = "http://catalog.example.com/"
refresh_interval = "30s"

[emotion]
scan_delay = "1500ms"
`)

	cfg, err := loadConfig([]string{"-config", path})
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"port", cfg.Port, "8080"},
		{"output", cfg.Output, OutputMPD},
		{"jwt secret", cfg.JWTSecret, "from-file"},
		{"debug", cfg.Debug, true},
		{"mpd host", cfg.MPD.Host, "speaker.local"},
		{"mpd port", cfg.MPD.Port, 6601},
		{"media base", cfg.MPD.MediaBase, "http://192.168.1.10:8080/"},
		{"catalog url", cfg.Catalog.URL, "http://catalog.example.com"},
		{"refresh interval", cfg.Catalog.RefreshInterval, 30 * time.Second},
		{"fetch timeout", cfg.Catalog.Timeout, catalog.DefaultFetchTimeout},
		{"scan delay", cfg.Emotion.ScanDelay, 1500 * time.Millisecond},
		{"data dir", cfg.DataDir, "data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
port = "8080"
debug = true

[mpd]
host = "speaker.local"
`)

	cfg, err := loadConfig([]string{"-config", path, "-port", "9090", "-debug=false"})
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want flag value 9090", cfg.Port)
	}
	if cfg.Debug {
		t.Error("explicit -debug=false should win over the file")
	}
	if cfg.MPD.Host != "speaker.local" {
		t.Errorf("unset flag should keep file value, got %q", cfg.MPD.Host)
	}
}

func TestLoadConfigRejectsUnknownOutput(t *testing.T) {
	path := writeConfig(t, `output = "bluetooth"`)
	if _, err := loadConfig([]string{"-config", path}); err == nil {
		t.Error("expected error for unknown output")
	}
}
