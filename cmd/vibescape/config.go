package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/vibescape/vibescape-backend/internal/domain/catalog"
	"github.com/vibescape/vibescape-backend/internal/domain/emotion"
)

// Output modes.
const (
	OutputBrowser = "browser"
	OutputMPD     = "mpd"
)

const defaultConfigPath = "config.toml"

// Config is the server configuration.
type Config struct {
	Port        string `koanf:"port"`
	DataDir     string `koanf:"data_dir"`
	PublicDir   string `koanf:"public_dir"`
	BaseURL     string `koanf:"base_url"`
	JWTSecret   string `koanf:"jwt_secret"`
	Debug       bool   `koanf:"debug"`
	Output      string `koanf:"output"` // "browser" or "mpd"
	MaxSessions int    `koanf:"max_sessions"`

	MPD     MPDConfig     `koanf:"mpd"`
	Catalog CatalogConfig `koanf:"catalog"`
	Emotion EmotionConfig `koanf:"emotion"`
}

// MPDConfig holds the house-speaker settings.
type MPDConfig struct {
	Host      string `koanf:"host"`
	Port      int    `koanf:"port"`
	Password  string `koanf:"password"`
	MediaBase string `koanf:"media_base"` // URL MPD uses to fetch uploaded songs
}

// CatalogConfig selects and tunes the catalog source.
type CatalogConfig struct {
	URL             string        `koanf:"url"` // remote VibeScape server, empty means local database
	RefreshInterval time.Duration `koanf:"refresh_interval"`
	Timeout         time.Duration `koanf:"timeout"`
}

// EmotionConfig selects the emotion detector.
type EmotionConfig struct {
	URL       string        `koanf:"url"` // FER service, empty means simulated
	ScanDelay time.Duration `koanf:"scan_delay"`
}

func defaultConfig() *Config {
	return &Config{
		Port:        "3030",
		DataDir:     "data",
		PublicDir:   "public",
		BaseURL:     "http://localhost:3030",
		Output:      OutputBrowser,
		MaxSessions: 64,
		MPD: MPDConfig{
			Host: "localhost",
			Port: 6600,
		},
		Catalog: CatalogConfig{
			RefreshInterval: catalog.DefaultRefreshInterval,
			Timeout:         catalog.DefaultFetchTimeout,
		},
		Emotion: EmotionConfig{
			ScanDelay: emotion.DefaultScanDelay,
		},
	}
}

// loadConfig parses args, loads the config file and applies the flags that
// were set explicitly on top of it.
func loadConfig(args []string) (*Config, error) {
	cfg := defaultConfig()
	fs := flag.NewFlagSet("vibescape", flag.ContinueOnError)

	configPath := fs.String("config", defaultConfigPath, "TOML config file")
	port := fs.String("port", cfg.Port, "HTTP server port")
	dataDir := fs.String("data-dir", cfg.DataDir, "Directory for the SQLite database")
	publicDir := fs.String("public", cfg.PublicDir, "Directory with the web client and uploads")
	baseURL := fs.String("base-url", cfg.BaseURL, "Public origin used in reset links")
	jwtSecret := fs.String("jwt-secret", "", "Secret for signing login tokens")
	debug := fs.Bool("debug", cfg.Debug, "Enable debug logging")
	output := fs.String("output", cfg.Output, "Audio output: browser or mpd")
	maxSessions := fs.Int("max-sessions", cfg.MaxSessions, "Maximum concurrent browser sessions")
	mpdHost := fs.String("mpd-host", cfg.MPD.Host, "MPD host")
	mpdPort := fs.Int("mpd-port", cfg.MPD.Port, "MPD port")
	mpdPassword := fs.String("mpd-password", "", "MPD password")
	mediaBase := fs.String("media-base", "", "URL MPD uses to fetch songs")
	catalogURL := fs.String("catalog-url", "", "Remote catalog server (empty for local database)")
	emotionURL := fs.String("emotion-url", "", "Facial expression service (empty for simulated scans)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	if err := cfg.loadFile(*configPath, explicit["config"]); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "data-dir":
			cfg.DataDir = *dataDir
		case "public":
			cfg.PublicDir = *publicDir
		case "base-url":
			cfg.BaseURL = *baseURL
		case "jwt-secret":
			cfg.JWTSecret = *jwtSecret
		case "debug":
			cfg.Debug = *debug
		case "output":
			cfg.Output = *output
		case "max-sessions":
			cfg.MaxSessions = *maxSessions
		case "mpd-host":
			cfg.MPD.Host = *mpdHost
		case "mpd-port":
			cfg.MPD.Port = *mpdPort
		case "mpd-password":
			cfg.MPD.Password = *mpdPassword
		case "media-base":
			cfg.MPD.MediaBase = *mediaBase
		case "catalog-url":
			cfg.Catalog.URL = *catalogURL
		case "emotion-url":
			cfg.Emotion.URL = *emotionURL
		}
	})

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile merges a TOML file into cfg. A missing file is only an error when
// its path was given explicitly.
func (c *Config) loadFile(path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("config file: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	if err := k.Unmarshal("", c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	c.Output = strings.ToLower(strings.TrimSpace(c.Output))
	switch c.Output {
	case OutputBrowser, OutputMPD:
	default:
		return fmt.Errorf("unknown output %q, want %q or %q", c.Output, OutputBrowser, OutputMPD)
	}
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.Catalog.RefreshInterval <= 0 {
		c.Catalog.RefreshInterval = catalog.DefaultRefreshInterval
	}
	if c.Catalog.Timeout <= 0 {
		c.Catalog.Timeout = catalog.DefaultFetchTimeout
	}
	if c.Emotion.ScanDelay < 0 {
		c.Emotion.ScanDelay = emotion.DefaultScanDelay
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	c.Catalog.URL = strings.TrimSuffix(c.Catalog.URL, "/")
	return nil
}
