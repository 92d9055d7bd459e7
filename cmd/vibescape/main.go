// Package main is the entry point for the VibeScape backend.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vibescape/vibescape-backend/internal/domain/account"
	"github.com/vibescape/vibescape-backend/internal/domain/catalog"
	"github.com/vibescape/vibescape-backend/internal/domain/emotion"
	"github.com/vibescape/vibescape-backend/internal/domain/history"
	"github.com/vibescape/vibescape-backend/internal/domain/library"
	"github.com/vibescape/vibescape-backend/internal/domain/playback"
	"github.com/vibescape/vibescape-backend/internal/domain/session"
	"github.com/vibescape/vibescape-backend/internal/infra/catalogapi"
	"github.com/vibescape/vibescape-backend/internal/infra/mpd"
	"github.com/vibescape/vibescape-backend/internal/infra/store"
	"github.com/vibescape/vibescape-backend/internal/transport/rest"
	"github.com/vibescape/vibescape-backend/internal/transport/socketio"
	"github.com/vibescape/vibescape-backend/internal/version"
)

// houseListener records plays from the shared speaker session.
var houseListener = history.GuestListener("house")

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Print startup banner
	versionInfo := version.GetInfo()
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msgf("  %s", versionInfo.String())
	log.Info().Msg("  Emotion-Aware Music Player Backend")
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().
		Str("port", cfg.Port).
		Str("output", cfg.Output).
		Str("data_dir", cfg.DataDir).
		Str("public_dir", cfg.PublicDir).
		Str("catalog_url", cfg.Catalog.URL).
		Str("emotion_url", cfg.Emotion.URL).
		Dur("refresh_interval", cfg.Catalog.RefreshInterval).
		Msg("Configuration")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open database
	db := store.NewDB(filepath.Join(cfg.DataDir, "vibescape.db"))
	if err := db.Open(); err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	// Create services
	secret := cfg.JWTSecret
	if secret == "" {
		secret = randomSecret()
		log.Warn().Msg("No JWT secret configured, login tokens will not survive a restart")
	}
	accounts := account.NewService(db, []byte(secret), account.WithBaseURL(cfg.BaseURL))
	hist := history.NewStore(history.SplitRepository{
		Guests: history.NewMemoryRepository(),
		Users:  db,
	})
	lib := library.NewService(db)
	detector := newDetector(cfg)

	// Catalog source
	var provider catalog.Provider = db
	if cfg.Catalog.URL != "" {
		client, err := catalogapi.New(cfg.Catalog.URL, catalogapi.WithTimeout(cfg.Catalog.Timeout))
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid catalog URL")
		}
		provider = client
	}
	refresher := catalog.NewRefresher(provider,
		catalog.WithRefreshInterval(cfg.Catalog.RefreshInterval),
		catalog.WithFetchTimeout(cfg.Catalog.Timeout),
	)
	registry := session.NewRegistry()
	refresher.OnUpdate(func(songs []catalog.Song) {
		registry.SetCatalog(ctx, songs)
	})
	refresher.OnFailure(func(err error) {
		registry.Notify(ctx, session.CatalogUnavailable)
	})

	socketOpts := []socketio.Option{
		socketio.WithHistory(hist),
		socketio.WithTokens(accounts),
		socketio.WithLibrary(lib),
		socketio.WithDetector(detector),
		socketio.WithMaxSessions(cfg.MaxSessions),
	}

	// House speaker mode
	var (
		socketServer *socketio.Server
		mpdClient    *mpd.Client
		house        *session.Session
		startSink    = func() {}
	)
	if cfg.Output == OutputMPD {
		mpdClient = mpd.NewClient(cfg.MPD.Host, cfg.MPD.Port, cfg.MPD.Password)
		if err := mpdClient.Connect(); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to MPD")
		}
		defer mpdClient.Close()

		if err := mpdClient.Ping(); err != nil {
			log.Fatal().Err(err).Msg("MPD ping failed")
		}
		log.Info().Msg("MPD connection verified")
		if cfg.MPD.MediaBase == "" {
			log.Warn().Msg("No media base set, MPD must resolve song paths itself")
		}

		sink := mpd.NewSink(mpdClient, mpd.WithMediaBase(cfg.MPD.MediaBase))
		house = session.New("house", sink,
			session.WithHistory(hist, houseListener),
			session.WithDetector(detector),
			session.WithPublisher(func(u playback.Update) {
				socketServer.Broadcast(u)
			}),
		)
		socketOpts = append(socketOpts, socketio.WithHouseSession(house))

		changes, err := mpdClient.Watch(ctx, "player")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to start MPD watcher")
		}
		defer house.Close()

		startSink = func() {
			go sink.Run(ctx, changes, mpd.DefaultProgressInterval, func(ev playback.SinkEvent) {
				if _, err := house.HandleSinkEvent(ctx, ev); err != nil && !errors.Is(err, session.ErrClosed) {
					log.Warn().Err(err).Str("event", string(ev.Type)).Msg("Failed to apply MPD event")
				}
			})
		}
	}

	// Create Socket.io server
	socketServer, err = socketio.NewServer(registry, socketOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Socket.io server")
	}
	defer socketServer.Close()

	if house != nil {
		house.Start(ctx)
		registry.Add(ctx, house)
		startSink()
	}

	go refresher.Start(ctx)
	defer refresher.Stop()

	// Setup HTTP server
	api := rest.NewHandler(db, accounts, hist, lib, cfg.PublicDir,
		rest.WithCatalogChanged(func() {
			go refresher.Refresh(ctx)
		}),
	)

	mux := http.NewServeMux()
	mux.Handle("/socket.io/", socketServer)
	mux.Handle("/api/", api)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"status":  "ok",
			"output":  cfg.Output,
			"clients": socketServer.ClientCount(),
		}
		stats, err := db.Stats(r.Context())
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "error", "database": err.Error()})
			return
		}
		resp["database"] = stats
		if mpdClient != nil {
			if err := mpdClient.Ping(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "error", "mpd": "disconnected"})
				return
			}
			resp["mpd"] = "connected"
		}
		if _, at := refresher.Songs(); !at.IsZero() {
			resp["catalogFetchedAt"] = at
		}
		json.NewEncoder(w).Encode(resp)
	})

	// Version endpoint
	mux.HandleFunc("/api/v1/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(version.GetInfo())
	})

	// Web client and uploaded media
	log.Info().Str("dir", cfg.PublicDir).Msg("Serving static files")
	mux.Handle("/", staticHandler(cfg.PublicDir))

	// Start HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info().Msg("Shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	log.Info().Str("addr", ":"+cfg.Port).Msg("HTTP server listening")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("HTTP server error")
	}

	log.Info().Msg("Server stopped")
}

func newDetector(cfg *Config) emotion.Detector {
	if cfg.Emotion.URL != "" {
		log.Info().Str("url", cfg.Emotion.URL).Msg("Using facial expression service")
		return emotion.NewHTTPDetector(cfg.Emotion.URL)
	}
	return emotion.NewSimulatedDetector(cfg.Emotion.ScanDelay)
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		log.Fatal().Err(err).Msg("Failed to generate JWT secret")
	}
	return hex.EncodeToString(b)
}

// staticHandler serves dir and falls back to index.html for unknown paths,
// so client-side routes load the web client.
func staticHandler(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		if _, err := os.Stat(name); os.IsNotExist(err) {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		fs.ServeHTTP(w, r)
	})
}
