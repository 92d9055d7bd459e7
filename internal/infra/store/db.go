// Package store provides the SQLite persistence layer for songs, users,
// play history, favourites and playlists.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/vibescape/vibescape-backend/internal/domain/account"
	"github.com/vibescape/vibescape-backend/internal/domain/catalog"
	"github.com/vibescape/vibescape-backend/internal/domain/history"
	"github.com/vibescape/vibescape-backend/internal/domain/library"
)

var (
	_ catalog.Provider   = (*DB)(nil)
	_ account.Repository = (*DB)(nil)
	_ history.Repository = (*DB)(nil)
	_ library.Repository = (*DB)(nil)
)

const (
	// CurrentSchemaVersion is the current database schema version.
	CurrentSchemaVersion = "1"

	// DefaultDBPath is the default path for the database.
	DefaultDBPath = "data/vibescape.db"
)

// errNotOpen is returned when the database is used before Open.
var errNotOpen = errors.New("database not open")

// Stats summarises the database contents.
type Stats struct {
	Songs         int    `json:"songs"`
	Users         int    `json:"users"`
	HistoryRows   int    `json:"historyRows"`
	SchemaVersion string `json:"schemaVersion"`
}

// DB is the SQLite database.
type DB struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewDB creates a new database instance.
func NewDB(path string) *DB {
	if path == "" {
		path = DefaultDBPath
	}
	return &DB{
		path: path,
		now:  time.Now,
	}
}

// Open opens the database and initializes the schema.
func (d *DB) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", d.path+"?_journal=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	d.db = db

	if err := d.initSchema(); err != nil {
		d.db.Close()
		d.db = nil
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info().Str("path", d.path).Msg("Database opened")
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		err := d.db.Close()
		d.db = nil
		return err
	}
	return nil
}

func (d *DB) conn() (*sql.DB, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.db == nil {
		return nil, errNotOpen
	}
	return d.db, nil
}

func (d *DB) initSchema() error {
	currentVersion := d.getSchemaVersion()

	if currentVersion == "" {
		if err := d.createSchema(); err != nil {
			return err
		}
		return d.setMeta("schema_version", CurrentSchemaVersion)
	}

	if currentVersion != CurrentSchemaVersion {
		log.Info().
			Str("current", currentVersion).
			Str("target", CurrentSchemaVersion).
			Msg("Migrating database schema")
		return d.setMeta("schema_version", CurrentSchemaVersion)
	}

	return nil
}

func (d *DB) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS songs (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL UNIQUE,
		artist TEXT NOT NULL DEFAULT '',
		genre TEXT NOT NULL DEFAULT '',
		emotion TEXT NOT NULL DEFAULT '',
		file TEXT NOT NULL,
		art TEXT NOT NULL,
		artist_art TEXT NOT NULL,
		upload_date TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		reset_token_hash TEXT,
		reset_expires TEXT,
		created_at TEXT NOT NULL
	);

	-- Play history, one row per recorded play
	CREATE TABLE IF NOT EXISTS history (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		listener TEXT NOT NULL,
		title TEXT NOT NULL,
		played_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS favourites (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		listener TEXT NOT NULL,
		title TEXT NOT NULL,
		UNIQUE (listener, title)
	);

	CREATE TABLE IF NOT EXISTS playlist_items (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		listener TEXT NOT NULL,
		name TEXT NOT NULL,
		title TEXT NOT NULL,
		UNIQUE (listener, name, title)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_songs_artist ON songs(artist COLLATE NOCASE);
	CREATE INDEX IF NOT EXISTS idx_songs_emotion ON songs(emotion);
	CREATE INDEX IF NOT EXISTS idx_history_listener ON history(listener, seq DESC);
	CREATE INDEX IF NOT EXISTS idx_users_reset ON users(reset_token_hash);
	`

	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Info().Msg("Database schema created")
	return nil
}

func (d *DB) getSchemaVersion() string {
	var version string
	err := d.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&version)
	if err != nil {
		return ""
	}
	return version
}

func (d *DB) setMeta(key, value string) error {
	now := d.now().Format(time.RFC3339)
	_, err := d.db.Exec(`
		INSERT INTO meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, now)
	return err
}

func (d *DB) getMeta(key string) (string, error) {
	var value string
	err := d.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// Stats returns row counts and the schema version.
func (d *DB) Stats(ctx context.Context) (*Stats, error) {
	db, err := d.conn()
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	counts := []struct {
		table string
		dest  *int
	}{
		{"songs", &stats.Songs},
		{"users", &stats.Users},
		{"history", &stats.HistoryRows},
	}
	for _, c := range counts {
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}

	stats.SchemaVersion, _ = d.getMeta("schema_version")
	return stats, nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// timeLayout is fixed width so stored timestamps compare as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
