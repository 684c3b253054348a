package testutil

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mescon/Melodarr/internal/domain"
	_ "modernc.org/sqlite"
)

// NewTestDB creates an in-memory SQLite database with the Melodarr schema.
// Returns a database handle that should be closed by the caller.
func NewTestDB() (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}

	if err := initializeSchema(db); err != nil {
		_ = db.Close() // Ignore close error since we're already returning an error
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// initializeSchema creates all required tables for testing.
func initializeSchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	statements := []string{
		`CREATE TABLE library_roots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			profile_id TEXT NOT NULL DEFAULT 'default',
			path TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(profile_id, path)
		)`,
		`CREATE TABLE blacklist_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			profile_id TEXT NOT NULL DEFAULT 'default',
			path TEXT NOT NULL,
			reason TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(profile_id, path)
		)`,
		`CREATE TABLE tracks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL UNIQUE,
			artist TEXT NOT NULL DEFAULT '',
			album_artist TEXT NOT NULL DEFAULT '',
			album TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			genre TEXT NOT NULL DEFAULT '',
			year INTEGER NOT NULL DEFAULT 0,
			track_number INTEGER NOT NULL DEFAULT 0,
			disc_number INTEGER NOT NULL DEFAULT 0,
			size_bytes INTEGER NOT NULL DEFAULT 0,
			mod_time TIMESTAMP NOT NULL,
			last_indexed_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE artists (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			mbid TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT '',
			disambiguation TEXT NOT NULL DEFAULT '',
			track_count INTEGER NOT NULL DEFAULT 0,
			enriched_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE scans (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			scan_id TEXT NOT NULL UNIQUE,
			trigger_source TEXT NOT NULL DEFAULT 'manual',
			status TEXT NOT NULL DEFAULT 'running',
			new_count INTEGER NOT NULL DEFAULT 0,
			modified_count INTEGER NOT NULL DEFAULT 0,
			unchanged_count INTEGER NOT NULL DEFAULT 0,
			removed_count INTEGER NOT NULL DEFAULT 0,
			skipped_count INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			completed_at TIMESTAMP
		)`,
		`CREATE TABLE events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			aggregate_type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			event_data TEXT NOT NULL DEFAULT '{}',
			event_version INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX idx_events_aggregate ON events(aggregate_type, aggregate_id)`,
		`CREATE INDEX idx_events_type ON events(event_type)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return nil
}

// SeedEvent inserts a single event into the test database.
func SeedEvent(db *sql.DB, event domain.Event) (int64, error) {
	eventDataJSON, err := json.Marshal(event.EventData)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event data: %w", err)
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if event.EventVersion == 0 {
		event.EventVersion = 1
	}

	result, err := db.Exec(`
		INSERT INTO events (aggregate_type, aggregate_id, event_type, event_data, event_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, event.AggregateType, event.AggregateID, event.EventType, eventDataJSON, event.EventVersion, event.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted ID: %w", err)
	}
	return id, nil
}

// SeedTrack inserts a track row into the test database.
func SeedTrack(db *sql.DB, path, artist, album, title string, modTime time.Time) error {
	_, err := db.Exec(`
		INSERT INTO tracks (path, artist, album, title, mod_time, last_indexed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, path, artist, album, title,
		modTime.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// SeedLibraryRoot inserts a library root into the test database.
func SeedLibraryRoot(db *sql.DB, profileID, path string) error {
	_, err := db.Exec(`
		INSERT INTO library_roots (profile_id, path, enabled) VALUES (?, ?, 1)
	`, profileID, path)
	return err
}

// SeedBlacklistEntry inserts a blacklist entry into the test database.
func SeedBlacklistEntry(db *sql.DB, profileID, path string) error {
	_, err := db.Exec(`
		INSERT INTO blacklist_entries (profile_id, path) VALUES (?, ?)
	`, profileID, path)
	return err
}

// GetEventsByAggregate retrieves all events for a given aggregate ID.
func GetEventsByAggregate(db *sql.DB, aggregateID string) ([]domain.Event, error) {
	rows, err := db.Query(`
		SELECT id, aggregate_type, aggregate_id, event_type, event_data, event_version, created_at
		FROM events WHERE aggregate_id = ? ORDER BY id ASC
	`, aggregateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		var eventDataJSON string
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &eventDataJSON, &e.EventVersion, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(eventDataJSON), &e.EventData); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountEventsByType counts events of a given type.
func CountEventsByType(db *sql.DB, eventType domain.EventType) (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM events WHERE event_type = ?", eventType).Scan(&count)
	return count, err
}

// ClearAllTables removes all data from all tables.
func ClearAllTables(db *sql.DB) error {
	tables := []string{"events", "scans", "tracks", "artists", "library_roots", "blacklist_entries", "settings"}
	for _, table := range tables {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}
