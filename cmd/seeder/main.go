// Seeder populates a Melodarr database with demo data for UI and API
// development. Run it against a database the server has already migrated:
//
//	go run ./cmd/seeder -db ./config/melodarr.db
package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	dbPath := flag.String("db", "./melodarr.db", "Path to the Melodarr database")
	flag.Parse()

	db, err := sql.Open("sqlite3", *dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	fmt.Println("Seeding database...")

	// Seed library roots
	roots := []string{"/music/library", "/music/incoming"}
	for _, r := range roots {
		if _, err := db.Exec("INSERT OR IGNORE INTO library_roots (profile_id, path) VALUES ('default', ?)", r); err != nil {
			log.Printf("Failed to insert root: %v", err)
		}
	}

	// Seed blacklist
	if _, err := db.Exec("INSERT OR IGNORE INTO blacklist_entries (profile_id, path, reason) VALUES ('default', ?, ?)",
		"/music/incoming/unsorted", "not yet tagged"); err != nil {
		log.Printf("Failed to insert blacklist entry: %v", err)
	}

	// Seed tracks
	now := time.Now().UTC()
	tracks := []struct {
		Path        string
		Artist      string
		Album       string
		Title       string
		Genre       string
		Year        int
		TrackNumber int
		SizeBytes   int64
	}{
		{"/music/library/Kraftwerk/Autobahn/01 Autobahn.flac", "Kraftwerk", "Autobahn", "Autobahn", "Electronic", 1974, 1, 228_114_201},
		{"/music/library/Kraftwerk/Autobahn/02 Kometenmelodie 1.flac", "Kraftwerk", "Autobahn", "Kometenmelodie 1", "Electronic", 1974, 2, 61_002_387},
		{"/music/library/Miles Davis/Kind of Blue/01 So What.flac", "Miles Davis", "Kind of Blue", "So What", "Jazz", 1959, 1, 94_523_110},
		{"/music/library/Miles Davis/Kind of Blue/02 Freddie Freeloader.flac", "Miles Davis", "Kind of Blue", "Freddie Freeloader", "Jazz", 1959, 2, 98_771_045},
		{"/music/incoming/Various/single.mp3", "Unknown Artist", "", "single", "", 0, 0, 8_142_336},
	}
	for _, t := range tracks {
		_, err := db.Exec(`INSERT OR IGNORE INTO tracks
			(path, artist, album_artist, album, title, genre, year, track_number, size_bytes, mod_time, last_indexed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.Path, t.Artist, t.Artist, t.Album, t.Title, t.Genre, t.Year, t.TrackNumber, t.SizeBytes,
			now.Add(-72*time.Hour), now)
		if err != nil {
			log.Printf("Failed to insert track: %v", err)
		}
	}

	// Seed artists (aggregates the server normally maintains after a scan)
	artists := []struct {
		Name       string
		MBID       string
		Country    string
		TrackCount int
	}{
		{"Kraftwerk", "cb67438a-7f50-4f2b-a6f1-2bb2729fd538", "DE", 2},
		{"Miles Davis", "561d854a-6a28-4aa7-8c99-323e6ce46c2a", "US", 2},
		{"Unknown Artist", "", "", 1},
	}
	for _, a := range artists {
		enriched := interface{}(nil)
		if a.MBID != "" {
			enriched = now
		}
		_, err := db.Exec(`INSERT OR IGNORE INTO artists (name, mbid, country, track_count, enriched_at)
			VALUES (?, ?, ?, ?, ?)`, a.Name, a.MBID, a.Country, a.TrackCount, enriched)
		if err != nil {
			log.Printf("Failed to insert artist: %v", err)
		}
	}

	// Seed scan history
	scans := []struct {
		Trigger     string
		Status      string
		New         int
		Modified    int
		Unchanged   int
		Removed     int
		Skipped     int
		StartedAt   time.Time
		CompletedAt interface{}
	}{
		{"manual", "completed", 5, 0, 0, 0, 1, now.Add(-48 * time.Hour), now.Add(-48*time.Hour + 2*time.Minute)},
		{"scheduled", "completed", 0, 1, 4, 0, 1, now.Add(-24 * time.Hour), now.Add(-24*time.Hour + time.Minute)},
		{"watcher", "running", 0, 0, 0, 0, 0, now.Add(-30 * time.Second), nil},
	}
	for _, s := range scans {
		_, err := db.Exec(`INSERT INTO scans
			(scan_id, trigger_source, status, new_count, modified_count, unchanged_count, removed_count, skipped_count, started_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), s.Trigger, s.Status, s.New, s.Modified, s.Unchanged, s.Removed, s.Skipped,
			s.StartedAt, s.CompletedAt)
		if err != nil {
			log.Printf("Failed to insert scan: %v", err)
		}
	}

	// Seed a few events so the activity feed has content
	events := []struct {
		Type string
		Data map[string]interface{}
	}{
		{"ScanStarted", map[string]interface{}{"trigger": "manual", "roots": 2}},
		{"TrackAdded", map[string]interface{}{"path": "/music/library/Kraftwerk/Autobahn/01 Autobahn.flac"}},
		{"ScanCompleted", map[string]interface{}{"trigger": "manual", "new": 5, "modified": 0, "unchanged": 0, "removed": 0, "skipped": 1, "duration_ms": 120000}},
	}
	for _, e := range events {
		data, _ := json.Marshal(e.Data)
		_, err := db.Exec(`INSERT INTO events (aggregate_type, aggregate_id, event_type, event_data)
			VALUES ('scan', ?, ?, ?)`, uuid.New().String(), e.Type, string(data))
		if err != nil {
			log.Printf("Failed to insert event: %v", err)
		}
	}

	fmt.Println("Done.")
}
