package domain

import "time"

// Track is an indexed audio file in the library.
type Track struct {
	ID            int64     `json:"id"`
	Path          string    `json:"path"`
	Artist        string    `json:"artist"`
	AlbumArtist   string    `json:"album_artist,omitempty"`
	Album         string    `json:"album"`
	Title         string    `json:"title"`
	Genre         string    `json:"genre,omitempty"`
	Year          int       `json:"year,omitempty"`
	TrackNumber   int       `json:"track_number,omitempty"`
	DiscNumber    int       `json:"disc_number,omitempty"`
	SizeBytes     int64     `json:"size_bytes"`
	ModTime       time.Time `json:"mod_time"`
	LastIndexedAt time.Time `json:"last_indexed_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LibraryRoot is a top-level directory registered for scanning.
type LibraryRoot struct {
	ID        int64     `json:"id"`
	ProfileID string    `json:"profile_id"`
	Path      string    `json:"path"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// BlacklistEntry is a directory subtree excluded from scanning.
// Exclusion is by path segment prefix, not substring.
type BlacklistEntry struct {
	ID        int64     `json:"id"`
	ProfileID string    `json:"profile_id"`
	Path      string    `json:"path"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ScanStatus is the lifecycle state of a scan run.
type ScanStatus string

const (
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusFailed    ScanStatus = "failed"
)

// ScanRecord is the persisted history row for one scan run.
type ScanRecord struct {
	ID          int64      `json:"id"`
	ScanID      string     `json:"scan_id"`
	Trigger     string     `json:"trigger"`
	Status      ScanStatus `json:"status"`
	New         int64      `json:"new"`
	Modified    int64      `json:"modified"`
	Unchanged   int64      `json:"unchanged"`
	Removed     int64      `json:"removed"`
	Skipped     int64      `json:"skipped"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NotificationConfig is a persisted notification channel. Config holds
// provider-specific settings as JSON and Events lists the event types
// this channel fires on.
type NotificationConfig struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	ProviderType    string    `json:"provider_type"`
	Config          string    `json:"config"`
	Events          []string  `json:"events"`
	Enabled         bool      `json:"enabled"`
	ThrottleSeconds int       `json:"throttle_seconds"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Artist is an aggregate over indexed tracks, enriched asynchronously
// with external identifiers.
type Artist struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	MBID           string     `json:"mbid,omitempty"`
	Country        string     `json:"country,omitempty"`
	Disambiguation string     `json:"disambiguation,omitempty"`
	TrackCount     int64      `json:"track_count"`
	EnrichedAt     *time.Time `json:"enriched_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
