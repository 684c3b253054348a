// Package ingest implements the music library ingestion pipeline: recursive
// tree walking under configured roots, blacklist exclusion, change
// classification against the persisted index, scan coordination with mutual
// exclusion, and a debounced filesystem watcher that feeds rescans.
package ingest

import (
	"context"
	"time"

	"github.com/mescon/Melodarr/internal/domain"
)

// Metadata is the per-file tag data produced by a MetadataExtractor.
type Metadata struct {
	Title       string
	Artist      string
	AlbumArtist string
	Album       string
	Genre       string
	Year        int
	TrackNumber int
	DiscNumber  int
}

// IndexedFile is the pipeline's view of a previously-ingested file.
type IndexedFile struct {
	Path          string
	ModTime       time.Time
	LastIndexedAt time.Time
}

// FileInfo describes one audio file discovered by the walker.
type FileInfo struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// LibraryStore is the persistence collaborator for indexed files.
type LibraryStore interface {
	// GetIndexedFile returns the index entry for a path, or nil when the
	// path has never been indexed.
	GetIndexedFile(path string) (*IndexedFile, error)
	// Upsert inserts or replaces the index entry for a path.
	Upsert(file FileInfo, meta Metadata, indexedAt time.Time) error
	// Touch refreshes the last-indexed stamp of an unchanged entry.
	Touch(path string, indexedAt time.Time) error
	// AllIndexedPaths returns every indexed path.
	AllIndexedPaths() ([]string, error)
	// RemovePaths deletes entries and returns how many were removed.
	RemovePaths(paths []string) (int64, error)
	// CountIndexed returns the number of indexed files.
	CountIndexed() (int64, error)
}

// MetadataExtractor reads tags from an audio file.
type MetadataExtractor interface {
	Extract(path string) (Metadata, error)
}

// ArtistEnrichmentClient fetches external metadata for artists that do not
// have it yet. Returns the number of artists updated.
type ArtistEnrichmentClient interface {
	FetchMissing(ctx context.Context, limit int) (int, error)
}

// ConfigSource supplies the scan inputs: the configured roots and the
// exclusion blacklist, both as absolute paths.
type ConfigSource interface {
	Roots() ([]string, error)
	Blacklist() ([]string, error)
}

// ScanRecorder persists scan history rows. Implemented by the database
// repository; a no-op implementation is acceptable in tests.
type ScanRecorder interface {
	CreateScanRecord(scanID, trigger string, startedAt time.Time) error
	CompleteScanRecord(scanID string, summary domain.ScanSummaryEventData, completedAt time.Time) error
	FailScanRecord(scanID, errMsg string, completedAt time.Time) error
}
