package ingest

import (
	"fmt"
	"time"
)

// Change is the classification of one discovered file against the index.
type Change int

const (
	// ChangeNew means no index entry exists for the path.
	ChangeNew Change = iota
	// ChangeModified means the on-disk mtime is strictly newer than the
	// entry's recorded modification time.
	ChangeModified
	// ChangeUnchanged means the index entry is current.
	ChangeUnchanged
)

func (c Change) String() string {
	switch c {
	case ChangeNew:
		return "new"
	case ChangeModified:
		return "modified"
	default:
		return "unchanged"
	}
}

// Classifier decides per file whether extraction and persistence are needed,
// and drives the metadata extractor accordingly.
type Classifier struct {
	store     LibraryStore
	extractor MetadataExtractor
}

// NewClassifier creates a classifier over the given store and extractor.
func NewClassifier(store LibraryStore, extractor MetadataExtractor) *Classifier {
	return &Classifier{store: store, extractor: extractor}
}

// Classify determines whether the file is new, modified or unchanged.
func (c *Classifier) Classify(file FileInfo) (Change, error) {
	entry, err := c.store.GetIndexedFile(file.Path)
	if err != nil {
		return ChangeUnchanged, fmt.Errorf("failed to look up index entry for %s: %w", file.Path, err)
	}
	if entry == nil {
		return ChangeNew, nil
	}
	if file.ModTime.After(entry.ModTime) {
		return ChangeModified, nil
	}
	return ChangeUnchanged, nil
}

// Process classifies the file and, for new or modified files, extracts
// metadata and upserts the index entry. Unchanged files get their
// last-indexed stamp refreshed so removal detection sees them as observed.
// An extraction failure leaves the file unindexed; it is retried on the
// next scan.
func (c *Classifier) Process(file FileInfo, indexedAt time.Time) (Change, error) {
	change, err := c.Classify(file)
	if err != nil {
		return change, err
	}

	switch change {
	case ChangeNew, ChangeModified:
		meta, err := c.extractor.Extract(file.Path)
		if err != nil {
			return change, fmt.Errorf("failed to extract metadata from %s: %w", file.Path, err)
		}
		if err := c.store.Upsert(file, meta, indexedAt); err != nil {
			return change, fmt.Errorf("failed to upsert %s: %w", file.Path, err)
		}
	case ChangeUnchanged:
		if err := c.store.Touch(file.Path, indexedAt); err != nil {
			return change, fmt.Errorf("failed to touch %s: %w", file.Path, err)
		}
	}

	return change, nil
}
