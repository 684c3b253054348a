// Package services contains the application services that sit between the
// HTTP layer and the database repository.
package services

import (
	"fmt"
	"time"

	"github.com/mescon/Melodarr/internal/db"
	"github.com/mescon/Melodarr/internal/domain"
	"github.com/mescon/Melodarr/internal/ingest"
)

// LibraryService adapts the database repository to the ingestion pipeline's
// collaborator interfaces: the track index, the scan configuration source
// and post-scan maintenance. All operations are scoped to one profile.
type LibraryService struct {
	repo      *db.Repository
	profileID string
}

var (
	_ ingest.LibraryStore      = (*LibraryService)(nil)
	_ ingest.ConfigSource      = (*LibraryService)(nil)
	_ ingest.LibraryMaintainer = (*LibraryService)(nil)
)

// NewLibraryService creates a library service for the given profile.
func NewLibraryService(repo *db.Repository, profileID string) *LibraryService {
	return &LibraryService{repo: repo, profileID: profileID}
}

// GetIndexedFile returns the pipeline view of an indexed track, nil when the
// path has never been indexed.
func (s *LibraryService) GetIndexedFile(path string) (*ingest.IndexedFile, error) {
	track, err := s.repo.GetTrackByPath(path)
	if err != nil {
		return nil, err
	}
	if track == nil {
		return nil, nil
	}
	return &ingest.IndexedFile{
		Path:          track.Path,
		ModTime:       track.ModTime,
		LastIndexedAt: track.LastIndexedAt,
	}, nil
}

// Upsert writes or replaces the track row for a discovered file.
func (s *LibraryService) Upsert(file ingest.FileInfo, meta ingest.Metadata, indexedAt time.Time) error {
	track := &domain.Track{
		Path:        file.Path,
		Artist:      meta.Artist,
		AlbumArtist: meta.AlbumArtist,
		Album:       meta.Album,
		Title:       meta.Title,
		Genre:       meta.Genre,
		Year:        meta.Year,
		TrackNumber: meta.TrackNumber,
		DiscNumber:  meta.DiscNumber,
		SizeBytes:   file.Size,
		ModTime:     file.ModTime,
	}
	if err := s.repo.UpsertTrack(track, indexedAt); err != nil {
		return fmt.Errorf("failed to upsert track %s: %w", file.Path, err)
	}
	return nil
}

// Touch refreshes the last-indexed stamp of an unchanged track.
func (s *LibraryService) Touch(path string, indexedAt time.Time) error {
	return s.repo.TouchTrack(path, indexedAt)
}

// AllIndexedPaths returns every indexed track path.
func (s *LibraryService) AllIndexedPaths() ([]string, error) {
	return s.repo.AllTrackPaths()
}

// RemovePaths deletes track rows and returns how many were removed.
func (s *LibraryService) RemovePaths(paths []string) (int64, error) {
	return s.repo.RemoveTracks(paths)
}

// CountIndexed returns the number of indexed tracks.
func (s *LibraryService) CountIndexed() (int64, error) {
	return s.repo.CountTracks()
}

// Roots returns the enabled library root paths for this profile.
func (s *LibraryService) Roots() ([]string, error) {
	roots, err := s.repo.ListLibraryRoots(s.profileID)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(roots))
	for _, r := range roots {
		paths = append(paths, r.Path)
	}
	return paths, nil
}

// Blacklist returns the excluded subtree paths for this profile.
func (s *LibraryService) Blacklist() ([]string, error) {
	entries, err := s.repo.ListBlacklistEntries(s.profileID)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	return paths, nil
}

// SyncArtistCounts rebuilds the artist aggregates after a scan delta.
func (s *LibraryService) SyncArtistCounts() error {
	return s.repo.SyncArtistCounts()
}
