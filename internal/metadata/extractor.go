// Package metadata reads tags from audio files.
package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	"github.com/mescon/Melodarr/internal/ingest"
	"github.com/mescon/Melodarr/internal/logger"
)

// TagExtractor reads embedded tags (ID3v1/v2, Vorbis comments, MP4 atoms)
// from audio files. Files whose tags are missing or unreadable fall back to
// metadata guessed from the file path, so an untagged library still indexes.
type TagExtractor struct{}

var _ ingest.MetadataExtractor = (*TagExtractor)(nil)

// NewTagExtractor creates a tag-based metadata extractor.
func NewTagExtractor() *TagExtractor {
	return &TagExtractor{}
}

// Extract reads tags from the file at path. I/O errors are returned to the
// caller; tag parse errors degrade to path-derived metadata.
func (e *TagExtractor) Extract(path string) (ingest.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return ingest.Metadata{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		logger.Debugf("Extractor: no readable tags in %s, deriving from path: %v", path, err)
		return fromPath(path), nil
	}

	track, _ := m.Track()
	disc, _ := m.Disc()
	meta := ingest.Metadata{
		Title:       strings.TrimSpace(m.Title()),
		Artist:      strings.TrimSpace(m.Artist()),
		AlbumArtist: strings.TrimSpace(m.AlbumArtist()),
		Album:       strings.TrimSpace(m.Album()),
		Genre:       strings.TrimSpace(m.Genre()),
		Year:        m.Year(),
		TrackNumber: track,
		DiscNumber:  disc,
	}
	if meta.Title == "" && meta.Artist == "" {
		fallback := fromPath(path)
		if meta.Title == "" {
			meta.Title = fallback.Title
		}
		if meta.Artist == "" {
			meta.Artist = fallback.Artist
		}
		if meta.Album == "" {
			meta.Album = fallback.Album
		}
	}
	return meta, nil
}

// fromPath guesses metadata from the file name and directory layout.
// "Artist - Title.mp3" names split into both fields; otherwise the layout
// artist/album/track.ext supplies artist and album.
func fromPath(path string) ingest.Metadata {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var meta ingest.Metadata
	if parts := strings.SplitN(name, " - ", 2); len(parts) == 2 {
		meta.Artist = strings.TrimSpace(parts[0])
		meta.Title = strings.TrimSpace(parts[1])
	} else {
		meta.Title = name
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		meta.Album = filepath.Base(dir)
		parent := filepath.Base(filepath.Dir(dir))
		if meta.Artist == "" && parent != "" && parent != "." && parent != string(filepath.Separator) {
			meta.Artist = parent
		}
	}
	return meta
}
