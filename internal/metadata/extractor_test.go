package metadata

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExtractMissingFile(t *testing.T) {
	e := NewTagExtractor()
	if _, err := e.Extract(filepath.Join(t.TempDir(), "nope.mp3")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExtractUntaggedFileFallsBackToPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Pink Floyd", "The Wall")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "Another Brick.mp3")
	if err := os.WriteFile(path, []byte("not actually audio"), 0644); err != nil {
		t.Fatal(err)
	}

	meta, err := NewTagExtractor().Extract(path)
	if err != nil {
		t.Fatalf("untagged file must not error: %v", err)
	}
	if meta.Title != "Another Brick" {
		t.Errorf("Title = %q, want %q", meta.Title, "Another Brick")
	}
	if meta.Album != "The Wall" {
		t.Errorf("Album = %q, want %q", meta.Album, "The Wall")
	}
	if meta.Artist != "Pink Floyd" {
		t.Errorf("Artist = %q, want %q", meta.Artist, "Pink Floyd")
	}
}

func TestFromPathArtistDashTitle(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantTitle  string
		wantArtist string
		wantAlbum  string
	}{
		{
			name:       "artist dash title",
			path:       "/music/singles/Queen - Bohemian Rhapsody.flac",
			wantTitle:  "Bohemian Rhapsody",
			wantArtist: "Queen",
			wantAlbum:  "singles",
		},
		{
			name:       "bare name with layout",
			path:       "/music/Miles Davis/Kind of Blue/So What.mp3",
			wantTitle:  "So What",
			wantArtist: "Miles Davis",
			wantAlbum:  "Kind of Blue",
		},
		{
			name:      "no directory context",
			path:      "track01.ogg",
			wantTitle: "track01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := fromPath(tt.path)
			if meta.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", meta.Title, tt.wantTitle)
			}
			if meta.Artist != tt.wantArtist {
				t.Errorf("Artist = %q, want %q", meta.Artist, tt.wantArtist)
			}
			if meta.Album != tt.wantAlbum {
				t.Errorf("Album = %q, want %q", meta.Album, tt.wantAlbum)
			}
		})
	}
}
