package ingest

import "testing"

func TestBlacklistResolverIsExcluded(t *testing.T) {
	resolver := NewBlacklistResolver([]string{"/music/private", "/Backups/"})

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"exact entry", "/music/private", true},
		{"descendant", "/music/private/bootlegs/track.mp3", true},
		{"case variant of entry", "/Music/Private", true},
		{"trailing slash entry matches", "/backups/2024", true},
		{"non-excluded sibling", "/music/rock", false},
		{"shared prefix is not containment", "/music/private2", false},
		{"shared prefix descendant", "/music/private2/track.mp3", false},
		{"parent of entry", "/music", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolver.IsExcluded(tt.path); got != tt.want {
				t.Errorf("IsExcluded(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestBlacklistResolverEmpty(t *testing.T) {
	resolver := NewBlacklistResolver(nil)
	if resolver.Len() != 0 {
		t.Fatalf("expected empty resolver, got %d entries", resolver.Len())
	}
	if resolver.IsExcluded("/music/anything") {
		t.Error("empty blacklist must never exclude a path")
	}
}

func TestBlacklistResolverDeduplicates(t *testing.T) {
	resolver := NewBlacklistResolver([]string{
		"/music/private",
		"/music/private/",
		"/Music/Private",
		"",
	})
	if resolver.Len() != 1 {
		t.Errorf("expected 1 distinct entry after normalization, got %d", resolver.Len())
	}
}
