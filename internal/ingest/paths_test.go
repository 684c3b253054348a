package ingest

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"already clean", "/music/rock", "/music/rock"},
		{"trailing slash", "/music/rock/", "/music/rock"},
		{"multiple trailing slashes", "/music/rock///", "/music/rock"},
		{"redundant segments", "/music//rock/./blues/..", "/music/rock"},
		{"case folded", "/Music/Rock", "/music/rock"},
		{"root stays root", "/", "/"},
		{"relative cleaned", "music/../podcasts", "podcasts"},
		{"backslashes converted", `\music\rock`, "/music/rock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanPreservesCase(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"uppercase kept", "/home/user/Music", "/home/user/Music"},
		{"trailing slash", "/home/user/Music/", "/home/user/Music"},
		{"redundant segments", "/Music//Rock/./Blues/..", "/Music/Rock"},
		{"root stays root", "/", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"/Music/Rock/", "/a/b/../c", "", "/", "relative/path/"}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestContains(t *testing.T) {
	tests := []struct {
		name   string
		parent string
		child  string
		want   bool
	}{
		{"equal paths", "/music", "/music", true},
		{"direct child", "/music", "/music/rock", true},
		{"deep descendant", "/music", "/music/rock/live/1999", true},
		{"sibling", "/music", "/movies", false},
		{"prefix but not segment", "/music/private", "/music/private2", false},
		{"segment child of prefix-like parent", "/music/private", "/music/private/live", true},
		{"parent of parent", "/music/rock", "/music", false},
		{"filesystem root", "/", "/anything/at/all", true},
		{"empty parent", "", "/music", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Contains(tt.parent, tt.child); got != tt.want {
				t.Errorf("Contains(%q, %q) = %v, want %v", tt.parent, tt.child, got, tt.want)
			}
		})
	}
}
