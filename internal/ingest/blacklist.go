package ingest

// BlacklistResolver answers containment queries against a set of excluded
// directory subtrees. Entries are normalized once at construction so each
// IsExcluded call is a prefix comparison, not a substring search.
type BlacklistResolver struct {
	entries []string
}

// NewBlacklistResolver builds a resolver from raw blacklist paths.
// Duplicate entries (after normalization) collapse into one.
func NewBlacklistResolver(paths []string) *BlacklistResolver {
	seen := make(map[string]struct{}, len(paths))
	entries := make([]string, 0, len(paths))
	for _, p := range paths {
		n := Normalize(p)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		entries = append(entries, n)
	}
	return &BlacklistResolver{entries: entries}
}

// IsExcluded reports whether path equals or is nested under any blacklisted
// directory. An empty blacklist never excludes anything.
func (r *BlacklistResolver) IsExcluded(path string) bool {
	if len(r.entries) == 0 {
		return false
	}
	n := Normalize(path)
	for _, entry := range r.entries {
		if Contains(entry, n) {
			return true
		}
	}
	return false
}

// Len returns the number of distinct blacklist entries.
func (r *BlacklistResolver) Len() int {
	return len(r.entries)
}
