package ingest

import (
	"path/filepath"
	"strings"
)

// Clean canonicalizes a filesystem path while preserving case: cleans the
// path, converts separators to forward slashes and strips trailing
// separators. This is the form stored and handed to filesystem calls, which
// must keep the on-disk casing. Best effort on malformed input, never errors.
func Clean(path string) string {
	if path == "" {
		return ""
	}
	p := filepath.ToSlash(filepath.Clean(path))
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}

// Normalize is the comparison form of a path: Clean plus lowercasing, so the
// same logical directory written two ways matches. Only ever used to compare
// paths, never for filesystem access.
func Normalize(path string) string {
	return strings.ToLower(Clean(path))
}

// Contains reports whether child equals parent or sits underneath it.
// Both arguments must already be normalized. The check is segment-aware:
// /music/private contains /music/private/live but not /music/private2.
func Contains(parent, child string) bool {
	if parent == "" {
		return false
	}
	if child == parent {
		return true
	}
	if parent == "/" {
		return strings.HasPrefix(child, "/")
	}
	return strings.HasPrefix(child, parent+"/")
}
