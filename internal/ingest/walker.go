package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mescon/Melodarr/internal/logger"
)

// ErrRootUnavailable is returned by Walk when the root itself cannot be
// reached (missing, unmounted, permission denied). Distinct from an empty
// root: the caller must not treat the root's index entries as removed.
var ErrRootUnavailable = errors.New("root is not accessible")

// Walker recursively enumerates supported audio files under a root,
// consulting the blacklist at every directory boundary before descending.
// The walk is read-only and skip-and-continue: unreadable directories are
// logged and skipped, never aborting the walk.
type Walker struct {
	extensions map[string]struct{}
}

// NewWalker creates a walker for the given audio extension allow-list
// (lowercase, with leading dots).
func NewWalker(extensions []string) *Walker {
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}
	return &Walker{extensions: exts}
}

// Supported reports whether the path has an allowed audio extension.
func (w *Walker) Supported(path string) bool {
	_, ok := w.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Walk visits every supported audio file under root that is not excluded by
// the resolver, calling visit for each. A missing or unreadable root yields
// zero files and ErrRootUnavailable; permission errors on subdirectories
// skip that subtree and continue with siblings. An error returned by visit
// aborts the walk and is returned as-is. Returns the number of entries
// skipped due to filesystem errors.
func (w *Walker) Walk(root string, resolver *BlacklistResolver, visit func(FileInfo) error) (skipped int64, err error) {
	if _, statErr := os.Stat(root); statErr != nil {
		logger.Warnf("Walker: root %s is not accessible: %v", root, statErr)
		return 0, fmt.Errorf("%w: %s: %v", ErrRootUnavailable, root, statErr)
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Debugf("Walker: skipping %s: %v", path, err)
			skipped++
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if resolver.IsExcluded(path) {
				logger.Debugf("Walker: excluding blacklisted directory %s", path)
				return fs.SkipDir
			}
			return nil
		}

		if !w.Supported(path) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			logger.Debugf("Walker: cannot stat %s: %v", path, infoErr)
			skipped++
			return nil
		}

		return visit(FileInfo{Path: path, ModTime: info.ModTime(), Size: info.Size()})
	})
	if walkErr != nil {
		return skipped, walkErr
	}
	return skipped, nil
}
