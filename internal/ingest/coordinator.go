package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mescon/Melodarr/internal/clock"
	"github.com/mescon/Melodarr/internal/domain"
	"github.com/mescon/Melodarr/internal/eventbus"
	"github.com/mescon/Melodarr/internal/logger"
)

// ErrScanActive is returned when a scan is requested while one is running.
// Callers treat this as a no-op, not a failure.
var ErrScanActive = errors.New("scan already in progress")

// ErrScanTooSoon is returned when a scan is requested before the minimum
// inter-scan interval has elapsed. Callers treat this as a no-op.
var ErrScanTooSoon = errors.New("scan requested below minimum interval")

// ScanResult aggregates the outcome of one scan pass.
// Processed = Added + Updated + Unchanged; Skipped counts files that could
// not be classified or extracted and will be retried next scan.
type ScanResult struct {
	ScanID    string
	Trigger   string
	Processed int64
	Added     int64
	Updated   int64
	Unchanged int64
	Removed   int64
	Skipped   int64
	Duration  time.Duration
}

// Delta reports whether the scan changed the index at all.
func (r *ScanResult) Delta() bool {
	return r.Added > 0 || r.Updated > 0 || r.Removed > 0
}

// Coordinator orchestrates scans: it enforces mutual exclusion via an atomic
// compare-and-set, enforces a minimum inter-scan interval, walks every
// configured root, and derives removals by diffing previously-indexed paths
// against the set observed in this scan.
type Coordinator struct {
	walker     *Walker
	classifier *Classifier
	store      LibraryStore
	clk        clock.Clock
	publisher  eventbus.Publisher
	recorder   ScanRecorder

	minInterval time.Duration

	scanning atomic.Bool

	mu            sync.Mutex
	lastCompleted time.Time
}

// NewCoordinator creates a scan coordinator. publisher and recorder may be
// nil, in which case events and history are not emitted.
func NewCoordinator(walker *Walker, classifier *Classifier, store LibraryStore,
	clk clock.Clock, publisher eventbus.Publisher, recorder ScanRecorder,
	minInterval time.Duration) *Coordinator {
	return &Coordinator{
		walker:      walker,
		classifier:  classifier,
		store:       store,
		clk:         clk,
		publisher:   publisher,
		recorder:    recorder,
		minInterval: minInterval,
	}
}

// Scanning reports whether a scan is currently running.
func (c *Coordinator) Scanning() bool {
	return c.scanning.Load()
}

// LastCompletedAt returns when the last scan finished, zero if none has.
func (c *Coordinator) LastCompletedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastCompleted
}

// ResetInterval clears the last-completed stamp. Test hook only.
func (c *Coordinator) ResetInterval() {
	c.mu.Lock()
	c.lastCompleted = time.Time{}
	c.mu.Unlock()
}

// TriggerScan runs one scan over the given roots. Concurrent invocations
// lose the compare-and-set and get ErrScanActive; invocations inside the
// minimum interval get ErrScanTooSoon. Both are informational rejections.
// The coordinator always returns to idle, regardless of per-root failures.
func (c *Coordinator) TriggerScan(ctx context.Context, trigger string, roots, blacklist []string) (*ScanResult, error) {
	if !c.scanning.CompareAndSwap(false, true) {
		logger.Infof("Scan rejected (%s): scan already in progress", trigger)
		c.publishRejected(trigger, "scan already in progress")
		return nil, ErrScanActive
	}

	started := c.clk.Now()

	c.mu.Lock()
	last := c.lastCompleted
	c.mu.Unlock()
	if c.minInterval > 0 && !last.IsZero() && started.Sub(last) < c.minInterval {
		c.scanning.Store(false)
		logger.Infof("Scan rejected (%s): last scan finished %v ago, minimum interval is %v",
			trigger, started.Sub(last), c.minInterval)
		c.publishRejected(trigger, "minimum interval not elapsed")
		return nil, ErrScanTooSoon
	}

	// Unconditional return to idle; lastCompleted only advances forward.
	defer func() {
		c.mu.Lock()
		if end := c.clk.Now(); end.After(c.lastCompleted) {
			c.lastCompleted = end
		}
		c.mu.Unlock()
		c.scanning.Store(false)
	}()

	scanID := uuid.New().String()
	logger.Infof("Scan %s started (%s): %d roots, %d blacklist entries",
		scanID, trigger, len(roots), len(blacklist))

	c.publish(domain.Event{
		AggregateType: "scan",
		AggregateID:   scanID,
		EventType:     domain.ScanStarted,
		EventData: map[string]interface{}{
			"scan_id": scanID,
			"trigger": trigger,
		},
	})
	if c.recorder != nil {
		if err := c.recorder.CreateScanRecord(scanID, trigger, started); err != nil {
			logger.Errorf("Scan %s: failed to record start: %v", scanID, err)
		}
	}

	result, err := c.runScan(ctx, scanID, trigger, roots, blacklist)
	completed := c.clk.Now()
	if err != nil {
		logger.Errorf("Scan %s failed: %v", scanID, err)
		c.publish(domain.Event{
			AggregateType: "scan",
			AggregateID:   scanID,
			EventType:     domain.ScanFailed,
			EventData: map[string]interface{}{
				"scan_id": scanID,
				"trigger": trigger,
				"error":   err.Error(),
			},
		})
		if c.recorder != nil {
			if recErr := c.recorder.FailScanRecord(scanID, err.Error(), completed); recErr != nil {
				logger.Errorf("Scan %s: failed to record failure: %v", scanID, recErr)
			}
		}
		return nil, err
	}

	result.Duration = completed.Sub(started)
	summary := domain.ScanSummaryEventData{
		ScanID:    scanID,
		Trigger:   trigger,
		New:       result.Added,
		Modified:  result.Updated,
		Unchanged: result.Unchanged,
		Removed:   result.Removed,
		Skipped:   result.Skipped,
		Duration:  result.Duration.Milliseconds(),
	}
	c.publish(domain.Event{
		AggregateType: "scan",
		AggregateID:   scanID,
		EventType:     domain.ScanCompleted,
		EventData: map[string]interface{}{
			"scan_id":     summary.ScanID,
			"trigger":     summary.Trigger,
			"new":         summary.New,
			"modified":    summary.Modified,
			"unchanged":   summary.Unchanged,
			"removed":     summary.Removed,
			"skipped":     summary.Skipped,
			"duration_ms": summary.Duration,
		},
	})
	if c.recorder != nil {
		if err := c.recorder.CompleteScanRecord(scanID, summary, completed); err != nil {
			logger.Errorf("Scan %s: failed to record completion: %v", scanID, err)
		}
	}

	logger.Infof("Scan %s completed in %v: %d processed (%d new, %d modified, %d unchanged), %d removed, %d skipped",
		scanID, result.Duration, result.Processed, result.Added, result.Updated,
		result.Unchanged, result.Removed, result.Skipped)
	return result, nil
}

// runScan walks the roots, classifies files and reconciles removals.
func (c *Coordinator) runScan(ctx context.Context, scanID, trigger string, roots, blacklist []string) (*ScanResult, error) {
	resolver := NewBlacklistResolver(blacklist)

	// Snapshot of the index before this scan, for removal detection.
	prevPaths, err := c.store.AllIndexedPaths()
	if err != nil {
		return nil, err
	}

	result := &ScanResult{ScanID: scanID, Trigger: trigger}
	indexedAt := c.clk.Now()
	seen := make(map[string]struct{})
	var scannedRoots []string // normalized roots whose walk fully succeeded

	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Checked once at the root, not rediscovered per file
		if resolver.IsExcluded(root) {
			logger.Infof("Scan %s: root %s is blacklisted, skipping entirely", scanID, root)
			continue
		}

		var added, updated, unchanged, skipped int64
		rootSeen := make(map[string]struct{})

		walkSkipped, walkErr := c.walker.Walk(root, resolver, func(file FileInfo) error {
			if err := ctx.Err(); err != nil {
				return err
			}

			// The file exists on disk, so it is never a removal candidate
			// even if classification or extraction fails below.
			rootSeen[Normalize(file.Path)] = struct{}{}

			change, procErr := c.classifier.Process(file, indexedAt)
			if procErr != nil {
				logger.Warnf("Scan %s: skipping %s: %v", scanID, file.Path, procErr)
				skipped++
				return nil
			}
			switch change {
			case ChangeNew:
				added++
				c.publishTrack(domain.TrackAdded, scanID, file.Path)
			case ChangeModified:
				updated++
				c.publishTrack(domain.TrackUpdated, scanID, file.Path)
			case ChangeUnchanged:
				unchanged++
			}
			return nil
		})
		if walkErr != nil {
			if errors.Is(walkErr, ctx.Err()) && ctx.Err() != nil {
				return nil, walkErr
			}
			if errors.Is(walkErr, ErrRootUnavailable) {
				// Unmounted share or permissions hiccup: nothing was observed,
				// so the root stays out of removal scope and its index entries
				// are left untouched until it comes back.
				logger.Warnf("Scan %s: root %s unreachable, leaving its index entries alone", scanID, root)
				continue
			}
			// Whole-root failure: discard this root's counts, keep going.
			// Files already upserted stay upserted; only the totals and the
			// removal diff exclude this root.
			logger.Errorf("Scan %s: root %s failed, discarding its results: %v", scanID, root, walkErr)
			continue
		}

		result.Added += added
		result.Updated += updated
		result.Unchanged += unchanged
		result.Skipped += skipped + walkSkipped
		for p := range rootSeen {
			seen[p] = struct{}{}
		}
		scannedRoots = append(scannedRoots, Normalize(root))
	}
	result.Processed = result.Added + result.Updated + result.Unchanged

	// Removed = previously-indexed paths under a fully-scanned root that were
	// not observed and are not newly blacklisted. Paths under failed or
	// unscanned roots are left alone.
	var stale []string
	for _, prev := range prevPaths {
		n := Normalize(prev)
		if _, ok := seen[n]; ok {
			continue
		}
		inScope := false
		for _, r := range scannedRoots {
			if Contains(r, n) {
				inScope = true
				break
			}
		}
		if !inScope {
			continue
		}
		if resolver.IsExcluded(prev) {
			continue
		}
		stale = append(stale, prev)
	}
	if len(stale) > 0 {
		removed, err := c.store.RemovePaths(stale)
		if err != nil {
			logger.Errorf("Scan %s: failed to remove %d stale entries: %v", scanID, len(stale), err)
		} else {
			result.Removed = removed
			c.publish(domain.Event{
				AggregateType: "scan",
				AggregateID:   scanID,
				EventType:     domain.TracksRemoved,
				EventData: map[string]interface{}{
					"scan_id": scanID,
					"count":   removed,
					"paths":   stale,
				},
			})
		}
	}

	return result, nil
}

func (c *Coordinator) publish(event domain.Event) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(event); err != nil {
		logger.Errorf("Failed to publish %s event: %v", event.EventType, err)
	}
}

func (c *Coordinator) publishTrack(eventType domain.EventType, scanID, path string) {
	c.publish(domain.Event{
		AggregateType: "track",
		AggregateID:   path,
		EventType:     eventType,
		EventData: map[string]interface{}{
			"path":    path,
			"scan_id": scanID,
		},
	})
}

func (c *Coordinator) publishRejected(trigger, reason string) {
	c.publish(domain.Event{
		AggregateType: "scan",
		AggregateID:   "rejected",
		EventType:     domain.ScanRejected,
		EventData: map[string]interface{}{
			"trigger": trigger,
			"reason":  reason,
		},
	})
}
