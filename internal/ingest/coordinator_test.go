package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mescon/Melodarr/internal/domain"
	"github.com/mescon/Melodarr/internal/eventbus"
	"github.com/mescon/Melodarr/internal/testutil"
)

// gateStore blocks AllIndexedPaths until released, to hold a scan open.
type gateStore struct {
	*fakeStore
	entered chan struct{}
	gate    chan struct{}
}

func (s *gateStore) AllIndexedPaths() ([]string, error) {
	s.entered <- struct{}{}
	<-s.gate
	return s.fakeStore.AllIndexedPaths()
}

func newTestCoordinator(store LibraryStore, clk *testutil.MockClock, pub *testutil.MockPublisher,
	rec *fakeRecorder, minInterval time.Duration) *Coordinator {
	classifier := NewClassifier(store, newFakeExtractor())
	// A nil *MockPublisher stored directly in the interface parameter would
	// not compare equal to nil inside the coordinator.
	var publisher eventbus.Publisher
	if pub != nil {
		publisher = pub
	}
	var recorder ScanRecorder
	if rec != nil {
		recorder = rec
	}
	return NewCoordinator(testWalker(), classifier, store, clk, publisher, recorder, minInterval)
}

func indexFromDisk(t *testing.T, store *fakeStore, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	store.entries[path] = IndexedFile{Path: path, ModTime: info.ModTime(), LastIndexedAt: info.ModTime()}
}

func TestTriggerScanBlacklistedSubtree(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "a.mp3"))
	writeTestFile(t, filepath.Join(root, "b.mp3"))
	writeTestFile(t, filepath.Join(root, "private", "c.mp3"))

	store := newFakeStore()
	indexFromDisk(t, store, filepath.Join(root, "a.mp3")) // already indexed, unchanged

	pub := testutil.NewMockPublisher()
	rec := &fakeRecorder{}
	c := newTestCoordinator(store, testutil.NewMockClock(), pub, rec, 0)

	result, err := c.TriggerScan(context.Background(), "manual", []string{root},
		[]string{filepath.Join(root, "private")})
	if err != nil {
		t.Fatalf("TriggerScan: %v", err)
	}

	if result.Processed != 2 {
		t.Errorf("Processed = %d, want 2", result.Processed)
	}
	if result.Added != 1 {
		t.Errorf("Added = %d, want 1", result.Added)
	}
	if result.Unchanged != 1 {
		t.Errorf("Unchanged = %d, want 1", result.Unchanged)
	}
	if result.Removed != 0 {
		t.Errorf("Removed = %d, want 0", result.Removed)
	}
	if store.has(filepath.Join(root, "private", "c.mp3")) {
		t.Error("blacklisted file was indexed")
	}

	if len(rec.completed) != 1 {
		t.Fatalf("recorder got %d completions, want 1", len(rec.completed))
	}
	if rec.completed[0].New != 1 || rec.completed[0].Unchanged != 1 {
		t.Errorf("recorded summary %+v does not match result", rec.completed[0])
	}
	if got := len(pub.EventsOfType(domain.ScanCompleted)); got != 1 {
		t.Errorf("published %d scan.completed events, want 1", got)
	}
}

func TestTriggerScanIdempotent(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "a.mp3"))
	writeTestFile(t, filepath.Join(root, "albums", "b.flac"))

	store := newFakeStore()
	c := newTestCoordinator(store, testutil.NewMockClock(), nil, nil, 0)

	first, err := c.TriggerScan(context.Background(), "manual", []string{root}, nil)
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if first.Added != 2 || first.Unchanged != 0 {
		t.Fatalf("first scan: added=%d unchanged=%d, want 2/0", first.Added, first.Unchanged)
	}

	c.ResetInterval()
	second, err := c.TriggerScan(context.Background(), "manual", []string{root}, nil)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if second.Added != 0 || second.Updated != 0 || second.Removed != 0 {
		t.Errorf("second scan changed the index: %+v", second)
	}
	if second.Unchanged != 2 {
		t.Errorf("second scan Unchanged = %d, want 2", second.Unchanged)
	}
}

func TestTriggerScanMutualExclusion(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "a.mp3"))

	store := &gateStore{
		fakeStore: newFakeStore(),
		entered:   make(chan struct{}),
		gate:      make(chan struct{}),
	}
	c := newTestCoordinator(store, testutil.NewMockClock(), nil, nil, 0)

	type outcome struct {
		result *ScanResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := c.TriggerScan(context.Background(), "manual", []string{root}, nil)
		done <- outcome{r, err}
	}()

	<-store.entered // first scan now holds the flag

	if !c.Scanning() {
		t.Error("Scanning() = false while a scan is running")
	}
	if _, err := c.TriggerScan(context.Background(), "manual", []string{root}, nil); !errors.Is(err, ErrScanActive) {
		t.Errorf("concurrent scan error = %v, want ErrScanActive", err)
	}

	close(store.gate)
	first := <-done
	if first.err != nil {
		t.Fatalf("held scan failed: %v", first.err)
	}
	if first.result.Added != 1 {
		t.Errorf("held scan Added = %d, want 1", first.result.Added)
	}
	if c.Scanning() {
		t.Error("coordinator did not return to idle")
	}
}

func TestTriggerScanMinimumInterval(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "a.mp3"))

	clk := testutil.NewMockClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := newFakeStore()
	pub := testutil.NewMockPublisher()
	c := newTestCoordinator(store, clk, pub, nil, 30*time.Second)

	if _, err := c.TriggerScan(context.Background(), "manual", []string{root}, nil); err != nil {
		t.Fatalf("first scan: %v", err)
	}

	if _, err := c.TriggerScan(context.Background(), "manual", []string{root}, nil); !errors.Is(err, ErrScanTooSoon) {
		t.Fatalf("scan inside interval: err = %v, want ErrScanTooSoon", err)
	}
	if c.Scanning() {
		t.Error("rejected scan left the coordinator busy")
	}
	if got := len(pub.EventsOfType(domain.ScanRejected)); got != 1 {
		t.Errorf("published %d scan.rejected events, want 1", got)
	}

	clk.SetNow(clk.Now().Add(31 * time.Second))
	if _, err := c.TriggerScan(context.Background(), "manual", []string{root}, nil); err != nil {
		t.Errorf("scan after interval elapsed: %v", err)
	}
}

func TestTriggerScanRemovalDiff(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "keep.mp3"))

	store := newFakeStore()
	indexFromDisk(t, store, filepath.Join(root, "keep.mp3"))
	gone1 := filepath.Join(root, "gone1.mp3")
	gone2 := filepath.Join(root, "albums", "gone2.flac")
	store.entries[gone1] = IndexedFile{Path: gone1, ModTime: time.Now()}
	store.entries[gone2] = IndexedFile{Path: gone2, ModTime: time.Now()}

	pub := testutil.NewMockPublisher()
	c := newTestCoordinator(store, testutil.NewMockClock(), pub, nil, 0)

	result, err := c.TriggerScan(context.Background(), "manual", []string{root}, nil)
	if err != nil {
		t.Fatalf("TriggerScan: %v", err)
	}
	if result.Removed != 2 {
		t.Errorf("Removed = %d, want 2", result.Removed)
	}
	if !store.has(filepath.Join(root, "keep.mp3")) {
		t.Error("observed file was removed from the index")
	}
	if store.has(gone1) || store.has(gone2) {
		t.Error("stale entries were not removed")
	}
	if got := len(pub.EventsOfType(domain.TracksRemoved)); got != 1 {
		t.Errorf("published %d tracks_removed events, want 1", got)
	}
}

func TestTriggerScanNewlyBlacklistedNotRemoved(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "keep.mp3"))
	writeTestFile(t, filepath.Join(root, "private", "hidden.mp3"))

	store := newFakeStore()
	indexFromDisk(t, store, filepath.Join(root, "keep.mp3"))
	indexFromDisk(t, store, filepath.Join(root, "private", "hidden.mp3"))

	c := newTestCoordinator(store, testutil.NewMockClock(), nil, nil, 0)

	// The private directory is blacklisted after it was indexed. Its entries
	// are no longer observed but must not count as removals.
	result, err := c.TriggerScan(context.Background(), "manual", []string{root},
		[]string{filepath.Join(root, "private")})
	if err != nil {
		t.Fatalf("TriggerScan: %v", err)
	}
	if result.Removed != 0 {
		t.Errorf("Removed = %d, want 0 for newly blacklisted entries", result.Removed)
	}
	if !store.has(filepath.Join(root, "private", "hidden.mp3")) {
		t.Error("newly blacklisted entry was deleted from the index")
	}
}

func TestTriggerScanUnscannedRootsKeepTheirEntries(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	writeTestFile(t, filepath.Join(rootA, "a.mp3"))

	store := newFakeStore()
	indexFromDisk(t, store, filepath.Join(rootA, "a.mp3"))
	other := filepath.Join(rootB, "other.mp3")
	store.entries[other] = IndexedFile{Path: other, ModTime: time.Now()}

	c := newTestCoordinator(store, testutil.NewMockClock(), nil, nil, 0)

	// Only rootA is scanned; rootB's entries are out of scope for removal.
	result, err := c.TriggerScan(context.Background(), "manual", []string{rootA}, nil)
	if err != nil {
		t.Fatalf("TriggerScan: %v", err)
	}
	if result.Removed != 0 {
		t.Errorf("Removed = %d, want 0 for paths outside scanned roots", result.Removed)
	}
	if !store.has(other) {
		t.Error("entry under unscanned root was removed")
	}
}

func TestTriggerScanUnreachableRootKeepsIndex(t *testing.T) {
	base := t.TempDir()
	nas := filepath.Join(base, "nas")
	writeTestFile(t, filepath.Join(nas, "a.mp3"))

	store := newFakeStore()
	indexFromDisk(t, store, filepath.Join(nas, "a.mp3"))

	// The whole root disappears, as when a network share unmounts. Its
	// entries must survive the next scan rather than count as removals.
	if err := os.RemoveAll(nas); err != nil {
		t.Fatalf("remove %s: %v", nas, err)
	}

	c := newTestCoordinator(store, testutil.NewMockClock(), nil, nil, 0)
	result, err := c.TriggerScan(context.Background(), "manual", []string{nas}, nil)
	if err != nil {
		t.Fatalf("TriggerScan: %v", err)
	}
	if result.Removed != 0 {
		t.Errorf("Removed = %d, want 0 for an unreachable root", result.Removed)
	}
	if !store.has(filepath.Join(nas, "a.mp3")) {
		t.Error("entry under unreachable root was deleted from the index")
	}
}

func TestTriggerScanExtractionFailureCountsAsSkipped(t *testing.T) {
	root := t.TempDir()
	corrupt := filepath.Join(root, "corrupt.mp3")
	writeTestFile(t, corrupt)

	store := newFakeStore()
	// Previously indexed with an older mtime, so this pass classifies it as
	// modified and reaches the extractor.
	store.entries[corrupt] = IndexedFile{Path: corrupt, ModTime: time.Unix(0, 0)}

	extractor := newFakeExtractor()
	extractor.failPaths[corrupt] = errors.New("bad header")
	c := NewCoordinator(testWalker(), NewClassifier(store, extractor), store,
		testutil.NewMockClock(), nil, nil, 0)

	result, err := c.TriggerScan(context.Background(), "manual", []string{root}, nil)
	if err != nil {
		t.Fatalf("TriggerScan: %v", err)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
	if result.Removed != 0 {
		t.Errorf("Removed = %d, want 0; a file present on disk is never a removal", result.Removed)
	}
	if !store.has(corrupt) {
		t.Error("failed extraction must keep the existing index entry")
	}
}

func TestTriggerScanBlacklistedRootSkippedEntirely(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "a.mp3"))

	store := newFakeStore()
	c := newTestCoordinator(store, testutil.NewMockClock(), nil, nil, 0)

	result, err := c.TriggerScan(context.Background(), "manual", []string{root}, []string{root})
	if err != nil {
		t.Fatalf("TriggerScan: %v", err)
	}
	if result.Processed != 0 {
		t.Errorf("Processed = %d, want 0 for a blacklisted root", result.Processed)
	}
}

func TestTriggerScanContextCancelled(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "a.mp3"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestCoordinator(newFakeStore(), testutil.NewMockClock(), nil, nil, 0)
	if _, err := c.TriggerScan(ctx, "manual", []string{root}, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if c.Scanning() {
		t.Error("cancelled scan left the coordinator busy")
	}
}
