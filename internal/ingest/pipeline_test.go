package ingest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mescon/Melodarr/internal/domain"
	"github.com/mescon/Melodarr/internal/eventbus"
	"github.com/mescon/Melodarr/internal/testutil"
)

// blockingEnricher holds FetchMissing open until its context is cancelled.
type blockingEnricher struct {
	started chan struct{}
}

func (e *blockingEnricher) FetchMissing(ctx context.Context, limit int) (int, error) {
	e.started <- struct{}{}
	<-ctx.Done()
	return 0, ctx.Err()
}

func newTestPipeline(t *testing.T, store LibraryStore, source ConfigSource,
	pub *testutil.MockPublisher, maintainer LibraryMaintainer, enricher ArtistEnrichmentClient) (*Pipeline, *testutil.MockClock) {
	t.Helper()
	clk := testutil.NewMockClock()
	// Keep a nil *MockPublisher out of the interface so nil guards hold.
	var publisher eventbus.Publisher
	if pub != nil {
		publisher = pub
	}
	coordinator := NewCoordinator(testWalker(), NewClassifier(store, newFakeExtractor()),
		store, clk, publisher, nil, 0)
	p := NewPipeline(PipelineOptions{
		Coordinator:    coordinator,
		Walker:         testWalker(),
		Source:         source,
		Clock:          clk,
		Publisher:      publisher,
		Maintainer:     maintainer,
		Enricher:       enricher,
		DebounceWindow: 2 * time.Second,
		EnrichBatch:    25,
	})
	return p, clk
}

func TestPipelineScanRunsMaintenanceAndEnrichment(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "new.mp3"))

	pub := testutil.NewMockPublisher()
	maintainer := &fakeMaintainer{}
	enricher := &fakeEnricher{updated: 3}
	p, _ := newTestPipeline(t, newFakeStore(), &fakeSource{roots: []string{root}},
		pub, maintainer, enricher)

	result, err := p.ScanNow(context.Background(), "manual")
	if err != nil {
		t.Fatalf("ScanNow: %v", err)
	}
	if result.Added != 1 {
		t.Fatalf("Added = %d, want 1", result.Added)
	}

	p.Shutdown() // waits for the enrichment goroutine

	if maintainer.callCount() != 1 {
		t.Errorf("maintenance ran %d times, want 1", maintainer.callCount())
	}
	if enricher.callCount() != 1 {
		t.Errorf("enrichment ran %d times, want 1", enricher.callCount())
	}
	if got := len(pub.EventsOfType(domain.MaintenanceCompleted)); got != 1 {
		t.Errorf("published %d MaintenanceCompleted events, want 1", got)
	}
}

func TestPipelineNoDeltaSkipsSideEffects(t *testing.T) {
	root := t.TempDir()

	maintainer := &fakeMaintainer{}
	enricher := &fakeEnricher{}
	p, _ := newTestPipeline(t, newFakeStore(), &fakeSource{roots: []string{root}},
		nil, maintainer, enricher)

	result, err := p.ScanNow(context.Background(), "manual")
	if err != nil {
		t.Fatalf("ScanNow: %v", err)
	}
	if result.Delta() {
		t.Fatalf("empty root produced a delta: %+v", result)
	}

	p.Shutdown()

	if maintainer.callCount() != 0 {
		t.Errorf("maintenance ran on a no-change scan")
	}
	if enricher.callCount() != 0 {
		t.Errorf("enrichment ran on a no-change scan")
	}
}

func TestPipelineScanOneRoot(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	writeTestFile(t, filepath.Join(rootA, "a.mp3"))
	writeTestFile(t, filepath.Join(rootB, "b.mp3"))

	store := newFakeStore()
	p, _ := newTestPipeline(t, store, &fakeSource{roots: []string{rootA, rootB}}, nil, nil, nil)

	result, err := p.ScanOneRoot(context.Background(), "manual", rootA)
	if err != nil {
		t.Fatalf("ScanOneRoot: %v", err)
	}
	if result.Added != 1 {
		t.Errorf("Added = %d, want 1", result.Added)
	}
	if store.has(filepath.Join(rootB, "b.mp3")) {
		t.Error("single-root scan indexed a file under another root")
	}
}

func TestPipelineDebounceReArmsWhenScanRejected(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "a.mp3"))

	p, _ := newTestPipeline(t, newFakeStore(), &fakeSource{roots: []string{root}}, nil, nil, nil)

	// Hold the coordinator busy so the debounce fire is rejected.
	p.coordinator.scanning.Store(true)
	p.onDebounceFire([]string{root})

	if !p.debouncer.Pending() {
		t.Error("rejected watcher scan did not re-arm the debouncer")
	}
	p.coordinator.scanning.Store(false)
}

func TestPipelineWatcherActivityTriggersScan(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "a.mp3"))

	store := newFakeStore()
	p, clk := newTestPipeline(t, store, &fakeSource{roots: []string{root}}, nil, nil, nil)

	// Feed the debouncer the way the watcher would.
	p.debouncer.OnActivity(root)
	p.debouncer.OnActivity(root)
	clk.Advance(2 * time.Second)

	if !store.has(filepath.Join(root, "a.mp3")) {
		t.Error("debounced activity did not trigger a scan")
	}
}

func TestPipelineStartWatchingNoRoots(t *testing.T) {
	p, _ := newTestPipeline(t, newFakeStore(), &fakeSource{}, nil, nil, nil)
	if err := p.StartWatching(); err != nil {
		t.Fatalf("StartWatching with no roots: %v", err)
	}
	if p.Watching() {
		t.Error("watcher reported running with no roots configured")
	}
}

func TestPipelineShutdownCancelsEnrichment(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "a.mp3"))

	enricher := &blockingEnricher{started: make(chan struct{}, 1)}
	p, _ := newTestPipeline(t, newFakeStore(), &fakeSource{roots: []string{root}}, nil, nil, enricher)

	if _, err := p.ScanNow(context.Background(), "manual"); err != nil {
		t.Fatalf("ScanNow: %v", err)
	}
	<-enricher.started

	done := make(chan struct{})
	go func() {
		p.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Shutdown did not cancel the in-flight enrichment pass")
	}
}
