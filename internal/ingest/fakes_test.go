package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/mescon/Melodarr/internal/domain"
)

// fakeStore is an in-memory LibraryStore for classifier and coordinator tests.
type fakeStore struct {
	mu      sync.Mutex
	entries map[string]IndexedFile
	meta    map[string]Metadata

	getErr    error
	upsertErr error
	touchErr  error
	allErr    error
	removeErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entries: make(map[string]IndexedFile),
		meta:    make(map[string]Metadata),
	}
}

func (s *fakeStore) GetIndexedFile(path string) (*IndexedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	if e, ok := s.entries[path]; ok {
		copy := e
		return &copy, nil
	}
	return nil, nil
}

func (s *fakeStore) Upsert(file FileInfo, meta Metadata, indexedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.entries[file.Path] = IndexedFile{Path: file.Path, ModTime: file.ModTime, LastIndexedAt: indexedAt}
	s.meta[file.Path] = meta
	return nil
}

func (s *fakeStore) Touch(path string, indexedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.touchErr != nil {
		return s.touchErr
	}
	if e, ok := s.entries[path]; ok {
		e.LastIndexedAt = indexedAt
		s.entries[path] = e
	}
	return nil
}

func (s *fakeStore) AllIndexedPaths() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.allErr != nil {
		return nil, s.allErr
	}
	paths := make([]string, 0, len(s.entries))
	for p := range s.entries {
		paths = append(paths, p)
	}
	return paths, nil
}

func (s *fakeStore) RemovePaths(paths []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil {
		return 0, s.removeErr
	}
	var removed int64
	for _, p := range paths {
		if _, ok := s.entries[p]; ok {
			delete(s.entries, p)
			delete(s.meta, p)
			removed++
		}
	}
	return removed, nil
}

func (s *fakeStore) CountIndexed() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.entries)), nil
}

func (s *fakeStore) has(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[path]
	return ok
}

// fakeExtractor returns canned metadata and can be made to fail per path.
type fakeExtractor struct {
	mu        sync.Mutex
	failPaths map[string]error
	calls     []string
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{failPaths: make(map[string]error)}
}

func (e *fakeExtractor) Extract(path string) (Metadata, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, path)
	if err, ok := e.failPaths[path]; ok {
		return Metadata{}, err
	}
	return Metadata{Title: path, Artist: "Test Artist"}, nil
}

func (e *fakeExtractor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// fakeRecorder records scan history calls.
type fakeRecorder struct {
	mu        sync.Mutex
	created   []string
	completed []domain.ScanSummaryEventData
	failed    []string
}

func (r *fakeRecorder) CreateScanRecord(scanID, trigger string, startedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, scanID)
	return nil
}

func (r *fakeRecorder) CompleteScanRecord(scanID string, summary domain.ScanSummaryEventData, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, summary)
	return nil
}

func (r *fakeRecorder) FailScanRecord(scanID, errMsg string, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, scanID)
	return nil
}

// fakeSource supplies static roots and blacklist entries.
type fakeSource struct {
	roots     []string
	blacklist []string
	rootsErr  error
	blackErr  error
}

func (s *fakeSource) Roots() ([]string, error) {
	return s.roots, s.rootsErr
}

func (s *fakeSource) Blacklist() ([]string, error) {
	return s.blacklist, s.blackErr
}

// fakeEnricher counts enrichment passes.
type fakeEnricher struct {
	mu      sync.Mutex
	calls   int
	updated int
	err     error
	started chan struct{}
}

func (e *fakeEnricher) FetchMissing(ctx context.Context, limit int) (int, error) {
	e.mu.Lock()
	e.calls++
	started := e.started
	e.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if e.err != nil {
		return 0, e.err
	}
	return e.updated, nil
}

func (e *fakeEnricher) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// fakeMaintainer counts post-scan maintenance runs.
type fakeMaintainer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *fakeMaintainer) SyncArtistCounts() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.err
}

func (m *fakeMaintainer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
