package ingest

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mescon/Melodarr/internal/domain"
	"github.com/mescon/Melodarr/internal/testutil"
)

type activityRecorder struct {
	mu    sync.Mutex
	roots []string
	ch    chan string
}

func newActivityRecorder() *activityRecorder {
	return &activityRecorder{ch: make(chan string, 16)}
}

func (a *activityRecorder) onActivity(root string) {
	a.mu.Lock()
	a.roots = append(a.roots, root)
	a.mu.Unlock()
	select {
	case a.ch <- root:
	default:
	}
}

func (a *activityRecorder) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.roots)
}

// newFilterWatcher builds a watcher with its routing state populated, without
// any OS-level subscriptions, for exercising the event filter directly.
func newFilterWatcher(rec *activityRecorder, roots, blacklist []string) *ChangeWatcher {
	w := NewChangeWatcher(testWalker(), nil, rec.onActivity)
	w.resolver = NewBlacklistResolver(blacklist)
	w.origById = make(map[string]string)
	for _, r := range roots {
		n := Normalize(r)
		w.roots = append(w.roots, n)
		w.origById[n] = r
	}
	return w
}

func TestHandleEventRouting(t *testing.T) {
	tests := []struct {
		name      string
		event     fsnotify.Event
		blacklist []string
		wantRoot  string
	}{
		{
			name:     "audio write maps to owning root",
			event:    fsnotify.Event{Name: "/music/rock/track.mp3", Op: fsnotify.Write},
			wantRoot: "/music",
		},
		{
			name:     "audio create maps to owning root",
			event:    fsnotify.Event{Name: "/music/new.flac", Op: fsnotify.Create},
			wantRoot: "/music",
		},
		{
			name:     "irrelevant extension ignored",
			event:    fsnotify.Event{Name: "/music/cover.jpg", Op: fsnotify.Write},
			wantRoot: "",
		},
		{
			name:      "blacklisted path ignored",
			event:     fsnotify.Event{Name: "/music/private/track.mp3", Op: fsnotify.Write},
			blacklist: []string{"/music/private"},
			wantRoot:  "",
		},
		{
			name:     "path outside all roots ignored",
			event:    fsnotify.Event{Name: "/downloads/track.mp3", Op: fsnotify.Write},
			wantRoot: "",
		},
		{
			name:     "gone extensionless path on remove treated as directory removal",
			event:    fsnotify.Event{Name: "/music/oldalbum", Op: fsnotify.Remove},
			wantRoot: "/music",
		},
		{
			name:     "gone extensionless path on rename treated as directory move",
			event:    fsnotify.Event{Name: "/music/oldalbum", Op: fsnotify.Rename},
			wantRoot: "/music",
		},
		{
			name:     "gone extensionless path on chmod ignored",
			event:    fsnotify.Event{Name: "/music/oldalbum", Op: fsnotify.Chmod},
			wantRoot: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newActivityRecorder()
			w := newFilterWatcher(rec, []string{"/music"}, tt.blacklist)
			w.handleEvent(tt.event)

			if tt.wantRoot == "" {
				if rec.count() != 0 {
					t.Fatalf("unexpected activity for %v: %v", tt.event, rec.roots)
				}
				return
			}
			if rec.count() != 1 || rec.roots[0] != tt.wantRoot {
				t.Fatalf("activity = %v, want [%s]", rec.roots, tt.wantRoot)
			}
		})
	}
}

func TestHandleEventPicksCorrectRoot(t *testing.T) {
	rec := newActivityRecorder()
	w := newFilterWatcher(rec, []string{"/music", "/podcasts"}, nil)

	w.handleEvent(fsnotify.Event{Name: "/podcasts/show/ep1.mp3", Op: fsnotify.Create})
	if rec.count() != 1 || rec.roots[0] != "/podcasts" {
		t.Fatalf("activity = %v, want [/podcasts]", rec.roots)
	}
}

func TestMarkAllDirty(t *testing.T) {
	rec := newActivityRecorder()
	w := newFilterWatcher(rec, []string{"/music", "/podcasts"}, nil)

	w.markAllDirty()
	if rec.count() != 2 {
		t.Fatalf("markAllDirty touched %d roots, want 2", rec.count())
	}
}

func TestWatcherLifecycle(t *testing.T) {
	root := t.TempDir()
	rec := newActivityRecorder()
	pub := testutil.NewMockPublisher()
	w := NewChangeWatcher(testWalker(), pub, rec.onActivity)

	if err := w.Start([]string{root}, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !w.Running() {
		t.Error("Running() = false after Start")
	}
	if err := w.Start([]string{root}, nil); err == nil {
		t.Error("second Start must fail while running")
	}
	if got := len(pub.EventsOfType(domain.WatcherStarted)); got != 1 {
		t.Errorf("published %d WatcherStarted events, want 1", got)
	}

	w.Stop()
	if w.Running() {
		t.Error("Running() = true after Stop")
	}
	if got := len(pub.EventsOfType(domain.WatcherStopped)); got != 1 {
		t.Errorf("published %d WatcherStopped events, want 1", got)
	}

	// Stop again is a no-op.
	w.Stop()
}

func TestWatcherDetectsNewAudioFile(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "albums"), 0755); err != nil {
		t.Fatal(err)
	}

	rec := newActivityRecorder()
	w := NewChangeWatcher(testWalker(), nil, rec.onActivity)
	if err := w.Start([]string{root}, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	writeTestFile(t, filepath.Join(root, "albums", "new.mp3"))

	select {
	case got := <-rec.ch:
		if Normalize(got) != Normalize(root) {
			t.Errorf("activity root = %s, want %s", got, root)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no activity reported for new audio file")
	}
}

func TestWatcherAllRootsBlacklisted(t *testing.T) {
	root := t.TempDir()
	rec := newActivityRecorder()
	w := NewChangeWatcher(testWalker(), nil, rec.onActivity)

	if err := w.Start([]string{root}, []string{root}); err != nil {
		t.Fatalf("Start with blacklisted root: %v", err)
	}
	defer w.Stop()

	// Nothing is watched, so file creation goes unnoticed.
	writeTestFile(t, filepath.Join(root, "hidden.mp3"))
	time.Sleep(200 * time.Millisecond)
	if rec.count() != 0 {
		t.Errorf("blacklisted root produced activity: %v", rec.roots)
	}
}
