package services

import (
	"path/filepath"
	"testing"

	"github.com/mescon/Melodarr/internal/db"
)

func newTestScheduler(t *testing.T) *SchedulerService {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "melodarr.db")
	repo, err := db.NewRepository(dbPath)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return NewSchedulerService(repo, nil, dbPath, 90)
}

func TestSchedulerInvalidCronExpression(t *testing.T) {
	s := newTestScheduler(t)
	if err := s.ScheduleMaintenance("not a cron expr"); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
	if s.JobCount() != 0 {
		t.Errorf("invalid expression registered a job")
	}
}

func TestSchedulerEmptyExpressionDisables(t *testing.T) {
	s := newTestScheduler(t)
	if err := s.ScheduleScans(""); err != nil {
		t.Fatalf("empty expression must not error: %v", err)
	}
	if err := s.ScheduleMaintenance(""); err != nil {
		t.Fatalf("empty expression must not error: %v", err)
	}
	if s.JobCount() != 0 {
		t.Errorf("disabled schedules registered %d jobs", s.JobCount())
	}
}

func TestSchedulerRegistersAndReplacesJobs(t *testing.T) {
	s := newTestScheduler(t)

	if err := s.ScheduleMaintenance("30 3 * * 0"); err != nil {
		t.Fatalf("ScheduleMaintenance: %v", err)
	}
	if s.JobCount() != 1 {
		t.Fatalf("JobCount = %d, want 1", s.JobCount())
	}

	// Re-registering the same job name replaces, not duplicates.
	if err := s.ScheduleMaintenance("0 4 * * *"); err != nil {
		t.Fatalf("re-ScheduleMaintenance: %v", err)
	}
	if s.JobCount() != 1 {
		t.Errorf("JobCount after replace = %d, want 1", s.JobCount())
	}

	s.Start()
	s.Stop()
}
