package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/mescon/Melodarr/internal/db"
	"github.com/mescon/Melodarr/internal/ingest"
	"github.com/mescon/Melodarr/internal/logger"
)

// SchedulerService drives periodic work from cron expressions: full library
// scans, database maintenance with pruning, and database backups.
type SchedulerService struct {
	repo     *db.Repository
	pipeline *ingest.Pipeline
	cron     *cron.Cron

	dbPath        string
	retentionDays int

	mu   sync.Mutex
	jobs map[string]cron.EntryID
}

// NewSchedulerService creates a scheduler over the pipeline and repository.
func NewSchedulerService(repo *db.Repository, pipeline *ingest.Pipeline, dbPath string, retentionDays int) *SchedulerService {
	return &SchedulerService{
		repo:          repo,
		pipeline:      pipeline,
		cron:          cron.New(),
		dbPath:        dbPath,
		retentionDays: retentionDays,
		jobs:          make(map[string]cron.EntryID),
	}
}

// Start begins executing registered schedules.
func (s *SchedulerService) Start() {
	logger.Infof("Starting Scheduler Service...")
	s.cron.Start()
}

// Stop halts the scheduler. Running jobs finish on their own.
func (s *SchedulerService) Stop() {
	s.cron.Stop()
}

// ScheduleScans registers a periodic full library scan. An empty expression
// disables scheduled scans.
func (s *SchedulerService) ScheduleScans(cronExpr string) error {
	if cronExpr == "" {
		logger.Infof("Scheduled scans disabled")
		return nil
	}
	return s.addJob("scan", cronExpr, func() {
		logger.Infof("Executing scheduled library scan")
		_, err := s.pipeline.ScanNow(context.Background(), "scheduled")
		if err != nil {
			if errors.Is(err, ingest.ErrScanActive) || errors.Is(err, ingest.ErrScanTooSoon) {
				logger.Infof("Scheduled scan skipped: %v", err)
				return
			}
			logger.Errorf("Scheduled scan failed: %v", err)
		}
	})
}

// ScheduleMaintenance registers periodic database maintenance and backup.
// An empty expression disables it.
func (s *SchedulerService) ScheduleMaintenance(cronExpr string) error {
	if cronExpr == "" {
		logger.Infof("Scheduled maintenance disabled")
		return nil
	}
	return s.addJob("maintenance", cronExpr, func() {
		logger.Infof("Executing scheduled database maintenance")
		if err := s.repo.RunMaintenance(s.retentionDays); err != nil {
			logger.Errorf("Scheduled maintenance failed: %v", err)
		}
		if backupPath, err := s.repo.Backup(s.dbPath); err != nil {
			logger.Errorf("Scheduled backup failed: %v", err)
		} else {
			logger.Infof("Scheduled backup written to %s", backupPath)
		}
	})
}

// addJob validates the expression and registers the job, replacing any
// previous job under the same name.
func (s *SchedulerService) addJob(name, cronExpr string, fn func()) error {
	if _, err := cron.ParseStandard(cronExpr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %v", cronExpr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.jobs[name]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
	}

	entryID, err := s.cron.AddFunc(cronExpr, fn)
	if err != nil {
		return err
	}
	s.jobs[name] = entryID
	logger.Infof("Scheduled %s job: %s", name, cronExpr)
	return nil
}

// JobCount returns the number of registered jobs.
func (s *SchedulerService) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
