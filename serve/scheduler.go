package serve

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs cron jobs that purge old statements from the store and the
// inbox directory.
type Scheduler struct {
	c      *cron.Cron
	store  Store
	broker *EventBroker
	inbox  string

	mu      sync.Mutex
	jobs    []ScheduledJob
	entries map[string]cron.EntryID // job name → cron entry ID
}

// NewScheduler creates a Scheduler. inbox is the directory uploaded PDFs
// live in; purged statements have their files removed from it.
func NewScheduler(store Store, broker *EventBroker, inbox string) *Scheduler {
	return &Scheduler{
		c:       cron.New(),
		store:   store,
		broker:  broker,
		inbox:   inbox,
		entries: make(map[string]cron.EntryID),
	}
}

// Restore loads persisted jobs from the store and schedules the enabled ones.
func (s *Scheduler) Restore() error {
	jobs, err := s.store.ListScheduledJobs()
	if err != nil {
		return fmt.Errorf("list scheduled jobs: %w", err)
	}
	for _, job := range jobs {
		if err := s.AddJob(job); err != nil {
			slog.Warn("scheduler: restore job failed", "name", job.Name, "error", err)
		}
	}
	return nil
}

// Start begins the cron runner and blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.c.Start()
	slog.Info("scheduler started")
	<-ctx.Done()
	s.c.Stop()
	slog.Info("scheduler stopped")
}

// AddJob adds a job to the cron runner and persists it.
// If a job with the same name already exists it is replaced.
func (s *Scheduler) AddJob(job ScheduledJob) error {
	maxAge, err := time.ParseDuration(job.MaxAge)
	if err != nil || maxAge <= 0 {
		return fmt.Errorf("invalid max_age %q", job.MaxAge)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// If a job with this name exists, remove it first.
	if id, ok := s.entries[job.Name]; ok {
		s.c.Remove(id)
		delete(s.entries, job.Name)
		s.jobs = removeJobByName(s.jobs, job.Name)
	}

	if !job.Enabled {
		// Still persist the disabled job so it can be restored later.
		s.jobs = append(s.jobs, job)
		if err := s.store.UpsertScheduledJob(job); err != nil {
			slog.Warn("scheduler: persist job failed", "name", job.Name, "error", err)
		}
		return nil
	}

	entryID, err := s.c.AddFunc(job.Cron, s.makeFunc(job.Name, maxAge))
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", job.Cron, err)
	}

	s.entries[job.Name] = entryID
	s.jobs = append(s.jobs, job)

	if err := s.store.UpsertScheduledJob(job); err != nil {
		slog.Warn("scheduler: persist job failed", "name", job.Name, "error", err)
	}

	slog.Info("scheduler: job added", "name", job.Name, "cron", job.Cron, "max_age", job.MaxAge)
	return nil
}

// RemoveJob removes a job from the cron runner and the store.
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[name]
	if !ok {
		// May exist as a disabled job (no cron entry).
		found := false
		for _, j := range s.jobs {
			if j.Name == name {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("schedule %q not found", name)
		}
	} else {
		s.c.Remove(id)
		delete(s.entries, name)
	}

	s.jobs = removeJobByName(s.jobs, name)

	if err := s.store.DeleteScheduledJob(name); err != nil {
		slog.Warn("scheduler: remove job from store failed", "name", name, "error", err)
	}

	slog.Info("scheduler: job removed", "name", name)
	return nil
}

// ListJobs returns a snapshot of all current jobs.
func (s *Scheduler) ListJobs() []ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ScheduledJob, len(s.jobs))
	copy(out, s.jobs)
	return out
}

// makeFunc returns the cron callback for a purge job.
func (s *Scheduler) makeFunc(name string, maxAge time.Duration) func() {
	return func() {
		cutoff := time.Now().UTC().Add(-maxAge)
		ids, err := s.store.PurgeOlderThan(cutoff)
		if err != nil {
			slog.Warn("scheduler: purge failed", "name", name, "error", err)
			return
		}
		for _, id := range ids {
			if err := os.RemoveAll(filepath.Join(s.inbox, id)); err != nil {
				slog.Warn("scheduler: remove inbox files failed", "id", id, "error", err)
			}
		}
		if len(ids) > 0 {
			slog.Info("scheduler: purged statements", "name", name, "count", len(ids))
			s.broker.Publish(BrokerEvent{
				Type:      "retention.purged",
				Data:      map[string]any{"count": len(ids)},
				Timestamp: time.Now(),
			})
		}
	}
}

func removeJobByName(jobs []ScheduledJob, name string) []ScheduledJob {
	out := jobs[:0]
	for _, j := range jobs {
		if j.Name != name {
			out = append(out, j)
		}
	}
	return out
}
