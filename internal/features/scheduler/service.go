// Package scheduler runs the periodic maintenance jobs: expiring
// permission overrides and reconciling case projections with the
// approval ledger.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go-workflow/internal/common/errs"
	"go-workflow/internal/config"
	"go-workflow/internal/features/permission"
	"go-workflow/internal/features/workflow"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobOverrideExpiry = "override-expiry"
	JobReconcile      = "projection-reconcile"
)

type SchedulerService interface {
	Start() error
	Stop()
	RunNow(ctx context.Context, name string) (*JobStatus, error)
	Jobs() []JobStatus
}

type SchedulerServiceImpl struct {
	log *zap.Logger

	scheduler *cron.Cron
	jobs      map[string]*Job
	entries   map[string]cron.EntryID
	status    map[string]*JobStatus
	mu        sync.Mutex
}

// NewJobs builds the maintenance jobs from configuration.
func NewJobs(cfg *config.Config, permissions permission.PermissionService, engine workflow.Engine) []Job {
	return []Job{
		{
			Name:     JobOverrideExpiry,
			Schedule: cfg.SweepSchedule,
			Timeout:  time.Minute,
			Run:      permissions.ExpireOverrides,
		},
		{
			Name:     JobReconcile,
			Schedule: cfg.ReconcileSchedule,
			Timeout:  30 * time.Minute,
			Run: func(ctx context.Context) (int64, error) {
				n, err := engine.ReconcileAll(ctx)
				return int64(n), err
			},
		},
	}
}

func NewSchedulerService(jobs []Job, log *zap.Logger) SchedulerService {
	s := &SchedulerServiceImpl{
		log:       log,
		scheduler: cron.New(),
		jobs:      make(map[string]*Job, len(jobs)),
		entries:   make(map[string]cron.EntryID, len(jobs)),
		status:    make(map[string]*JobStatus, len(jobs)),
	}
	for i := range jobs {
		job := jobs[i]
		s.jobs[job.Name] = &job
		s.status[job.Name] = &JobStatus{Name: job.Name, Schedule: job.Schedule}
	}
	return s
}

// RegisterLifecycle starts the scheduler with the app and drains running
// jobs on shutdown.
func RegisterLifecycle(lc fx.Lifecycle, s SchedulerService) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			s.Stop()
			return nil
		},
	})
}

// Start registers every job with a schedule. An empty schedule disables
// the job; an invalid one is a startup error.
func (s *SchedulerServiceImpl) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, job := range s.jobs {
		if job.Schedule == "" {
			s.log.Info("scheduled job disabled", zap.String("job", name))
			continue
		}
		if _, err := cron.ParseStandard(job.Schedule); err != nil {
			return fmt.Errorf("invalid schedule for %s: %w", name, err)
		}
		jobName := name
		entryID, err := s.scheduler.AddFunc(job.Schedule, func() {
			if _, err := s.RunNow(context.Background(), jobName); err != nil {
				s.log.Warn("scheduled job skipped", zap.String("job", jobName), zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("failed to add %s to scheduler: %w", name, err)
		}
		s.entries[name] = entryID
	}

	s.scheduler.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.entries)))
	return nil
}

func (s *SchedulerServiceImpl) Stop() {
	ctx := s.scheduler.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}

// RunNow executes a job immediately. A job never runs twice at once.
func (s *SchedulerServiceImpl) RunNow(ctx context.Context, name string) (*JobStatus, error) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return nil, errs.NotFound("job", name)
	}
	st := s.status[name]
	if st.Running {
		s.mu.Unlock()
		return nil, errs.Validation("job_running", "%s is already running", name)
	}
	st.Running = true
	s.mu.Unlock()

	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	started := time.Now()
	n, err := job.Run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	st.Running = false
	st.LastRun = &started
	st.LastResult = n
	st.LastError = ""
	if err != nil {
		st.LastError = err.Error()
		s.log.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
	} else {
		s.log.Info("scheduled job finished",
			zap.String("job", name), zap.Int64("result", n), zap.Duration("took", time.Since(started)))
	}
	out := *st
	return &out, nil
}

func (s *SchedulerServiceImpl) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.status))
	for name, st := range s.status {
		cp := *st
		if id, ok := s.entries[name]; ok {
			if next := s.scheduler.Entry(id).Next; !next.IsZero() {
				cp.NextRun = &next
			}
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
