package scheduler

import (
	"context"
	"time"
)

// Task is a unit of background work. It returns how many items it touched.
type Task func(ctx context.Context) (int64, error)

type Job struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Run      Task
}

// JobStatus reports the last execution of a job.
type JobStatus struct {
	Name       string     `json:"name"`
	Schedule   string     `json:"schedule"`
	Running    bool       `json:"running"`
	LastRun    *time.Time `json:"last_run,omitempty"`
	LastResult int64      `json:"last_result"`
	LastError  string     `json:"last_error,omitempty"`
	NextRun    *time.Time `json:"next_run,omitempty"`
}
