package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"go-workflow/internal/common/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunNowRecordsStatus(t *testing.T) {
	var calls atomic.Int32
	svc := NewSchedulerService([]Job{
		{Name: "count", Schedule: "@every 1h", Run: func(ctx context.Context) (int64, error) {
			calls.Add(1)
			return 3, nil
		}},
		{Name: "broken", Schedule: "", Run: func(ctx context.Context) (int64, error) {
			return 0, errors.New("boom")
		}},
	}, zap.NewNop())

	st, err := svc.RunNow(context.Background(), "count")
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.LastResult)
	assert.NotNil(t, st.LastRun)
	assert.False(t, st.Running)
	assert.Equal(t, int32(1), calls.Load())

	st, err = svc.RunNow(context.Background(), "broken")
	require.NoError(t, err)
	assert.Equal(t, "boom", st.LastError)

	_, err = svc.RunNow(context.Background(), "missing")
	assert.True(t, errs.IsNotFound(err))

	jobs := svc.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "broken", jobs[0].Name)
	assert.Equal(t, "count", jobs[1].Name)
}

func TestStartSchedulesJobs(t *testing.T) {
	svc := NewSchedulerService([]Job{
		{Name: "hourly", Schedule: "@hourly", Run: func(ctx context.Context) (int64, error) { return 0, nil }},
		{Name: "off", Schedule: "", Run: func(ctx context.Context) (int64, error) { return 0, nil }},
	}, zap.NewNop())

	require.NoError(t, svc.Start())
	defer svc.Stop()

	for _, j := range svc.Jobs() {
		if j.Name == "hourly" {
			assert.NotNil(t, j.NextRun)
		} else {
			assert.Nil(t, j.NextRun)
		}
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	svc := NewSchedulerService([]Job{
		{Name: "bad", Schedule: "every now and then", Run: func(ctx context.Context) (int64, error) { return 0, nil }},
	}, zap.NewNop())
	assert.Error(t, svc.Start())
}

func TestRunNowRefusesOverlap(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	svc := NewSchedulerService([]Job{
		{Name: "slow", Run: func(ctx context.Context) (int64, error) {
			close(started)
			<-release
			return 1, nil
		}},
	}, zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := svc.RunNow(context.Background(), "slow")
		done <- err
	}()
	<-started

	_, err := svc.RunNow(context.Background(), "slow")
	assert.True(t, errs.IsValidation(err))

	close(release)
	require.NoError(t, <-done)
}
