package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	err   error
	block chan struct{}
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "test job " + j.name }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.err
}

func TestIntervalSchedule(t *testing.T) {
	_, err := NewIntervalSchedule(0)
	assert.Error(t, err)

	s, err := NewIntervalSchedule(24 * time.Hour)
	require.NoError(t, err)

	at := time.Date(2026, 10, 15, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, at.Add(24*time.Hour), s.Next(at))
	assert.Equal(t, "@every 24h0m0s", s.String())
}

func TestScheduler_Register(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	every, _ := NewIntervalSchedule(time.Hour)

	assert.ErrorIs(t, s.Register(nil, every), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "a"}, nil), ErrNilSchedule)

	require.NoError(t, s.Register(&countingJob{name: "b"}, every))
	require.NoError(t, s.Register(&countingJob{name: "a"}, every))
	assert.ErrorIs(t, s.Register(&countingJob{name: "a"}, every), ErrJobAlreadyExists)

	jobs := s.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].Name)
	assert.Equal(t, "@every 1h0m0s", jobs[0].Schedule)
	assert.True(t, jobs[0].Enabled)

	assert.ErrorIs(t, s.SetEnabled("missing", false), ErrJobNotFound)
	require.NoError(t, s.SetEnabled("a", false))
	assert.False(t, s.ListJobs()[0].Enabled)
}

func TestScheduler_RunNow(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	every, _ := NewIntervalSchedule(time.Hour)

	failing := &countingJob{name: "failing", err: errors.New("boom")}
	require.NoError(t, s.Register(failing, every))

	var hooked atomic.Int32
	s.OnJobDone(func(JobResult) { hooked.Add(1) })

	result, err := s.RunNow(context.Background(), "failing")
	assert.EqualError(t, err, "boom")
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.True(t, result.Manual)
	assert.Equal(t, int32(1), hooked.Load())

	info := s.ListJobs()[0]
	assert.Equal(t, int64(1), info.RunCount)
	assert.Equal(t, int64(1), info.FailCount)
	assert.Len(t, s.History(0), 1)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_RunNowRejectsOverlap(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	every, _ := NewIntervalSchedule(time.Hour)

	job := &countingJob{name: "slow", block: make(chan struct{})}
	require.NoError(t, s.Register(job, every))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.RunNow(context.Background(), "slow")
	}()

	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err := s.RunNow(context.Background(), "slow")
	assert.ErrorIs(t, err, ErrJobBusy)

	close(job.block)
	<-done
	assert.Equal(t, int32(1), job.runs.Load())
}

func TestScheduler_StartRunsDueJobs(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	cfg.TickInterval = 5 * time.Millisecond
	s := NewScheduler(cfg)

	every, _ := NewIntervalSchedule(10 * time.Millisecond)
	job := &countingJob{name: "tick"}
	require.NoError(t, s.Register(job, every))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)
	assert.True(t, s.IsRunning())

	require.Eventually(t, func() bool { return job.runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestScheduler_StopCancelsRunningJob(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	cfg.TickInterval = 5 * time.Millisecond
	s := NewScheduler(cfg)

	every, _ := NewIntervalSchedule(time.Millisecond)
	job := &countingJob{name: "stuck", block: make(chan struct{})}
	require.NoError(t, s.Register(job, every))

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	// Ticks while the job is blocked are skipped.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), job.runs.Load())

	require.NoError(t, s.Stop())
	last := s.ListJobs()[0].LastResult
	require.NotNil(t, last)
	assert.ErrorIs(t, last.Error, context.Canceled)
}
