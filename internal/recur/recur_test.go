package recur

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/netcapd/netcapd/internal/runner"
	"github.com/netcapd/netcapd/internal/scheduler"
)

func TestStartRejectsInvalidCronSpec(t *testing.T) {
	sched := scheduler.New(scheduler.Options{Workers: 1})
	r := New(sched, BatchSpec{}, nil, func(BatchSpec) ([]runner.DeviceJob, error) {
		return nil, nil
	})

	if _, err := r.Start(context.Background(), "not a cron spec"); err == nil {
		t.Fatal("Start() with a malformed cron spec returned nil error")
	}
}

func TestRunOnceInvokesBuildJobsOnSchedule(t *testing.T) {
	sched := scheduler.New(scheduler.Options{Workers: 1})
	var ticks int32
	r := New(sched, BatchSpec{}, nil, func(BatchSpec) ([]runner.DeviceJob, error) {
		atomic.AddInt32(&ticks, 1)
		return nil, nil
	})

	if _, err := r.Start(context.Background(), "@every 20ms"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer r.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&ticks) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := atomic.LoadInt32(&ticks); got < 2 {
		t.Fatalf("buildJobs invoked %d times in 2s, want at least 2 on a 20ms schedule", got)
	}
}

func TestRunOnceSkipsSchedulerRunWhenBuildJobsFails(t *testing.T) {
	sched := scheduler.New(scheduler.Options{Workers: 1})
	var calls int32
	r := New(sched, BatchSpec{}, nil, func(BatchSpec) ([]runner.DeviceJob, error) {
		atomic.AddInt32(&calls, 1)
		return nil, context.DeadlineExceeded
	})

	// This checks only that runOnce calls buildJobs exactly once and returns.
	// sched has no Runner wired, but buildJobs returns no jobs, so even a
	// Scheduler.Run call would not reach the nil runner.
	r.runOnce(context.Background())
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("buildJobs called %d times, want exactly 1", calls)
	}
}
