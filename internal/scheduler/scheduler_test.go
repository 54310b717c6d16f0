package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/netcapd/netcapd/internal/credential"
	"github.com/netcapd/netcapd/internal/progress"
	"github.com/netcapd/netcapd/internal/runner"
)

// failFastRunner resolves against a credential source with no CRED_* env
// vars set, so every job fails at credential resolution before ever
// touching the network. That keeps the worker-pool bookkeeping under test
// here deterministic and hermetic.
func failFastRunner() *runner.Runner {
	return runner.New(credential.LoadFromEnv(), nil)
}

func jobs(hosts ...string) []runner.DeviceJob {
	out := make([]runner.DeviceJob, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, runner.DeviceJob{
			Host:             h,
			CredentialID:     "missing",
			CaptureType:      "version",
			PerDeviceTimeout: time.Second,
		})
	}
	return out
}

func TestRunEmptyJobSet(t *testing.T) {
	s := New(Options{Workers: 2})
	s.SetRunner(failFastRunner())

	result := s.Run(context.Background(), "batch-1", nil, nil)
	if result.Total != 0 || result.OK != 0 || result.Failed != 0 {
		t.Fatalf("Run(no jobs) = %+v, want all zero", result)
	}
}

func TestRunAllJobsFailOnMissingCredential(t *testing.T) {
	s := New(Options{Workers: 4, PerDeviceTimeout: time.Second})
	s.SetRunner(failFastRunner())

	result := s.Run(context.Background(), "batch-2", jobs("r1", "r2", "r3"), nil)
	if result.Total != 3 {
		t.Fatalf("Total = %d, want 3", result.Total)
	}
	if result.Failed != 3 {
		t.Fatalf("Failed = %d, want 3 (all missing the credential)", result.Failed)
	}
	if result.OK != 0 || result.Canceled != 0 {
		t.Errorf("OK=%d Canceled=%d, want both 0", result.OK, result.Canceled)
	}
	if len(result.PerDeviceResults) != 3 {
		t.Errorf("PerDeviceResults has %d entries, want 3", len(result.PerDeviceResults))
	}
}

func TestRunStopOnErrorCancelsRemainingJobs(t *testing.T) {
	s := New(Options{Workers: 1, PerDeviceTimeout: time.Second, StopOnError: true})
	s.SetRunner(failFastRunner())

	result := s.Run(context.Background(), "batch-3", jobs("r1", "r2", "r3", "r4"), nil)
	if result.Total != 4 {
		t.Fatalf("Total = %d, want 4", result.Total)
	}
	if result.Failed == 0 {
		t.Fatalf("Failed = 0, want at least one failure to trigger stop-on-error")
	}
	if result.Failed+result.Canceled != result.Total {
		t.Errorf("Failed(%d)+Canceled(%d) != Total(%d)", result.Failed, result.Canceled, result.Total)
	}
}

func TestRunNotifiesObserver(t *testing.T) {
	s := New(Options{Workers: 2, PerDeviceTimeout: time.Second})
	s.SetRunner(failFastRunner())

	obs := progress.NewChannelObserver(32)
	result := s.Run(context.Background(), "batch-4", jobs("r1"), obs)
	obs.Close()

	var phases []progress.Phase
	for e := range obs.Events() {
		phases = append(phases, e.Phase)
	}
	if len(phases) == 0 {
		t.Fatal("observer received no events")
	}
	if result.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", result.Failed)
	}
}

func TestCountsReflectCompletedRun(t *testing.T) {
	s := New(Options{Workers: 2, PerDeviceTimeout: time.Second})
	s.SetRunner(failFastRunner())

	s.Run(context.Background(), "batch-5", jobs("r1", "r2"), nil)

	ok, failed, canceled := s.Counts()
	if ok != 0 || failed != 2 || canceled != 0 {
		t.Errorf("Counts() = (%d, %d, %d), want (0, 2, 0)", ok, failed, canceled)
	}
}

func TestReplayFailedRebuildsOnlyFailedJobs(t *testing.T) {
	original := map[string]runner.DeviceJob{
		"r1": {Host: "r1"},
		"r2": {Host: "r2"},
		"r3": {Host: "r3"},
	}
	prior := BatchResult{
		PerDeviceResults: []runner.DeviceResult{
			{Host: "r1", Status: runner.StatusOK},
			{Host: "r2", Status: runner.StatusFailed},
			{Host: "r3", Status: runner.StatusCanceled},
		},
	}

	replay := ReplayFailed(prior, original)
	if len(replay) != 1 || replay[0].Host != "r2" {
		t.Errorf("ReplayFailed() = %+v, want only r2", replay)
	}
}

func TestReplayFailedSkipsUnknownHosts(t *testing.T) {
	original := map[string]runner.DeviceJob{"r1": {Host: "r1"}}
	prior := BatchResult{
		PerDeviceResults: []runner.DeviceResult{
			{Host: "r1", Status: runner.StatusFailed},
			{Host: "ghost", Status: runner.StatusFailed},
		},
	}

	replay := ReplayFailed(prior, original)
	if len(replay) != 1 || replay[0].Host != "r1" {
		t.Errorf("ReplayFailed() = %+v, want only r1", replay)
	}
}
