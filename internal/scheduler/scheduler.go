// Package scheduler implements the Scheduler (spec.md §4.6): a bounded
// worker pool that fans DeviceJobs out across W workers, enforces
// per-device and per-batch timeouts, and aggregates results. Adapted from
// the teacher's internal/worker/pool.go worker-pool shape (fixed goroutine
// count draining a shared job channel, context.CancelFunc for shutdown,
// sync.WaitGroup drain).
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/netcapd/netcapd/internal/log"
	"github.com/netcapd/netcapd/internal/progress"
	"github.com/netcapd/netcapd/internal/runner"
)

// Options configures a Scheduler (spec.md §4.6 `Contract`).
type Options struct {
	Workers           int
	PerDeviceTimeout  time.Duration
	PerCommandTimeout time.Duration
	BatchDeadline     time.Duration // zero means unbounded
	StopOnError       bool
	DrainTimeout      time.Duration // Tdrain
	MaxOutputBytes    int64
}

// BatchResult is the Scheduler's aggregate output (spec.md §4.6
// `BatchResult`).
type BatchResult struct {
	BatchID          string
	Total            int
	OK               int
	Failed           int
	Canceled         int
	PerDeviceResults []runner.DeviceResult
}

// Scheduler executes device jobs under bounded parallelism. It owns the
// worker pool's entire lifetime (spec.md §5, "Scheduling model").
type Scheduler struct {
	opts   Options
	runner *runner.Runner

	okCount       atomic.Int64
	failedCount   atomic.Int64
	canceledCount atomic.Int64
}

// New builds a Scheduler with the given options. Defaults are filled in for
// zero-valued fields, matching the documented defaults in spec.md §5/§4.6.
func New(opts Options) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.PerDeviceTimeout <= 0 {
		opts.PerDeviceTimeout = 10 * time.Minute
	}
	if opts.PerCommandTimeout <= 0 {
		opts.PerCommandTimeout = 60 * time.Second
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 5 * time.Second
	}
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = 16 << 20
	}
	return &Scheduler{opts: opts}
}

// SetRunner wires the Device Runner the scheduler dispatches jobs to. Kept
// separate from New so tests can substitute a fake runner.
func (s *Scheduler) SetRunner(r *runner.Runner) {
	s.runner = r
}

// Run executes jobs to completion under the configured bounds (spec.md
// §4.6 `Protocol`). obs may be nil.
func (s *Scheduler) Run(ctx context.Context, batchID string, jobs []runner.DeviceJob, obs progress.Observer) BatchResult {
	if obs == nil {
		obs = noopObserver{}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if s.opts.BatchDeadline > 0 {
		var batchCancel context.CancelFunc
		runCtx, batchCancel = context.WithTimeout(runCtx, s.opts.BatchDeadline)
		defer batchCancel()
	}

	jobCh := make(chan runner.DeviceJob, len(jobs))
	for _, j := range jobs {
		if j.PerDeviceTimeout <= 0 {
			j.PerDeviceTimeout = s.opts.PerDeviceTimeout
		}
		jobCh <- j
		obs.Notify(progress.Event{BatchID: batchID, Host: j.Host, Phase: progress.PhaseScheduled, Time: time.Now()})
	}
	close(jobCh)

	resultsCh := make(chan runner.DeviceResult, len(jobs))
	var wg sync.WaitGroup
	var stopOnce sync.Once
	stopped := atomic.NewBool(false)

	for w := 0; w < s.opts.Workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.worker(runCtx, id, batchID, jobCh, resultsCh, obs, stopped, &stopOnce, cancel)
		}(w)
	}

	// resultsCh is only ever closed after wg.Wait() confirms every worker
	// has returned. A worker wedged past its context deadline (sshsession
	// clears its read/write deadlines after the handshake, so a hung PTY
	// negotiation is not ctx-bounded) can still be blocked on `results <-
	// result` long after the batch ceiling or drain timeout below fires;
	// closing the channel out from under it would panic the send. A
	// collector goroutine drains resultsCh concurrently into a
	// mutex-guarded slice so Run can read a safe snapshot even while
	// abandoned workers are still in flight.
	var collectMu sync.Mutex
	var collected []runner.DeviceResult
	collectDone := make(chan struct{})
	go func() {
		for r := range resultsCh {
			collectMu.Lock()
			collected = append(collected, r)
			collectMu.Unlock()
		}
		close(collectDone)
	}()

	drainDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(resultsCh)
		<-collectDone
		close(drainDone)
	}()

	select {
	case <-drainDone:
	case <-time.After(s.batchCeiling(len(jobs))):
	}

	select {
	case <-drainDone:
	case <-time.After(s.opts.DrainTimeout):
		log.Warn("scheduler drain timeout exceeded, abandoning workers", "batch_id", batchID)
	}

	collectMu.Lock()
	snapshot := append([]runner.DeviceResult(nil), collected...)
	collectMu.Unlock()

	result := BatchResult{BatchID: batchID, Total: len(jobs)}
	seen := make(map[string]bool, len(jobs))
	for _, r := range snapshot {
		result.PerDeviceResults = append(result.PerDeviceResults, r)
		seen[r.Host] = true
		switch r.Status {
		case runner.StatusOK:
			result.OK++
		case runner.StatusCanceled:
			result.Canceled++
		default:
			result.Failed++
		}
	}

	// Jobs that never started (queue closed under stopOnError, or batch
	// deadline hit before a worker claimed them) are finalized as canceled.
	for _, j := range jobs {
		if !seen[j.Host] {
			result.PerDeviceResults = append(result.PerDeviceResults, runner.DeviceResult{
				Host:   j.Host,
				Status: runner.StatusCanceled,
			})
			result.Canceled++
		}
	}

	return result
}

func (s *Scheduler) batchCeiling(n int) time.Duration {
	if n == 0 {
		return 0
	}
	batches := (n + s.opts.Workers - 1) / s.opts.Workers
	return time.Duration(batches) * s.opts.PerDeviceTimeout
}

func (s *Scheduler) worker(ctx context.Context, id int, batchID string, jobs <-chan runner.DeviceJob, results chan<- runner.DeviceResult, obs progress.Observer, stopped *atomic.Bool, stopOnce *sync.Once, cancelAll context.CancelFunc) {
	for {
		if stopped.Load() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			s.runJob(ctx, id, batchID, job, results, obs, stopped, stopOnce, cancelAll)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, workerID int, batchID string, job runner.DeviceJob, results chan<- runner.DeviceResult, obs progress.Observer, stopped *atomic.Bool, stopOnce *sync.Once, cancelAll context.CancelFunc) {
	obs.Notify(progress.Event{BatchID: batchID, Host: job.Host, Phase: progress.PhaseStarted, Time: time.Now()})

	jobCtx, cancel := context.WithTimeout(ctx, job.PerDeviceTimeout)
	defer cancel()

	result := s.runner.Run(jobCtx, job)

	switch result.Status {
	case runner.StatusOK:
		s.okCount.Inc()
		obs.Notify(progress.Event{BatchID: batchID, Host: job.Host, Phase: progress.PhaseDone, Elapsed: result.Elapsed, Time: time.Now()})
	case runner.StatusCanceled:
		s.canceledCount.Inc()
		obs.Notify(progress.Event{BatchID: batchID, Host: job.Host, Phase: progress.PhaseCanceled, Elapsed: result.Elapsed, Time: time.Now()})
	default:
		s.failedCount.Inc()
		outcome := ""
		if result.Err != nil {
			outcome = result.Err.Error()
		}
		obs.Notify(progress.Event{BatchID: batchID, Host: job.Host, Phase: progress.PhaseFailed, Elapsed: result.Elapsed, Outcome: outcome, Time: time.Now()})
		if s.opts.StopOnError {
			stopOnce.Do(func() {
				stopped.Store(true)
				cancelAll()
				log.Warn("stopOnError triggered, canceling in-flight jobs", "batch_id", batchID, "host", job.Host)
			})
		}
	}

	results <- result
}

// Counts returns the live success/failure/canceled counters, useful for
// progress reporting mid-batch.
func (s *Scheduler) Counts() (ok, failed, canceled int64) {
	return s.okCount.Load(), s.failedCount.Load(), s.canceledCount.Load()
}

// ReplayFailed rebuilds a job list from the failed subset of a prior
// BatchResult (spec.md §4.6, "Fairness"), given the original jobs keyed by
// host.
func ReplayFailed(prior BatchResult, original map[string]runner.DeviceJob) []runner.DeviceJob {
	var jobs []runner.DeviceJob
	for _, r := range prior.PerDeviceResults {
		if r.Status != runner.StatusFailed {
			continue
		}
		if job, ok := original[r.Host]; ok {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

type noopObserver struct{}

func (noopObserver) Notify(progress.Event) {}
