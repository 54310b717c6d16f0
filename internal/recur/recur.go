// Package recur implements the cron-driven recurring batch runner (SPEC_FULL
// §2): an additive `netcapd serve` mode that fires a full capture batch on a
// schedule, recovering the original deployment's cron-invoked batch script
// (original_source/pcng/run_jobs_batch.py) as a first-class mode rather than
// an external cron entry.
package recur

import (
	"context"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/netcapd/netcapd/internal/inventory"
	"github.com/netcapd/netcapd/internal/log"
	"github.com/netcapd/netcapd/internal/progress"
	"github.com/netcapd/netcapd/internal/runner"
	"github.com/netcapd/netcapd/internal/scheduler"
)

// BatchSpec is the fixed batch configuration a recurring run re-executes on
// every tick.
type BatchSpec struct {
	InventoryPath string
	Filter        inventory.Filter
	Commands      []string
	OutputRoot    string
	CredentialID  string
}

// Runner ties a cron schedule to a repeated Scheduler.Run invocation.
type Runner struct {
	cron      *cron.Cron
	sched     *scheduler.Scheduler
	spec      BatchSpec
	observer  progress.Observer
	buildJobs func(BatchSpec) ([]runner.DeviceJob, error)
}

// New builds a Runner. buildJobs turns a BatchSpec into the device job list
// for one tick (typically the same inventory-load-and-filter path `batch`
// uses directly).
func New(sched *scheduler.Scheduler, spec BatchSpec, obs progress.Observer, buildJobs func(BatchSpec) ([]runner.DeviceJob, error)) *Runner {
	return &Runner{
		cron:      cron.New(),
		sched:     sched,
		spec:      spec,
		observer:  obs,
		buildJobs: buildJobs,
	}
}

// Start schedules the batch on cronSpec (standard 5-field cron syntax) and
// begins the cron goroutine. Call Stop to end it.
func (r *Runner) Start(ctx context.Context, cronSpec string) (cron.EntryID, error) {
	id, err := r.cron.AddFunc(cronSpec, func() {
		r.runOnce(ctx)
	})
	if err != nil {
		return 0, err
	}
	r.cron.Start()
	return id, nil
}

// Stop halts the cron scheduler and waits for any in-flight tick to finish.
func (r *Runner) Stop() {
	stopCtx := r.cron.Stop()
	<-stopCtx.Done()
}

func (r *Runner) runOnce(ctx context.Context) {
	batchID := uuid.NewString()
	log.Info("recurring batch tick starting", "batch_id", batchID)

	jobs, err := r.buildJobs(r.spec)
	if err != nil {
		log.Error("recurring batch tick failed to build jobs", "batch_id", batchID, "error", err)
		return
	}

	result := r.sched.Run(ctx, batchID, jobs, r.observer)
	log.Info("recurring batch tick finished", "batch_id", batchID,
		"total", result.Total, "ok", result.OK, "failed", result.Failed, "canceled", result.Canceled)
}
