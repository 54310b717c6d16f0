// Package batch implements the `batch` subcommand (spec.md §6): runs a
// capture batch against a filtered slice of the device inventory.
package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paularlott/cli"

	"github.com/netcapd/netcapd/internal/appctx"
	"github.com/netcapd/netcapd/internal/exitcode"
	"github.com/netcapd/netcapd/internal/inventory"
	"github.com/netcapd/netcapd/internal/log"
	"github.com/netcapd/netcapd/internal/model"
	"github.com/netcapd/netcapd/internal/progress"
	"github.com/netcapd/netcapd/internal/runner"
	"github.com/netcapd/netcapd/internal/scheduler"
)

// Command builds the `batch` subcommand bound to core.
func Command(core *appctx.CoreContext) *cli.Command {
	return &cli.Command{
		Name:        "batch",
		Usage:       "Run a capture batch against inventory devices",
		Description: "Loads the device inventory, applies filters, and runs the configured command sequence against each matching device.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "inventory", Usage: "Path to the device inventory document", Required: true},
			&cli.StringFlag{Name: "filter-site", Usage: "Glob filter on site prefix"},
			&cli.StringFlag{Name: "filter-vendor", Usage: "Glob filter on vendor hint"},
			&cli.StringFlag{Name: "filter-name", Usage: "Glob filter on display name"},
			&cli.StringFlag{Name: "commands", Usage: "Comma-separated command sequence", Required: true},
			&cli.StringFlag{Name: "capture-type", Usage: "Capture type label for this batch", DefaultValue: "version"},
			&cli.StringFlag{Name: "output", Usage: "Capture output root directory"},
			&cli.IntFlag{Name: "workers", Usage: "Worker pool size"},
			&cli.StringFlag{Name: "per-device-timeout", Usage: "Per-device timeout (e.g. 10m)"},
			&cli.StringFlag{Name: "batch-deadline", Usage: "Optional overall batch deadline (e.g. 30m)"},
			&cli.BoolFlag{Name: "stop-on-error", Usage: "Cancel the batch on the first device failure"},
			&cli.BoolFlag{Name: "fingerprint-only", Usage: "Only run against devices lacking a fingerprint"},
			&cli.BoolFlag{Name: "fingerprinted-only", Usage: "Only run against devices already fingerprinted"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Resolve the job set and print it without connecting"},
			&cli.StringFlag{Name: "replay", Usage: "Batch ID of a prior run; re-runs only the devices that failed"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, core, cmd)
		},
	}
}

func run(ctx context.Context, core *appctx.CoreContext, cmd *cli.Command) error {
	if replayID := cmd.GetString("replay"); replayID != "" {
		return runReplay(ctx, core, cmd, replayID)
	}

	devices, err := inventory.Load(cmd.GetString("inventory"))
	if err != nil {
		log.Error("failed to load inventory", "error", err)
		return exitcode.Wrap(exitcode.UsageError, err)
	}

	filter := inventory.Filter{
		Site:   cmd.GetString("filter-site"),
		Vendor: cmd.GetString("filter-vendor"),
		Name:   cmd.GetString("filter-name"),
	}
	devices, err = filter.Apply(devices)
	if err != nil {
		return exitcode.Wrap(exitcode.UsageError, err)
	}

	if cmd.GetBool("fingerprint-only") || cmd.GetBool("fingerprinted-only") {
		devices, err = filterByFingerprintState(ctx, core, devices, cmd.GetBool("fingerprinted-only"))
		if err != nil {
			return exitcode.Wrap(exitcode.Unrecoverable, err)
		}
	}

	commands := splitCommands(cmd.GetString("commands"))
	outputRoot := cmd.GetString("output")
	if outputRoot == "" {
		outputRoot = core.Config.CaptureRoot
	}
	captureType := model.CaptureType(cmd.GetString("capture-type"))

	jobs := make([]runner.DeviceJob, 0, len(devices))
	for _, d := range devices {
		jobs = append(jobs, runner.DeviceJob{
			Host:            d.Host,
			Port:            d.Port,
			CredentialID:    d.CredentialID,
			VendorHint:      d.Vendor,
			CaptureType:     captureType,
			Commands:        commands,
			OutputPath:      filepath.Join(outputRoot, string(captureType), normalizedName(d)+".txt"),
			FingerprintPath: filepath.Join(core.Config.FingerprintRoot, normalizedName(d)+".json"),
		})
	}

	if cmd.GetBool("dry-run") {
		for _, j := range jobs {
			fmt.Printf("%s\t%s\t%s\n", j.Host, j.VendorHint, j.OutputPath)
		}
		return nil
	}

	if len(jobs) == 0 {
		log.Warn("no devices matched the given filters")
		return nil
	}

	sched, err := schedulerForInvocation(core, cmd)
	if err != nil {
		return exitcode.Wrap(exitcode.UsageError, err)
	}

	batchID := uuid.NewString()
	obs := progress.NewChannelObserver(256)
	go drainProgress(obs)

	result := sched.Run(ctx, batchID, jobs, obs)
	obs.Close()

	if err := core.Store.SaveBatchRun(ctx, result, jobs); err != nil {
		log.Warn("failed to persist batch run for later replay", "batch_id", batchID, "error", err)
	}

	log.Info("batch finished", "batch_id", batchID,
		"total", result.Total, "ok", result.OK, "failed", result.Failed, "canceled", result.Canceled)

	if ctx.Err() != nil {
		return exitcode.Wrap(exitcode.Canceled, ctx.Err())
	}
	if result.Failed > 0 {
		return exitcode.Wrap(1, fmt.Errorf("%d device(s) failed", result.Failed))
	}
	return nil
}

// runReplay implements `batch --replay` (spec.md §6, "Replay-failed
// helper"): it loads the prior batch's persisted result and job set,
// rebuilds the failed subset via scheduler.ReplayFailed, and resubmits it
// as a fresh batch.
func runReplay(ctx context.Context, core *appctx.CoreContext, cmd *cli.Command, replayID string) error {
	priorResult, priorJobs, err := core.Store.LoadBatchRun(ctx, replayID)
	if err != nil {
		return exitcode.Wrap(exitcode.UsageError, fmt.Errorf("loading prior batch %s: %w", replayID, err))
	}

	original := make(map[string]runner.DeviceJob, len(priorJobs))
	for _, j := range priorJobs {
		original[j.Host] = j
	}
	jobs := scheduler.ReplayFailed(priorResult, original)
	if len(jobs) == 0 {
		log.Info("replay found no failed devices to re-run", "batch_id", replayID)
		return nil
	}

	sched, err := schedulerForInvocation(core, cmd)
	if err != nil {
		return exitcode.Wrap(exitcode.UsageError, err)
	}

	batchID := uuid.NewString()
	obs := progress.NewChannelObserver(256)
	go drainProgress(obs)

	result := sched.Run(ctx, batchID, jobs, obs)
	obs.Close()

	if err := core.Store.SaveBatchRun(ctx, result, jobs); err != nil {
		log.Warn("failed to persist replay batch run", "batch_id", batchID, "error", err)
	}

	log.Info("replay batch finished", "batch_id", batchID, "replayed_from", replayID,
		"total", result.Total, "ok", result.OK, "failed", result.Failed, "canceled", result.Canceled)

	if ctx.Err() != nil {
		return exitcode.Wrap(exitcode.Canceled, ctx.Err())
	}
	if result.Failed > 0 {
		return exitcode.Wrap(1, fmt.Errorf("%d device(s) failed", result.Failed))
	}
	return nil
}

// schedulerForInvocation builds a Scheduler for this one run, layering the
// batch command's own flags over the process-wide config, and wires it to
// the CoreContext's shared Device Runner. This keeps the long-lived
// CoreContext.Scheduler (used by `serve`'s recurring batches) unaffected by
// one-off CLI overrides.
func schedulerForInvocation(core *appctx.CoreContext, cmd *cli.Command) (*scheduler.Scheduler, error) {
	overrides := *core.Config
	if w := cmd.GetInt("workers"); w > 0 {
		overrides.Workers = w
	}
	if cmd.GetBool("stop-on-error") {
		overrides.StopOnError = true
	}
	if raw := cmd.GetString("per-device-timeout"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid --per-device-timeout: %w", err)
		}
		overrides.PerDeviceTimeout = d
	}
	if raw := cmd.GetString("batch-deadline"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid --batch-deadline: %w", err)
		}
		overrides.BatchDeadline = d
	}

	sched := appctx.SchedulerFromConfig(&overrides)
	sched.SetRunner(core.Runner)
	return sched, nil
}

func drainProgress(obs *progress.ChannelObserver) {
	for e := range obs.Events() {
		log.Debug("progress", "batch_id", e.BatchID, "host", e.Host, "phase", string(e.Phase))
	}
}

func filterByFingerprintState(ctx context.Context, core *appctx.CoreContext, devices []inventory.Device, wantFingerprinted bool) ([]inventory.Device, error) {
	statuses, err := core.Store.DeviceStatus(ctx, "")
	if err != nil {
		return nil, err
	}
	fingerprinted := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		fingerprinted[s.NormalizedName] = s.LastFingerprint.Valid
	}

	var out []inventory.Device
	for _, d := range devices {
		name := normalizedName(d)
		if fingerprinted[name] == wantFingerprinted {
			out = append(out, d)
		}
	}
	return out, nil
}

func normalizedName(d inventory.Device) string {
	name := d.DisplayName
	if name == "" {
		name = d.Host
	}
	return strings.ToLower(name)
}

func splitCommands(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
