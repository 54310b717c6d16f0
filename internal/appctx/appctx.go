// Package appctx builds the process-wide CoreContext once, at startup, and
// threads it into every CLI entry point. It replaces the source's
// module-level singletons for templates, credentials, the store and the
// scheduler (spec.md §9, "Global configuration module").
package appctx

import (
	"github.com/netcapd/netcapd/internal/config"
	"github.com/netcapd/netcapd/internal/credential"
	"github.com/netcapd/netcapd/internal/fingerprint"
	"github.com/netcapd/netcapd/internal/runner"
	"github.com/netcapd/netcapd/internal/scheduler"
	"github.com/netcapd/netcapd/internal/store"
	"github.com/netcapd/netcapd/internal/template"
)

// CoreContext is the single explicitly-constructed bag of process-wide,
// read-mostly collaborators. Nothing outside of this struct and main is a
// package-level mutable singleton.
type CoreContext struct {
	Config           *config.Config
	TemplateStore    *template.Store
	CredentialSource *credential.Source
	Store            *store.Store
	Scheduler        *scheduler.Scheduler
	Runner           *runner.Runner
}

// Build constructs a CoreContext from the given configuration. The template
// catalog and credential source are loaded once and treated as read-only for
// the remainder of the process's lifetime, per spec §5 ("Shared resources").
func Build(cfg *config.Config) (*CoreContext, error) {
	tmplStore, err := template.Load(cfg.TemplateRoot)
	if err != nil {
		return nil, err
	}

	credSource := credential.LoadFromEnv()

	st, err := store.Open(cfg.StorePath, cfg.MaxReaderConns, cfg.WriterFairnessWait)
	if err != nil {
		return nil, err
	}

	engine := fingerprint.New(tmplStore, fingerprint.Scoring{
		PerRecord:   cfg.ScorePerRecord,
		HasRequired: cfg.ScoreHasRequired,
		VendorHint:  cfg.ScoreVendorHint,
		Minimum:     cfg.ScoreMinimum,
	})
	dr := runner.New(credSource, engine)

	sched := SchedulerFromConfig(cfg)
	sched.SetRunner(dr)

	return &CoreContext{
		Config:           cfg,
		TemplateStore:    tmplStore,
		CredentialSource: credSource,
		Store:            st,
		Scheduler:        sched,
		Runner:           dr,
	}, nil
}

// SchedulerFromConfig builds a Scheduler from cfg's tunables without wiring
// a runner. Subcommands that accept their own overrides (e.g. `batch`'s
// --workers/--stop-on-error flags) build their own scheduler this way and
// call SetRunner with the shared CoreContext.Runner, rather than mutating
// the process-wide scheduler built at startup.
func SchedulerFromConfig(cfg *config.Config) *scheduler.Scheduler {
	return scheduler.New(scheduler.Options{
		Workers:           cfg.Workers,
		PerDeviceTimeout:  cfg.PerDeviceTimeout,
		PerCommandTimeout: cfg.PerCommandTimeout,
		BatchDeadline:     cfg.BatchDeadline,
		StopOnError:       cfg.StopOnError,
		DrainTimeout:      cfg.DrainTimeout,
		MaxOutputBytes:    cfg.MaxOutputBytes,
	})
}

// Close releases resources owned by the context (currently just the store's
// database handle). Safe to call on a partially-built context.
func (c *CoreContext) Close() error {
	if c == nil || c.Store == nil {
		return nil
	}
	return c.Store.Close()
}
