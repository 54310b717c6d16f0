// Package sweep implements the `sweep-archive` subcommand (SPEC_FULL §3): a
// standalone CLI surface over the Loader's bounded archive-retention sweep,
// for operators who run it outside of a `load-captures` invocation.
package sweep

import (
	"context"
	"time"

	"github.com/paularlott/cli"

	"github.com/netcapd/netcapd/internal/appctx"
	"github.com/netcapd/netcapd/internal/exitcode"
	"github.com/netcapd/netcapd/internal/loader"
	"github.com/netcapd/netcapd/internal/log"
)

// Command builds the `sweep-archive` subcommand bound to core.
func Command(core *appctx.CoreContext) *cli.Command {
	return &cli.Command{
		Name:        "sweep-archive",
		Usage:       "Delete archived captures past the retention window",
		Description: "Runs the bounded archive-retention sweep without ingesting any new captures.",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "retention-days", Usage: "Archive retention in days (default from config)"},
			&cli.IntFlag{Name: "batch-size", Usage: "Rows deleted per sweep pass (default from config)"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, core, cmd)
		},
	}
}

func run(ctx context.Context, core *appctx.CoreContext, cmd *cli.Command) error {
	ld := loader.New(core.Store, core.Config.CaptureRoot, core.Config.SitePrefixPolicy)

	retention := core.Config.ArchiveRetention
	if days := cmd.GetInt("retention-days"); days > 0 {
		retention = time.Duration(days) * 24 * time.Hour
	}
	batchSize := core.Config.SweepBatchSize
	if b := cmd.GetInt("batch-size"); b > 0 {
		batchSize = b
	}

	swept, err := ld.SweepArchive(ctx, retention, batchSize)
	if err != nil {
		log.Error("archive sweep failed", "error", err)
		return exitcode.Wrap(exitcode.Unrecoverable, err)
	}

	log.Info("archive sweep complete", "rows_deleted", swept)
	return nil
}
