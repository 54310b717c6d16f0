// Package captures implements the `load-captures` subcommand (spec.md §6):
// ingests a directory of raw capture artifacts into the store and sweeps
// the archive retention window.
package captures

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/paularlott/cli"

	"github.com/netcapd/netcapd/internal/appctx"
	"github.com/netcapd/netcapd/internal/exitcode"
	"github.com/netcapd/netcapd/internal/loader"
	"github.com/netcapd/netcapd/internal/log"
	"github.com/netcapd/netcapd/internal/model"
	"github.com/netcapd/netcapd/internal/store"
)

// Command builds the `load-captures` subcommand bound to core.
func Command(core *appctx.CoreContext) *cli.Command {
	return &cli.Command{
		Name:        "load-captures",
		Usage:       "Ingest a capture directory into the store",
		Description: "Walks a <dir>/<capture_type>/<device-normalized-name>.txt tree and upserts each capture, recording a change row when content differs from the prior snapshot.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Usage: "Capture directory to ingest", Required: true},
			&cli.StringFlag{Name: "store", Usage: "Override the configured store path"},
			&cli.StringFlag{Name: "types", Usage: "Comma-separated capture types to ingest (default: all known types)"},
			&cli.IntFlag{Name: "archive-days", Usage: "Archive retention in days (default from config)"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, core, cmd)
		},
	}
}

func run(ctx context.Context, core *appctx.CoreContext, cmd *cli.Command) error {
	st := core.Store
	if path := cmd.GetString("store"); path != "" && path != core.Config.StorePath {
		override, err := store.Open(path, core.Config.MaxReaderConns, core.Config.WriterFairnessWait)
		if err != nil {
			return exitcode.Wrap(exitcode.Unrecoverable, err)
		}
		defer override.Close()
		st = override
	}

	ld := loader.New(st, core.Config.CaptureRoot, core.Config.SitePrefixPolicy)

	types := parseCaptureTypes(cmd.GetString("types"))
	summaries, err := ld.LoadCaptureDir(ctx, cmd.GetString("dir"), model.NewCaptureTypeSet(types))
	if err != nil {
		log.Error("failed to load capture directory", "error", err)
		return exitcode.Wrap(exitcode.UsageError, err)
	}

	var failed, unknownDevice, changed int
	for _, s := range summaries {
		switch {
		case s.Err != nil:
			failed++
			log.Warn("capture ingest failed", "path", s.Path, "error", s.Err)
		case s.DeviceUnknown:
			unknownDevice++
		case s.ChangeSeverity != "":
			changed++
			log.Info("capture changed", "path", s.Path, "severity", s.ChangeSeverity)
		}
	}

	log.Info("load-captures finished", "total", len(summaries), "changed", changed,
		"unknown_device", unknownDevice, "failed", failed)

	retention := core.Config.ArchiveRetention
	if days := cmd.GetInt("archive-days"); days > 0 {
		retention = time.Duration(days) * 24 * time.Hour
	}
	swept, err := ld.SweepArchive(ctx, retention, core.Config.SweepBatchSize)
	if err != nil {
		log.Error("archive sweep failed", "error", err)
		return exitcode.Wrap(exitcode.Unrecoverable, err)
	}
	if swept > 0 {
		log.Info("archive sweep complete", "rows_deleted", swept)
	}

	if failed > 0 {
		return exitcode.Wrap(1, fmt.Errorf("%d capture file(s) failed to ingest", failed))
	}
	return nil
}

func parseCaptureTypes(raw string) []model.CaptureType {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]model.CaptureType, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, model.CaptureType(p))
		}
	}
	return out
}
