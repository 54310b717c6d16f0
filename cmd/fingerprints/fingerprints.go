// Package fingerprints implements the `load-fingerprints` subcommand
// (spec.md §6): ingests a directory of fingerprint JSON records into the
// store.
package fingerprints

import (
	"context"
	"fmt"

	"github.com/paularlott/cli"

	"github.com/netcapd/netcapd/internal/appctx"
	"github.com/netcapd/netcapd/internal/exitcode"
	"github.com/netcapd/netcapd/internal/loader"
	"github.com/netcapd/netcapd/internal/log"
	"github.com/netcapd/netcapd/internal/store"
)

// Command builds the `load-fingerprints` subcommand bound to core.
func Command(core *appctx.CoreContext) *cli.Command {
	return &cli.Command{
		Name:        "load-fingerprints",
		Usage:       "Ingest a fingerprint directory into the store",
		Description: "Walks a directory of <device-normalized-name>.json fingerprint records and upserts each device.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Usage: "Fingerprint directory to ingest", Required: true},
			&cli.StringFlag{Name: "store", Usage: "Override the configured store path"},
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

	summaries, err := ld.LoadFingerprintDir(ctx, cmd.GetString("dir"))
	if err != nil {
		log.Error("failed to load fingerprint directory", "error", err)
		return exitcode.Wrap(exitcode.UsageError, err)
	}

	var failed int
	for _, s := range summaries {
		if s.Err != nil {
			failed++
			log.Warn("fingerprint ingest failed", "path", s.Path, "error", s.Err)
			continue
		}
		log.Info("fingerprint ingested", "path", s.Path)
	}

	log.Info("load-fingerprints finished", "total", len(summaries), "failed", failed)
	if failed > 0 {
		return exitcode.Wrap(1, fmt.Errorf("%d fingerprint file(s) failed to ingest", failed))
	}
	return nil
}
