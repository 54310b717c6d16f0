// Package gapreport implements the `gap-report` subcommand (SPEC_FULL §3),
// a CLI surface over internal/gapreport's coverage computation.
package gapreport

import (
	"context"
	"fmt"
	"strings"

	"github.com/paularlott/cli"

	"github.com/netcapd/netcapd/internal/appctx"
	"github.com/netcapd/netcapd/internal/exitcode"
	"github.com/netcapd/netcapd/internal/gapreport"
	"github.com/netcapd/netcapd/internal/log"
	"github.com/netcapd/netcapd/internal/model"
)

// Command builds the `gap-report` subcommand bound to core.
func Command(core *appctx.CoreContext) *cli.Command {
	return &cli.Command{
		Name:        "gap-report",
		Usage:       "List devices missing a successful capture of a given type",
		Description: "Reports coverage for one capture type, or every known capture type when --capture-type is omitted.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "capture-type", Usage: "Capture type to check (all known types if omitted)"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, core, cmd)
		},
	}
}

func run(ctx context.Context, core *appctx.CoreContext, cmd *cli.Command) error {
	types := model.DefaultCaptureTypes
	if ct := cmd.GetString("capture-type"); ct != "" {
		types = []model.CaptureType{model.CaptureType(ct)}
	}

	reports, err := gapreport.BuildAll(ctx, core.Store, types)
	if err != nil {
		log.Error("gap report failed", "error", err)
		return exitcode.Wrap(exitcode.Unrecoverable, err)
	}

	var incomplete int
	for _, r := range reports {
		if len(r.MissingHosts) == 0 {
			fmt.Printf("%s\tfull coverage (%d/%d)\n", r.CaptureType, r.CoveredCount, r.TotalDevices)
			continue
		}
		incomplete++
		fmt.Printf("%s\t%d/%d covered\tmissing: %s\n",
			r.CaptureType, r.CoveredCount, r.TotalDevices, strings.Join(r.MissingHosts, ", "))
	}

	if incomplete > 0 {
		return exitcode.Wrap(1, fmt.Errorf("%d capture type(s) have coverage gaps", incomplete))
	}
	return nil
}
