// Package serve implements the `serve` subcommand (SPEC_FULL §2): hosts the
// read-only MCP server over HTTP and, when a cron schedule is configured,
// drives a recurring capture batch in the background. Grounded on the
// teacher's cmd/server/main.go shape: mux + MCP endpoint + signal-driven
// graceful shutdown.
package serve

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/paularlott/cli"

	"github.com/netcapd/netcapd/internal/appctx"
	"github.com/netcapd/netcapd/internal/exitcode"
	"github.com/netcapd/netcapd/internal/inventory"
	"github.com/netcapd/netcapd/internal/log"
	"github.com/netcapd/netcapd/internal/mcpserver"
	"github.com/netcapd/netcapd/internal/model"
	"github.com/netcapd/netcapd/internal/progress"
	"github.com/netcapd/netcapd/internal/recur"
	"github.com/netcapd/netcapd/internal/runner"
)

// Command builds the `serve` subcommand bound to core.
func Command(core *appctx.CoreContext) *cli.Command {
	return &cli.Command{
		Name:        "serve",
		Usage:       "Host the read-only MCP server and the optional recurring batch runner",
		Description: "Serves device_status/capture_coverage/site_inventory/gap_report over MCP and, if --cron is set, repeats a capture batch on that schedule.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "HTTP listen address"},
			&cli.StringFlag{Name: "bearer-token", Usage: "MCP bearer token (overrides NETCAPD_BEARER_TOKEN)"},
			&cli.StringFlag{Name: "cron", Usage: "Cron schedule for a recurring batch (overrides NETCAPD_CRON_SPEC)"},
			&cli.StringFlag{Name: "inventory", Usage: "Inventory path for the recurring batch"},
			&cli.StringFlag{Name: "commands", Usage: "Comma-separated command sequence for the recurring batch"},
			&cli.StringFlag{Name: "capture-type", Usage: "Capture type for the recurring batch", DefaultValue: "version"},
			&cli.StringFlag{Name: "filter-site", Usage: "Glob filter on site prefix"},
			&cli.StringFlag{Name: "filter-vendor", Usage: "Glob filter on vendor hint"},
			&cli.StringFlag{Name: "filter-name", Usage: "Glob filter on display name"},
			&cli.StringFlag{Name: "output", Usage: "Capture output root directory for the recurring batch"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, core, cmd)
		},
	}
}

func run(ctx context.Context, core *appctx.CoreContext, cmd *cli.Command) error {
	bearerToken := coalesce(cmd.GetString("bearer-token"), core.Config.BearerToken)
	mcpSrv := mcpserver.NewServer(core.Store, bearerToken)

	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", mcpSrv.HandleRequest)

	listenAddr := coalesce(cmd.GetString("listen"), core.Config.ListenAddr)
	httpServer := &http.Server{Addr: listenAddr, Handler: mux}

	var recurRunner *recur.Runner
	cronSpec := coalesce(cmd.GetString("cron"), core.Config.CronSpec)
	if cronSpec != "" {
		spec := recur.BatchSpec{
			InventoryPath: cmd.GetString("inventory"),
			Filter: inventory.Filter{
				Site:   cmd.GetString("filter-site"),
				Vendor: cmd.GetString("filter-vendor"),
				Name:   cmd.GetString("filter-name"),
			},
			Commands:   splitCommands(cmd.GetString("commands")),
			OutputRoot: coalesce(cmd.GetString("output"), core.Config.CaptureRoot),
		}
		captureType := model.CaptureType(cmd.GetString("capture-type"))

		var obs progress.Observer
		if core.Config.RedisAddr != "" {
			obs = progress.NewRedisObserver(core.Config.RedisAddr, core.Config.RedisChannel)
		}
		recurRunner = recur.New(core.Scheduler, spec, obs, buildJobsFunc(captureType, core.Config.FingerprintRoot))

		if _, err := recurRunner.Start(ctx, cronSpec); err != nil {
			return exitcode.Wrap(exitcode.UsageError, fmt.Errorf("invalid --cron schedule: %w", err))
		}
		log.Info("recurring batch scheduled", "cron", cronSpec)
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("serve listening", "addr", listenAddr, "mcp_auth", bearerToken != "")
		serverErr <- httpServer.ListenAndServe()
	}()

	shutdownCtx, cancel := waitForShutdownSignal(ctx)
	defer cancel()

	select {
	case <-shutdownCtx.Done():
		log.Info("shutdown signal received, closing server")
		httpServer.Close()
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return exitcode.Wrap(exitcode.Unrecoverable, err)
		}
	}

	if recurRunner != nil {
		recurRunner.Stop()
	}

	if shutdownCtx.Err() != nil {
		return exitcode.Wrap(exitcode.Canceled, shutdownCtx.Err())
	}
	return nil
}

// waitForShutdownSignal mirrors spec.md §6's signal contract: SIGINT/SIGTERM
// starts graceful cancellation; a second signal within 3s forces an
// immediate, non-graceful exit, matching the teacher's os/signal usage in
// cmd/server/main.go generalized with the double-signal force path.
func waitForShutdownSignal(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case <-sigCh:
			log.Warn("second shutdown signal received, forcing immediate exit")
			os.Exit(exitcode.Canceled)
		case <-time.After(3 * time.Second):
		}
	}()

	return ctx, cancel
}

func buildJobsFunc(captureType model.CaptureType, fingerprintRoot string) func(recur.BatchSpec) ([]runner.DeviceJob, error) {
	return func(spec recur.BatchSpec) ([]runner.DeviceJob, error) {
		devices, err := inventory.Load(spec.InventoryPath)
		if err != nil {
			return nil, err
		}
		devices, err = spec.Filter.Apply(devices)
		if err != nil {
			return nil, err
		}

		jobs := make([]runner.DeviceJob, 0, len(devices))
		for _, d := range devices {
			name := d.DisplayName
			if name == "" {
				name = d.Host
			}
			name = strings.ToLower(name)
			jobs = append(jobs, runner.DeviceJob{
				Host:            d.Host,
				Port:            d.Port,
				CredentialID:    d.CredentialID,
				VendorHint:      d.Vendor,
				CaptureType:     captureType,
				Commands:        spec.Commands,
				OutputPath:      filepath.Join(spec.OutputRoot, string(captureType), name+".txt"),
				FingerprintPath: filepath.Join(fingerprintRoot, name+".json"),
			})
		}
		return jobs, nil
	}
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

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
