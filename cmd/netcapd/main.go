package main

import (
	"context"
	"os"

	"github.com/paularlott/cli"
	"github.com/paularlott/cli/env"

	"github.com/netcapd/netcapd/cmd/batch"
	"github.com/netcapd/netcapd/cmd/captures"
	"github.com/netcapd/netcapd/cmd/fingerprints"
	"github.com/netcapd/netcapd/cmd/gapreport"
	"github.com/netcapd/netcapd/cmd/serve"
	"github.com/netcapd/netcapd/cmd/sweep"
	"github.com/netcapd/netcapd/internal/appctx"
	"github.com/netcapd/netcapd/internal/config"
	"github.com/netcapd/netcapd/internal/exitcode"
	"github.com/netcapd/netcapd/internal/log"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	env.Load()
	log.Configure("info", "console")

	cfg := config.Load(nil)
	core, err := appctx.Build(cfg)
	if err != nil {
		log.Error("failed to initialize", "error", err)
		os.Exit(exitcode.Unrecoverable)
	}
	defer core.Close()

	rootCmd := &cli.Command{
		Name:        "netcapd",
		Version:     version,
		Usage:       "Network device capture and fingerprinting daemon",
		Description: "Fans out SSH capture jobs across an inventory, fingerprints device output, and loads both into a relational store.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:         "log-level",
				Usage:        "Log level (trace, debug, info, warn, error)",
				DefaultValue: "info",
				EnvVars:      []string{"NETCAPD_LOG_LEVEL"},
				Global:       true,
			},
			&cli.StringFlag{
				Name:         "log-format",
				Usage:        "Log format (console, json)",
				DefaultValue: "console",
				EnvVars:      []string{"NETCAPD_LOG_FORMAT"},
				Global:       true,
			},
		},
		PreRun: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			log.Configure(cmd.GetString("log-level"), cmd.GetString("log-format"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			batch.Command(core),
			fingerprints.Command(core),
			captures.Command(core),
			serve.Command(core),
			gapreport.Command(core),
			sweep.Command(core),
		},
	}

	if err := rootCmd.Execute(context.Background()); err != nil {
		log.Error("command execution failed", "error", err)
		os.Exit(exitcode.From(err))
	}
}
