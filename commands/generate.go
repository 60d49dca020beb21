package commands

import (
	"context"

	"github.com/activecm/connwatch/pkg/generator"
	"github.com/activecm/connwatch/resources"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:  "generate",
		Usage: "Append random connections to a connection log for testing the watcher",
		Flags: []cli.Flag{
			configFlag,
			cli.StringFlag{
				Name:  "file, f",
				Usage: "Append to the connection log at `FILE`",
			},
			cli.IntFlag{
				Name:  "count, n",
				Usage: "Append `N` connections each round",
			},
			cli.DurationFlag{
				Name:  "interval, i",
				Usage: "Wait `DURATION` between rounds",
			},
			cli.StringFlag{
				Name:  "destination, d",
				Usage: "Send every connection to `HOST`",
			},
			cli.IntFlag{
				Name:  "iterations",
				Usage: "Stop after `N` rounds, 0 runs until interrupted",
			},
		},
		Action: runGenerate,
	}

	bootstrapCommands(command)
}

func runGenerate(c *cli.Context) error {
	res, err := resources.InitResources(c.String("config"))
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}

	cfg := res.Config.S.Generator
	logFile := res.Config.S.Watch.File
	if c.IsSet("file") {
		logFile = c.String("file")
	}
	if c.IsSet("count") {
		cfg.Count = c.Int("count")
	}
	if c.IsSet("interval") {
		cfg.Interval = c.Duration("interval")
	}
	if c.IsSet("destination") {
		cfg.Destination = c.String("destination")
	}
	if cfg.Count <= 0 || cfg.Interval <= 0 {
		return cli.NewExitError("--count and --interval must be positive", -1)
	}

	gen := generator.New(logFile,
		generator.WithCount(cfg.Count),
		generator.WithDestination(cfg.Destination),
		generator.WithLogger(res.Log),
	)

	ctx, stop := signalContext()
	defer stop()

	err = gen.Run(ctx, cfg.Interval, c.Int("iterations"))
	if err != nil && err != context.Canceled {
		res.Log.Error(err)
		return cli.NewExitError(err.Error(), -1)
	}
	return nil
}
