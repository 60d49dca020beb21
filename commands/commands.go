package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"
)

var allCommands []cli.Command

var (
	configFlag = cli.StringFlag{
		Name:  "config, c",
		Usage: "Load configuration from `FILE`",
		Value: "",
	}

	humanFlag = cli.BoolFlag{
		Name:  "human-readable, H",
		Usage: "Print a table instead of comma separated values",
	}

	hostFlag = cli.StringFlag{
		Name:  "host",
		Usage: "Report on `HOST` instead of the configured host",
	}
)

// Commands provides all of the defined commands to the front end
func Commands() []cli.Command {
	return allCommands
}

// bootstrapCommands adds commands to the list handed to the front end
func bootstrapCommands(commands ...cli.Command) {
	allCommands = append(allCommands, commands...)
}

// signalContext returns a context which is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
