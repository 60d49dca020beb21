package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/activecm/connwatch/commands"
	"github.com/activecm/connwatch/config"
	"github.com/urfave/cli"
)

// Entry point of connwatch
func main() {
	app := cli.NewApp()
	app.Name = "connwatch"
	app.Usage = "Watch a connection log and summarize the last hour around a host"
	app.Version = config.Version

	// Define commands used with this application
	app.Commands = commands.Commands()

	runtime.GOMAXPROCS(runtime.NumCPU())
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
