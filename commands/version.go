package commands

import (
	"fmt"

	"github.com/activecm/connwatch/config"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:   "version",
		Usage:  "Show connwatch version",
		Flags:  []cli.Flag{configFlag},
		Action: showVersion,
	}

	bootstrapCommands(command)
}

func showVersion(c *cli.Context) error {
	conf, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}
	fmt.Printf("%s version %s (%s)\n", c.App.Name, conf.R.Version.String(), conf.S.ExactVersion)
	return nil
}
