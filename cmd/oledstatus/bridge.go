package main

import (
	"context"
	"os"

	"github.com/maple-underscore/x11stream/adapter"
	"github.com/maple-underscore/x11stream/cmd/oledstatus/console"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

var bridgeCmd = cli.Command{
	Name:  "bridge",
	Usage: "CP2112 bridge diagnostics",
	Subcommands: cli.Commands{
		&bridgeStatusCmd,
		&bridgeReleaseCmd,
	},
}

var bridgeStatusCmd = cli.Command{
	Name: "status",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
	},
	Action: func(c *cli.Context) error {
		dev := adapter.NewCP2112()
		if err := dev.Open(); err != nil {
			return console.Exit(1, "bridge communication error: %s", console.Red(err))
		}
		defer func() { _ = dev.Close() }()
		ctx := console.SetVerbose(context.Background(), c.Bool("verbose"))
		status, err := dev.Status(ctx)
		if err != nil {
			return console.Exit(1, "bridge communication error: %s", console.Red(err))
		}
		enc := yaml.NewEncoder(os.Stdout)
		err = enc.Encode(status)
		if err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		return nil
	},
}

var bridgeReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel any stuck transfer and release the bus",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
	},
	Action: func(c *cli.Context) error {
		dev := adapter.NewCP2112()
		if err := dev.Open(); err != nil {
			return console.Exit(1, "bridge communication error: %s", console.Red(err))
		}
		defer func() { _ = dev.Close() }()
		ctx := console.SetVerbose(context.Background(), c.Bool("verbose"))
		status, err := dev.Cancel(ctx)
		if err != nil {
			return console.Exit(1, "bridge communication error: %s", console.Red(err))
		}
		enc := yaml.NewEncoder(os.Stdout)
		err = enc.Encode(status)
		if err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		return nil
	},
}
