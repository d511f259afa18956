package main

import (
	"context"
	"time"

	"github.com/maple-underscore/x11stream/cmd/oledstatus/console"
	"github.com/maple-underscore/x11stream/display"
	"github.com/urfave/cli/v2"
)

var displayCmd = cli.Command{
	Name: "display",
	Subcommands: cli.Commands{
		&displayTestCmd,
	},
}

var displayTestCmd = cli.Command{
	Name:  "test",
	Usage: "render a fixed test screen, hold it, then blank",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
		},
		&cli.StringFlag{
			Name:    "driver",
			Aliases: []string{"d"},
		},
		&cli.StringFlag{
			Name:    "address",
			Aliases: []string{"a"},
		},
		&cli.StringFlag{
			Name:    "bus",
			Aliases: []string{"b"},
		},
		&cli.DurationFlag{
			Name:  "hold",
			Value: 5 * time.Second,
			Usage: "how long to keep the test screen up",
		},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Exit(1, "configuration error: %s", console.Red(err))
		}
		ctx := console.SetVerbose(context.Background(), c.Bool("verbose"))

		bus, closeBus, err := openBus(ctx, cfg)
		if err != nil {
			return console.Exit(1, "bus initialization error: %s", console.Red(err))
		}
		defer func() { _ = closeBus() }()

		addr, err := cfg.DisplayAddress()
		if err != nil {
			return console.Exit(1, "configuration error: %s", console.Red(err))
		}
		drv, err := display.New(cfg.Driver, bus, addr)
		if err != nil {
			return console.Exit(1, "configuration error: %s", console.Red(err))
		}
		if err = drv.Init(ctx); err != nil {
			return console.Exit(1, "display initialization error: %s", console.Red(err))
		}

		screen := display.NewStatusScreen(drv)
		if err = screen.Render(ctx, "192.0.2.1", "Test"); err != nil {
			return console.Exit(1, "render error: %s", console.Red(err))
		}
		console.PInfof(console.PictoScreen, "test screen up for %s", c.Duration("hold"))
		time.Sleep(c.Duration("hold"))

		if err = screen.Blank(ctx); err != nil {
			return console.Exit(1, "blank error: %s", console.Red(err))
		}
		return nil
	},
}
