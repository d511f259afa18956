package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/maple-underscore/x11stream/cmd/oledstatus/console"
	"github.com/maple-underscore/x11stream/display"
	"github.com/maple-underscore/x11stream/i2c"
	"github.com/urfave/cli/v2"
)

var scanCmd = cli.Command{
	Name:  "scan",
	Usage: "probe the bus for acknowledging devices",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "bus",
			Aliases: []string{"b"},
			Value:   "cp2112",
			Usage:   "bus selection: cp2112 or native:<name>",
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

		found, err := bus.Scan(ctx)
		if err != nil {
			return console.Exit(1, "scan error: %s", console.Red(err))
		}
		if len(found) == 0 {
			console.PInfof(console.PictoStop, "no devices found in %#02x-%#02x", i2c.ScanFirst, i2c.ScanLast)
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 12, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "ADDRESS\tNOTE\n")
		for _, addr := range found {
			_, _ = fmt.Fprintf(w, "%#02x\t%s\n", addr, note(addr))
		}
		_ = w.Flush()
		return nil
	},
}

func note(addr byte) string {
	switch addr {
	case display.DefaultAddress, 0x3D:
		return "likely OLED display"
	case i2c.DefaultMuxAddress:
		return "likely TCA9548A multiplexer"
	default:
		return ""
	}
}
