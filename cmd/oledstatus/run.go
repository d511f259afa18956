package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/maple-underscore/x11stream/adapter"
	"github.com/maple-underscore/x11stream/cmd/oledstatus/console"
	"github.com/maple-underscore/x11stream/display"
	"github.com/maple-underscore/x11stream/i2c"
	"github.com/maple-underscore/x11stream/monitor"
	"github.com/urfave/cli/v2"
)

var runCmd = cli.Command{
	Name:  "run",
	Usage: "drive the status display until interrupted",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "yaml config file",
		},
		&cli.StringFlag{
			Name:    "driver",
			Aliases: []string{"d"},
			Usage:   "display driver name",
		},
		&cli.StringFlag{
			Name:    "address",
			Aliases: []string{"a"},
			Usage:   "display I2C address (hex)",
		},
		&cli.StringFlag{
			Name:    "bus",
			Aliases: []string{"b"},
			Usage:   "bus selection: cp2112 or native:<name>",
		},
		&cli.IntFlag{
			Name:  "mux-channel",
			Usage: "TCA9548A channel (enables the multiplexer)",
			Value: -1,
		},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Exit(1, "configuration error: %s", console.Red(err))
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = console.SetVerbose(ctx, c.Bool("verbose"))

		bus, closeBus, err := openBus(ctx, cfg)
		if err != nil {
			return console.Exit(1, "bus initialization error: %s", console.Red(err))
		}
		defer func() { _ = closeBus() }()

		if cfg.Mux.Enabled {
			if err = selectMuxChannel(ctx, cfg, bus); err != nil {
				// degrade to the bare bus, as if no mux was configured
				console.Warnf("multiplexer setup failed, continuing without it: %s", err)
			}
		}

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
		slog.Info("display initialized", "driver", cfg.Driver, "address", addr, "bus", cfg.Bus)

		loop := monitor.NewLoop(cfg, display.NewStatusScreen(drv), monitor.LocalIP, monitor.StreamStatus)
		if err = loop.Run(ctx); err != nil {
			return console.Exit(1, "monitor loop failed: %s", console.Red(err))
		}
		console.PInfof(console.PictoScreen, "display blanked, exiting")
		return nil
	},
}

func loadConfig(c *cli.Context) (monitor.Config, error) {
	cfg := monitor.DefaultConfig()
	var err error
	if path := c.String("config"); path != "" {
		cfg, err = monitor.Load(path)
		if err != nil {
			return cfg, err
		}
	}
	if driver := c.String("driver"); driver != "" {
		cfg.Driver = driver
	}
	if addr := c.String("address"); addr != "" {
		cfg.Address = addr
	}
	if bus := c.String("bus"); bus != "" {
		cfg.Bus = bus
	}
	if c.IsSet("mux-channel") && c.Int("mux-channel") >= 0 {
		cfg.Mux.Enabled = true
		cfg.Mux.Channel = c.Int("mux-channel")
	}
	if err = cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// openBus builds the bus adapter over the configured backend: the
// CP2112 USB bridge, or a kernel bus via periph. The bridge clock is
// configured once here, before any transfer.
func openBus(ctx context.Context, cfg monitor.Config) (*i2c.Adapter, func() error, error) {
	if cfg.IsNativeBus() {
		native, err := i2c.NewNativeBus(cfg.NativeBusName())
		if err != nil {
			return nil, nil, err
		}
		return i2c.NewAdapter(native), native.Close, nil
	}
	bridge := adapter.NewCP2112()
	if err := bridge.Open(); err != nil {
		return nil, nil, err
	}
	if err := bridge.ConfigureClock(ctx, cfg.ClockSpeed); err != nil {
		_ = bridge.Close()
		return nil, nil, err
	}
	return i2c.NewAdapter(bridge), bridge.Close, nil
}

func selectMuxChannel(ctx context.Context, cfg monitor.Config, bus *i2c.Adapter) error {
	muxAddr, err := cfg.MuxAddress()
	if err != nil {
		return err
	}
	mux := i2c.NewTCA9548A(bus, muxAddr)
	if err = mux.Select(ctx, cfg.Mux.Channel); err != nil {
		return err
	}
	slog.Info("multiplexer channel selected", "address", muxAddr, "channel", cfg.Mux.Channel)
	return nil
}
