package monitor

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/maple-underscore/x11stream"
	"github.com/maple-underscore/x11stream/display"
	"gopkg.in/yaml.v3"
)

// Bus selection values for Config.Bus: the USB bridge, or a kernel bus
// by periph name ("native:1", "native:/dev/i2c-1").
const BusCP2112 = "cp2112"
const busNativePrefix = "native:"

// Duration unmarshals from yaml strings like "5s" or plain integers
// meaning seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var seconds int64
	if err := value.Decode(&seconds); err == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("could not parse duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Config is the full startup surface of the monitor. It is validated
// once before the loop starts; any invalid selection is fatal and the
// loop never runs.
type Config struct {
	Driver  string `yaml:"driver"`
	Address string `yaml:"address"`
	Bus     string `yaml:"bus"`

	Mux struct {
		Enabled bool   `yaml:"enabled"`
		Address string `yaml:"address"`
		Channel int    `yaml:"channel"`
	} `yaml:"mux"`

	ClockSpeed uint32   `yaml:"clock_speed"`
	Interval   Duration `yaml:"interval"`
	RetryDelay Duration `yaml:"retry_delay"`
	MaxRetries int      `yaml:"max_retries"`
}

func DefaultConfig() Config {
	cfg := Config{
		Driver:     "sh1106",
		Address:    "0x3C",
		Bus:        BusCP2112,
		ClockSpeed: 100_000,
		Interval:   Duration(5 * time.Second),
		RetryDelay: Duration(5 * time.Second),
		MaxRetries: 3,
	}
	cfg.Mux.Address = "0x70"
	return cfg
}

// Load reads a yaml config file over the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read config file: %w", err)
	}
	if err = yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("could not parse config file: %w", err)
	}
	return cfg, nil
}

// Validate checks every selection and resolves nothing lazily: a
// config that passes here will not produce configuration errors later.
func (c *Config) Validate() error {
	if _, err := display.New(c.Driver, nil, 0); err != nil {
		return err
	}
	if _, err := c.DisplayAddress(); err != nil {
		return err
	}
	if c.Bus != BusCP2112 && !strings.HasPrefix(c.Bus, busNativePrefix) {
		return &x11stream.ConfigError{Field: "bus", Reason: fmt.Sprintf("unknown bus %q, want %q or %q<name>", c.Bus, BusCP2112, busNativePrefix)}
	}
	if c.Mux.Enabled {
		if _, err := c.MuxAddress(); err != nil {
			return err
		}
		if c.Mux.Channel < 0 || c.Mux.Channel > 7 {
			return &x11stream.ConfigError{Field: "mux.channel", Reason: fmt.Sprintf("channel %d out of range 0-7", c.Mux.Channel)}
		}
	}
	if c.Interval <= 0 {
		return &x11stream.ConfigError{Field: "interval", Reason: "must be positive"}
	}
	if c.RetryDelay <= 0 {
		return &x11stream.ConfigError{Field: "retry_delay", Reason: "must be positive"}
	}
	if c.MaxRetries < 1 {
		return &x11stream.ConfigError{Field: "max_retries", Reason: "must be at least 1"}
	}
	if c.ClockSpeed == 0 {
		return &x11stream.ConfigError{Field: "clock_speed", Reason: "must be positive"}
	}
	return nil
}

// DisplayAddress parses the display address selection.
func (c *Config) DisplayAddress() (byte, error) {
	return parseAddress("address", c.Address)
}

// MuxAddress parses the multiplexer address selection.
func (c *Config) MuxAddress() (byte, error) {
	return parseAddress("mux.address", c.Mux.Address)
}

// NativeBusName returns the kernel bus name for a native bus selection.
func (c *Config) NativeBusName() string {
	return strings.TrimPrefix(c.Bus, busNativePrefix)
}

// IsNativeBus reports whether the config selects a kernel bus instead
// of the USB bridge.
func (c *Config) IsNativeBus() bool {
	return strings.HasPrefix(c.Bus, busNativePrefix)
}

func parseAddress(field, value string) (byte, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(value), "0x"), 16, 8)
	if err != nil {
		return 0, &x11stream.ConfigError{Field: field, Reason: fmt.Sprintf("could not parse %q as a hex address", value)}
	}
	if v < 0x08 || v > 0x77 {
		return 0, &x11stream.ConfigError{Field: field, Reason: fmt.Sprintf("address %#02x outside the valid 7-bit range 0x08-0x77", v)}
	}
	return byte(v), nil
}
