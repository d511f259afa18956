package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/maple-underscore/x11stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_DefaultsValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	addr, err := cfg.DisplayAddress()
	require.NoError(t, err)
	assert.Equal(t, byte(0x3C), addr)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown driver", func(c *Config) { c.Driver = "ssd1322" }, "driver"},
		{"bad address", func(c *Config) { c.Address = "zz" }, "address"},
		{"address outside window", func(c *Config) { c.Address = "0x03" }, "address"},
		{"unknown bus", func(c *Config) { c.Bus = "spi" }, "bus"},
		{"mux channel out of range", func(c *Config) { c.Mux.Enabled = true; c.Mux.Channel = 9 }, "mux.channel"},
		{"bad mux address", func(c *Config) { c.Mux.Enabled = true; c.Mux.Address = "0x100" }, "mux.address"},
		{"zero interval", func(c *Config) { c.Interval = 0 }, "interval"},
		{"negative retry delay", func(c *Config) { c.RetryDelay = Duration(-time.Second) }, "retry_delay"},
		{"zero retries", func(c *Config) { c.MaxRetries = 0 }, "max_retries"},
		{"zero clock", func(c *Config) { c.ClockSpeed = 0 }, "clock_speed"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := DefaultConfig()
			test.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var cfgErr *x11stream.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, test.field, cfgErr.Field)
		})
	}
}

func TestConfig_BusSelection(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.IsNativeBus())

	cfg.Bus = "native:/dev/i2c-1"
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.IsNativeBus())
	assert.Equal(t, "/dev/i2c-1", cfg.NativeBusName())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"driver: ssd1306\naddress: \"0x3D\"\ninterval: 10s\nmux:\n  enabled: true\n  channel: 4\n",
	), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ssd1306", cfg.Driver)
	assert.Equal(t, Duration(10*time.Second), cfg.Interval)
	assert.Equal(t, 4, cfg.Mux.Channel)
	// untouched keys keep their defaults
	assert.Equal(t, BusCP2112, cfg.Bus)
	assert.Equal(t, 3, cfg.MaxRetries)

	addr, err := cfg.DisplayAddress()
	require.NoError(t, err)
	assert.Equal(t, byte(0x3D), addr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
