package i2c

import (
	"context"
	"fmt"

	"github.com/maple-underscore/x11stream"
)

// TCA9548A default I2C address (7-bit)
const DefaultMuxAddress = 0x70

// TCA9548A is an 8-channel bus multiplexer. Selecting a channel routes
// all subsequent transfers to the devices behind it; the bus adapter
// itself is unaware of mux state, so the channel must be selected
// before any traffic intended for the downstream device.
type TCA9548A struct {
	bus     x11stream.Bus
	address byte
}

func NewTCA9548A(bus x11stream.Bus, address byte) *TCA9548A {
	return &TCA9548A{bus: bus, address: address}
}

// Select enables exactly one downstream channel (0-7).
func (m *TCA9548A) Select(ctx context.Context, channel int) error {
	if channel < 0 || channel > 7 {
		return fmt.Errorf("tca9548a: channel %d out of range 0-7", channel)
	}
	if err := m.bus.Write(ctx, m.address, []byte{1 << channel}); err != nil {
		return fmt.Errorf("tca9548a: channel select failed: %w", err)
	}
	return nil
}

// Disable disconnects all downstream channels.
func (m *TCA9548A) Disable(ctx context.Context) error {
	if err := m.bus.Write(ctx, m.address, []byte{0x00}); err != nil {
		return fmt.Errorf("tca9548a: disable failed: %w", err)
	}
	return nil
}
