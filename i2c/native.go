package i2c

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maple-underscore/x11stream"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

var _ x11stream.BridgeDevice = &NativeBus{}

// NativeBus is a bridge device backed by an in-kernel bus driver via
// periph.io, for hosts that do not need the USB bridge. The kernel
// driver serializes transfers, so the same single-transaction
// semantics hold.
type NativeBus struct {
	bus i2c.BusCloser
}

func NewNativeBus(dev string) (*NativeBus, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("host driver loaded", "driver", driver.String())
	}
	bus, err := i2creg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus: %w", err)
	}
	return &NativeBus{
		bus: bus,
	}, nil
}

func (b *NativeBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	err := b.bus.Tx(uint16(address), nil, buffer)
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	return nil
}

func (b *NativeBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	err := b.bus.Tx(uint16(address), buffer, nil)
	if err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	return nil
}

func (b *NativeBus) Close() error {
	return b.bus.Close()
}
