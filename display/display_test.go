package display

import (
	"context"
	"testing"

	"github.com/maple-underscore/x11stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingBus captures every transaction a driver issues.
type recordingBus struct {
	writes [][]byte
	addrs  []byte
	fail   error
}

func (b *recordingBus) Write(ctx context.Context, address byte, buffer []byte, opts ...x11stream.TxOption) error {
	return b.WriteRange(ctx, address, buffer, 0, len(buffer), opts...)
}

func (b *recordingBus) WriteRange(ctx context.Context, address byte, buffer []byte, start, end int, opts ...x11stream.TxOption) error {
	if b.fail != nil {
		return b.fail
	}
	cp := make([]byte, end-start)
	copy(cp, buffer[start:end])
	b.writes = append(b.writes, cp)
	b.addrs = append(b.addrs, address)
	return nil
}

func (b *recordingBus) ReadInto(ctx context.Context, address byte, buffer []byte, opts ...x11stream.TxOption) error {
	return nil
}

func (b *recordingBus) ReadIntoRange(ctx context.Context, address byte, buffer []byte, start, end int, opts ...x11stream.TxOption) error {
	return nil
}

func (b *recordingBus) WriteThenRead(ctx context.Context, address byte, out, in []byte, opts ...x11stream.TxOption) error {
	return nil
}

func (b *recordingBus) TryLock() bool { return true }
func (b *recordingBus) Unlock()       {}

func TestNew_KnownDrivers(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			drv, err := New(name, &recordingBus{}, DefaultAddress)
			require.NoError(t, err)
			assert.NotNil(t, drv)
		})
	}
}

func TestNew_UnknownDriverIsConfigError(t *testing.T) {
	_, err := New("ssd9999", &recordingBus{}, DefaultAddress)
	require.Error(t, err)
	var cfgErr *x11stream.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "driver", cfgErr.Field)
}

func TestOLED_SetPixelMapping(t *testing.T) {
	d := NewSSD1306(&recordingBus{}, DefaultAddress).(*oled)
	d.SetPixel(0, 0, true)
	assert.Equal(t, byte(0x01), d.buf[0])
	d.SetPixel(0, 7, true)
	assert.Equal(t, byte(0x81), d.buf[0])
	d.SetPixel(5, 9, true)
	assert.Equal(t, byte(0x02), d.buf[Width+5])
	d.SetPixel(0, 0, false)
	assert.Equal(t, byte(0x80), d.buf[0])
	// out of bounds pixels are dropped
	d.SetPixel(-1, 0, true)
	d.SetPixel(Width, Height, true)
}

func TestOLED_ShowChunksFitBridgeReports(t *testing.T) {
	bus := &recordingBus{}
	d := NewSSD1306(bus, DefaultAddress).(*oled)
	require.NoError(t, d.Show(context.Background()))
	require.NotEmpty(t, bus.writes)
	// addressing setup, then the full buffer in data chunks
	assert.Equal(t, byte(ctrlCommand), bus.writes[0][0])
	total := 0
	for _, w := range bus.writes[1:] {
		assert.Equal(t, byte(ctrlData), w[0])
		assert.LessOrEqual(t, len(w), dataChunk+1)
		total += len(w) - 1
	}
	assert.Equal(t, Width*Height/8, total)
}

func TestSH1106_ShowIsPaged(t *testing.T) {
	bus := &recordingBus{}
	d := NewSH1106(bus, DefaultAddress).(*oled)
	require.NoError(t, d.Show(context.Background()))
	var pages []byte
	for _, w := range bus.writes {
		if w[0] == ctrlCommand && w[1]&0xF0 == cmdSetPageStart {
			pages = append(pages, w[1]&0x0F)
			// column offset 2 into the 132-column RAM
			assert.Equal(t, byte(cmdSetLowColumn|0x02), w[2])
			assert.Equal(t, byte(cmdSetHighColumn), w[3])
		}
	}
	assert.Equal(t, []byte{0, 1, 2, 3, 4, 5, 6, 7}, pages)
}

func TestOLED_BlankClearsBuffer(t *testing.T) {
	bus := &recordingBus{}
	d := NewSSD1306(bus, DefaultAddress).(*oled)
	d.SetPixel(10, 10, true)
	require.NoError(t, d.Blank(context.Background()))
	for i, b := range d.buf {
		require.Equal(t, byte(0), b, "buffer byte %d not cleared", i)
	}
	// the blank frame reached the bus
	var zeros int
	for _, w := range bus.writes {
		if w[0] == ctrlData {
			for _, b := range w[1:] {
				require.Equal(t, byte(0), b)
				zeros++
			}
		}
	}
	assert.Equal(t, Width*Height/8, zeros)
}

func TestStatusScreen_RenderDrawsAndShows(t *testing.T) {
	bus := &recordingBus{}
	drv := NewSSD1306(bus, DefaultAddress)
	screen := NewStatusScreen(drv)
	require.NoError(t, screen.Render(context.Background(), "192.168.1.5", "Streaming"))
	require.NotEmpty(t, bus.writes)
	// something was actually drawn
	var lit bool
	for _, w := range bus.writes {
		if w[0] != ctrlData {
			continue
		}
		for _, b := range w[1:] {
			if b != 0 {
				lit = true
			}
		}
	}
	assert.True(t, lit)
}

func TestStatusScreen_RenderPropagatesTransferFailure(t *testing.T) {
	bus := &recordingBus{fail: &x11stream.DeviceError{Address: DefaultAddress, Err: assert.AnError}}
	screen := NewStatusScreen(NewSSD1306(bus, DefaultAddress))
	err := screen.Render(context.Background(), "No IP", "Unknown")
	require.Error(t, err)
	var devErr *x11stream.DeviceError
	assert.ErrorAs(t, err, &devErr)
}
