package display

import (
	"context"
	"fmt"

	"github.com/maple-underscore/x11stream"
)

// Control bytes prefixed to every transfer: Co=0 D/C=0 for a command
// stream, Co=0 D/C=1 for display data.
const ctrlCommand = 0x00
const ctrlData = 0x40

// Shared command set of the SSD13xx/SH1106 controller family.
const (
	cmdSetContrast      = 0x81
	cmdAllOnResume      = 0xA4
	cmdNormalDisplay    = 0xA6
	cmdDisplayOff       = 0xAE
	cmdDisplayOn        = 0xAF
	cmdSetClockDiv      = 0xD5
	cmdSetMultiplex     = 0xA8
	cmdSetOffset        = 0xD3
	cmdSetStartLine     = 0x40
	cmdChargePump       = 0x8D
	cmdMemoryMode       = 0x20
	cmdSegRemap         = 0xA1
	cmdComScanDec       = 0xC8
	cmdSetComPins       = 0xDA
	cmdSetPrecharge     = 0xD9
	cmdSetVcomDetect    = 0xDB
	cmdSetColumnAddr    = 0x21
	cmdSetPageAddr      = 0x22
	cmdSetPageStart     = 0xB0
	cmdSetLowColumn     = 0x00
	cmdSetHighColumn    = 0x10
	cmdSH1106ChargePump = 0xAD
)

// Display data is pushed in chunks small enough for any bridge report
// size; 32 data bytes plus the control byte.
const dataChunk = 32

// oled is the framebuffer core shared by the supported controllers.
// They differ only in init sequence and in how Show addresses display
// RAM: the SSD13xx parts stream the whole buffer in horizontal
// addressing mode, the SH1106 has no horizontal mode and is written
// page by page with a column offset into its 132-column RAM.
type oled struct {
	bus     x11stream.Bus
	address byte
	name    string

	initSeq   []byte
	pageMode  bool
	colOffset byte

	buf     []byte
	scratch []byte
}

func newOLED(bus x11stream.Bus, address byte, name string, initSeq []byte, pageMode bool, colOffset byte) *oled {
	return &oled{
		bus:       bus,
		address:   address,
		name:      name,
		initSeq:   initSeq,
		pageMode:  pageMode,
		colOffset: colOffset,
		buf:       make([]byte, Width*Height/8),
		scratch:   make([]byte, dataChunk+1),
	}
}

func (d *oled) Size() (int, int) { return Width, Height }

func (d *oled) Clear() {
	for i := range d.buf {
		d.buf[i] = 0
	}
}

// SetPixel sets one pixel in the framebuffer. The buffer is page
// major: one byte covers an 8-pixel vertical strip.
func (d *oled) SetPixel(x, y int, on bool) {
	if x < 0 || x >= Width || y < 0 || y >= Height {
		return
	}
	idx := x + (y/8)*Width
	if on {
		d.buf[idx] |= 1 << (y % 8)
	} else {
		d.buf[idx] &^= 1 << (y % 8)
	}
}

func (d *oled) Init(ctx context.Context) error {
	if err := d.command(ctx, d.initSeq...); err != nil {
		return fmt.Errorf("%s: init sequence failed: %w", d.name, err)
	}
	if err := d.Blank(ctx); err != nil {
		return fmt.Errorf("%s: initial blank failed: %w", d.name, err)
	}
	return nil
}

func (d *oled) Show(ctx context.Context) error {
	if d.pageMode {
		return d.showPaged(ctx)
	}
	err := d.command(ctx,
		cmdSetColumnAddr, 0, Width-1,
		cmdSetPageAddr, 0, Height/8-1,
	)
	if err != nil {
		return fmt.Errorf("%s: addressing setup failed: %w", d.name, err)
	}
	if err = d.data(ctx, d.buf, 0, len(d.buf)); err != nil {
		return fmt.Errorf("%s: framebuffer write failed: %w", d.name, err)
	}
	return nil
}

func (d *oled) showPaged(ctx context.Context) error {
	for page := 0; page < Height/8; page++ {
		err := d.command(ctx,
			cmdSetPageStart|byte(page),
			cmdSetLowColumn|(d.colOffset&0x0F),
			cmdSetHighColumn|(d.colOffset>>4),
		)
		if err != nil {
			return fmt.Errorf("%s: page %d setup failed: %w", d.name, page, err)
		}
		if err = d.data(ctx, d.buf, page*Width, (page+1)*Width); err != nil {
			return fmt.Errorf("%s: page %d write failed: %w", d.name, page, err)
		}
	}
	return nil
}

func (d *oled) Blank(ctx context.Context) error {
	d.Clear()
	return d.Show(ctx)
}

func (d *oled) command(ctx context.Context, cmds ...byte) error {
	out := make([]byte, 0, len(cmds)+1)
	out = append(out, ctrlCommand)
	out = append(out, cmds...)
	return d.bus.Write(ctx, d.address, out)
}

// data streams buf[start:end] to display RAM in chunks, each prefixed
// with the data control byte. The controller auto-increments its RAM
// pointer, so consecutive chunks land back to back.
func (d *oled) data(ctx context.Context, buf []byte, start, end int) error {
	for off := start; off < end; off += dataChunk {
		n := end - off
		if n > dataChunk {
			n = dataChunk
		}
		d.scratch[0] = ctrlData
		copy(d.scratch[1:], buf[off:off+n])
		if err := d.bus.WriteRange(ctx, d.address, d.scratch, 0, n+1); err != nil {
			return err
		}
	}
	return nil
}

// NewSSD1306 builds a driver for the SSD1306 with its internal charge
// pump enabled.
func NewSSD1306(bus x11stream.Bus, address byte) Driver {
	return newOLED(bus, address, "ssd1306", []byte{
		cmdDisplayOff,
		cmdSetClockDiv, 0x80,
		cmdSetMultiplex, Height - 1,
		cmdSetOffset, 0x00,
		cmdSetStartLine | 0x00,
		cmdChargePump, 0x14,
		cmdMemoryMode, 0x00,
		cmdSegRemap,
		cmdComScanDec,
		cmdSetComPins, 0x12,
		cmdSetContrast, 0xCF,
		cmdSetPrecharge, 0xF1,
		cmdSetVcomDetect, 0x40,
		cmdAllOnResume,
		cmdNormalDisplay,
		cmdDisplayOn,
	}, false, 0)
}

// NewSH1106 builds a driver for the SH1106. The part has a 132-column
// RAM and no horizontal addressing mode, so frames are pushed page by
// page at a 2-column offset.
func NewSH1106(bus x11stream.Bus, address byte) Driver {
	return newOLED(bus, address, "sh1106", []byte{
		cmdDisplayOff,
		cmdSetClockDiv, 0x80,
		cmdSetMultiplex, Height - 1,
		cmdSetOffset, 0x00,
		cmdSetStartLine | 0x00,
		cmdSH1106ChargePump, 0x8B,
		cmdSegRemap,
		cmdComScanDec,
		cmdSetComPins, 0x12,
		cmdSetContrast, 0x80,
		cmdSetPrecharge, 0x22,
		cmdSetVcomDetect, 0x35,
		cmdAllOnResume,
		cmdNormalDisplay,
		cmdDisplayOn,
	}, true, 0x02)
}

// NewSSD1305 builds a driver for the SSD1305.
func NewSSD1305(bus x11stream.Bus, address byte) Driver {
	return newOLED(bus, address, "ssd1305", []byte{
		cmdDisplayOff,
		cmdSetClockDiv, 0x80,
		cmdSetMultiplex, Height - 1,
		cmdSetOffset, 0x00,
		cmdSetStartLine | 0x00,
		cmdChargePump, 0x14,
		cmdMemoryMode, 0x00,
		cmdSegRemap,
		cmdComScanDec,
		cmdSetComPins, 0x12,
		cmdSetContrast, 0x9F,
		cmdSetPrecharge, 0x22,
		cmdSetVcomDetect, 0x34,
		cmdAllOnResume,
		cmdNormalDisplay,
		cmdDisplayOn,
	}, false, 0)
}

// NewSSD1309 builds a driver for the SSD1309, which runs from external
// VCC and has no charge pump command.
func NewSSD1309(bus x11stream.Bus, address byte) Driver {
	return newOLED(bus, address, "ssd1309", []byte{
		cmdDisplayOff,
		cmdSetClockDiv, 0x80,
		cmdSetMultiplex, Height - 1,
		cmdSetOffset, 0x00,
		cmdSetStartLine | 0x00,
		cmdMemoryMode, 0x00,
		cmdSegRemap,
		cmdComScanDec,
		cmdSetComPins, 0x12,
		cmdSetContrast, 0x8F,
		cmdSetPrecharge, 0x22,
		cmdSetVcomDetect, 0x34,
		cmdAllOnResume,
		cmdNormalDisplay,
		cmdDisplayOn,
	}, false, 0)
}
