package display

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/maple-underscore/x11stream"
)

// Display dimensions. All supported panels are 128x64.
const Width = 128
const Height = 64

// Default display I2C address; some panels ship strapped to 0x3D.
const DefaultAddress = 0x3C

// Driver is a monochrome page-addressed OLED controller.
type Driver interface {
	// Init sends the controller init sequence and leaves the panel
	// powered on and blanked.
	Init(ctx context.Context) error
	// Show pushes the framebuffer to the panel.
	Show(ctx context.Context) error
	// Blank clears the framebuffer and pushes it.
	Blank(ctx context.Context) error
	Clear()
	SetPixel(x, y int, on bool)
	Size() (w, h int)
}

// Constructor builds a driver bound to a bus and display address.
type Constructor func(bus x11stream.Bus, address byte) Driver

// The supported controller set is closed: driver identifiers resolve
// here at configuration time, never by runtime lookup.
var drivers = map[string]Constructor{
	"ssd1306": NewSSD1306,
	"sh1106":  NewSH1106,
	"ssd1305": NewSSD1305,
	"ssd1309": NewSSD1309,
}

// New resolves a driver identifier. An unknown identifier is a fatal
// configuration error.
func New(name string, bus x11stream.Bus, address byte) (Driver, error) {
	ctor, ok := drivers[strings.ToLower(name)]
	if !ok {
		return nil, &x11stream.ConfigError{
			Field:  "driver",
			Reason: fmt.Sprintf("unknown driver %q, supported: %s", name, strings.Join(Names(), ", ")),
		}
	}
	return ctor(bus, address), nil
}

// Names lists the supported driver identifiers in stable order.
func Names() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
