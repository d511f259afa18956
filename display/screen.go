package display

import "context"

// StatusScreen renders the stream status layout: a fixed header, a
// separator line, and the current IP address and stream state.
type StatusScreen struct {
	drv Driver
}

func NewStatusScreen(drv Driver) *StatusScreen {
	return &StatusScreen{drv: drv}
}

// Render redraws the full screen with the given values and pushes it
// over the bus. Any transfer failure is returned to the caller; the
// framebuffer may be out of sync with the panel afterwards.
func (s *StatusScreen) Render(ctx context.Context, ip, status string) error {
	s.drv.Clear()
	drawText(s.drv, 0, 0, "X11 Stream")
	w, _ := s.drv.Size()
	drawHLine(s.drv, 0, w-1, 10)
	drawText(s.drv, 0, 15, "IP:")
	drawText(s.drv, 0, 27, ip)
	drawText(s.drv, 0, 42, "Status:")
	drawText(s.drv, 0, 54, status)
	return s.drv.Show(ctx)
}

// Blank clears the panel.
func (s *StatusScreen) Blank(ctx context.Context) error {
	return s.drv.Blank(ctx)
}
