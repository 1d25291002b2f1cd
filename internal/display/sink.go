// Package display renders captured frames onto local display surfaces: an
// in-memory canvas and an X11 window.
package display

import (
	"github.com/bryanchriswhite/CamStreamer/internal/pixfmt"
)

// Sink consumes raw frames. Update is called from the display loop, never
// from the capture goroutine, and must not retain buf after returning.
type Sink interface {
	// Update draws one frame
	Update(buf []byte, width, height int, format pixfmt.Format) error

	// Name returns a human-readable name for this sink
	Name() string
}
