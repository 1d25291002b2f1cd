// Package csi provides capture controllers: the component that moves pixel
// data from a sensor into caller-supplied frame buffers and reports each
// completed transfer.
package csi

import (
	"errors"
	"fmt"

	"github.com/bryanchriswhite/CamStreamer/internal/sensor"
)

var (
	ErrNotEnabled     = errors.New("controller not enabled")
	ErrAlreadyEnabled = errors.New("controller already enabled")
	ErrUnknownKind    = errors.New("unknown controller")
	ErrUnsupported    = errors.New("controller not supported on this platform")
)

// Handler receives transfer callbacks from a controller's capture goroutine.
// Both methods must return quickly and must not block.
type Handler interface {
	// NewTransfer returns the buffer the next transfer writes into
	NewTransfer() []byte

	// TransferDone reports that received bytes were written into the buffer
	// returned by the preceding NewTransfer
	TransferDone(received int)
}

// Source renders frames for controllers without real hardware behind them
type Source interface {
	// Fill writes frame seq into dst and returns the bytes written
	Fill(dst []byte, seq uint64) int
}

// Config carries the sensor link parameters a controller is enabled with
type Config struct {
	Width           int
	Height          int
	LaneCount       int
	LaneBitrateMbps int
	Bayer           sensor.BayerPattern
	FPS             int
}

// Controller is a capture controller
type Controller interface {
	// Name returns a human-readable name for this controller
	Name() string

	// Enable configures the controller and registers the transfer handler
	Enable(cfg Config, h Handler) error

	// Start begins delivering transfers to the handler
	Start() error

	// Stop halts transfers. No handler callback runs after Stop returns.
	Stop() error

	// Close releases the controller
	Close() error
}

// Options selects and configures a controller
type Options struct {
	// Source renders frames for the simulated controller
	Source Source
	// Pipeline is the GStreamer source description placed before the
	// RGB565 caps filter, e.g. "videotestsrc is-live=true"
	Pipeline string
	// Device is the V4L2 device path
	Device string
}

// New constructs the named controller
func New(kind string, opts Options) (Controller, error) {
	switch kind {
	case "sim", "":
		return NewSim(opts.Source), nil
	case "gstreamer":
		return NewGStreamer(opts.Pipeline), nil
	case "v4l2":
		return NewV4L2(opts.Device)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

func (c Config) frameSize() int {
	return c.Width * c.Height * 2
}

func (c Config) fps() int {
	if c.FPS <= 0 {
		return 30
	}
	return c.FPS
}
