// Package capture implements the frame acquisition engine: a pool of frame
// slots filled by a capture controller and handed to consumers without
// locking on the producer side.
package capture

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanchriswhite/CamStreamer/internal/csi"
	"github.com/bryanchriswhite/CamStreamer/internal/logger"
	"github.com/bryanchriswhite/CamStreamer/internal/pixfmt"
	"github.com/bryanchriswhite/CamStreamer/internal/sensor"
)

var (
	ErrInitFailed       = errors.New("camera initialization failed")
	ErrSensorMismatch   = errors.New("unexpected sensor id")
	ErrNotInitialized   = errors.New("camera not initialized")
	ErrAlreadyStreaming = errors.New("camera already streaming")
	ErrNotStreaming     = errors.New("camera not streaming")
	ErrNoFrameYet       = errors.New("no frame received since start")
	ErrNoFrame          = errors.New("no new frame ready")
)

const (
	DefaultSlots = 3
	MinSlots     = 2
)

// Options configures an Engine
type Options struct {
	// Slots is the number of frame buffers, DefaultSlots when zero
	Slots int
	// FPS is passed to the controller as the target frame rate
	FPS int
	// InitSettle is the pause after sensor init
	InitSettle time.Duration
	// StreamSettle is the pause after the sensor starts streaming
	StreamSettle time.Duration
}

// DefaultOptions returns the options used by the server
func DefaultOptions() Options {
	return Options{
		Slots:        DefaultSlots,
		FPS:          30,
		InitSettle:   200 * time.Millisecond,
		StreamSettle: 100 * time.Millisecond,
	}
}

// Engine owns the frame slots and the controller callback contract. The
// controller goroutine is the only producer; any number of goroutines may
// call TryCapture.
type Engine struct {
	sensor sensor.Driver
	ctrl   csi.Controller
	opts   Options

	// mu serializes lifecycle calls; the transfer path never takes it
	mu          sync.Mutex
	initialized atomic.Bool
	failed      error
	width       int
	height      int
	slots       *pool

	streaming      atomic.Bool
	writeIndex     atomic.Int32
	readyIndex     atomic.Int32
	frameReady     atomic.Bool
	framesReceived atomic.Uint32
	framesDropped  atomic.Uint64
	published      atomic.Uint64
	lastFrameAt    atomic.Int64

	captures atomic.Uint64
	misses   atomic.Uint64
}

var _ csi.Handler = (*Engine)(nil)

// NewEngine creates an engine for the given sensor and controller
func NewEngine(drv sensor.Driver, ctrl csi.Controller, opts Options) *Engine {
	if opts.Slots == 0 {
		opts.Slots = DefaultSlots
	}
	return &Engine{
		sensor: drv,
		ctrl:   ctrl,
		opts:   opts,
	}
}

// Init checks the sensor identity, programs it, enables the controller and
// allocates the frame slots. A failure is permanent for this engine.
func (e *Engine) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.failed != nil {
		return e.failed
	}
	if e.initialized.Load() {
		return nil
	}

	log := logger.WithComponent("capture")

	if err := e.init(); err != nil {
		e.failed = fmt.Errorf("%w: %w", ErrInitFailed, err)
		log.Error().Err(err).Str("sensor", e.sensor.Name()).Msg("Camera initialization failed")
		return e.failed
	}

	e.initialized.Store(true)
	log.Info().
		Str("sensor", e.sensor.Name()).
		Str("controller", e.ctrl.Name()).
		Int("width", e.width).
		Int("height", e.height).
		Int("slots", e.slots.len()).
		Msg("Camera initialized")
	return nil
}

func (e *Engine) init() error {
	if e.opts.Slots < MinSlots {
		return fmt.Errorf("need at least %d frame slots, got %d", MinSlots, e.opts.Slots)
	}

	id, err := e.sensor.ReadID()
	if err != nil {
		return fmt.Errorf("failed to read sensor id: %w", err)
	}
	if id != e.sensor.PID() {
		return fmt.Errorf("%w: got 0x%04X, want 0x%04X", ErrSensorMismatch, id, e.sensor.PID())
	}

	if err := e.sensor.Init(); err != nil {
		return fmt.Errorf("failed to init sensor: %w", err)
	}
	time.Sleep(e.opts.InitSettle)

	e.width = e.sensor.Width()
	e.height = e.sensor.Height()
	e.slots = newPool(e.opts.Slots, pixfmt.RGB565.FrameSize(e.width, e.height))
	e.writeIndex.Store(0)
	e.slots.leases[0].Store(slotClaimed)

	cfg := csi.Config{
		Width:           e.width,
		Height:          e.height,
		LaneCount:       e.sensor.LaneCount(),
		LaneBitrateMbps: e.sensor.LaneBitrateMbps(),
		Bayer:           e.sensor.BayerPattern(),
		FPS:             e.opts.FPS,
	}
	if err := e.ctrl.Enable(cfg, e); err != nil {
		return fmt.Errorf("failed to enable %s controller: %w", e.ctrl.Name(), err)
	}
	return nil
}

// Start moves the engine from idle to streaming
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized.Load() {
		return ErrNotInitialized
	}
	if e.streaming.Load() {
		return ErrAlreadyStreaming
	}

	if err := e.sensor.StartStream(); err != nil {
		return fmt.Errorf("failed to start sensor stream: %w", err)
	}
	time.Sleep(e.opts.StreamSettle)

	e.framesReceived.Store(0)
	e.frameReady.Store(false)
	e.streaming.Store(true)

	if err := e.ctrl.Start(); err != nil {
		e.streaming.Store(false)
		if serr := e.sensor.StopStream(); serr != nil {
			logger.WithComponent("capture").Warn().Err(serr).Msg("Failed to stop sensor stream")
		}
		return fmt.Errorf("failed to start %s controller: %w", e.ctrl.Name(), err)
	}

	logger.WithComponent("capture").Info().Msg("Streaming started")
	return nil
}

// Stop halts streaming. It is safe to call in any state.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.streaming.Load() {
		return
	}
	e.streaming.Store(false)

	log := logger.WithComponent("capture")
	if err := e.ctrl.Stop(); err != nil {
		log.Warn().Err(err).Msg("Failed to stop controller")
	}
	if err := e.sensor.StopStream(); err != nil {
		log.Warn().Err(err).Msg("Failed to stop sensor stream")
	}
	e.frameReady.Store(false)

	log.Info().
		Uint32("frames_received", e.framesReceived.Load()).
		Uint64("frames_dropped", e.framesDropped.Load()).
		Msg("Streaming stopped")
}

// Close stops streaming and releases the controller
func (e *Engine) Close() error {
	e.Stop()
	return e.ctrl.Close()
}

// NewTransfer returns the slot the controller should write next
func (e *Engine) NewTransfer() []byte {
	if e.slots == nil {
		return nil
	}
	return e.slots.bufs[e.writeIndex.Load()]
}

// TransferDone publishes the slot just written and moves the write target to
// another idle slot. When every other slot is leased the frame is dropped
// and the same slot is written again.
func (e *Engine) TransferDone(received int) {
	if received <= 0 || e.slots == nil {
		return
	}

	w := e.writeIndex.Load()
	next, ok := e.slots.claim(w)
	if !ok {
		e.framesDropped.Add(1)
		return
	}

	seq := e.published.Add(1)
	e.slots.publish(w, seq)
	e.framesReceived.Add(1)
	e.lastFrameAt.Store(time.Now().UnixNano())
	e.readyIndex.Store(w)
	e.frameReady.Store(true)
	e.writeIndex.Store(next)
}

// TryCapture returns the most recently published frame without blocking.
// The caller must Release the frame once done with its data.
func (e *Engine) TryCapture() (*Frame, error) {
	if !e.streaming.Load() {
		return nil, ErrNotStreaming
	}

	if !e.frameReady.CompareAndSwap(true, false) {
		e.misses.Add(1)
		if e.framesReceived.Load() == 0 {
			return nil, ErrNoFrameYet
		}
		return nil, ErrNoFrame
	}

	// the ready slot can be reclaimed between loading its index and leasing
	// it; a newer ready index is published before that happens
	for attempt := 0; attempt <= e.slots.len(); attempt++ {
		idx := e.readyIndex.Load()
		if !e.slots.lease(idx) {
			continue
		}
		e.captures.Add(1)
		return &Frame{
			Data:   e.slots.bufs[idx],
			Width:  e.width,
			Height: e.height,
			Format: pixfmt.RGB565,
			Seq:    e.slots.seqs[idx].Load(),
			Index:  int(idx),
			pool:   e.slots,
		}, nil
	}

	e.misses.Add(1)
	return nil, ErrNoFrame
}

// Streaming reports whether the engine is streaming
func (e *Engine) Streaming() bool {
	return e.streaming.Load()
}

// Size returns the frame geometry, zero before Init
func (e *Engine) Size() (width, height int) {
	if !e.initialized.Load() {
		return 0, 0
	}
	return e.width, e.height
}

// Sensor returns the sensor driver the engine was built with
func (e *Engine) Sensor() sensor.Driver {
	return e.sensor
}
