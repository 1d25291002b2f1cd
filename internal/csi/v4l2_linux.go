//go:build linux

package csi

import (
	"context"
	"fmt"
	"sync"

	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"

	"github.com/bryanchriswhite/CamStreamer/internal/logger"
	"github.com/bryanchriswhite/CamStreamer/internal/pixfmt"
)

// DefaultDevice is the V4L2 node opened when none is configured
const DefaultDevice = "/dev/video0"

// V4L2 is a controller that streams RGB24 frames from a Video4Linux device
// and packs them to RGB565 on transfer
type V4L2 struct {
	path string

	mu      sync.Mutex
	cfg     Config
	handler Handler
	dev     *device.Device
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewV4L2 creates a controller for the device at path
func NewV4L2(path string) (Controller, error) {
	if path == "" {
		path = DefaultDevice
	}
	return &V4L2{path: path}, nil
}

func (v *V4L2) Name() string {
	return "v4l2"
}

func (v *V4L2) Enable(cfg Config, h Handler) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.handler != nil {
		return ErrAlreadyEnabled
	}
	if h == nil {
		return fmt.Errorf("nil transfer handler")
	}

	dev, err := device.Open(
		v.path,
		device.WithBufferSize(2),
		device.WithFPS(uint32(cfg.fps())),
		device.WithPixFormat(v4l2.PixFormat{
			PixelFormat: v4l2.PixelFmtRGB24,
			Width:       uint32(cfg.Width),
			Height:      uint32(cfg.Height),
			Field:       v4l2.FieldNone,
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", v.path, err)
	}

	v.dev = dev
	v.cfg = cfg
	v.handler = h
	return nil
}

func (v *V4L2) Start() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.handler == nil {
		return ErrNotEnabled
	}
	if v.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := v.dev.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("failed to start %s: %w", v.path, err)
	}
	v.cancel = cancel

	v.wg.Add(1)
	go v.run(ctx, v.dev.GetOutput())

	logger.WithComponent("v4l2").Info().Str("device", v.path).Msg("Device streaming")
	return nil
}

func (v *V4L2) Stop() error {
	v.mu.Lock()
	if v.cancel == nil {
		v.mu.Unlock()
		return nil
	}
	v.cancel()
	v.cancel = nil
	dev := v.dev
	v.mu.Unlock()

	v.wg.Wait()
	if err := dev.Stop(); err != nil {
		return fmt.Errorf("failed to stop %s: %w", v.path, err)
	}
	return nil
}

func (v *V4L2) Close() error {
	if err := v.Stop(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.handler = nil
	if v.dev == nil {
		return nil
	}
	err := v.dev.Close()
	v.dev = nil
	return err
}

func (v *V4L2) run(ctx context.Context, frames <-chan []byte) {
	defer v.wg.Done()

	pixels := v.cfg.Width * v.cfg.Height
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			dst := v.handler.NewTransfer()
			received := 0
			if err := pixfmt.RGB888ToRGB565(dst, frame, pixels); err == nil {
				received = pixels * 2
			}
			v.handler.TransferDone(received)
		}
	}
}
