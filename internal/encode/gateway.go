// Package encode serializes JPEG compression of raw frames through a single
// reusable output buffer.
package encode

import (
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/bryanchriswhite/CamStreamer/internal/logger"
	"github.com/bryanchriswhite/CamStreamer/internal/pixfmt"
)

var (
	ErrBusy         = errors.New("encoder busy")
	ErrEncodeFailed = errors.New("encode failed")
)

const (
	DefaultBufferSize = 512 * 1024
	// DefaultMaxPixels bounds the temporary RGB888 conversion buffer
	DefaultMaxPixels = 1920 * 1080
)

// Options configures a Gateway
type Options struct {
	// BufferSize is the capacity of the scratch output buffer
	BufferSize int
	// MaxPixels is the largest frame the gateway will convert
	MaxPixels int
}

// Stats holds the gateway counters
type Stats struct {
	Encodes        uint64 `json:"encodes"`
	Busy           uint64 `json:"busy"`
	Failures       uint64 `json:"failures"`
	LastDurationMs int64  `json:"last_duration_ms"`
	BufferSize     int    `json:"buffer_size"`
}

// Gateway admits one encode at a time. Callers that cannot enter within
// their wait budget get ErrBusy and the scratch buffer is left untouched.
type Gateway struct {
	sem       *semaphore.Weighted
	scratch   []byte
	out       scratchWriter
	maxPixels int

	encodes      atomic.Uint64
	busy         atomic.Uint64
	failures     atomic.Uint64
	lastDuration atomic.Int64
}

// NewGateway creates a gateway with its scratch buffer allocated up front
func NewGateway(opts Options) *Gateway {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	return &Gateway{
		sem:       semaphore.NewWeighted(1),
		scratch:   make([]byte, 0, opts.BufferSize),
		maxPixels: opts.MaxPixels,
	}
}

// Encode compresses an RGB565 frame at the given quality. The returned slice
// aliases the scratch buffer and is only valid until the next encode.
func (g *Gateway) Encode(ctx context.Context, pixels []byte, width, height, quality int, wait time.Duration) ([]byte, error) {
	if err := g.acquire(ctx, wait); err != nil {
		return nil, err
	}
	defer g.sem.Release(1)

	return g.encode(pixels, width, height, quality)
}

// EncodeCopy is Encode returning a copy owned by the caller, taken before
// the gateway is released
func (g *Gateway) EncodeCopy(ctx context.Context, pixels []byte, width, height, quality int, wait time.Duration) ([]byte, error) {
	if err := g.acquire(ctx, wait); err != nil {
		return nil, err
	}
	defer g.sem.Release(1)

	out, err := g.encode(pixels, width, height, quality)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), out...), nil
}

func (g *Gateway) acquire(ctx context.Context, wait time.Duration) error {
	if wait <= 0 {
		if g.sem.TryAcquire(1) {
			return nil
		}
		g.busy.Add(1)
		return ErrBusy
	}

	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	if err := g.sem.Acquire(ctx, 1); err != nil {
		g.busy.Add(1)
		return fmt.Errorf("%w: %w", ErrBusy, err)
	}
	return nil
}

// encode runs with the semaphore held
func (g *Gateway) encode(pixels []byte, width, height, quality int) ([]byte, error) {
	start := time.Now()

	out, err := g.compress(pixels, width, height, quality)
	if err != nil {
		g.failures.Add(1)
		logger.WithComponent("encode").Debug().Err(err).
			Int("width", width).
			Int("height", height).
			Msg("Encode failed")
		return nil, err
	}

	g.encodes.Add(1)
	g.lastDuration.Store(int64(time.Since(start)))
	return out, nil
}

func (g *Gateway) compress(pixels []byte, width, height, quality int) ([]byte, error) {
	n := width * height
	if width <= 0 || height <= 0 || n > g.maxPixels {
		return nil, fmt.Errorf("%w: cannot convert %dx%d frame", ErrEncodeFailed, width, height)
	}

	rgb := make([]byte, n*3)
	if err := pixfmt.RGB565ToRGB888(rgb, pixels, n); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}

	g.out.reset(g.scratch)
	img := &pixfmt.RGB888Image{Pix: rgb, Width: width, Height: height}
	if err := jpeg.Encode(&g.out, img, &jpeg.Options{Quality: clampQuality(quality)}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}
	if g.out.overflow || len(g.out.Bytes()) == 0 {
		return nil, fmt.Errorf("%w: empty or truncated output", ErrEncodeFailed)
	}
	return g.out.Bytes(), nil
}

// Stats returns the gateway counters
func (g *Gateway) Stats() Stats {
	return Stats{
		Encodes:        g.encodes.Load(),
		Busy:           g.busy.Load(),
		Failures:       g.failures.Load(),
		LastDurationMs: time.Duration(g.lastDuration.Load()).Milliseconds(),
		BufferSize:     cap(g.scratch),
	}
}

func clampQuality(q int) int {
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}
