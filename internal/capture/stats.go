package capture

import (
	"context"
	"time"

	"github.com/bryanchriswhite/CamStreamer/internal/logger"
)

// Stats is a point-in-time view of the engine counters
type Stats struct {
	Streaming      bool      `json:"streaming"`
	Width          int       `json:"width"`
	Height         int       `json:"height"`
	Slots          int       `json:"slots"`
	FramesReceived uint32    `json:"frames_received"`
	FramesDropped  uint64    `json:"frames_dropped"`
	Captures       uint64    `json:"captures"`
	Misses         uint64    `json:"misses"`
	LastFrameAt    time.Time `json:"last_frame_at"`
}

// Stats returns the current counters
func (e *Engine) Stats() Stats {
	s := Stats{
		Streaming:      e.streaming.Load(),
		FramesReceived: e.framesReceived.Load(),
		FramesDropped:  e.framesDropped.Load(),
		Captures:       e.captures.Load(),
		Misses:         e.misses.Load(),
	}
	if e.initialized.Load() {
		s.Width = e.width
		s.Height = e.height
		s.Slots = e.slots.len()
	}
	if ns := e.lastFrameAt.Load(); ns != 0 {
		s.LastFrameAt = time.Unix(0, ns)
	}
	return s
}

// RunStats logs the sensor frame rate and the share of captures that found
// a frame ready, once per interval, until ctx is done
func (e *Engine) RunStats(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	log := logger.WithComponent("capture")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastFrames := e.published.Load()
	lastCaptures := e.captures.Load()
	lastMisses := e.misses.Load()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frames := e.published.Load()
			captures := e.captures.Load()
			misses := e.misses.Load()

			dFrames := frames - lastFrames
			dCaptures := captures - lastCaptures
			polls := dCaptures + (misses - lastMisses)
			lastFrames, lastCaptures, lastMisses = frames, captures, misses

			if !e.streaming.Load() {
				continue
			}

			ready := 0.0
			if polls > 0 {
				ready = float64(dCaptures) * 100 / float64(polls)
			}
			log.Info().
				Float64("sensor_fps", float64(dFrames)/interval.Seconds()).
				Float64("ready_pct", ready).
				Uint64("dropped", e.framesDropped.Load()).
				Msg("Capture stats")
		}
	}
}
