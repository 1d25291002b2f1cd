package display

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/bryanchriswhite/CamStreamer/internal/capture"
	"github.com/bryanchriswhite/CamStreamer/internal/logger"
)

// FrameSource hands out the latest captured frame without blocking
type FrameSource interface {
	TryCapture() (*capture.Frame, error)
}

// LoopStats holds display loop counters
type LoopStats struct {
	Frames  uint64 `json:"frames"`
	Dropped uint64 `json:"dropped"`
}

// Loop pulls frames on a fixed interval and feeds them to a sink
type Loop struct {
	src      FrameSource
	sink     Sink
	interval time.Duration

	frames   atomic.Uint64
	dropped  atomic.Uint64
	lastMark time.Time
}

// NewLoop creates a display loop, updating every 33ms unless configured
func NewLoop(src FrameSource, sink Sink, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = 33 * time.Millisecond
	}
	return &Loop{src: src, sink: sink, interval: interval}
}

// Run updates the sink until ctx is done
func (l *Loop) Run(ctx context.Context) error {
	log := logger.WithComponent("display")
	log.Info().
		Str("sink", l.sink.Name()).
		Dur("interval", l.interval).
		Msg("Display update loop started")

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Tick()
		}
	}
}

// Tick runs one update. Polls that find no new frame while streaming count
// as dropped; polls while the camera is stopped are ignored.
func (l *Loop) Tick() {
	f, err := l.src.TryCapture()
	if err != nil {
		if !errors.Is(err, capture.ErrNotStreaming) {
			l.dropped.Add(1)
		}
		return
	}

	err = l.sink.Update(f.Data, f.Width, f.Height, f.Format)
	f.Release()
	if err != nil {
		logger.WithComponent("display").Debug().Err(err).Str("sink", l.sink.Name()).Msg("Failed to update display")
		l.dropped.Add(1)
		return
	}

	n := l.frames.Add(1)
	if n%100 == 0 {
		now := time.Now()
		if !l.lastMark.IsZero() {
			logger.WithComponent("display").Info().
				Uint64("frames", n).
				Float64("fps", 100/now.Sub(l.lastMark).Seconds()).
				Uint64("dropped", l.dropped.Load()).
				Msg("Display stats")
		}
		l.lastMark = now
	}
}

// Stats returns the loop counters
func (l *Loop) Stats() LoopStats {
	return LoopStats{
		Frames:  l.frames.Load(),
		Dropped: l.dropped.Load(),
	}
}
