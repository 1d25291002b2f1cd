// Package stream turns captured frames into JPEG snapshots and motion JPEG
// parts for network clients.
package stream

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanchriswhite/CamStreamer/internal/capture"
	"github.com/bryanchriswhite/CamStreamer/internal/encode"
	"github.com/bryanchriswhite/CamStreamer/internal/logger"
)

// Capturer hands out the latest frame without blocking
type Capturer interface {
	TryCapture() (*capture.Frame, error)
}

// Encoder compresses a frame into an owned JPEG buffer
type Encoder interface {
	EncodeCopy(ctx context.Context, pixels []byte, width, height, quality int, wait time.Duration) ([]byte, error)
}

// Options configures a Dispatcher
type Options struct {
	SnapshotQuality int
	SnapshotWait    time.Duration
	StreamQuality   int
	StreamWait      time.Duration
	// Interval is the minimum time between parts of one stream
	Interval time.Duration
}

// DefaultOptions returns the dispatcher defaults
func DefaultOptions() Options {
	return Options{
		SnapshotQuality: 80,
		SnapshotWait:    time.Second,
		StreamQuality:   60,
		StreamWait:      100 * time.Millisecond,
		Interval:        100 * time.Millisecond,
	}
}

// Image is one encoded frame
type Image struct {
	Data       []byte
	Width      int
	Height     int
	Seq        uint64
	CapturedAt time.Time
}

// Dispatcher serves snapshot and stream requests from a capturer through an
// encoder. It never waits for a frame to become available.
type Dispatcher struct {
	cam  Capturer
	enc  Encoder
	opts Options

	mu       sync.RWMutex
	sessions map[string]*Session

	snapshots atomic.Uint64
	parts     atomic.Uint64
}

// NewDispatcher creates a dispatcher. Zero options take their defaults.
func NewDispatcher(cam Capturer, enc Encoder, opts Options) *Dispatcher {
	def := DefaultOptions()
	if opts.SnapshotQuality == 0 {
		opts.SnapshotQuality = def.SnapshotQuality
	}
	if opts.SnapshotWait == 0 {
		opts.SnapshotWait = def.SnapshotWait
	}
	if opts.StreamQuality == 0 {
		opts.StreamQuality = def.StreamQuality
	}
	if opts.StreamWait == 0 {
		opts.StreamWait = def.StreamWait
	}
	if opts.Interval == 0 {
		opts.Interval = def.Interval
	}
	return &Dispatcher{
		cam:      cam,
		enc:      enc,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Snapshot captures and encodes one frame at snapshot quality
func (d *Dispatcher) Snapshot(ctx context.Context) (*Image, error) {
	img, err := d.pull(ctx, d.opts.SnapshotQuality, d.opts.SnapshotWait)
	if err != nil {
		return nil, err
	}
	d.snapshots.Add(1)
	return img, nil
}

// NextFrame captures and encodes one frame at stream quality
func (d *Dispatcher) NextFrame(ctx context.Context) (*Image, error) {
	img, err := d.pull(ctx, d.opts.StreamQuality, d.opts.StreamWait)
	if err != nil {
		return nil, err
	}
	d.parts.Add(1)
	return img, nil
}

func (d *Dispatcher) pull(ctx context.Context, quality int, wait time.Duration) (*Image, error) {
	f, err := d.cam.TryCapture()
	if err != nil {
		return nil, err
	}
	defer f.Release()

	data, err := d.enc.EncodeCopy(ctx, f.Data, f.Width, f.Height, quality, wait)
	if err != nil {
		return nil, err
	}
	return &Image{
		Data:       data,
		Width:      f.Width,
		Height:     f.Height,
		Seq:        f.Seq,
		CapturedAt: time.Now(),
	}, nil
}

// StatusCode maps a pull error to the HTTP status reported to clients
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, capture.ErrNotStreaming),
		errors.Is(err, capture.ErrNoFrameYet),
		errors.Is(err, capture.ErrNoFrame),
		errors.Is(err, encode.ErrBusy):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Open registers a new stream session for the client at remote
func (d *Dispatcher) Open(remote string) *Session {
	s := newSession(d, remote, d.opts.Interval)

	d.mu.Lock()
	d.sessions[s.ID] = s
	count := len(d.sessions)
	d.mu.Unlock()

	logger.WithComponent("stream").Info().
		Str("session", s.ID).
		Str("remote", remote).
		Int("active", count).
		Msg("Stream client connected")
	return s
}

func (d *Dispatcher) close(s *Session) {
	d.mu.Lock()
	delete(d.sessions, s.ID)
	count := len(d.sessions)
	d.mu.Unlock()

	logger.WithComponent("stream").Info().
		Str("session", s.ID).
		Uint64("frames", s.frames.Load()).
		Uint64("skipped", s.skipped.Load()).
		Int("active", count).
		Msg("Stream client disconnected")
}

// Sessions returns the active stream sessions, oldest first
func (d *Dispatcher) Sessions() []SessionInfo {
	d.mu.RLock()
	infos := make([]SessionInfo, 0, len(d.sessions))
	for _, s := range d.sessions {
		infos = append(infos, s.Info())
	}
	d.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Started.Before(infos[j].Started)
	})
	return infos
}

// Stats holds dispatcher counters
type Stats struct {
	Snapshots uint64 `json:"snapshots"`
	Parts     uint64 `json:"parts"`
	Sessions  int    `json:"sessions"`
}

// Stats returns the dispatcher counters
func (d *Dispatcher) Stats() Stats {
	d.mu.RLock()
	n := len(d.sessions)
	d.mu.RUnlock()
	return Stats{
		Snapshots: d.snapshots.Load(),
		Parts:     d.parts.Load(),
		Sessions:  n,
	}
}
