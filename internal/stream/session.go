package stream

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session is one stream connection. It is driven by a single goroutine.
type Session struct {
	ID      string
	Remote  string
	Started time.Time

	d        *Dispatcher
	interval time.Duration
	last     time.Time

	frames  atomic.Uint64
	skipped atomic.Uint64
	closed  atomic.Bool
}

// SessionInfo describes a session for status reporting
type SessionInfo struct {
	ID      string    `json:"id"`
	Remote  string    `json:"remote"`
	Started time.Time `json:"started"`
	Frames  uint64    `json:"frames"`
	Skipped uint64    `json:"skipped"`
}

func newSession(d *Dispatcher, remote string, interval time.Duration) *Session {
	return &Session{
		ID:       uuid.NewString(),
		Remote:   remote,
		Started:  time.Now(),
		d:        d,
		interval: interval,
	}
}

// Pace waits until the interval has passed since the previous tick
func (s *Session) Pace(ctx context.Context) error {
	if !s.last.IsZero() {
		if wait := time.Until(s.last.Add(s.interval)); wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	s.last = time.Now()
	return nil
}

// Next paces, then pulls one frame. A failed pull yields no bytes and no
// error so the stream carries on with the next tick; only cancellation of
// ctx ends it.
func (s *Session) Next(ctx context.Context) ([]byte, error) {
	if err := s.Pace(ctx); err != nil {
		return nil, err
	}

	img, err := s.d.NextFrame(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.skipped.Add(1)
		return nil, nil
	}
	s.frames.Add(1)
	return img.Data, nil
}

// Close unregisters the session. Further calls do nothing.
func (s *Session) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.d.close(s)
	}
}

// Info returns a snapshot of the session counters
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:      s.ID,
		Remote:  s.Remote,
		Started: s.Started,
		Frames:  s.frames.Load(),
		Skipped: s.skipped.Load(),
	}
}
