package capture

import (
	"sync/atomic"

	"github.com/bryanchriswhite/CamStreamer/internal/pixfmt"
)

// Frame is a leased view of one frame slot. Data stays valid and unchanged
// until Release is called.
type Frame struct {
	Data   []byte
	Width  int
	Height int
	Format pixfmt.Format
	// Seq is the publish sequence number, increasing across the engine lifetime
	Seq uint64
	// Index is the slot the frame lives in
	Index int

	pool     *pool
	released atomic.Bool
}

// Release returns the slot to the engine. Further calls do nothing.
func (f *Frame) Release() {
	if f == nil || f.pool == nil {
		return
	}
	if f.released.CompareAndSwap(false, true) {
		f.pool.release(int32(f.Index))
	}
}
