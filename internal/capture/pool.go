package capture

import "sync/atomic"

const (
	slotIdle    int32 = 0
	slotClaimed int32 = -1
)

// pool is a fixed set of equally sized frame slots. Each slot carries a lease
// word: 0 when idle, the number of consumer leases when positive, and -1
// while the producer owns it as write target.
type pool struct {
	bufs   [][]byte
	leases []atomic.Int32
	seqs   []atomic.Uint64
}

func newPool(n, size int) *pool {
	p := &pool{
		bufs:   make([][]byte, n),
		leases: make([]atomic.Int32, n),
		seqs:   make([]atomic.Uint64, n),
	}
	for i := range p.bufs {
		p.bufs[i] = make([]byte, size)
	}
	return p
}

func (p *pool) len() int {
	return len(p.bufs)
}

// claim takes the first idle slot after cur, in ring order, as the next
// write target. cur itself is never returned.
func (p *pool) claim(cur int32) (int32, bool) {
	n := int32(len(p.bufs))
	for i := int32(1); i < n; i++ {
		idx := (cur + i) % n
		if p.leases[idx].CompareAndSwap(slotIdle, slotClaimed) {
			return idx, true
		}
	}
	return cur, false
}

// lease adds a consumer lease unless the producer owns the slot
func (p *pool) lease(idx int32) bool {
	for {
		s := p.leases[idx].Load()
		if s < slotIdle {
			return false
		}
		if p.leases[idx].CompareAndSwap(s, s+1) {
			return true
		}
	}
}

func (p *pool) release(idx int32) {
	p.leases[idx].Add(-1)
}

// publish hands a slot the producer has finished writing back to readers
func (p *pool) publish(idx int32, seq uint64) {
	p.seqs[idx].Store(seq)
	p.leases[idx].Store(slotIdle)
}
