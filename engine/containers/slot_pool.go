package containers

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	ErrPoolExhausted = errors.New("no free slots")
	ErrStaleHandle   = errors.New("handle is stale or not allocated")
)

// Handle identifies an allocated slot. The generation changes every time the
// slot is released, so a handle kept after Release no longer validates.
type Handle struct {
	Index      uint32
	Generation uint32
}

// InvalidHandle is never returned by Acquire.
var InvalidHandle = Handle{Index: ^uint32(0), Generation: 0}

// Assigned reports whether h could have come from Acquire. Generations start
// at 1, so both the zero Handle and InvalidHandle are unassigned.
func (h Handle) Assigned() bool {
	return h.Generation != 0
}

func (h Handle) String() string {
	return fmt.Sprintf("%d#%d", h.Index, h.Generation)
}

// SlotPool is a fixed capacity free-list. Acquire is a linear scan of the
// used flags, so it belongs on load paths and not in per-frame code.
type SlotPool struct {
	used        []bool
	generations []uint32
	live        int
}

func NewSlotPool(capacity uint32) *SlotPool {
	gens := make([]uint32, capacity)
	for i := range gens {
		gens[i] = 1
	}
	return &SlotPool{
		used:        make([]bool, capacity),
		generations: gens,
	}
}

// Acquire claims the first free slot.
func (p *SlotPool) Acquire() (Handle, error) {
	for i, used := range p.used {
		if !used {
			p.used[i] = true
			p.live++
			return Handle{Index: uint32(i), Generation: p.generations[i]}, nil
		}
	}
	return InvalidHandle, ErrPoolExhausted
}

// Release returns the slot to the pool and invalidates every outstanding handle to it.
func (p *SlotPool) Release(h Handle) error {
	if !p.Valid(h) {
		return errors.Wrapf(ErrStaleHandle, "release of %s", h)
	}
	p.used[h.Index] = false
	p.generations[h.Index]++
	if p.generations[h.Index] == 0 {
		p.generations[h.Index] = 1
	}
	p.live--
	return nil
}

func (p *SlotPool) Valid(h Handle) bool {
	if int(h.Index) >= len(p.used) {
		return false
	}
	return p.used[h.Index] && p.generations[h.Index] == h.Generation
}

func (p *SlotPool) Capacity() uint32 {
	return uint32(len(p.used))
}

func (p *SlotPool) Live() int {
	return p.live
}

// Each calls fn for every allocated slot in index order.
func (p *SlotPool) Each(fn func(h Handle)) {
	for i, used := range p.used {
		if used {
			fn(Handle{Index: uint32(i), Generation: p.generations[i]})
		}
	}
}
