// Package census implements the pool's packed atomic worker count.
//
// A Census packs total, active and die_slots into a single 32-bit word so
// that the four cross-field invariants of the pool (active <= total,
// die_slots bounded, total bounded by max_workers, and the retire-cascade
// rule) can be enforced with a single lock-free compare-and-swap instead of
// a mutex guarding three separate counters.
package census

import "sync/atomic"

const (
	totalBits    = 12
	activeBits   = 12
	dieSlotBits  = 8
	totalMask    = 1<<totalBits - 1
	activeMask   = 1<<activeBits - 1
	dieSlotMask  = 1<<dieSlotBits - 1
	activeShift  = totalBits
	dieSlotShift = totalBits + activeBits

	// MaxTotal is the largest value total (and therefore max_workers) may
	// take; it is fixed by the 12-bit field width.
	MaxTotal = totalMask

	// MaxDieSlots is the largest value die_slots may take; fixed by the
	// 8-bit field width.
	MaxDieSlots = dieSlotMask
)

func pack(total, active, dieSlots uint32) uint32 {
	return (total & totalMask) | ((active & activeMask) << activeShift) | ((dieSlots & dieSlotMask) << dieSlotShift)
}

func unpack(word uint32) (total, active, dieSlots uint32) {
	total = word & totalMask
	active = (word >> activeShift) & activeMask
	dieSlots = (word >> dieSlotShift) & dieSlotMask
	return
}

// Census is the packed, atomically-updated worker count. The zero value is
// a valid Census with total == active == dieSlots == 0.
type Census struct {
	word atomic.Uint32
}

// Snapshot is a consistent, point-in-time read of a Census.
type Snapshot struct {
	Total    uint32
	Active   uint32
	DieSlots uint32
}

// Parked returns the number of workers tracked but not eligible to run.
func (s Snapshot) Parked() uint32 {
	return s.Total - s.Active
}

// ProjectedAlive returns the number of workers expected to remain once all
// outstanding die slots are consumed.
func (s Snapshot) ProjectedAlive() uint32 {
	return s.Total - s.DieSlots
}

// Load returns a consistent snapshot of the census.
func (c *Census) Load() Snapshot {
	total, active, dieSlots := unpack(c.word.Load())
	return Snapshot{Total: total, Active: active, DieSlots: dieSlots}
}

// cas attempts a single read-modify-CAS step, calling mutate with the
// current snapshot. mutate returns the desired next snapshot and whether the
// mutation is applicable at all; cas retries on contention and returns false
// only when mutate itself declines (ok == false).
func (c *Census) cas(mutate func(Snapshot) (Snapshot, bool)) bool {
	for {
		cur := c.word.Load()
		total, active, dieSlots := unpack(cur)
		next, ok := mutate(Snapshot{Total: total, Active: active, DieSlots: dieSlots})
		if !ok {
			return false
		}
		word := pack(next.Total, next.Active, next.DieSlots)
		if c.word.CompareAndSwap(cur, word) {
			return true
		}
		// Lost the race; bounded spin by simply retrying the read-modify-CAS.
	}
}

// IncTotal succeeds iff total < min(cap, maxWorkers); increments total.
func (c *Census) IncTotal(cap, maxWorkers uint32) bool {
	ceil := cap
	if maxWorkers < ceil {
		ceil = maxWorkers
	}
	return c.cas(func(s Snapshot) (Snapshot, bool) {
		if s.Total >= ceil {
			return s, false
		}
		s.Total++
		return s, true
	})
}

// DecTotal succeeds iff total > floor; decrements total.
func (c *Census) DecTotal(floor uint32) bool {
	return c.cas(func(s Snapshot) (Snapshot, bool) {
		if s.Total <= floor {
			return s, false
		}
		s.Total--
		return s, true
	})
}

// IncActive succeeds iff active < total; increments active.
func (c *Census) IncActive() bool {
	return c.cas(func(s Snapshot) (Snapshot, bool) {
		if s.Active >= s.Total {
			return s, false
		}
		s.Active++
		return s, true
	})
}

// DecActive succeeds iff active > floor; decrements active.
func (c *Census) DecActive(floor uint32) bool {
	return c.cas(func(s Snapshot) (Snapshot, bool) {
		if s.Active <= floor {
			return s, false
		}
		s.Active--
		return s, true
	})
}

// RequestDieSlot succeeds iff projected_alive > floor, total <= ceil, and
// die_slots < MaxDieSlots; increments die_slots.
func (c *Census) RequestDieSlot(floor, ceil uint32) bool {
	return c.cas(func(s Snapshot) (Snapshot, bool) {
		if s.ProjectedAlive() <= floor {
			return s, false
		}
		if s.Total > ceil {
			return s, false
		}
		if s.DieSlots >= MaxDieSlots {
			return s, false
		}
		s.DieSlots++
		return s, true
	})
}

// RetireCascade is the atomic composite used exactly once by a retiring
// worker: if die_slots > 0 it is decremented; if active == total, active is
// also decremented (reported via activeWasDecremented); then total is
// decremented. The whole transition is computed and applied in one CAS so
// the invariants of the Census hold at every observable moment.
func (c *Census) RetireCascade() (activeWasDecremented bool) {
	c.cas(func(s Snapshot) (Snapshot, bool) {
		if s.DieSlots > 0 {
			s.DieSlots--
		}
		if s.Active == s.Total {
			s.Active--
			activeWasDecremented = true
		} else {
			activeWasDecremented = false
		}
		if s.Total > 0 {
			s.Total--
		}
		return s, true
	})
	return activeWasDecremented
}
