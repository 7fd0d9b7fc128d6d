// Package throughput implements the pool's growth/shrink heuristic.
//
// Tracker observes completions per management interval and suggests a
// bounded Δ to the active worker count, using a simple hill-climbing
// direction heuristic: keep moving in the direction that raised observed
// throughput, hold for one tick after a reversal to damp oscillation.
package throughput

import "sync/atomic"

// direction is the tracker's last applied step.
type direction int

const (
	dirNone direction = 0
	dirUp   direction = 1
	dirDown direction = -1
)

// Tracker keeps the completion count of the previous interval and a
// monotonic direction heuristic. It does not record worker counts: the
// currentActive passed to RegisterAndSuggest is used only for clamping.
type Tracker struct {
	completions atomic.Int64

	// baseline is the cumulative completion count as of the start of the
	// current interval.
	baseline int64

	// prevThroughput is the number of completions observed during the
	// previous interval, used to detect whether throughput rose, fell or
	// held compared to the interval before that.
	prevThroughput int64

	lastDirection direction
	// holding is true for exactly one tick after a direction reversal, to
	// dampen oscillation per spec.md §4.3.
	holding bool
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{}
}

// RegisterExecution is called on every completed work item. It is a
// lock-free counter increment, safe to call from any worker goroutine.
func (t *Tracker) RegisterExecution() {
	t.completions.Add(1)
}

// RegisterAndSuggest is called once per management tick and returns an
// integer change to the active worker count, clamped so that
// currentActive + Δ stays within [minWorkers, maxWorkers].
func (t *Tracker) RegisterAndSuggest(currentActive int, needsAdjustment, critical bool, minWorkers, maxWorkers int) int {
	cumulative := t.completions.Load()
	throughput := cumulative - t.baseline
	t.baseline = cumulative

	delta := throughput - t.prevThroughput
	t.prevThroughput = throughput

	var suggestion int
	switch {
	case critical:
		suggestion = 1
		if currentActive == 0 {
			suggestion = 2
		}
		// A critical tick always moves; clear any reversal damping so the
		// next ordinary tick starts from a clean slate.
		t.holding = false
		t.lastDirection = dirUp

	case !needsAdjustment:
		suggestion = 0

	default:
		wantDir := dirNone
		switch {
		case delta > 0:
			wantDir = dirUp
		case delta < 0:
			wantDir = dirDown
		}

		switch {
		case wantDir == dirNone:
			suggestion = 0
		case t.lastDirection == dirNone || wantDir == t.lastDirection:
			// First move, or continuing the same direction: apply it and
			// clear any damping left over from an earlier reversal.
			t.holding = false
			t.lastDirection = wantDir
			suggestion = int(wantDir)
		case t.holding:
			// Reversing again right after the last reversal: hold instead.
			t.holding = false
			suggestion = 0
		default:
			// First reversal: apply it, but arm the damper for next tick.
			t.lastDirection = wantDir
			t.holding = true
			suggestion = int(wantDir)
		}
	}

	return clamp(suggestion, currentActive, minWorkers, maxWorkers)
}

func clamp(delta, currentActive, minWorkers, maxWorkers int) int {
	next := currentActive + delta
	if next < minWorkers {
		delta = minWorkers - currentActive
	} else if next > maxWorkers {
		delta = maxWorkers - currentActive
	}
	return delta
}
