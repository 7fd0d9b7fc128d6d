package throughput

import "testing"

// tick registers completions worth of executions for the current interval
// and runs one management tick.
func tick(tr *Tracker, completions int64) int {
	for i := int64(0); i < completions; i++ {
		tr.RegisterExecution()
	}
	return tr.RegisterAndSuggest(4, true, false, 0, 8)
}

func TestCriticalAlwaysGrows(t *testing.T) {
	tr := New()
	if got := tr.RegisterAndSuggest(4, true, true, 0, 8); got != 1 {
		t.Fatalf("expected +1 on critical tick, got %d", got)
	}
}

func TestCriticalFromZeroActiveDoublesUp(t *testing.T) {
	tr := New()
	if got := tr.RegisterAndSuggest(0, true, true, 0, 8); got != 2 {
		t.Fatalf("expected +2 when active == 0 on a critical tick, got %d", got)
	}
}

func TestNoAdjustmentNeededHoldsAtZero(t *testing.T) {
	tr := New()
	// Feed rising throughput, but tell the tracker no adjustment is needed.
	tr.RegisterExecution()
	if got := tr.RegisterAndSuggest(4, false, false, 0, 8); got != 0 {
		t.Fatalf("expected 0 when needsAdjustment is false, got %d", got)
	}
}

func TestRisingThroughputSuggestsGrowth(t *testing.T) {
	tr := New()
	if got := tick(tr, 5); got != 1 {
		t.Fatalf("expected first move to be +1, got %d", got)
	}
	if got := tick(tr, 10); got != 1 {
		t.Fatalf("expected continued growth while throughput rises, got %d", got)
	}
}

func TestFallingThroughputSuggestsShrink(t *testing.T) {
	tr := New()
	tick(tr, 10) // establish an upward direction
	if got := tick(tr, 2); got != -1 {
		t.Fatalf("expected reversal to -1 when throughput falls, got %d", got)
	}
}

func TestReversalIsDampedForOneTick(t *testing.T) {
	tr := New()
	tick(tr, 10) // up
	tick(tr, 2)  // reverses to down, arms the damper
	if got := tick(tr, 20); got != 0 {
		t.Fatalf("expected the tick right after a reversal to hold at 0, got %d", got)
	}
}

func TestSuggestionClampedToBounds(t *testing.T) {
	tr := New()
	tr.RegisterExecution()
	if got := tr.RegisterAndSuggest(8, true, false, 0, 8); got != 0 {
		t.Fatalf("expected suggestion clamped to 0 at maxWorkers, got %d", got)
	}
}
