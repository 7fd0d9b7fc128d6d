// Package workerloop implements the per-worker state machine (spec.md
// §4.4): park -> poll -> run -> self-park / self-retire.
package workerloop

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pgvanniekerk/ezworker/internal/blocker"
	"github.com/pgvanniekerk/ezworker/internal/census"
	"github.com/pgvanniekerk/ezworker/internal/queue"
	"github.com/pgvanniekerk/ezworker/internal/throughput"
	"github.com/pgvanniekerk/ezworker/worker"
)

// defaultShortPollPeriod is the fallback noWorkItemPreventDeactivationPeriod
// from spec.md §4.4, used when Config.StealAwakePeriod is left at zero.
const defaultShortPollPeriod = 2 * time.Second

// Config bundles the tunables and shared state a Loop needs from the pool
// that owns it.
type Config[INPUT any] struct {
	Census   *census.Census
	Blocker  *blocker.PartialBlocker
	Tracker  *throughput.Tracker
	Queue    *queue.Queue[INPUT]
	WorkFunc worker.Func[INPUT]
	ErrChan  chan<- error

	TrimPeriod        time.Duration // < 0 disables trimming
	StealAwakePeriod  time.Duration // noWorkItemPreventDeactivationPeriod; 0 uses defaultShortPollPeriod
	ReasonableWorkers uint32
	FastSpawnLimit    uint32
	MinWorkers        uint32
	MaxWorkers        uint32

	// SawWork is set on every successfully executed item, and cleared by the
	// manager at the end of each tick (spec.md §4.5 step 8).
	SawWork *atomic.Bool

	// Running counts workers currently inside run(). It is the portable
	// approximation of "running vs waiting" OS thread state the manager's
	// critical-spawn path uses (spec.md §9, Open Question).
	Running *atomic.Int32

	// LetFinish reports the pool's shutdown draining policy: true means
	// execute items still queued at shutdown, false means discard them.
	LetFinish func() bool

	Logger interface {
		Printf(format string, args ...any)
	}
}

// Loop runs one worker's state machine until ctx is cancelled.
type Loop[INPUT any] struct {
	cfg Config[INPUT]
}

// New creates a Loop bound to cfg.
func New[INPUT any](cfg Config[INPUT]) *Loop[INPUT] {
	return &Loop[INPUT]{cfg: cfg}
}

// Run executes the state machine until ctx is cancelled. It always exits
// through the retire path, so the caller's Census total/active accounting
// stays correct no matter how the loop ends. A freshly spawned or reactivated
// worker begins directly in Polling rather than Idle-Parked: it was spawned
// because there was (or recently was) work to do, and incActive here is the
// counterpart of the reservation the caller already made in Census.total.
func (l *Loop[INPUT]) Run(ctx context.Context) {
	l.cfg.Census.IncActive()

	for {
		select {
		case <-ctx.Done():
			l.drain(ctx)
			l.cfg.Census.RetireCascade()
			return
		default:
		}

		missed := false
		for !missed {
			select {
			case <-ctx.Done():
				l.drain(ctx)
				l.cfg.Census.RetireCascade()
				return
			default:
			}

			item, ok := l.cfg.Queue.TryTake(ctx, 0)
			if ok {
				l.run(item)
				continue
			}

			missed = l.pollMiss(ctx)
		}

		if l.park(ctx) {
			return
		}
	}
}

// park implements spec.md §4.4.1, the Idle-Parked state, reached only after
// a poll attempt surrendered (pollMiss returned true). The worker declares
// its own parking demand for the duration of the wait — regardless of
// whether the long-poll or short-poll branch surrendered into it — so the
// gate genuinely has something to release it from, and withdraws that
// demand itself if nobody released it in time. It returns true if the
// worker claimed a die slot and exited.
func (l *Loop[INPUT]) park(ctx context.Context) bool {
	l.cfg.Blocker.AddExpected(1)
	metDemand := l.cfg.Blocker.Wait(ctx, l.cfg.TrimPeriod)

	if ctx.Err() != nil {
		l.cfg.Blocker.Withdraw(1)
		return false
	}

	if !metDemand {
		l.cfg.Blocker.Withdraw(1)
		if l.cfg.TrimPeriod >= 0 && l.cfg.Census.RequestDieSlot(l.cfg.MinWorkers, l.cfg.MaxWorkers) {
			l.cfg.Census.RetireCascade()
			return true
		}
	}

	// Either released, trimming is disabled, or no die slot was available:
	// rejoin the active set and go poll.
	l.cfg.Census.IncActive()
	return false
}

// pollMiss implements the two branches of spec.md §4.4.2 after a
// non-blocking tryTake misses. It returns true when the worker should leave
// Run's poll loop and enter the park state, false when it should keep
// polling; an item taken by either poll is run here before returning false.
// A cancelled ctx is handled the same as a timeout here; Run's own
// ctx.Done() checks are what actually trigger shutdown drain.
func (l *Loop[INPUT]) pollMiss(ctx context.Context) bool {
	snap := l.cfg.Census.Load()
	seenActive := snap.Active

	if seenActive <= l.cfg.ReasonableWorkers {
		if item, ok := l.cfg.Queue.TryTake(ctx, l.cfg.TrimPeriod); ok {
			l.run(item)
			return false
		}
		// Long poll timed out (or ctx was cancelled): surrender to the park
		// path without forcing a deactivation; the blocker itself decides
		// whether this worker is actually wanted parked.
		return true
	}

	shortPoll := l.cfg.StealAwakePeriod
	if shortPoll <= 0 {
		shortPoll = defaultShortPollPeriod
	}
	if item, ok := l.cfg.Queue.TryTake(ctx, shortPoll); ok {
		l.run(item)
		return false
	}

	floor := l.deactivationFloor()
	if l.cfg.Census.DecActive(floor) {
		// park() places this worker's own demand on the gate; decActive only
		// needs to drop it from the active count here.
		return true
	}
	// Could not deactivate (already at floor); keep polling.
	return false
}

func (l *Loop[INPUT]) deactivationFloor() uint32 {
	snap := l.cfg.Census.Load()
	switch {
	case snap.Active > l.cfg.ReasonableWorkers:
		return l.cfg.ReasonableWorkers
	case snap.Total > l.cfg.FastSpawnLimit:
		return l.cfg.FastSpawnLimit
	default:
		return l.cfg.MinWorkers
	}
}

func (l *Loop[INPUT]) run(item INPUT) {
	defer func() {
		if r := recover(); r != nil {
			if l.cfg.Logger != nil {
				l.cfg.Logger.Printf("ezworker: work item panicked: %v", r)
			}
		}
	}()

	if l.cfg.Running != nil {
		l.cfg.Running.Add(1)
		defer l.cfg.Running.Add(-1)
	}

	err := l.cfg.WorkFunc(item)
	l.cfg.Tracker.RegisterExecution()
	l.cfg.SawWork.Store(true)
	if err != nil && l.cfg.ErrChan != nil {
		l.cfg.ErrChan <- err
	}
}

// drain implements spec.md §4.4.4: on shutdown, remaining items are either
// executed (let-finish) or discarded.
func (l *Loop[INPUT]) drain(ctx context.Context) {
	letFinish := l.cfg.LetFinish != nil && l.cfg.LetFinish()
	for _, item := range l.cfg.Queue.Drain() {
		if letFinish {
			l.run(item)
		}
	}
	_ = ctx
}
