// Package manager implements the pool's periodic controller (spec.md §4.5):
// it spawns/activates/deactivates workers, extends the queue, and reacts to
// critical under-provisioning, once per management tick.
package manager

import (
	"sync/atomic"
	"time"

	"github.com/pgvanniekerk/ezworker/internal/blocker"
	"github.com/pgvanniekerk/ezworker/internal/census"
	"github.com/pgvanniekerk/ezworker/internal/throughput"
)

// QueueView is the subset of the queue collaborator's interface (spec.md
// §6) the manager needs: size, capacity and extension, irrespective of the
// item type the queue carries.
type QueueView interface {
	Size() int
	Bounded() bool
	Capacity() int
	BaseCapacity() int
	ExtendedCapacity() int
	ExtendCapacity(n int)
}

// Config bundles the manager's dependencies and tunables.
type Config struct {
	Census  *census.Census
	Blocker *blocker.PartialBlocker
	Tracker *throughput.Tracker
	Queue   QueueView

	// Running approximates the number of workers currently executing a
	// work item, the portable stand-in for inspecting OS thread state
	// (spec.md §9, Open Question).
	Running *atomic.Int32
	SawWork *atomic.Bool

	MinWorkers, MaxWorkers, ReasonableWorkers, FastSpawnLimit uint32

	ManagementPeriod   time.Duration
	MaxQueueExtension  int
	WorkItemsPerWorker int

	// Spawn performs a full worker spawn (new goroutine running a
	// WorkerLoop) once the census has already reserved a total slot for
	// it. It returns false on spawn failure.
	Spawn func() bool
}

// Manager is the periodic controller. It is driven by repeated calls to
// Tick, typically from a ticker.Ticker callback.
type Manager struct {
	cfg   Config
	accum time.Duration
}

// New creates a Manager. WorkItemsPerWorker and MaxQueueExtension default
// to 1 and 256 respectively when left at zero, matching spec.md §6's
// documented default for maxQueueExtension.
func New(cfg Config) *Manager {
	if cfg.WorkItemsPerWorker <= 0 {
		cfg.WorkItemsPerWorker = 1
	}
	if cfg.MaxQueueExtension == 0 {
		cfg.MaxQueueExtension = 256
	}
	return &Manager{cfg: cfg}
}

// Tick runs one management pass if at least ManagementPeriod has elapsed
// since the last pass; otherwise it rate-limits and returns false. It
// returns whether this pass was critical (spec.md §4.5 step 6).
func (m *Manager) Tick(elapsed time.Duration) bool {
	m.accum += elapsed
	if m.accum < m.cfg.ManagementPeriod {
		return false
	}
	m.accum = 0

	critical := false
	snap := m.cfg.Census.Load()

	// 3. Starvation rescue.
	if snap.Active == 0 && m.cfg.Queue.Size() > 0 {
		m.addOrActivate(1)
		snap = m.cfg.Census.Load()
	}

	// 4. Normal growth.
	for snap.Active < m.cfg.ReasonableWorkers && m.growthIndicated(snap) {
		if !m.addOrActivate(m.cfg.ReasonableWorkers) {
			break
		}
		snap = m.cfg.Census.Load()
	}

	// 5. Queue extension.
	if m.cfg.Queue.Bounded() && !m.cfg.SawWork.Load() {
		extended := m.cfg.Queue.ExtendedCapacity()
		if m.cfg.Queue.Size() >= extended && extended-m.cfg.Queue.BaseCapacity() < m.cfg.MaxQueueExtension {
			target := extended + int(snap.Total) + 1
			if limit := m.cfg.Queue.BaseCapacity() + m.cfg.MaxQueueExtension; target > limit {
				target = limit
			}
			m.cfg.Queue.ExtendCapacity(target)
		}
	}

	// 6. Critical spawn.
	if m.growthIndicated(snap) && snap.Total >= m.cfg.ReasonableWorkers {
		running := m.cfg.Running.Load()
		sawWork := m.cfg.SawWork.Load()
		if running <= 1 || (!sawWork && uint32(running) < m.cfg.ReasonableWorkers) {
			for i := 0; i < 2; i++ {
				if !m.addOrActivate(m.cfg.MaxWorkers) {
					break
				}
			}
			critical = true
			snap = m.cfg.Census.Load()
		}
	}

	// 7. Tuning adjustment.
	headroom := snap.Total < m.cfg.MaxWorkers
	queuePressure := m.cfg.Queue.Size() > 0
	needsAdjustment := headroom && queuePressure
	delta := m.cfg.Tracker.RegisterAndSuggest(int(snap.Active), needsAdjustment, critical, int(m.cfg.MinWorkers), int(m.cfg.MaxWorkers))
	switch {
	case delta > 0:
		for i := 0; i < delta; i++ {
			if !m.addOrActivate(m.cfg.MaxWorkers) {
				break
			}
		}
	case delta < 0:
		for i := 0; i < -delta; i++ {
			// No explicit gate signal is needed here: the deactivated worker
			// discovers it is surplus the next time it reaches its own park
			// call, and registers its own parking demand there.
			if !m.cfg.Census.DecActive(m.cfg.ReasonableWorkers) {
				break
			}
		}
	}

	// 8. Clear sawWork.
	m.cfg.SawWork.Store(false)

	return critical
}

// growthIndicated reports whether queue pressure still justifies growing
// the active worker count (spec.md §4.5 steps 4 and 6).
func (m *Manager) growthIndicated(snap census.Snapshot) bool {
	size := m.cfg.Queue.Size()
	if size > m.cfg.WorkItemsPerWorker*int(snap.Total) {
		return true
	}
	return m.cfg.Queue.Bounded() && size >= m.cfg.Queue.Capacity()
}

// AddOrActivate exposes addOrActivate for callers outside the periodic tick,
// namely the pool's prewarm path.
func (m *Manager) AddOrActivate(cap uint32) bool {
	return m.addOrActivate(cap)
}

// addOrActivate implements spec.md §4.5's addOrActivate(cap): cheap unpark
// first, full spawn on failure.
func (m *Manager) addOrActivate(cap uint32) bool {
	if m.cfg.Census.IncActive() {
		m.cfg.Blocker.SubExpected(1)
		return true
	}

	if !m.cfg.Census.IncTotal(cap, m.cfg.MaxWorkers) {
		return false
	}
	if m.cfg.Spawn == nil || !m.cfg.Spawn() {
		m.cfg.Census.DecTotal(0)
		return false
	}
	return true
}

// MaybeSpawn is the fast-spawn-on-enqueue optimisation (spec.md §4.5): a
// trivially-parallel burst does not need to wait a full management tick for
// its first worker.
func (m *Manager) MaybeSpawn(queueSizeHint int) {
	snap := m.cfg.Census.Load()
	if snap.Active < m.cfg.FastSpawnLimit && int(snap.Active) < queueSizeHint+2 {
		m.addOrActivate(m.cfg.FastSpawnLimit)
	}
}
