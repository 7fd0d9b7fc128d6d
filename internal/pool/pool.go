// Package pool implements the self-tuning worker pool's lifecycle (C6):
// pool states, shutdown modes, prewarm and cleanup, tying together the
// census, blocker, throughput tracker, queue, worker loops and manager.
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pgvanniekerk/ezworker/internal/blocker"
	"github.com/pgvanniekerk/ezworker/internal/census"
	"github.com/pgvanniekerk/ezworker/internal/manager"
	"github.com/pgvanniekerk/ezworker/internal/queue"
	"github.com/pgvanniekerk/ezworker/internal/spawner"
	"github.com/pgvanniekerk/ezworker/internal/throughput"
	"github.com/pgvanniekerk/ezworker/internal/ticker"
	"github.com/pgvanniekerk/ezworker/internal/workerloop"
	"github.com/pgvanniekerk/ezworker/worker"

	"golang.org/x/sync/errgroup"
)

// lifecycle is the pool's monotonic state, spec.md §3: Created -> Running ->
// StopRequested -> Stopped.
type lifecycle int32

const (
	stateCreated lifecycle = iota
	stateRunning
	stateStopRequested
	stateStopped
)

// Errors returned by Pool operations.
var (
	ErrInvalidArgument = errors.New("ezworker: invalid argument")
	ErrClosed          = errors.New("ezworker: pool is stopped")
	ErrCancelled       = errors.New("ezworker: submit cancelled")
)

// Logger is the minimal structured-ish logging contract the pool needs;
// satisfied by the standard library's *log.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

// Config bundles a Pool's full construction-time configuration. Callers
// normally build one via the public pkg/pool options rather than directly.
type Config[INPUT any] struct {
	WorkFunc worker.Func[INPUT]
	ErrChan  chan<- error

	MinWorkers uint32
	MaxWorkers uint32

	QueueCapacity int

	ReasonableWorkers uint32
	FastSpawnLimit    uint32

	TrimPeriod         time.Duration
	StealAwakePeriod   time.Duration
	ManagementPeriod   time.Duration
	MaxQueueExtension  int
	WorkItemsPerWorker int

	Ticker  *ticker.Ticker
	Spawner spawner.Factory
	Logger  Logger
}

// Pool is a generic self-tuning worker pool: it executes items of type
// INPUT concurrently, growing and shrinking its active worker count to
// match offered load, and shuts down cooperatively.
type Pool[INPUT any] struct {
	cfg Config[INPUT]

	census  *census.Census
	blocker *blocker.PartialBlocker
	tracker *throughput.Tracker
	queue   *queue.Queue[INPUT]
	mgr     *manager.Manager

	state atomic.Int32

	stopCtx  context.Context
	stopFunc context.CancelFunc

	sawWork atomic.Bool
	running atomic.Int32

	handlesMu sync.Mutex
	handles   []spawner.Handle

	letFinish atomic.Bool
	tickerID  int

	startMutex sync.Mutex
	stopMutex  sync.Mutex
}

// New constructs a Pool. It does not start any worker goroutines; that
// happens lazily on the first Submit/TrySubmit/Prewarm call, per spec.md
// §4.6.
func New[INPUT any](cfg Config[INPUT]) *Pool[INPUT] {
	c := &census.Census{}
	b := blocker.New(cfg.MaxWorkers)
	tr := throughput.New()
	q := queue.New[INPUT](cfg.QueueCapacity)

	p := &Pool[INPUT]{
		cfg:     cfg,
		census:  c,
		blocker: b,
		tracker: tr,
		queue:   q,
	}

	p.mgr = manager.New(manager.Config{
		Census:             c,
		Blocker:            b,
		Tracker:            tr,
		Queue:              q,
		Running:            &p.running,
		SawWork:            &p.sawWork,
		MinWorkers:         cfg.MinWorkers,
		MaxWorkers:         cfg.MaxWorkers,
		ReasonableWorkers:  cfg.ReasonableWorkers,
		FastSpawnLimit:     cfg.FastSpawnLimit,
		ManagementPeriod:   cfg.ManagementPeriod,
		MaxQueueExtension:  cfg.MaxQueueExtension,
		WorkItemsPerWorker: cfg.WorkItemsPerWorker,
		Spawn:              p.spawnWorker,
	})

	return p
}

// ensureStarted transitions Created -> Running exactly once, prewarming to
// MinWorkers and registering with the management ticker.
func (p *Pool[INPUT]) ensureStarted() {
	if lifecycle(p.state.Load()) != stateCreated {
		return
	}

	p.startMutex.Lock()
	defer p.startMutex.Unlock()

	if lifecycle(p.state.Load()) != stateCreated {
		return
	}

	p.stopCtx, p.stopFunc = context.WithCancel(context.Background())
	p.state.Store(int32(stateRunning))

	p.Prewarm(int(p.cfg.MinWorkers))

	if p.cfg.Ticker != nil {
		p.tickerID = p.cfg.Ticker.Register(p.onTick)
	}
}

// onTick is the management ticker's callback. It returns false once the
// pool has stopped, so the ticker deregisters it (spec.md §4.5 step 1).
func (p *Pool[INPUT]) onTick(elapsed time.Duration) bool {
	if lifecycle(p.state.Load()) == stateStopped {
		return false
	}
	p.mgr.Tick(elapsed)
	return true
}

// spawnWorker is the manager's full-spawn callback: it creates a new
// WorkerLoop bound to this pool's shared collaborators and hands it to the
// spawner. The census total slot is already reserved by the caller.
func (p *Pool[INPUT]) spawnWorker() bool {
	cfg := workerloop.Config[INPUT]{
		Census:            p.census,
		Blocker:           p.blocker,
		Tracker:           p.tracker,
		Queue:             p.queue,
		WorkFunc:          p.cfg.WorkFunc,
		ErrChan:           p.cfg.ErrChan,
		TrimPeriod:        p.cfg.TrimPeriod,
		StealAwakePeriod:  p.cfg.StealAwakePeriod,
		ReasonableWorkers: p.cfg.ReasonableWorkers,
		FastSpawnLimit:    p.cfg.FastSpawnLimit,
		MinWorkers:        p.cfg.MinWorkers,
		MaxWorkers:        p.cfg.MaxWorkers,
		SawWork:           &p.sawWork,
		Running:           &p.running,
		LetFinish:         func() bool { return p.letFinish.Load() },
		Logger:            p.cfg.Logger,
	}
	loop := workerloop.New(cfg)

	handle := p.cfg.Spawner.Spawn(func() {
		loop.Run(p.stopCtx)
	})

	p.handlesMu.Lock()
	p.handles = append(p.handles, handle)
	p.handlesMu.Unlock()

	return true
}

// Submit enqueues item, blocking while a bounded queue is full. It returns
// ErrClosed if the pool has already been asked to stop, ErrCancelled if ctx
// is cancelled first.
func (p *Pool[INPUT]) Submit(ctx context.Context, item INPUT) error {
	if lifecycle(p.state.Load()) >= stateStopRequested {
		return ErrClosed
	}
	p.ensureStarted()
	p.mgr.MaybeSpawn(p.queue.Size())

	if !p.queue.Add(ctx, item) {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		return ErrClosed
	}
	return nil
}

// TrySubmit attempts a non-blocking enqueue. It returns false if the queue
// is at (extended) capacity, or the pool has stopped.
func (p *Pool[INPUT]) TrySubmit(item INPUT) bool {
	if lifecycle(p.state.Load()) >= stateStopRequested {
		return false
	}
	p.ensureStarted()
	p.mgr.MaybeSpawn(p.queue.Size())
	return p.queue.TryAdd(item)
}

// Prewarm eagerly activates/spawns up to n workers, ahead of any submitted
// work. It is used both by ensureStarted (to reach MinWorkers) and by
// callers who want to absorb startup latency before traffic arrives.
func (p *Pool[INPUT]) Prewarm(n int) error {
	if n <= 0 {
		return nil
	}
	p.ensureStarted()

	g := new(errgroup.Group)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			p.mgr.AddOrActivate(p.cfg.MaxWorkers)
			return nil
		})
	}
	return g.Wait()
}

// Stop requests the pool to stop. If letFinish is true, items still queued
// when Stop is called are executed before workers exit; otherwise they are
// discarded. Stop blocks until every worker handle has joined (spec.md
// §4.6, StopRequested -> Stopped).
func (p *Pool[INPUT]) Stop(letFinish bool) {
	p.stopMutex.Lock()
	defer p.stopMutex.Unlock()

	if lifecycle(p.state.Load()) >= stateStopRequested {
		return
	}

	p.letFinish.Store(letFinish)
	p.state.Store(int32(stateStopRequested))

	if p.stopFunc != nil {
		p.stopFunc()
	}

	p.handlesMu.Lock()
	handles := append([]spawner.Handle(nil), p.handles...)
	p.handlesMu.Unlock()

	for _, h := range handles {
		h.Join()
	}

	if p.cfg.Ticker != nil {
		p.cfg.Ticker.Unregister(p.tickerID)
	}
	p.blocker.Close()
	p.queue.Close()

	p.state.Store(int32(stateStopped))
}

// MinWorkers returns the pool's configured minimum worker count.
func (p *Pool[INPUT]) MinWorkers() uint32 { return p.cfg.MinWorkers }

// MaxWorkers returns the pool's configured maximum worker count.
func (p *Pool[INPUT]) MaxWorkers() uint32 { return p.cfg.MaxWorkers }

// ActiveWorkers returns the current active-worker count.
func (p *Pool[INPUT]) ActiveWorkers() uint32 { return p.census.Load().Active }

// Stats is a point-in-time introspection snapshot.
type Stats struct {
	Total         uint32
	Active        uint32
	Parked        uint32
	DieSlots      uint32
	QueueSize     int
	QueueCapacity int
}

// Stats returns a snapshot of the pool's current census and queue state.
func (p *Pool[INPUT]) Stats() Stats {
	snap := p.census.Load()
	return Stats{
		Total:         snap.Total,
		Active:        snap.Active,
		Parked:        snap.Parked(),
		DieSlots:      snap.DieSlots,
		QueueSize:     p.queue.Size(),
		QueueCapacity: p.queue.Capacity(),
	}
}
