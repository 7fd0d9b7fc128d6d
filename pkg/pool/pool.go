package pool

import (
	"context"
	"log"

	internalpool "github.com/pgvanniekerk/ezworker/internal/pool"
	"github.com/pgvanniekerk/ezworker/internal/spawner"
	"github.com/pgvanniekerk/ezworker/internal/ticker"
	"github.com/pgvanniekerk/ezworker/worker"
)

// maxWorkersLimit is the hard ceiling spec.md §6 places on MaxWorkers: the
// census word packs the active/total counters into 12 bits each.
const maxWorkersLimit = 4096

// Config bundles a Pool's construction-time parameters. WorkFunc and
// MaxWorkers are required; everything else has a documented default.
type Config[INPUT any] struct {
	// WorkFunc is invoked once per submitted item. Required.
	WorkFunc worker.Func[INPUT]

	// ErrChan receives every non-nil error WorkFunc returns. May be nil, in
	// which case such errors are silently discarded.
	ErrChan chan<- error

	// MinWorkers is the floor the pool never shrinks below. Defaults to 0.
	MinWorkers uint32

	// MaxWorkers is the ceiling the pool never grows past. Required: must
	// be in [1, 4096) and >= MinWorkers.
	MaxWorkers uint32

	// QueueCapacity bounds the work queue; <= 0 means unbounded.
	QueueCapacity int

	// Options carries functional overrides, see WithTrimPeriod and friends.
	Options []Option
}

// Pool is a generic self-tuning worker pool: it executes items of type
// INPUT concurrently, growing and shrinking its active worker count to
// match offered load, and shuts down cooperatively via Stop.
type Pool[INPUT any] struct {
	inner  *internalpool.Pool[INPUT]
	ticker *ticker.Ticker
}

// New validates cfg and constructs a Pool. It returns ErrInvalidArgument if
// cfg violates any of its documented constraints:
//
//	0 <= MinWorkers
//	1 <= MaxWorkers < 4096
//	MaxWorkers >= MinWorkers
//	WorkFunc != nil
//	a non-default WithManagementPeriod must be > 0
//	a non-default WithMaxQueueExtension must be >= 0
func New[INPUT any](cfg Config[INPUT]) (*Pool[INPUT], error) {
	if cfg.WorkFunc == nil {
		return nil, ErrInvalidArgument
	}
	if cfg.MaxWorkers < 1 || cfg.MaxWorkers >= maxWorkersLimit {
		return nil, ErrInvalidArgument
	}
	if cfg.MaxWorkers < cfg.MinWorkers {
		return nil, ErrInvalidArgument
	}

	opts := defaultOptions(cfg.MaxWorkers)
	for _, apply := range cfg.Options {
		apply(&opts)
	}

	if opts.managementPeriod <= 0 {
		return nil, ErrInvalidArgument
	}
	if opts.maxQueueExtension < 0 {
		return nil, ErrInvalidArgument
	}
	if opts.reasonableWorkers == 0 || opts.reasonableWorkers > cfg.MaxWorkers {
		return nil, ErrInvalidArgument
	}

	t := ticker.New(opts.managementPeriod)

	var logger internalpool.Logger = log.Default()
	if opts.logger != nil {
		logger = opts.logger
	}

	inner := internalpool.New(internalpool.Config[INPUT]{
		WorkFunc:           cfg.WorkFunc,
		ErrChan:            cfg.ErrChan,
		MinWorkers:         cfg.MinWorkers,
		MaxWorkers:         cfg.MaxWorkers,
		QueueCapacity:      cfg.QueueCapacity,
		ReasonableWorkers:  opts.reasonableWorkers,
		FastSpawnLimit:     opts.fastSpawnLimit,
		TrimPeriod:         opts.trimPeriod,
		StealAwakePeriod:   opts.stealAwakePeriod,
		ManagementPeriod:   opts.managementPeriod,
		MaxQueueExtension:  opts.maxQueueExtension,
		WorkItemsPerWorker: opts.workItemsPerWorker,
		Ticker:             t,
		Spawner:            spawner.Default(),
		Logger:             logger,
	})

	return &Pool[INPUT]{inner: inner, ticker: t}, nil
}

// Submit enqueues item, blocking while a bounded queue is full. It returns
// ErrClosed if the pool has already been asked to stop, ErrCancelled if ctx
// is cancelled first.
func (p *Pool[INPUT]) Submit(ctx context.Context, item INPUT) error {
	return p.inner.Submit(ctx, item)
}

// TrySubmit attempts a non-blocking enqueue. It returns false if the queue
// is at capacity or the pool has stopped; this is how CapacityExceeded is
// reported, not as an error.
func (p *Pool[INPUT]) TrySubmit(item INPUT) bool {
	return p.inner.TrySubmit(item)
}

// Prewarm eagerly activates up to n workers ahead of any submitted work, to
// absorb startup latency before traffic arrives.
func (p *Pool[INPUT]) Prewarm(n int) error {
	return p.inner.Prewarm(n)
}

// Stop requests the pool to stop. If letFinish is true, items still queued
// when Stop is called are executed before workers exit; otherwise they are
// discarded. Stop blocks until every worker has exited and releases the
// pool's management ticker.
func (p *Pool[INPUT]) Stop(letFinish bool) {
	p.inner.Stop(letFinish)
	p.ticker.Stop()
}

// MinWorkers returns the pool's configured minimum worker count.
func (p *Pool[INPUT]) MinWorkers() uint32 { return p.inner.MinWorkers() }

// MaxWorkers returns the pool's configured maximum worker count.
func (p *Pool[INPUT]) MaxWorkers() uint32 { return p.inner.MaxWorkers() }

// ActiveWorkers returns the current active-worker count.
func (p *Pool[INPUT]) ActiveWorkers() uint32 { return p.inner.ActiveWorkers() }

// Stats returns a point-in-time snapshot of the pool's worker and queue
// state, for introspection and testing.
func (p *Pool[INPUT]) Stats() Stats {
	s := p.inner.Stats()
	return Stats{
		Total:         s.Total,
		Active:        s.Active,
		Parked:        s.Parked,
		DieSlots:      s.DieSlots,
		QueueSize:     s.QueueSize,
		QueueCapacity: s.QueueCapacity,
	}
}
