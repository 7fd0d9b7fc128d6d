package pool

import (
	"runtime"
	"time"
)

// poolOptions collects the tunables a caller may override via Option,
// layered on top of the defaults New computes from MaxWorkers.
type poolOptions struct {
	reasonableWorkers  uint32
	fastSpawnLimit     uint32
	trimPeriod         time.Duration
	stealAwakePeriod   time.Duration
	managementPeriod   time.Duration
	maxQueueExtension  int
	workItemsPerWorker int
	logger             Logger
}

// Option customizes a Pool's construction-time tunables beyond
// MinWorkers/MaxWorkers/QueueCapacity.
type Option func(*poolOptions)

// WithReasonableWorkers overrides the active-worker count below which the
// manager grows aggressively on every tick. Defaults to runtime.NumCPU(),
// capped at MaxWorkers.
func WithReasonableWorkers(n uint32) Option {
	return func(o *poolOptions) { o.reasonableWorkers = n }
}

// WithFastSpawnLimit overrides the active-worker count below which Submit
// spawns a worker immediately instead of waiting for the next management
// tick. Defaults to half of the default ReasonableWorkers, minimum 1; an
// override via WithReasonableWorkers does not change this default.
func WithFastSpawnLimit(n uint32) Option {
	return func(o *poolOptions) { o.fastSpawnLimit = n }
}

// WithTrimPeriod overrides how long an idle worker waits while parked
// before requesting a die slot. A negative value disables trimming
// entirely: parked workers wait indefinitely for a release signal.
func WithTrimPeriod(d time.Duration) Option {
	return func(o *poolOptions) { o.trimPeriod = d }
}

// WithStealAwakePeriod overrides the noWorkItemPreventDeactivationPeriod: how
// long a worker above ReasonableWorkers short-polls before deactivating.
func WithStealAwakePeriod(d time.Duration) Option {
	return func(o *poolOptions) { o.stealAwakePeriod = d }
}

// WithManagementPeriod overrides how often the pool's periodic controller
// runs. Must be positive; New returns ErrInvalidArgument otherwise.
func WithManagementPeriod(d time.Duration) Option {
	return func(o *poolOptions) { o.managementPeriod = d }
}

// WithMaxQueueExtension overrides the maximum number of extra slots the
// manager may add to a bounded queue under sustained backlog. A value of 0
// is treated as unset and selects the default of 256.
func WithMaxQueueExtension(n int) Option {
	return func(o *poolOptions) { o.maxQueueExtension = n }
}

// WithWorkItemsPerWorker overrides the queue-size-to-worker-count ratio that
// triggers normal growth (spec.md §4.5 step 4).
func WithWorkItemsPerWorker(n int) Option {
	return func(o *poolOptions) { o.workItemsPerWorker = n }
}

// WithLogger installs a Logger used to report work-item panics. Satisfied
// by *log.Logger.
func WithLogger(l Logger) Option {
	return func(o *poolOptions) { o.logger = l }
}

// Logger is the minimal logging contract a Pool needs.
type Logger interface {
	Printf(format string, args ...any)
}

// defaultOptions derives sensible defaults from maxWorkers,
// mirroring the teacher's CreateLimiter default of runtime.NumCPU() slots
// when the caller does not specify a concurrency level explicitly.
func defaultOptions(maxWorkers uint32) poolOptions {
	reasonable := uint32(runtime.NumCPU())
	if reasonable == 0 {
		reasonable = 1
	}
	if reasonable > maxWorkers {
		reasonable = maxWorkers
	}
	fastSpawn := reasonable / 2
	if fastSpawn == 0 {
		fastSpawn = 1
	}
	return poolOptions{
		reasonableWorkers:  reasonable,
		fastSpawnLimit:     fastSpawn,
		trimPeriod:         30 * time.Second,
		stealAwakePeriod:   2 * time.Second,
		managementPeriod:   200 * time.Millisecond,
		maxQueueExtension:  256,
		workItemsPerWorker: 1,
	}
}
