// Package ticker implements the external management-ticker collaborator
// spec.md §6 describes: a single shared, process-wide periodic callback
// invoker that the pool manager registers against and deregisters from on
// shutdown.
package ticker

import (
	"sync"
	"time"
)

// Callback is invoked on every tick with the elapsed time since the
// previous invocation. It returns false to request removal.
type Callback func(elapsed time.Duration) bool

// Ticker drives a set of registered callbacks off a single time.Ticker.
type Ticker struct {
	mu        sync.Mutex
	callbacks map[int]Callback
	nextID    int
	last      time.Time

	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a Ticker that invokes registered callbacks every interval.
func New(interval time.Duration) *Ticker {
	t := &Ticker{
		callbacks: make(map[int]Callback),
		interval:  interval,
		stopCh:    make(chan struct{}),
		last:      time.Now(),
	}
	go t.run()
	return t
}

func (t *Ticker) run() {
	tick := time.NewTicker(t.interval)
	defer tick.Stop()
	for {
		select {
		case now := <-tick.C:
			t.fire(now)
		case <-t.stopCh:
			return
		}
	}
}

func (t *Ticker) fire(now time.Time) {
	t.mu.Lock()
	elapsed := now.Sub(t.last)
	t.last = now
	callbacks := make(map[int]Callback, len(t.callbacks))
	for id, cb := range t.callbacks {
		callbacks[id] = cb
	}
	t.mu.Unlock()

	for id, cb := range callbacks {
		if !cb(elapsed) {
			t.Unregister(id)
		}
	}
}

// Register adds callback to the ticker and returns a handle usable with
// Unregister.
func (t *Ticker) Register(cb Callback) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.callbacks[id] = cb
	return id
}

// Unregister removes a previously registered callback.
func (t *Ticker) Unregister(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.callbacks, id)
}

// Stop permanently stops the underlying timer. It does not need to be
// called per-pool; a process typically keeps one Ticker alive for its
// lifetime and only calls Stop at process shutdown.
func (t *Ticker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
	})
}
