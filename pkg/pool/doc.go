// Package pool provides a generic, self-tuning worker pool for concurrent
// processing of arbitrary work items.
//
// A Pool starts with MinWorkers active goroutines and grows toward
// MaxWorkers as queued work accumulates, shrinking back toward MinWorkers
// once the backlog clears. Growth and shrinkage are driven by a periodic
// management tick rather than by per-item bookkeeping, so the pool adapts
// to bursty load without the overhead of resizing on every Submit.
//
// # Basic usage
//
//	p, err := pool.New(pool.Config[string]{
//		MinWorkers: 2,
//		MaxWorkers: 16,
//		WorkFunc: func(msg string) error {
//			fmt.Println("processing:", msg)
//			return nil
//		},
//		ErrChan: errChan,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer p.Stop(true)
//
//	if err := p.Submit(context.Background(), "hello"); err != nil {
//		log.Printf("submit failed: %v", err)
//	}
//
// # Shutdown
//
// Stop(true) lets queued items finish before the last worker exits;
// Stop(false) discards them. Either way Stop blocks until every worker
// goroutine has returned.
package pool
