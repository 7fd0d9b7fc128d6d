package spawner

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDefaultSpawnRunsLoopBody(t *testing.T) {
	var ran int32
	h := Default().Spawn(func() {
		atomic.StoreInt32(&ran, 1)
	})
	h.Join()

	if atomic.LoadInt32(&ran) != 1 {
		t.Fatal("spawned loop body did not run")
	}
}

func TestDefaultJoinBlocksUntilLoopBodyReturns(t *testing.T) {
	release := make(chan struct{})
	done := make(chan struct{})

	h := Default().Spawn(func() {
		<-release
	})
	go func() {
		h.Join()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Join returned before loop body finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Join did not return after loop body finished")
	}
}
