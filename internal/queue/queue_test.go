package queue

import (
	"context"
	"testing"
	"time"
)

func TestTryAddRespectsCapacity(t *testing.T) {
	q := New[int](2)
	if !q.TryAdd(1) {
		t.Fatalf("expected first add to succeed")
	}
	if !q.TryAdd(2) {
		t.Fatalf("expected second add to succeed")
	}
	if q.TryAdd(3) {
		t.Fatalf("expected third add to fail at capacity")
	}
}

func TestUnboundedQueueNeverRejectsTryAdd(t *testing.T) {
	q := New[int](0)
	for i := 0; i < 1000; i++ {
		if !q.TryAdd(i) {
			t.Fatalf("expected unbounded queue to always accept, failed at %d", i)
		}
	}
	if q.Size() != 1000 {
		t.Fatalf("expected size 1000, got %d", q.Size())
	}
}

func TestTryTakeFIFOOrder(t *testing.T) {
	q := New[int](0)
	q.TryAdd(1)
	q.TryAdd(2)
	q.TryAdd(3)

	for _, want := range []int{1, 2, 3} {
		got, ok := q.TryTake(context.Background(), 0)
		if !ok || got != want {
			t.Fatalf("expected %d, got %d (ok=%v)", want, got, ok)
		}
	}
	if _, ok := q.TryTake(context.Background(), 0); ok {
		t.Fatalf("expected empty queue to report no item on a non-blocking take")
	}
}

func TestTryTakeBlocksUntilItemArrives(t *testing.T) {
	q := New[int](0)
	result := make(chan int, 1)
	go func() {
		v, ok := q.TryTake(context.Background(), time.Second)
		if !ok {
			result <- -1
			return
		}
		result <- v
	}()

	time.Sleep(20 * time.Millisecond)
	q.TryAdd(42)

	select {
	case v := <-result:
		if v != 42 {
			t.Fatalf("expected 42, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatalf("TryTake never observed the added item")
	}
}

func TestTryTakeTimesOut(t *testing.T) {
	q := New[int](0)
	start := time.Now()
	_, ok := q.TryTake(context.Background(), 20*time.Millisecond)
	if ok {
		t.Fatalf("expected timeout with no item")
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatalf("TryTake returned before the timeout elapsed")
	}
}

func TestTryTakeRespectsCancellation(t *testing.T) {
	q := New[int](0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() {
		_, ok := q.TryTake(ctx, time.Second)
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Fatalf("expected cancellation to produce no item")
		}
	case <-time.After(time.Second):
		t.Fatalf("TryTake did not observe cancellation")
	}
}

func TestExtendCapacityGrowsBoundedQueue(t *testing.T) {
	q := New[int](2)
	q.TryAdd(1)
	q.TryAdd(2)
	if q.TryAdd(3) {
		t.Fatalf("expected capacity 2 to reject a third item")
	}

	q.ExtendCapacity(3)
	if !q.TryAdd(3) {
		t.Fatalf("expected extended capacity to accept a third item")
	}
	if q.Capacity() != 3 {
		t.Fatalf("expected extended capacity 3, got %d", q.Capacity())
	}
}

func TestExtendCapacityNeverShrinks(t *testing.T) {
	q := New[int](2)
	q.ExtendCapacity(5)
	q.ExtendCapacity(3)
	if q.Capacity() != 5 {
		t.Fatalf("expected capacity to stay at the larger extension, got %d", q.Capacity())
	}
}

func TestExtendCapacityNoopOnUnbounded(t *testing.T) {
	q := New[int](0)
	q.ExtendCapacity(10)
	if q.Capacity() != 0 {
		t.Fatalf("expected unbounded queue to report capacity 0, got %d", q.Capacity())
	}
}

func TestCloseUnblocksTryTake(t *testing.T) {
	q := New[int](0)
	done := make(chan bool, 1)
	go func() {
		_, ok := q.TryTake(context.Background(), time.Second)
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatalf("expected Close to unblock TryTake with no item")
		}
	case <-time.After(time.Second):
		t.Fatalf("Close did not unblock TryTake")
	}
}

func TestDrainReturnsRemainingItemsInOrder(t *testing.T) {
	q := New[int](0)
	q.TryAdd(1)
	q.TryAdd(2)
	q.TryAdd(3)

	items := q.Drain()
	if len(items) != 3 || items[0] != 1 || items[1] != 2 || items[2] != 3 {
		t.Fatalf("unexpected drain result: %v", items)
	}
	if q.Size() != 0 {
		t.Fatalf("expected empty queue after drain")
	}
}
