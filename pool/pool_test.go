package pool_test

import (
	"sync"
	"testing"
	"time"

	"github.com/meshline/msgline/pool"
)

// TestFIFOWithinPriority submits at Top, the one priority drained by a
// single worker, so execution order equals dequeue order.
func TestFIFOWithinPriority(t *testing.T) {
	p := pool.New(pool.Config{High: 1, Normal: 1, Low: 1})
	defer p.Stop()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	const n = 50
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		err := p.Submit(pool.Job{Priority: pool.Top, Payload: nil, Fn: func([]byte) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
			return nil
		}})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if order[i] != i {
			t.Fatalf("priority queue reordered jobs: %v", order)
		}
	}
}

func TestStopIsIdempotentAndBounded(t *testing.T) {
	p := pool.New(pool.Config{High: 1, Normal: 1, Low: 1})
	done := make(chan struct{})
	go func() {
		p.Stop()
		p.Stop()
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return in bounded time")
	}
}

func TestStopDiscardsPending(t *testing.T) {
	p := pool.New(pool.Config{High: 0, Normal: 0, Low: 0})
	// block the single top worker so a subsequent top job queues up; no
	// other worker has Top in its fallback list, so nothing else drains it.
	block := make(chan struct{})
	started := make(chan struct{})
	_ = p.Submit(pool.Job{Priority: pool.Top, Fn: func([]byte) error {
		close(started)
		<-block
		return nil
	}})
	<-started

	ran := make(chan struct{}, 1)
	_ = p.Submit(pool.Job{Priority: pool.Top, Fn: func([]byte) error {
		ran <- struct{}{}
		return nil
	}})

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	// give Stop a moment to mark the pool closed and discard the queued
	// top-priority job before the blocked worker is released.
	time.Sleep(50 * time.Millisecond)
	close(block)
	<-stopped

	select {
	case <-ran:
		t.Fatal("job queued before Stop should have been discarded")
	case <-time.After(100 * time.Millisecond):
	}
}
