package ridelock

import (
	"sync"
	"testing"
)

func TestMutualExclusion(t *testing.T) {
	r := NewRegistry()
	const workers = 50
	const iters = 100

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				unlock := r.Lock("ride-1")
				counter++
				unlock()
			}
		}()
	}
	wg.Wait()

	if counter != workers*iters {
		t.Fatalf("lost updates: got %d want %d", counter, workers*iters)
	}
}

func TestEntriesReleased(t *testing.T) {
	r := NewRegistry()
	unlock := r.Lock("ride-1")
	unlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.locks) != 0 {
		t.Fatalf("expected empty registry, got %d entries", len(r.locks))
	}
}

func TestIndependentRides(t *testing.T) {
	r := NewRegistry()
	u1 := r.Lock("ride-1")
	done := make(chan struct{})
	go func() {
		u2 := r.Lock("ride-2")
		u2()
		close(done)
	}()
	<-done // would deadlock if ride-2 waited on ride-1's mutex
	u1()
}
