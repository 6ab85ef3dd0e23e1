package modem

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSessionCache_ConcurrentMissesCollapseIntoOneFetch(t *testing.T) {
	cache := newSessionCache()

	var fetches int32
	fetch := func() (*session, error) {
		atomic.AddInt32(&fetches, 1)
		time.Sleep(10 * time.Millisecond)
		return &session{cookie: "c", token: "t"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.get(fetch); err != nil {
				t.Errorf("get failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if fetches != 1 {
		t.Errorf("Expected exactly one upstream fetch for 20 concurrent misses, got %d", fetches)
	}
}

func TestSessionCache_InvalidateForcesRefetch(t *testing.T) {
	cache := newSessionCache()

	var fetches int32
	fetch := func() (*session, error) {
		atomic.AddInt32(&fetches, 1)
		return &session{cookie: "c", token: "t"}, nil
	}

	if _, err := cache.get(fetch); err != nil {
		t.Fatalf("first get failed: %v", err)
	}
	if _, err := cache.get(fetch); err != nil {
		t.Fatalf("second get failed: %v", err)
	}
	if fetches != 1 {
		t.Fatalf("Expected the warm cache to serve the second get without fetching, got %d fetches", fetches)
	}

	cache.invalidate()
	if _, err := cache.get(fetch); err != nil {
		t.Fatalf("get after invalidate failed: %v", err)
	}
	if fetches != 2 {
		t.Errorf("Expected invalidate to force exactly one more fetch, got %d fetches", fetches)
	}
}
