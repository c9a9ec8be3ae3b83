package refresh

import (
	"sync"
	"testing"
	"time"
)

func TestMemoryRegistry_AcquireRelease(t *testing.T) {
	registry := NewMemoryRegistry(0)

	if !registry.Acquire("pl-1") {
		t.Fatal("Expected first acquire to succeed")
	}
	if registry.Acquire("pl-1") {
		t.Error("Expected duplicate acquire to fail")
	}
	if !registry.Acquire("pl-2") {
		t.Error("Expected acquire for a different key to succeed")
	}

	registry.Release("pl-1")
	if !registry.Acquire("pl-1") {
		t.Error("Expected acquire after release to succeed")
	}

	if count := registry.InflightCount(); count != 2 {
		t.Errorf("Expected 2 in-flight keys, got %d", count)
	}
}

func TestMemoryRegistry_AbandonedEntryExpires(t *testing.T) {
	registry := NewMemoryRegistry(10 * time.Millisecond)

	if !registry.Acquire("pl-1") {
		t.Fatal("Expected first acquire to succeed")
	}

	// Simulate a refresh that never released.
	time.Sleep(20 * time.Millisecond)

	if !registry.Acquire("pl-1") {
		t.Error("Expected abandoned key to be re-acquirable after maxAge")
	}
}

func TestMemoryRegistry_ConcurrentAcquire(t *testing.T) {
	registry := NewMemoryRegistry(0)

	var wg sync.WaitGroup
	acquired := make(chan bool, 50)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acquired <- registry.Acquire("pl-contended")
		}()
	}
	wg.Wait()
	close(acquired)

	wins := 0
	for ok := range acquired {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("Expected exactly one winner, got %d", wins)
	}
}
