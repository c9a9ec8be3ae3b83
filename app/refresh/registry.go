package refresh

import (
	"sync"
	"time"
)

// Registry collapses duplicate refresh triggers for the same playlist key.
// It is injected into whoever starts refreshes (engine, manual API
// trigger) rather than living as ambient package state, so multi-process
// deployments can swap in the Redis implementation.
type Registry interface {
	// Acquire marks the key in-flight. Returns false when a refresh for
	// the key is already running.
	Acquire(key string) bool
	Release(key string)
}

// MemoryRegistry is the single-process implementation: a mutex-guarded
// map of in-flight keys with their start timestamps.
type MemoryRegistry struct {
	mu       sync.Mutex
	inflight map[string]time.Time
	// Entries older than maxAge are treated as abandoned (a refresh that
	// never released, e.g. after a panic) and may be re-acquired.
	maxAge time.Duration
}

func NewMemoryRegistry(maxAge time.Duration) *MemoryRegistry {
	if maxAge == 0 {
		maxAge = 30 * time.Minute
	}
	return &MemoryRegistry{
		inflight: make(map[string]time.Time),
		maxAge:   maxAge,
	}
}

func (r *MemoryRegistry) Acquire(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if started, ok := r.inflight[key]; ok && time.Since(started) < r.maxAge {
		return false
	}

	r.inflight[key] = time.Now()
	return true
}

func (r *MemoryRegistry) Release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, key)
}

// InflightCount reports how many keys are currently held.
func (r *MemoryRegistry) InflightCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight)
}
