// Package live mirrors remote collections into local state through
// cancellable live queries.
package live

import (
	"sort"
	"sync"

	"github.com/ytakahashi/crew-calendar/internal/metrics"
)

// Registry owns the cancellation handles of one session's live queries,
// keyed by the query's scope. Acquiring a key that is already held releases
// the older handle first, so the same scope is never listened to twice.
type Registry struct {
	mu      sync.Mutex
	handles map[string]*Handle
	metrics *metrics.Metrics
}

func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{handles: make(map[string]*Handle), metrics: m}
}

// Handle releases one live query exactly once.
type Handle struct {
	reg        *Registry
	key        string
	collection string
	cancel     func()
	once       sync.Once
}

// Acquire records cancel under key and returns its handle.
func (r *Registry) Acquire(key, collection string, cancel func()) *Handle {
	h := &Handle{reg: r, key: key, collection: collection, cancel: cancel}

	r.mu.Lock()
	prev := r.handles[key]
	r.handles[key] = h
	r.mu.Unlock()

	if prev != nil {
		prev.release()
	}
	r.metrics.IncActiveSubscriptions(collection)
	return h
}

// Release cancels the live query and forgets its key.
func (h *Handle) Release() {
	if h == nil {
		return
	}
	h.reg.mu.Lock()
	if h.reg.handles[h.key] == h {
		delete(h.reg.handles, h.key)
	}
	h.reg.mu.Unlock()
	h.release()
}

func (h *Handle) release() {
	h.once.Do(func() {
		h.cancel()
		h.reg.metrics.DecActiveSubscriptions(h.collection)
	})
}

// Keys lists the scopes currently held, sorted.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.handles))
	for k := range r.handles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ReleaseAll cancels every held live query.
func (r *Registry) ReleaseAll() {
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[string]*Handle)
	r.mu.Unlock()

	for _, h := range handles {
		h.release()
	}
}
