package live

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ytakahashi/crew-calendar/internal/metrics"
	"github.com/ytakahashi/crew-calendar/internal/services"
)

// Feed is a local mirror of one live query. Every snapshot replaces the
// whole list. Rescoping cancels the old query; a snapshot from a superseded
// query is dropped even if it arrives late.
type Feed[T any] struct {
	name    string
	store   services.Store
	reg     *Registry
	log     *zap.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	items     []T
	ready     bool
	gen       uint64
	key       string
	handle    *Handle
	closed    bool
	observers map[int]func([]T)
	nextObs   int
}

func NewFeed[T any](name string, store services.Store, reg *Registry, log *zap.Logger, m *metrics.Metrics) *Feed[T] {
	return &Feed[T]{
		name:      name,
		store:     store,
		reg:       reg,
		log:       log.With(zap.String("feed", name)),
		metrics:   m,
		observers: make(map[int]func([]T)),
	}
}

// Scope points the feed at q. A nil q means the caller may not see this
// collection: the feed holds an empty list and no query is open. arrange,
// if set, reorders each snapshot before it is stored. Scoping to the query
// already open is a no-op.
func (f *Feed[T]) Scope(ctx context.Context, q *services.Query, arrange func([]T)) {
	key := ""
	if q != nil {
		key = q.Key()
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	if f.ready && key == f.key && (key == "" || f.handle != nil) {
		f.mu.Unlock()
		return
	}
	old := f.handle
	f.handle = nil
	f.gen++
	gen := f.gen
	f.key = key
	f.mu.Unlock()

	old.Release()

	if q == nil {
		f.apply(gen, nil)
		return
	}

	onSnapshot := func(docs []services.Document) {
		items, err := services.DecodeAll[T](docs)
		if err != nil {
			f.log.Warn("skipping undecodable documents", zap.Error(err))
		}
		if arrange != nil {
			arrange(items)
		}
		f.apply(gen, items)
	}
	onError := func(err error) {
		f.fail(gen, err)
	}

	cancel, err := f.store.Listen(ctx, *q, onSnapshot, onError)
	if err != nil {
		f.fail(gen, err)
		return
	}

	f.mu.Lock()
	if f.gen != gen || f.closed {
		f.mu.Unlock()
		cancel()
		return
	}
	f.handle = f.reg.Acquire(f.name+":"+key, q.Collection, cancel)
	f.mu.Unlock()
}

func (f *Feed[T]) apply(gen uint64, items []T) {
	f.mu.Lock()
	if gen != f.gen || f.closed {
		f.mu.Unlock()
		f.metrics.IncStaleSnapshot(f.name)
		return
	}
	f.items = items
	f.ready = true
	observers := f.observersLocked()
	f.mu.Unlock()

	f.metrics.IncSnapshotApplied(f.name)
	for _, fn := range observers {
		fn(items)
	}
}

// fail degrades the feed to an empty list. Other feeds are unaffected.
func (f *Feed[T]) fail(gen uint64, err error) {
	f.mu.Lock()
	if gen != f.gen || f.closed {
		f.mu.Unlock()
		return
	}
	f.items = nil
	f.ready = true
	observers := f.observersLocked()
	f.mu.Unlock()

	f.metrics.IncSubscriptionError(f.name)
	f.log.Warn("live query failed; showing an empty list", zap.String("scope", f.Key()), zap.Error(err))
	for _, fn := range observers {
		fn(nil)
	}
}

func (f *Feed[T]) observersLocked() []func([]T) {
	out := make([]func([]T), 0, len(f.observers))
	for i := 0; i < f.nextObs; i++ {
		if fn, ok := f.observers[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

// Items returns a copy of the latest snapshot.
func (f *Feed[T]) Items() []T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]T(nil), f.items...)
}

// Ready reports whether a first snapshot (or failure) has arrived for the
// current scope.
func (f *Feed[T]) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

// Key is the scope currently listened to; "" when empty by scope.
func (f *Feed[T]) Key() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.key
}

// OnChange registers fn to run after every applied snapshot. fn runs on the
// delivering goroutine and must not block.
func (f *Feed[T]) OnChange(fn func([]T)) (remove func()) {
	f.mu.Lock()
	id := f.nextObs
	f.nextObs++
	f.observers[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.observers, id)
		f.mu.Unlock()
	}
}

// Close cancels the live query; later snapshots are ignored.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.gen++
	h := f.handle
	f.handle = nil
	f.mu.Unlock()
	h.Release()
}
