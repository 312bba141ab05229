package services

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Operation names a store call for fault injection.
type Operation string

const (
	OpListen Operation = "listen"
	OpQuery  Operation = "query"
	OpGet    Operation = "get"
	OpInsert Operation = "insert"
	OpSet    Operation = "set"
	OpUpdate Operation = "update"
	OpRemove Operation = "remove"
)

// FaultFunc is consulted before every store call; a non-nil error fails it.
type FaultFunc func(op Operation, collection, id string) error

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store with the same snapshot semantics as
// Firestore listeners. Snapshots are delivered synchronously, in commit
// order, from the goroutine that made the write. Stored maps are replaced,
// never mutated, so snapshots can share them.
type MemoryStore struct {
	dispatch sync.Mutex // serializes commit+delivery
	mu       sync.Mutex
	docs     map[string]map[string]map[string]any
	seq      map[string]map[string]int64
	nextSeq  int64

	listeners map[int]*listener
	nextID    int

	fault atomic.Pointer[FaultFunc]
}

type listener struct {
	query      Query
	onSnapshot SnapshotFunc
	active     atomic.Bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:      make(map[string]map[string]map[string]any),
		seq:       make(map[string]map[string]int64),
		listeners: make(map[int]*listener),
	}
}

// SetFault installs (or clears, with nil) a fault hook.
func (m *MemoryStore) SetFault(f FaultFunc) {
	if f == nil {
		m.fault.Store(nil)
		return
	}
	m.fault.Store(&f)
}

func (m *MemoryStore) check(op Operation, collection, id string) error {
	if f := m.fault.Load(); f != nil {
		return (*f)(op, collection, id)
	}
	return nil
}

func (m *MemoryStore) Listen(ctx context.Context, q Query, onSnapshot SnapshotFunc, onError ErrorFunc) (func(), error) {
	if err := m.check(OpListen, q.Collection, ""); err != nil {
		if onError != nil {
			onError(err)
		}
		return func() {}, nil
	}

	l := &listener{query: q, onSnapshot: onSnapshot}
	l.active.Store(true)

	m.dispatch.Lock()
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	initial := m.runLocked(q)
	m.mu.Unlock()
	onSnapshot(initial)
	m.dispatch.Unlock()

	stop := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			l.active.Store(false)
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
			close(stop)
		})
	}
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-stop:
			}
		}()
	}
	return cancel, nil
}

// Listeners reports how many live queries are open.
func (m *MemoryStore) Listeners() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

func (m *MemoryStore) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := m.check(OpQuery, q.Collection, ""); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runLocked(q), nil
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := m.check(OpGet, collection, id); err != nil {
		return Document{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.docs[collection][id]
	if !ok {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return Document{ID: id, Data: data}, nil
}

func (m *MemoryStore) Insert(ctx context.Context, collection string, data any) (string, error) {
	id := uuid.NewString()
	if err := m.check(OpInsert, collection, id); err != nil {
		return "", err
	}
	doc, err := normalizeDoc(data)
	if err != nil {
		return "", err
	}
	err = m.commit(collection, func() error {
		m.putLocked(collection, id, doc)
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (m *MemoryStore) Set(ctx context.Context, collection, id string, data any) error {
	if err := m.check(OpSet, collection, id); err != nil {
		return err
	}
	doc, err := normalizeDoc(data)
	if err != nil {
		return err
	}
	return m.commit(collection, func() error {
		m.putLocked(collection, id, doc)
		return nil
	})
}

func (m *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := m.check(OpUpdate, collection, id); err != nil {
		return err
	}
	patch := make(map[string]any, len(fields))
	for k, v := range fields {
		n, err := normalize(v)
		if err != nil {
			return fmt.Errorf("field %s: %w", k, err)
		}
		patch[k] = n
	}
	return m.commit(collection, func() error {
		old, ok := m.docs[collection][id]
		if !ok {
			return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		merged := make(map[string]any, len(old)+len(patch))
		for k, v := range old {
			merged[k] = v
		}
		for k, v := range patch {
			merged[k] = v
		}
		m.docs[collection][id] = merged
		return nil
	})
}

func (m *MemoryStore) Remove(ctx context.Context, collection, id string) error {
	if err := m.check(OpRemove, collection, id); err != nil {
		return err
	}
	return m.commit(collection, func() error {
		delete(m.docs[collection], id)
		delete(m.seq[collection], id)
		return nil
	})
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, l := range m.listeners {
		l.active.Store(false)
		delete(m.listeners, id)
	}
	return nil
}

func (m *MemoryStore) putLocked(collection, id string, doc map[string]any) {
	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string]map[string]any)
		m.seq[collection] = make(map[string]int64)
	}
	if _, exists := m.docs[collection][id]; !exists {
		m.nextSeq++
		m.seq[collection][id] = m.nextSeq
	}
	m.docs[collection][id] = doc
}

// commit applies a mutation and fans the new result sets out to every
// listener on the collection before the next commit may start.
func (m *MemoryStore) commit(collection string, apply func() error) error {
	m.dispatch.Lock()
	defer m.dispatch.Unlock()

	m.mu.Lock()
	if err := apply(); err != nil {
		m.mu.Unlock()
		return err
	}
	type delivery struct {
		l    *listener
		docs []Document
	}
	var out []delivery
	ids := make([]int, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		l := m.listeners[id]
		if l.query.Collection != collection {
			continue
		}
		out = append(out, delivery{l: l, docs: m.runLocked(l.query)})
	}
	m.mu.Unlock()

	for _, d := range out {
		if d.l.active.Load() {
			d.l.onSnapshot(d.docs)
		}
	}
	return nil
}

func (m *MemoryStore) runLocked(q Query) []Document {
	coll := m.docs[q.Collection]
	docs := make([]Document, 0, len(coll))
	for id, data := range coll {
		if !matches(id, data, q) {
			continue
		}
		docs = append(docs, Document{ID: id, Data: data})
	}

	seq := m.seq[q.Collection]
	sort.SliceStable(docs, func(i, j int) bool {
		if q.OrderBy != "" {
			c := compareValues(docs[i].Data[q.OrderBy], docs[j].Data[q.OrderBy])
			if q.Direction == Desc {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return seq[docs[i].ID] < seq[docs[j].ID]
	})
	return docs
}

func matches(id string, data map[string]any, q Query) bool {
	// Firestore leaves out documents that lack the ordering field.
	if q.OrderBy != "" {
		if _, ok := data[q.OrderBy]; !ok {
			return false
		}
	}
	for _, f := range q.Filters {
		if f.Field == DocumentID {
			if id != fmt.Sprint(f.Value) {
				return false
			}
			continue
		}
		want, err := normalize(f.Value)
		if err != nil {
			return false
		}
		got := data[f.Field]
		switch f.Op {
		case OpEqual:
			if !reflect.DeepEqual(got, want) {
				return false
			}
		case OpArrayContains:
			list, ok := got.([]any)
			if !ok {
				return false
			}
			found := false
			for _, v := range list {
				if reflect.DeepEqual(v, want) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// compareValues orders normalized values: null first, then booleans,
// numbers, timestamps and strings.
func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch av := a.(type) {
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		}
		return 1
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case string:
		bv := b.(string)
		ta, errA := time.Parse(time.RFC3339Nano, av)
		tb, errB := time.Parse(time.RFC3339Nano, bv)
		if errA == nil && errB == nil {
			return ta.Compare(tb)
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	}
	return 0
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	}
	return 4
}
