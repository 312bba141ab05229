package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Collection names in the document store.
const (
	CollectionUsers        = "users"
	CollectionPendingUsers = "pending_users"
	CollectionProjects     = "projects"
	CollectionTasks        = "tasks"
	CollectionTemplates    = "task_templates"
	CollectionNoWorkDays   = "no_work_days"
)

// DocumentID addresses the document id in a filter instead of a field.
const DocumentID = "__name__"

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

type Op string

const (
	OpEqual         Op = "=="
	OpArrayContains Op = "array-contains"
)

type Direction int

const (
	Asc Direction = iota
	Desc
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query is a collection read: equality/containment filters plus at most one
// ordering.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Direction  Direction
}

// From starts a query over collection.
func From(collection string) Query {
	return Query{Collection: collection}
}

func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

func (q Query) Ordered(field string, dir Direction) Query {
	q.OrderBy = field
	q.Direction = dir
	return q
}

// Key identifies the query's scope, e.g. "tasks?projectId==P1&order=startDate".
func (q Query) Key() string {
	var b strings.Builder
	b.WriteString(q.Collection)
	sep := "?"
	for _, f := range q.Filters {
		fmt.Fprintf(&b, "%s%s%s%v", sep, f.Field, f.Op, f.Value)
		sep = "&"
	}
	if q.OrderBy != "" {
		dir := "asc"
		if q.Direction == Desc {
			dir = "desc"
		}
		fmt.Fprintf(&b, "%sorder=%s %s", sep, q.OrderBy, dir)
	}
	return b.String()
}

// Document is a raw stored document.
type Document struct {
	ID   string
	Data map[string]any
}

type SnapshotFunc func(docs []Document)
type ErrorFunc func(err error)

// Store is the remote document store boundary. Listen delivers a complete
// result set on every change, in commit order, until the returned cancel
// func is called or ctx ends. Snapshot handlers must not write to the store
// synchronously.
type Store interface {
	Listen(ctx context.Context, q Query, onSnapshot SnapshotFunc, onError ErrorFunc) (cancel func(), err error)
	Query(ctx context.Context, q Query) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Insert(ctx context.Context, collection string, data any) (string, error)
	Set(ctx context.Context, collection, id string, data any) error
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Remove(ctx context.Context, collection, id string) error
	Close() error
}
