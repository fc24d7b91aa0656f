// Package store persists flat documents, one collection per record type.
//
// The store owns document identity and timestamps: Create assigns the ID and
// both timestamps, Update refreshes UpdatedAt. Keys named "id", "createdAt"
// and "updatedAt" in caller-supplied field maps are ignored.
package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrUnavailable wraps every failure to reach the backing store.
	ErrUnavailable = errors.New("document store unavailable")
)

// Meta keys managed by the store.
const (
	KeyID        = "id"
	KeyCreatedAt = "createdAt"
	KeyUpdatedAt = "updatedAt"
)

// Document is a stored record.
type Document struct {
	ID        string
	Fields    map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filter is an equality predicate on a top-level field.
type Filter struct {
	Field string
	Value any
}

// Query selects documents. Results are always ordered by CreatedAt, newest
// first. A Limit of zero means no limit.
type Query struct {
	Filters []Filter
	Limit   int
}

// Where returns a copy of q with an additional equality filter.
func (q Query) Where(field string, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Value: value})
	return q
}

// Store is the document store contract shared by all backends.
type Store interface {
	Create(ctx context.Context, collection string, fields map[string]any) (*Document, error)
	Get(ctx context.Context, collection, id string) (*Document, error)
	Update(ctx context.Context, collection, id string, fields map[string]any) (*Document, error)
	Delete(ctx context.Context, collection, id string) error
	Find(ctx context.Context, collection string, q Query) ([]*Document, error)
	Ping(ctx context.Context) error
	Close() error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// IsMetaKey reports whether key is owned by the store.
func IsMetaKey(key string) bool {
	return key == KeyID || key == KeyCreatedAt || key == KeyUpdatedAt
}

// sanitize copies fields without the store-managed keys.
func sanitize(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if !IsMetaKey(k) {
			out[k] = v
		}
	}
	return out
}

// merge applies patch over base (shallow) and returns a new map.
func merge(base, patch map[string]any) map[string]any {
	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]any, len(patch))
	}
	for k, v := range sanitize(patch) {
		out[k] = v
	}
	return out
}

// valueKey is the canonical string form used for equality comparisons.
func valueKey(v any) string {
	return fmt.Sprint(v)
}

func matches(fields map[string]any, filters []Filter) bool {
	for _, f := range filters {
		v, ok := fields[f.Field]
		if !ok || valueKey(v) != valueKey(f.Value) {
			return false
		}
	}
	return true
}

// sortNewestFirst orders by CreatedAt descending, then ID descending.
func sortNewestFirst(docs []*Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID > docs[j].ID
	})
}

// clock issues write timestamps that are UTC, microsecond precision and
// strictly increasing within the process.
type clock struct {
	mu   sync.Mutex
	last time.Time
}

// stamp returns a timestamp no earlier than now and strictly after both the
// last issued stamp and floor.
func (c *clock) stamp(now, floor time.Time) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	base := c.last
	if floor.After(base) {
		base = floor
	}
	t := now.UTC().Truncate(time.Microsecond)
	if !t.After(base) {
		t = base.Add(time.Microsecond)
	}
	c.last = t
	return t
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}
