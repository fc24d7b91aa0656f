package store

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps documents in process memory. It is used by tests and by
// the "memory" driver for local development.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*Document
	offline     bool
	clock       clock
	now         func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]*Document),
		now:         time.Now,
	}
}

// SetOffline makes every subsequent call fail with ErrUnavailable until it
// is switched back.
func (s *MemoryStore) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

func (s *MemoryStore) check(op string) error {
	if s.offline {
		return unavailable(op, errOffline)
	}
	return nil
}

var errOffline = errors.New("memory store is offline")

func copyDoc(d *Document) *Document {
	c := *d
	c.Fields = maps.Clone(d.Fields)
	return &c
}

// Create inserts a new document.
func (s *MemoryStore) Create(_ context.Context, collection string, fields map[string]any) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check("create"); err != nil {
		return nil, err
	}

	now := s.clock.stamp(s.now(), time.Time{})
	doc := &Document{
		ID:        uuid.NewString(),
		Fields:    sanitize(fields),
		CreatedAt: now,
		UpdatedAt: now,
	}

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]*Document)
		s.collections[collection] = coll
	}
	coll[doc.ID] = doc

	return copyDoc(doc), nil
}

// Get returns a document by ID.
func (s *MemoryStore) Get(_ context.Context, collection, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check("get"); err != nil {
		return nil, err
	}

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDoc(doc), nil
}

// Update merges fields into an existing document.
func (s *MemoryStore) Update(_ context.Context, collection, id string, fields map[string]any) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check("update"); err != nil {
		return nil, err
	}

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}

	doc.Fields = merge(doc.Fields, fields)
	doc.UpdatedAt = s.clock.stamp(s.now(), doc.UpdatedAt)

	return copyDoc(doc), nil
}

// Delete removes a document.
func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check("delete"); err != nil {
		return err
	}

	if _, ok := s.collections[collection][id]; !ok {
		return ErrNotFound
	}
	delete(s.collections[collection], id)
	return nil
}

// Find returns matching documents, newest first.
func (s *MemoryStore) Find(_ context.Context, collection string, q Query) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check("find"); err != nil {
		return nil, err
	}

	docs := make([]*Document, 0, len(s.collections[collection]))
	for _, doc := range s.collections[collection] {
		if matches(doc.Fields, q.Filters) {
			docs = append(docs, copyDoc(doc))
		}
	}
	sortNewestFirst(docs)

	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

// Ping reports whether the store is online.
func (s *MemoryStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.check("ping")
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
