// Package memstore provides an in-memory Store with full-snapshot change
// feeds. It backs the embedded deployment mode and the test suite.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/support-desk/internal/store"
)

// Store keeps documents per collection in insertion order and notifies
// subscribers with the full collection contents on every mutation.
//
// Snapshots are delivered synchronously on the mutating goroutine, outside
// the store lock, so a callback may itself write to the store (the chat
// greeting seed does exactly that). Consumers serialize their own state.
type Store struct {
	mu          sync.Mutex
	collections map[string]*collection
	writeErr    error
	closed      bool
}

type collection struct {
	order []string
	docs  map[string]store.Document
	subs  map[int]store.SnapshotFunc
	next  int
}

// New returns an empty store.
func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

// SetWriteError makes every subsequent write fail with err. Used to exercise
// the commit-then-confirm path; pass nil to restore normal behavior.
func (s *Store) SetWriteError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// Subscribe registers fn and synchronously delivers the current snapshot.
func (s *Store) Subscribe(ctx context.Context, collectionPath string, fn store.SnapshotFunc) (store.Unsubscribe, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("memstore: store closed")
	}
	coll := s.collection(collectionPath)
	id := coll.next
	coll.next++
	coll.subs[id] = fn
	snapshot := coll.snapshot()
	s.mu.Unlock()

	fn(snapshot)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if coll, ok := s.collections[collectionPath]; ok {
			delete(coll.subs, id)
		}
	}, nil
}

// UpdateFields sets the named fields on an existing document.
func (s *Store) UpdateFields(ctx context.Context, collectionPath, id string, fields map[string]any) error {
	s.mu.Lock()
	if err := s.writable(); err != nil {
		s.mu.Unlock()
		return err
	}
	coll := s.collection(collectionPath)
	doc, ok := coll.docs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("memstore: document %s/%s not found", collectionPath, id)
	}
	for key, value := range fields {
		doc[key] = value
	}
	subs, snapshot := coll.subscribers(), coll.snapshot()
	s.mu.Unlock()

	notify(subs, snapshot)
	return nil
}

// Append adds a document, stamping a server-side createdAt when absent.
func (s *Store) Append(ctx context.Context, collectionPath string, doc store.Document) (string, error) {
	s.mu.Lock()
	if err := s.writable(); err != nil {
		s.mu.Unlock()
		return "", err
	}
	coll := s.collection(collectionPath)
	id := uuid.NewString()
	stored := make(store.Document, len(doc)+1)
	for key, value := range doc {
		stored[key] = value
	}
	if _, ok := stored["createdAt"]; !ok {
		stored["createdAt"] = time.Now().UTC().Format(time.RFC3339Nano)
	}
	coll.docs[id] = stored
	coll.order = append(coll.order, id)
	subs, snapshot := coll.subscribers(), coll.snapshot()
	s.mu.Unlock()

	notify(subs, snapshot)
	return id, nil
}

// Count returns the number of documents in a collection.
func (s *Store) Count(ctx context.Context, collectionPath string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("memstore: store closed")
	}
	if coll, ok := s.collections[collectionPath]; ok {
		return len(coll.docs), nil
	}
	return 0, nil
}

// Close drops all subscriptions; subsequent operations fail.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, coll := range s.collections {
		coll.subs = make(map[int]store.SnapshotFunc)
	}
	return nil
}

func (s *Store) writable() error {
	if s.closed {
		return fmt.Errorf("memstore: store closed")
	}
	return s.writeErr
}

// collection fetches or creates the named collection; caller holds the lock.
func (s *Store) collection(path string) *collection {
	coll, ok := s.collections[path]
	if !ok {
		coll = &collection{
			docs: make(map[string]store.Document),
			subs: make(map[int]store.SnapshotFunc),
		}
		s.collections[path] = coll
	}
	return coll
}

func (c *collection) snapshot() []store.Document {
	out := make([]store.Document, 0, len(c.order))
	for _, id := range c.order {
		doc := c.docs[id]
		copied := make(store.Document, len(doc)+1)
		for key, value := range doc {
			copied[key] = value
		}
		copied["id"] = id
		out = append(out, copied)
	}
	return out
}

func (c *collection) subscribers() []store.SnapshotFunc {
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]store.SnapshotFunc, 0, len(ids))
	for _, id := range ids {
		subs = append(subs, c.subs[id])
	}
	return subs
}

func notify(subs []store.SnapshotFunc, snapshot []store.Document) {
	for _, fn := range subs {
		fn(snapshot)
	}
}
