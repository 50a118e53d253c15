// Package redisstore implements the Store contract on Redis: documents live
// as JSON values in a hash per collection, and change feeds ride pub/sub —
// every write publishes the collection path, and each subscriber re-reads the
// full collection so callbacks always carry an authoritative snapshot.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/store"
)

// Store is a Redis-backed document store.
type Store struct {
	client *redis.Client
	prefix string
	logger *zap.Logger

	mu           sync.Mutex
	subs         map[*subscription]struct{}
	feedHandlers []store.FeedErrorFunc
	closed       bool
}

type subscription struct {
	pubsub *redis.PubSub
	done   chan struct{}
	once   sync.Once
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces all keys; defaults to "desk:".
	KeyPrefix string
}

// New connects to Redis. Connectivity problems are logged, not fatal: a
// later Subscribe or write surfaces them to the caller.
func New(cfg Options, logger *zap.Logger) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "desk:"
	}
	return &Store{
		client: client,
		prefix: prefix,
		logger: logger,
		subs:   make(map[*subscription]struct{}),
	}
}

// OnFeedError registers a handler invoked when an established change feed
// detaches mid-stream. Handlers may be called from subscription goroutines.
func (s *Store) OnFeedError(fn store.FeedErrorFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedHandlers = append(s.feedHandlers, fn)
}

func (s *Store) reportFeedError(collection string, err error) {
	s.mu.Lock()
	handlers := append([]store.FeedErrorFunc(nil), s.feedHandlers...)
	s.mu.Unlock()
	s.logger.Error("change feed detached",
		zap.String("collection", collection), zap.Error(err))
	for _, fn := range handlers {
		fn(collection, err)
	}
}

func (s *Store) docKey(collection string) string {
	return s.prefix + "doc:" + collection
}

func (s *Store) changeChannel(collection string) string {
	return s.prefix + "chg:" + collection
}

// Subscribe delivers the current snapshot, then re-reads and re-delivers the
// collection whenever a change notification arrives.
func (s *Store) Subscribe(ctx context.Context, collection string, fn store.SnapshotFunc) (store.Unsubscribe, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("redisstore: store closed")
	}
	s.mu.Unlock()

	pubsub := s.client.Subscribe(ctx, s.changeChannel(collection))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redisstore: subscribe %s: %w", collection, err)
	}

	snapshot, err := s.readCollection(ctx, collection)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &subscription{pubsub: pubsub, done: make(chan struct{})}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	fn(snapshot)

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-sub.done:
				return
			case _, ok := <-ch:
				if !ok {
					// The client reconnects transparently; the channel only
					// closes for good. Report unless Unsubscribe caused it.
					select {
					case <-sub.done:
					default:
						s.reportFeedError(collection, errors.New("pubsub channel closed"))
					}
					return
				}
				snap, err := s.readCollection(context.Background(), collection)
				if err != nil {
					s.logger.Error("change feed re-read failed",
						zap.String("collection", collection), zap.Error(err))
					continue
				}
				select {
				case <-sub.done:
					return
				default:
				}
				fn(snap)
			}
		}
	}()

	return func() { s.stop(sub) }, nil
}

func (s *Store) stop(sub *subscription) {
	sub.once.Do(func() {
		close(sub.done)
		_ = sub.pubsub.Close()
	})
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

// UpdateFields merges the named fields into the stored document. Last writer
// wins across processes; there is no transaction on the document.
func (s *Store) UpdateFields(ctx context.Context, collection, id string, fields map[string]any) error {
	raw, err := s.client.HGet(ctx, s.docKey(collection), id).Result()
	if err == redis.Nil {
		return fmt.Errorf("redisstore: document %s/%s not found", collection, id)
	}
	if err != nil {
		return fmt.Errorf("redisstore: read %s/%s: %w", collection, id, err)
	}
	var doc store.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("redisstore: decode %s/%s: %w", collection, id, err)
	}
	for key, value := range fields {
		doc[key] = value
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("redisstore: encode %s/%s: %w", collection, id, err)
	}
	if err := s.client.HSet(ctx, s.docKey(collection), id, encoded).Err(); err != nil {
		return fmt.Errorf("redisstore: write %s/%s: %w", collection, id, err)
	}
	return s.publishChange(ctx, collection)
}

// Append stores a new document under a fresh id.
func (s *Store) Append(ctx context.Context, collection string, doc store.Document) (string, error) {
	id := uuid.NewString()
	stored := make(store.Document, len(doc)+1)
	for key, value := range doc {
		stored[key] = value
	}
	if _, ok := stored["createdAt"]; !ok {
		stored["createdAt"] = time.Now().UTC().Format(time.RFC3339Nano)
	}
	encoded, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("redisstore: encode %s: %w", collection, err)
	}
	if err := s.client.HSet(ctx, s.docKey(collection), id, encoded).Err(); err != nil {
		return "", fmt.Errorf("redisstore: append %s: %w", collection, err)
	}
	if err := s.publishChange(ctx, collection); err != nil {
		return "", err
	}
	return id, nil
}

// Count returns the collection size.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	n, err := s.client.HLen(ctx, s.docKey(collection)).Result()
	if err != nil {
		return 0, fmt.Errorf("redisstore: count %s: %w", collection, err)
	}
	return int(n), nil
}

// Close stops all subscriptions and closes the client.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	subs := make([]*subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()
	for _, sub := range subs {
		s.stop(sub)
	}
	return s.client.Close()
}

func (s *Store) publishChange(ctx context.Context, collection string) error {
	if err := s.client.Publish(ctx, s.changeChannel(collection), collection).Err(); err != nil {
		return fmt.Errorf("redisstore: notify %s: %w", collection, err)
	}
	return nil
}

// readCollection loads and decodes all documents, ordered by creation time
// (RFC3339 strings sort lexicographically) with ids breaking ties.
func (s *Store) readCollection(ctx context.Context, collection string) ([]store.Document, error) {
	entries, err := s.client.HGetAll(ctx, s.docKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: read %s: %w", collection, err)
	}
	docs := make([]store.Document, 0, len(entries))
	for id, raw := range entries {
		var doc store.Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			s.logger.Warn("skipping undecodable document",
				zap.String("collection", collection), zap.String("id", id), zap.Error(err))
			continue
		}
		doc["id"] = id
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		ci, _ := docs[i]["createdAt"].(string)
		cj, _ := docs[j]["createdAt"].(string)
		if ci != cj {
			return ci < cj
		}
		ii, _ := docs[i]["id"].(string)
		ij, _ := docs[j]["id"].(string)
		return ii < ij
	})
	return docs, nil
}
