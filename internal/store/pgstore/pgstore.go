// Package pgstore implements the Store contract on Postgres: documents are
// JSONB rows in a single table keyed by (collection, id), and change feeds
// use LISTEN/NOTIFY — every write notifies the collection, and subscribers
// re-read the full collection so each callback is an authoritative snapshot.
package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/store"
)

const notifyChannel = "desk_changes"

const reconnectDelay = 5 * time.Second

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT        NOT NULL,
    id         TEXT        NOT NULL,
    doc        JSONB       NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_collection_created_idx
    ON documents (collection, created_at);
`

// Store is a Postgres-backed document store.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	mu           sync.Mutex
	subs         map[*subscription]struct{}
	feedHandlers []store.FeedErrorFunc
	closed       bool
}

type subscription struct {
	cancel context.CancelFunc
}

// Config holds connection settings.
type Config struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

// New establishes the pool and bootstraps the documents table.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgstore: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: bootstrap schema: %w", err)
	}
	logger.Info("connected to postgres")
	return &Store{pool: pool, logger: logger, subs: make(map[*subscription]struct{})}, nil
}

// Pool exposes the underlying pool for health checks.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// OnFeedError registers a handler invoked when an established change feed
// detaches mid-stream. Handlers may be called from listener goroutines.
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

// Subscribe delivers the current snapshot, then re-reads the collection
// whenever a NOTIFY for it arrives on a dedicated listening connection.
//
// LISTEN is issued before the initial read: a write committed after the read
// started is either visible in the snapshot or produces a notification the
// listener already receives, so no change falls between the two.
func (s *Store) Subscribe(ctx context.Context, collection string, fn store.SnapshotFunc) (store.Unsubscribe, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("pgstore: store closed")
	}
	s.mu.Unlock()

	listenCtx, cancel := context.WithCancel(context.Background())

	conn, err := s.listenConn(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	snapshot, err := s.readCollection(ctx, collection)
	if err != nil {
		conn.Release()
		cancel()
		return nil, err
	}

	sub := &subscription{cancel: cancel}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	fn(snapshot)

	go s.listen(listenCtx, conn, collection, fn)

	return func() {
		cancel()
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
	}, nil
}

// listenConn acquires a dedicated connection with LISTEN active.
func (s *Store) listenConn(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("pgstore: acquire listener connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("pgstore: listen: %w", err)
	}
	return conn, nil
}

// listen waits for notifications, re-reading the collection on each one. A
// mid-stream failure is reported to feed-error handlers, then reconnect
// attempts begin; a successful reconnect delivers a fresh snapshot so changes
// missed while detached are recovered rather than lost.
func (s *Store) listen(ctx context.Context, conn *pgxpool.Conn, collection string, fn store.SnapshotFunc) {
	for {
		err := s.waitForChanges(ctx, conn, collection, fn)
		conn.Release()
		if ctx.Err() != nil {
			return
		}
		s.reportFeedError(collection, err)

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
			next, err := s.listenConn(ctx)
			if err != nil {
				s.logger.Error("change feed reconnect failed",
					zap.String("collection", collection), zap.Error(err))
				continue
			}
			snapshot, err := s.readCollection(ctx, collection)
			if err != nil {
				next.Release()
				s.logger.Error("change feed re-read after reconnect failed",
					zap.String("collection", collection), zap.Error(err))
				continue
			}
			conn = next
			fn(snapshot)
			break
		}
	}
}

func (s *Store) waitForChanges(ctx context.Context, conn *pgxpool.Conn, collection string, fn store.SnapshotFunc) error {
	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if notification.Payload != collection {
			continue
		}
		snapshot, err := s.readCollection(ctx, collection)
		if err != nil {
			s.logger.Error("change feed re-read failed",
				zap.String("collection", collection), zap.Error(err))
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fn(snapshot)
	}
}

// UpdateFields shallow-merges the named fields into the stored document via
// the JSONB concatenation operator. Last writer wins across processes.
func (s *Store) UpdateFields(ctx context.Context, collection, id string, fields map[string]any) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("pgstore: encode patch %s/%s: %w", collection, id, err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET doc = doc || $3::jsonb WHERE collection = $1 AND id = $2`,
		collection, id, patch)
	if err != nil {
		return fmt.Errorf("pgstore: update %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pgstore: document %s/%s not found", collection, id)
	}
	return s.notify(ctx, collection)
}

// Append inserts a new document under a fresh id.
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
		return "", fmt.Errorf("pgstore: encode %s: %w", collection, err)
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)`,
		collection, id, encoded); err != nil {
		return "", fmt.Errorf("pgstore: append %s: %w", collection, err)
	}
	if err := s.notify(ctx, collection); err != nil {
		return "", err
	}
	return id, nil
}

// Count returns the collection size.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = $1`, collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgstore: count %s: %w", collection, err)
	}
	return n, nil
}

// Close cancels all listeners and releases the pool.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	subs := make([]*subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subs = make(map[*subscription]struct{})
	s.mu.Unlock()
	for _, sub := range subs {
		sub.cancel()
	}
	s.pool.Close()
	return nil
}

func (s *Store) notify(ctx context.Context, collection string) error {
	if _, err := s.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, collection); err != nil {
		return fmt.Errorf("pgstore: notify %s: %w", collection, err)
	}
	return nil
}

func (s *Store) readCollection(ctx context.Context, collection string) ([]store.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, doc FROM documents WHERE collection = $1 ORDER BY created_at, id`,
		collection)
	if err != nil {
		return nil, fmt.Errorf("pgstore: read %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("pgstore: scan %s: %w", collection, err)
		}
		var doc store.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			s.logger.Warn("skipping undecodable document",
				zap.String("collection", collection), zap.String("id", id), zap.Error(err))
			continue
		}
		doc["id"] = id
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
