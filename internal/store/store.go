package store

import "context"

// Document is the raw record shape exchanged with the backing store. Every
// document carries its id under the "id" key when delivered in a snapshot.
type Document = map[string]any

// SnapshotFunc receives the full current contents of a collection. Each call
// is authoritative: consumers must replace their prior projection entirely
// rather than patch it. Delivery order within a collection follows creation
// time; no ordering is guaranteed across independently subscribed collections.
type SnapshotFunc func(docs []Document)

// Unsubscribe stops future snapshot delivery immediately and releases any
// resources held by the subscription. In-flight writes are not cancelled.
type Unsubscribe func()

// Store abstracts the durable backing store: document collections with
// change feeds, atomic field updates, and appends. Collection paths are
// opaque strings; sub-collections use slash-separated paths such as
// "chatRooms/{userId}/messages". All operations may fail with a transport or
// permission error, which the core surfaces without retrying.
type Store interface {
	// Subscribe registers fn for collection snapshots. The current snapshot
	// is delivered before Subscribe returns, then again on every mutation.
	Subscribe(ctx context.Context, collection string, fn SnapshotFunc) (Unsubscribe, error)

	// UpdateFields atomically sets the named fields on a document.
	UpdateFields(ctx context.Context, collection, id string, fields map[string]any) error

	// Append adds a new document and returns its assigned id. A server-side
	// createdAt timestamp is stamped when the document does not carry one.
	Append(ctx context.Context, collection string, doc Document) (string, error)

	// Count returns the number of documents in a collection, on demand.
	Count(ctx context.Context, collection string) (int, error)

	// Close releases the store's resources. Subscriptions stop delivering.
	Close() error
}

// FeedErrorFunc is invoked when an established change feed detaches
// mid-stream. Delivery resumes with a fresh authoritative snapshot if the
// adapter reconnects.
type FeedErrorFunc func(collection string, err error)

// FeedMonitor is implemented by adapters whose change feeds can fail after a
// successful Subscribe. Consumers register handlers to flag a stalled
// projection instead of serving it silently.
type FeedMonitor interface {
	OnFeedError(fn FeedErrorFunc)
}

// ChatMessagesPath returns the sub-collection path holding a user's
// pre-triage chat thread.
func ChatMessagesPath(userID string) string {
	return "chatRooms/" + userID + "/messages"
}

// Well-known top-level collections.
const (
	CollectionUsers   = "users"
	CollectionTickets = "tickets"
)
