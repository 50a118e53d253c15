// Package registry owns the authoritative in-memory projection of tickets
// and users, rebuilt wholesale from store change feeds, and applies
// admin-initiated mutations through the store with commit-then-confirm
// semantics.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/store"
	"github.com/spec-kit/support-desk/pkg/util"
)

// UnknownUserName is returned when a display-name lookup misses.
const UnknownUserName = "Unknown User"

// Registry maintains the latest full snapshot of the tickets and users
// collections. Exactly one instance exists per process. The two collections
// are independently subscribed; neither callback order nor interleaving is
// assumed, and each snapshot replaces its half of the projection entirely.
type Registry struct {
	store      store.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger

	mu           sync.Mutex
	tickets      []domain.Ticket
	users        map[string]domain.User
	selectedID   string
	staleTickets bool
	staleUsers   bool
	unsubs       []store.Unsubscribe
}

// Open subscribes the registry to both collections. A failed subscribe does
// not abort: the affected half of the projection is flagged stale so callers
// see a stalled feed rather than a silently empty one.
func Open(ctx context.Context, st store.Store, dispatcher events.Dispatcher, logger *zap.Logger) *Registry {
	r := &Registry{
		store:      st,
		dispatcher: dispatcher,
		logger:     logger,
		users:      make(map[string]domain.User),
	}

	unsub, err := st.Subscribe(ctx, store.CollectionTickets, r.applyTicketSnapshot)
	if err != nil {
		logger.Error("tickets subscription failed; projection stale", zap.Error(err))
		r.mu.Lock()
		r.staleTickets = true
		r.mu.Unlock()
	} else {
		r.unsubs = append(r.unsubs, unsub)
	}

	unsub, err = st.Subscribe(ctx, store.CollectionUsers, r.applyUserSnapshot)
	if err != nil {
		logger.Error("users subscription failed; projection stale", zap.Error(err))
		r.mu.Lock()
		r.staleUsers = true
		r.mu.Unlock()
	} else {
		r.unsubs = append(r.unsubs, unsub)
	}

	if monitor, ok := st.(store.FeedMonitor); ok {
		monitor.OnFeedError(r.markFeedStale)
	}

	return r
}

// markFeedStale flags the projection when an attached feed fails later on.
// The next snapshot delivery (an adapter reconnect re-reads the collection)
// clears the flag.
func (r *Registry) markFeedStale(collection string, err error) {
	r.mu.Lock()
	switch collection {
	case store.CollectionTickets:
		r.staleTickets = true
	case store.CollectionUsers:
		r.staleUsers = true
	default:
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	r.logger.Error("change feed detached; projection stale",
		zap.String("collection", collection), zap.Error(err))
}

// Close stops both change feeds.
func (r *Registry) Close() {
	r.mu.Lock()
	unsubs := r.unsubs
	r.unsubs = nil
	r.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
}

// Stale reports whether either collection feed failed to attach, meaning the
// projection may not reflect the store.
func (r *Registry) Stale() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.staleTickets || r.staleUsers
}

// applyTicketSnapshot replaces the ticket half of the projection wholesale.
// Documents that fail boundary validation are skipped, never projected.
func (r *Registry) applyTicketSnapshot(docs []store.Document) {
	tickets := make([]domain.Ticket, 0, len(docs))
	for _, doc := range docs {
		ticket, err := domain.TicketFromDocument(doc)
		if err != nil {
			r.logger.Warn("rejecting malformed ticket document", zap.Error(err))
			continue
		}
		tickets = append(tickets, ticket)
	}

	r.mu.Lock()
	r.tickets = tickets
	r.staleTickets = false
	counts := events.ProjectionUpdatedPayload{Tickets: len(r.tickets), Users: len(r.users)}
	r.mu.Unlock()

	r.publishProjectionUpdated(counts)
}

// applyUserSnapshot replaces the user half of the projection wholesale.
func (r *Registry) applyUserSnapshot(docs []store.Document) {
	users := make(map[string]domain.User, len(docs))
	for _, doc := range docs {
		user, err := domain.UserFromDocument(doc)
		if err != nil {
			r.logger.Warn("rejecting malformed user document", zap.Error(err))
			continue
		}
		users[user.ID] = user
	}

	r.mu.Lock()
	r.users = users
	r.staleUsers = false
	counts := events.ProjectionUpdatedPayload{Tickets: len(r.tickets), Users: len(r.users)}
	r.mu.Unlock()

	r.publishProjectionUpdated(counts)
}

// List returns the tickets matching the filter, preserving snapshot order.
func (r *Registry) List(filter Filter) []domain.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Ticket, 0, len(r.tickets))
	for _, ticket := range r.tickets {
		if filter.Matches(ticket) {
			out = append(out, ticket.Clone())
		}
	}
	return out
}

// Get returns the projected ticket with the given id.
func (r *Registry) Get(id string) (domain.Ticket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.ID == id {
			return ticket.Clone(), true
		}
	}
	return domain.Ticket{}, false
}

// Select marks a ticket as the one status/reply operations act on by
// default. An empty id clears the selection.
func (r *Registry) Select(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == "" {
		r.selectedID = ""
		return nil
	}
	for _, ticket := range r.tickets {
		if ticket.ID == id {
			r.selectedID = id
			return nil
		}
	}
	return util.NewNotFound("ticket", map[string]any{"id": id})
}

// Selected returns the currently selected ticket from the projection.
func (r *Registry) Selected() (domain.Ticket, bool) {
	r.mu.Lock()
	id := r.selectedID
	r.mu.Unlock()
	if id == "" {
		return domain.Ticket{}, false
	}
	return r.Get(id)
}

// ResolveDisplayName looks up a username, falling back to the email, falling
// back to a sentinel when no user record matches. Lookup misses degrade to
// the sentinel instead of failing.
func (r *Registry) ResolveDisplayName(userID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return UnknownUserName
	}
	if name := user.DisplayName(); name != "" {
		return name
	}
	return UnknownUserName
}

// UserByEmail finds a projected user by email.
func (r *Registry) UserByEmail(email string) (domain.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, true
		}
	}
	return domain.User{}, false
}

// Users returns projected users, optionally excluding admins (the admin
// console lists only end-users).
func (r *Registry) Users(excludeAdmins bool) []domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.User, 0, len(r.users))
	for _, user := range r.users {
		if excludeAdmins && user.Role == domain.RoleAdmin {
			continue
		}
		out = append(out, user)
	}
	return out
}

// Counts tallies the two collections directly from the store, on demand.
func (r *Registry) Counts(ctx context.Context) (users, tickets int, err error) {
	users, err = r.store.Count(ctx, store.CollectionUsers)
	if err != nil {
		return 0, 0, util.NewStoreFailure("count users", err)
	}
	tickets, err = r.store.Count(ctx, store.CollectionTickets)
	if err != nil {
		return 0, 0, util.NewStoreFailure("count tickets", err)
	}
	return users, tickets, nil
}

func (r *Registry) publishProjectionUpdated(payload events.ProjectionUpdatedPayload) {
	if r.dispatcher == nil {
		return
	}
	_ = r.dispatcher.Publish(context.Background(), events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventProjectionUpdated,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
