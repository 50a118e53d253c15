// Package chat owns per-user pre-triage message threads: live projections of
// the chatRooms sub-collections, greeting seeding, admin sends, and the
// classification of inbound user turns into tickets.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/classify"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/store"
	"github.com/spec-kit/support-desk/pkg/util"
)

// Greeting is the single synthetic admin message seeded into a thread that
// is empty at first observation.
const Greeting = "👋 Hello! How can I assist you today?"

// Manager tracks live chat threads keyed by user id. Threads are created
// lazily on first access.
type Manager struct {
	store      store.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger

	mu      sync.Mutex
	threads map[string]*thread
}

type thread struct {
	messages []domain.Message
	unsub    store.Unsubscribe
	// seeded guards the greeting append: the empty-check and the append are
	// not atomic relative to concurrent subscribers, so at most one greeting
	// is ever written per thread from this process.
	seeded bool
}

// NewManager constructs the manager.
func NewManager(st store.Store, dispatcher events.Dispatcher, logger *zap.Logger) *Manager {
	return &Manager{
		store:      st,
		dispatcher: dispatcher,
		logger:     logger,
		threads:    make(map[string]*thread),
	}
}

// Thread returns the current messages of the user's thread, subscribing to
// it first if this is the first access. An empty thread is seeded with
// exactly one admin greeting before the first snapshot is returned.
func (m *Manager) Thread(ctx context.Context, userID string) ([]domain.Message, error) {
	if err := m.ensure(ctx, userID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.threads[userID]
	out := make([]domain.Message, len(t.messages))
	copy(out, t.messages)
	return out, nil
}

// SendAdminMessage appends an admin message to the user's thread.
func (m *Manager) SendAdminMessage(ctx context.Context, userID, text string) error {
	return m.send(ctx, userID, domain.SenderAdmin, text)
}

// HandleInbound records a user's chat turn, classifies it, appends the
// canned acknowledgement, and files a ticket when the intent is anything but
// a general inquiry. Returns the classification and the filed ticket id (or
// empty for general turns).
func (m *Manager) HandleInbound(ctx context.Context, userID, text string) (classify.Intent, string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return classify.Intent{}, "", util.NewValidationError("message text required", nil)
	}
	if err := m.send(ctx, userID, domain.SenderUser, text); err != nil {
		return classify.Intent{}, "", err
	}

	intent := classify.Classify(text)

	if err := m.send(ctx, userID, domain.SenderAdmin, intent.Response); err != nil {
		return intent, "", err
	}
	if intent.Category == domain.CategoryGeneral {
		return intent, "", nil
	}

	now := time.Now().UTC()
	ticket := domain.Ticket{
		UserID:   userID,
		Title:    util.Truncate(text, 80),
		Category: intent.Category,
		Priority: domain.TicketPriorityMedium,
		Status:   domain.TicketStatusOpen,
		Messages: []domain.Message{{Sender: domain.SenderUser, Text: text, Time: now}},
	}
	ticketID, err := m.store.Append(ctx, store.CollectionTickets, ticket.Document())
	if err != nil {
		return intent, "", util.NewStoreFailure("open ticket", err)
	}
	m.publish(events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketOpened,
		TicketID:  ticketID,
		UserID:    userID,
		Timestamp: now,
		Payload: events.TicketOpenedPayload{
			Category: intent.Category,
			Priority: ticket.Priority,
		},
	})
	return intent, ticketID, nil
}

// Close unsubscribes every live thread.
func (m *Manager) Close() {
	m.mu.Lock()
	threads := m.threads
	m.threads = make(map[string]*thread)
	m.mu.Unlock()
	for _, t := range threads {
		if t.unsub != nil {
			t.unsub()
		}
	}
}

func (m *Manager) send(ctx context.Context, userID string, sender domain.Sender, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return util.NewValidationError("message text required", nil)
	}
	if err := m.ensure(ctx, userID); err != nil {
		return err
	}
	doc := domain.EncodeChatMessage(domain.Message{Sender: sender, Text: text})
	if _, err := m.store.Append(ctx, store.ChatMessagesPath(userID), doc); err != nil {
		return util.NewStoreFailure("append chat message", err)
	}
	m.publish(events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventChatMessageAdded,
		UserID:    userID,
		Timestamp: time.Now(),
		Payload:   events.ChatMessageAddedPayload{Sender: sender},
	})
	return nil
}

// ensure lazily subscribes to the user's thread. The map entry is installed
// under the lock before subscribing, so a second concurrent caller for the
// same user never opens a duplicate subscription (and can never double-seed
// the greeting).
func (m *Manager) ensure(ctx context.Context, userID string) error {
	m.mu.Lock()
	if _, ok := m.threads[userID]; ok {
		m.mu.Unlock()
		return nil
	}
	t := &thread{}
	m.threads[userID] = t
	m.mu.Unlock()

	unsub, err := m.store.Subscribe(ctx, store.ChatMessagesPath(userID), func(docs []store.Document) {
		m.applySnapshot(userID, docs)
	})
	if err != nil {
		m.mu.Lock()
		delete(m.threads, userID)
		m.mu.Unlock()
		return util.NewStoreFailure("subscribe chat thread", err)
	}

	m.mu.Lock()
	t.unsub = unsub
	m.mu.Unlock()
	return nil
}

// applySnapshot replaces the thread projection with the authoritative
// snapshot. Thread order trusts the store's order-by contract; no defensive
// re-sort happens here. Seeding runs outside the lock because the append
// itself triggers the next snapshot.
func (m *Manager) applySnapshot(userID string, docs []store.Document) {
	messages := make([]domain.Message, 0, len(docs))
	for _, doc := range docs {
		msg, err := domain.MessageFromValue(map[string]any(doc))
		if err != nil {
			m.logger.Warn("rejecting malformed chat message",
				zap.String("user_id", userID), zap.Error(err))
			continue
		}
		messages = append(messages, msg)
	}

	m.mu.Lock()
	t, ok := m.threads[userID]
	if !ok {
		m.mu.Unlock()
		return
	}
	t.messages = messages
	seed := len(messages) == 0 && !t.seeded
	if seed {
		t.seeded = true
	}
	m.mu.Unlock()

	if !seed {
		return
	}
	doc := domain.EncodeChatMessage(domain.Message{Sender: domain.SenderAdmin, Text: Greeting})
	if _, err := m.store.Append(context.Background(), store.ChatMessagesPath(userID), doc); err != nil {
		m.logger.Error("greeting seed failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (m *Manager) publish(event events.Event) {
	if m.dispatcher == nil {
		return
	}
	_ = m.dispatcher.Publish(context.Background(), event)
}
