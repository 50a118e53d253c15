package events

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	// EventProjectionUpdated fires after the ticket registry rebuilds or
	// patches its projection; the aggregation engine recomputes on it.
	EventProjectionUpdated EventType = "projection_updated"
	EventTicketOpened      EventType = "ticket_opened"
	EventTicketStatusSet   EventType = "ticket_status_set"
	EventTicketReplyAdded  EventType = "ticket_reply_added"
	EventChatMessageAdded  EventType = "chat_message_added"
)

// Event represents a domain event emitted by the core components.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// ProjectionUpdatedPayload payload.
type ProjectionUpdatedPayload struct {
	Tickets int `json:"tickets"`
	Users   int `json:"users"`
}

// TicketOpenedPayload payload.
type TicketOpenedPayload struct {
	Category domain.TicketCategory `json:"category"`
	Priority domain.TicketPriority `json:"priority"`
}

// TicketStatusSetPayload payload.
type TicketStatusSetPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketReplyAddedPayload payload.
type TicketReplyAddedPayload struct {
	Sender      domain.Sender `json:"sender"`
	TextPreview string        `json:"text_preview"`
}

// ChatMessageAddedPayload payload.
type ChatMessageAddedPayload struct {
	Sender   domain.Sender         `json:"sender"`
	Category domain.TicketCategory `json:"category,omitempty"`
}
