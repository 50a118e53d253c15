package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets. Values are stored
// lowercase; no other value is ever observable in a projection.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// ValidStatus reports whether s is one of the four lifecycle states.
func ValidStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// ValidPriority reports whether p is a known priority. An empty priority is
// tolerated on stored documents and normalized at the boundary.
func ValidPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// TicketCategory is the intent classification assigned when a ticket is filed.
type TicketCategory string

const (
	CategoryBilling   TicketCategory = "billing"
	CategoryTechnical TicketCategory = "technical"
	CategoryPassword  TicketCategory = "password"
	CategoryGeneral   TicketCategory = "general"
)

// Ticket is the aggregate for support requests. Messages is append-only and
// non-decreasing in Time; Status transitions are validated by the registry.
type Ticket struct {
	ID        string
	UserID    string
	Title     string
	Category  TicketCategory
	Priority  TicketPriority
	Status    TicketStatus
	Messages  []Message
	CreatedAt time.Time
}

// Clone returns a copy of the ticket with its own message slice, so callers
// can hold results across projection rebuilds.
func (t Ticket) Clone() Ticket {
	out := t
	out.Messages = make([]Message, len(t.Messages))
	copy(out.Messages, t.Messages)
	return out
}

// FirstAdminReplyAt returns the time of the earliest admin message, if any.
func (t Ticket) FirstAdminReplyAt() (time.Time, bool) {
	for _, msg := range t.Messages {
		if msg.Sender == SenderAdmin {
			return msg.Time, true
		}
	}
	return time.Time{}, false
}
