package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// TicketResponse is the projected ticket, with the requester's display name
// resolved for the admin console.
type TicketResponse struct {
	ID        string                `json:"id"`
	UserID    string                `json:"user_id"`
	User      string                `json:"user"`
	Title     string                `json:"title,omitempty"`
	Category  domain.TicketCategory `json:"category"`
	Priority  domain.TicketPriority `json:"priority"`
	Status    domain.TicketStatus   `json:"status"`
	Messages  []MessageResponse     `json:"messages"`
	CreatedAt *time.Time            `json:"created_at,omitempty"`
}

// MessageResponse is one conversation turn.
type MessageResponse struct {
	Sender domain.Sender `json:"sender"`
	Text   string        `json:"text"`
	Time   time.Time     `json:"time"`
}

// SetStatusRequest payload.
type SetStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// ReplyRequest payload.
type ReplyRequest struct {
	Text string `json:"text"`
}
