package dto

import "github.com/spec-kit/support-desk/internal/domain"

// SendMessageRequest payload for both admin sends and inbound user turns.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// InboundResponse reports how an inbound chat turn was classified and, when
// the intent was ticket-worthy, the filed ticket id.
type InboundResponse struct {
	Category domain.TicketCategory `json:"category"`
	Response string                `json:"response"`
	TicketID string                `json:"ticket_id,omitempty"`
}

// CountsResponse is the dashboard's on-demand collection tally.
type CountsResponse struct {
	Users   int `json:"users"`
	Tickets int `json:"tickets"`
}
