package registry

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/store"
	"github.com/spec-kit/support-desk/pkg/util"
)

// allowedTransitions guards the ticket lifecycle. Closed is terminal; there
// is no re-open path. Setting the current status again is an accepted no-op.
var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:       {domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusInProgress: {domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusResolved:   {domain.TicketStatusClosed},
	domain.TicketStatusClosed:     {},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// SetStatus validates and commits a lifecycle transition. The write goes to
// the store first; the local projection is patched only after the write
// succeeds (commit-then-confirm), so a failed write leaves the projection
// untouched. Across sessions the commit is last-writer-wins on the status
// field.
func (r *Registry) SetStatus(ctx context.Context, ticketID string, target domain.TicketStatus) error {
	if !domain.ValidStatus(target) {
		return util.NewValidationError("unknown status", map[string]any{"status": string(target)})
	}

	ticket, ok := r.Get(ticketID)
	if !ok {
		return util.NewNotFound("ticket", map[string]any{"id": ticketID})
	}
	if ticket.Status == target {
		return nil
	}
	if !isValidTransition(ticket.Status, target) {
		return util.NewValidationError("invalid status transition", map[string]any{
			"from": string(ticket.Status),
			"to":   string(target),
		})
	}

	if err := r.store.UpdateFields(ctx, store.CollectionTickets, ticketID, map[string]any{
		"status": string(target),
	}); err != nil {
		return util.NewStoreFailure("update status", err)
	}

	r.patchTicket(ticketID, func(t *domain.Ticket) {
		t.Status = target
	})
	r.publishTicketEvent(events.EventTicketStatusSet, ticketID, events.TicketStatusSetPayload{
		OldStatus: ticket.Status,
		NewStatus: target,
	})
	return nil
}

// AppendReply appends an admin message to a ticket's conversation and
// commits the full updated sequence. Empty or whitespace-only text is
// rejected locally with no store call. An empty ticketID acts on the current
// selection; with no selection the reply is likewise rejected locally.
//
// The commit is last-writer-wins on the embedded message array: two admins
// replying near-simultaneously race, and one reply can be overwritten. This
// is accepted behavior, not serialized away.
func (r *Registry) AppendReply(ctx context.Context, ticketID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return util.NewValidationError("reply text required", nil)
	}
	if ticketID == "" {
		r.mu.Lock()
		ticketID = r.selectedID
		r.mu.Unlock()
		if ticketID == "" {
			return util.NewValidationError("no ticket selected", nil)
		}
	}

	ticket, ok := r.Get(ticketID)
	if !ok {
		return util.NewNotFound("ticket", map[string]any{"id": ticketID})
	}

	message := domain.Message{
		Sender: domain.SenderAdmin,
		Text:   text,
		Time:   time.Now().UTC(),
	}
	messages := append(ticket.Messages, message)

	if err := r.store.UpdateFields(ctx, store.CollectionTickets, ticketID, map[string]any{
		"messages": domain.EncodeTicketMessages(messages),
	}); err != nil {
		return util.NewStoreFailure("append reply", err)
	}

	r.patchTicket(ticketID, func(t *domain.Ticket) {
		t.Messages = messages
	})
	r.publishTicketEvent(events.EventTicketReplyAdded, ticketID, events.TicketReplyAddedPayload{
		Sender:      domain.SenderAdmin,
		TextPreview: util.Truncate(text, 120),
	})
	return nil
}

// patchTicket applies the read-your-writes patch to the local projection so
// the just-written change is visible before the next authoritative snapshot
// arrives. Only called after a successful store write.
func (r *Registry) patchTicket(ticketID string, apply func(*domain.Ticket)) {
	r.mu.Lock()
	for i := range r.tickets {
		if r.tickets[i].ID == ticketID {
			apply(&r.tickets[i])
			break
		}
	}
	counts := events.ProjectionUpdatedPayload{Tickets: len(r.tickets), Users: len(r.users)}
	r.mu.Unlock()

	r.publishProjectionUpdated(counts)
}

func (r *Registry) publishTicketEvent(eventType events.EventType, ticketID string, payload any) {
	if r.dispatcher == nil {
		return
	}
	_ = r.dispatcher.Publish(context.Background(), events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
