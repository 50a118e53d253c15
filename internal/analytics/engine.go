// Package analytics derives dashboard metrics from the ticket projection.
package analytics

import (
	"context"
	"sync"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
)

// Stats is the derived metric set, recomputed synchronously on every
// projection change. Counts are exact tallies over the current snapshot.
//
// AvgResponseMinutes is computed from the real signal: the mean delta
// between a ticket's creation and its first admin reply, over tickets that
// have both. Satisfaction has no source field and is reported as
// unavailable (nil) rather than synthesized.
type Stats struct {
	Total      int `json:"total"`
	Open       int `json:"open"`
	Closed     int `json:"closed"`
	InProgress int `json:"in_progress"`

	AvgResponseMinutes *float64 `json:"avg_response_minutes"`
	Satisfaction       *float64 `json:"satisfaction"`

	// PerDay maps calendar date (process-local time, YYYY-MM-DD) to the
	// number of tickets created that day. Tickets lacking a creation time
	// are excluded.
	PerDay map[string]int `json:"per_day"`
}

// Engine recomputes Stats from a ticket snapshot source.
type Engine struct {
	source func() []domain.Ticket

	mu    sync.Mutex
	stats Stats
}

// NewEngine builds an engine over the given snapshot source and primes it.
func NewEngine(source func() []domain.Ticket) *Engine {
	e := &Engine{source: source}
	e.Recompute()
	return e
}

// Bind subscribes the engine to projection updates so stats stay current.
func (e *Engine) Bind(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventProjectionUpdated, func(ctx context.Context, event events.Event) error {
		e.Recompute()
		return nil
	})
}

// Recompute tallies the current snapshot.
func (e *Engine) Recompute() {
	stats := compute(e.source())
	e.mu.Lock()
	e.stats = stats
	e.mu.Unlock()
}

// Stats returns the most recently computed metrics.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.stats
	out.PerDay = make(map[string]int, len(e.stats.PerDay))
	for day, n := range e.stats.PerDay {
		out.PerDay[day] = n
	}
	return out
}

func compute(tickets []domain.Ticket) Stats {
	stats := Stats{
		Total:  len(tickets),
		PerDay: make(map[string]int),
	}

	var responseSum float64
	var responseCount int

	for _, ticket := range tickets {
		switch ticket.Status {
		case domain.TicketStatusOpen:
			stats.Open++
		case domain.TicketStatusClosed:
			stats.Closed++
		case domain.TicketStatusInProgress:
			stats.InProgress++
		}

		if ticket.CreatedAt.IsZero() {
			continue
		}
		day := ticket.CreatedAt.Local().Format("2006-01-02")
		stats.PerDay[day]++

		if repliedAt, ok := ticket.FirstAdminReplyAt(); ok && repliedAt.After(ticket.CreatedAt) {
			responseSum += repliedAt.Sub(ticket.CreatedAt).Minutes()
			responseCount++
		}
	}

	if responseCount > 0 {
		avg := responseSum / float64(responseCount)
		stats.AvgResponseMinutes = &avg
	}
	return stats
}
