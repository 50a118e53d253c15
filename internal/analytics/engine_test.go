package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/registry"
	"github.com/spec-kit/support-desk/internal/store"
	"github.com/spec-kit/support-desk/internal/store/memstore"
)

func staticSource(tickets []domain.Ticket) func() []domain.Ticket {
	return func() []domain.Ticket { return tickets }
}

func TestStatusTallies(t *testing.T) {
	e := NewEngine(staticSource([]domain.Ticket{
		{Status: domain.TicketStatusOpen},
		{Status: domain.TicketStatusOpen},
		{Status: domain.TicketStatusClosed},
		{Status: domain.TicketStatusInProgress},
		{Status: domain.TicketStatusResolved},
	}))

	stats := e.Stats()
	require.Equal(t, 5, stats.Total)
	require.Equal(t, 2, stats.Open)
	require.Equal(t, 1, stats.Closed)
	require.Equal(t, 1, stats.InProgress)
}

func TestPerDayExcludesUnstampedTickets(t *testing.T) {
	day1 := time.Date(2026, 8, 1, 9, 0, 0, 0, time.Local)
	day2 := time.Date(2026, 8, 2, 9, 0, 0, 0, time.Local)

	e := NewEngine(staticSource([]domain.Ticket{
		{Status: domain.TicketStatusOpen, CreatedAt: day1},
		{Status: domain.TicketStatusOpen, CreatedAt: day1.Add(2 * time.Hour)},
		{Status: domain.TicketStatusClosed, CreatedAt: day2},
		{Status: domain.TicketStatusOpen}, // no creation time
	}))

	stats := e.Stats()
	require.Equal(t, 4, stats.Total)
	require.Equal(t, map[string]int{
		"2026-08-01": 2,
		"2026-08-02": 1,
	}, stats.PerDay)
}

func TestAvgResponseFromFirstAdminReply(t *testing.T) {
	created := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	e := NewEngine(staticSource([]domain.Ticket{
		{
			Status:    domain.TicketStatusOpen,
			CreatedAt: created,
			Messages: []domain.Message{
				{Sender: domain.SenderUser, Text: "help", Time: created},
				{Sender: domain.SenderAdmin, Text: "on it", Time: created.Add(10 * time.Minute)},
				{Sender: domain.SenderAdmin, Text: "fixed", Time: created.Add(time.Hour)},
			},
		},
		{
			Status:    domain.TicketStatusOpen,
			CreatedAt: created,
			Messages: []domain.Message{
				{Sender: domain.SenderAdmin, Text: "hello", Time: created.Add(30 * time.Minute)},
			},
		},
		// No admin reply: excluded from the average.
		{
			Status:    domain.TicketStatusOpen,
			CreatedAt: created,
			Messages: []domain.Message{
				{Sender: domain.SenderUser, Text: "anyone?", Time: created.Add(time.Hour)},
			},
		},
	}))

	stats := e.Stats()
	require.NotNil(t, stats.AvgResponseMinutes)
	require.InDelta(t, 20.0, *stats.AvgResponseMinutes, 0.001)
}

func TestAvgResponseNilWithoutSignal(t *testing.T) {
	e := NewEngine(staticSource([]domain.Ticket{
		{Status: domain.TicketStatusOpen, CreatedAt: time.Now()},
	}))
	require.Nil(t, e.Stats().AvgResponseMinutes)
}

func TestSatisfactionIsNeverSynthesized(t *testing.T) {
	e := NewEngine(staticSource([]domain.Ticket{
		{Status: domain.TicketStatusClosed, CreatedAt: time.Now()},
	}))
	require.Nil(t, e.Stats().Satisfaction)
}

func TestBindRecomputesOnProjectionUpdates(t *testing.T) {
	st := memstore.New()
	dispatcher := events.NewInMemoryDispatcher()
	reg := registry.Open(context.Background(), st, dispatcher, zap.NewNop())
	defer reg.Close()

	e := NewEngine(func() []domain.Ticket { return reg.List(registry.Filter{}) })
	e.Bind(dispatcher)
	require.Zero(t, e.Stats().Total)

	_, err := st.Append(context.Background(), store.CollectionTickets,
		store.Document{"userId": "u1", "status": "open"})
	require.NoError(t, err)

	stats := e.Stats()
	require.Equal(t, 1, stats.Total)
	require.Equal(t, 1, stats.Open)
}
