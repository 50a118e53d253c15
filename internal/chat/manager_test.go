package chat

import (
	"context"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/store"
	"github.com/spec-kit/support-desk/internal/store/memstore"
	"github.com/spec-kit/support-desk/pkg/util"
)

func newTestManager(t *testing.T) (*Manager, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	m := NewManager(st, events.NewInMemoryDispatcher(), zap.NewNop())
	t.Cleanup(m.Close)
	return m, st
}

func TestThreadSeedsGreetingOnce(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	messages, err := m.Thread(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, domain.SenderAdmin, messages[0].Sender)
	require.Equal(t, Greeting, messages[0].Text)

	// Repeat access never re-seeds.
	messages, err = m.Thread(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, messages, 1)

	n, err := st.Count(ctx, store.ChatMessagesPath("u1"))
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestThreadSeedingUnderConcurrency(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Thread(ctx, "u1")
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := st.Count(ctx, store.ChatMessagesPath("u1"))
	require.NoError(t, err)
	require.Equal(t, 1, n, "exactly one greeting per thread")
}

func TestThreadNotSeededWhenHistoryExists(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	_, err := st.Append(ctx, store.ChatMessagesPath("u1"),
		domain.EncodeChatMessage(domain.Message{Sender: domain.SenderUser, Text: "hi"}))
	require.NoError(t, err)

	messages, err := m.Thread(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, "hi", messages[0].Text)
}

func TestSendAdminMessage(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.SendAdminMessage(ctx, "u1", "anything else?"))

	messages, err := m.Thread(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, messages, 2) // greeting + admin send
	last := messages[len(messages)-1]
	require.Equal(t, domain.SenderAdmin, last.Sender)
	require.Equal(t, "anything else?", last.Text)
}

func TestSendAdminMessageRejectsEmptyText(t *testing.T) {
	m, _ := newTestManager(t)
	err := m.SendAdminMessage(context.Background(), "u1", "   ")
	require.True(t, util.IsCode(err, "VALIDATION_FAILED"))
}

func TestHandleInboundGeneralFilesNoTicket(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	intent, ticketID, err := m.HandleInbound(ctx, "u1", "hello there")
	require.NoError(t, err)
	require.Equal(t, domain.CategoryGeneral, intent.Category)
	require.Empty(t, ticketID)

	n, err := st.Count(ctx, store.CollectionTickets)
	require.NoError(t, err)
	require.Zero(t, n)

	messages, err := m.Thread(ctx, "u1")
	require.NoError(t, err)
	// greeting, user turn, canned acknowledgement
	require.Len(t, messages, 3)
	require.Equal(t, domain.SenderUser, messages[1].Sender)
	require.Equal(t, domain.SenderAdmin, messages[2].Sender)
}

func TestHandleInboundBillingFilesTicket(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	var tickets []store.Document
	unsub, err := st.Subscribe(ctx, store.CollectionTickets, func(docs []store.Document) {
		tickets = docs
	})
	require.NoError(t, err)
	defer unsub()

	intent, ticketID, err := m.HandleInbound(ctx, "u1", "my invoice is wrong")
	require.NoError(t, err)
	require.Equal(t, domain.CategoryBilling, intent.Category)
	require.NotEmpty(t, ticketID)

	require.Len(t, tickets, 1)
	ticket, err := domain.TicketFromDocument(map[string]any(tickets[0]))
	require.NoError(t, err)
	require.Equal(t, ticketID, ticket.ID)
	require.Equal(t, "u1", ticket.UserID)
	require.Equal(t, domain.TicketStatusOpen, ticket.Status)
	require.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	require.Equal(t, domain.CategoryBilling, ticket.Category)
	require.Len(t, ticket.Messages, 1)
	require.Equal(t, domain.SenderUser, ticket.Messages[0].Sender)
	require.Equal(t, "my invoice is wrong", ticket.Messages[0].Text)
}

func TestHandleInboundRejectsEmptyText(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	_, _, err := m.HandleInbound(ctx, "u1", "  \n ")
	require.True(t, util.IsCode(err, "VALIDATION_FAILED"))

	n, err := st.Count(ctx, store.ChatMessagesPath("u1"))
	require.NoError(t, err)
	require.Zero(t, n, "rejected turn must not touch the store")
}

func TestHandleInboundTitleIsPreview(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	// Multi-byte text exercises the rune-boundary truncation.
	long := "billing " + strings.Repeat("é", 200)
	_, ticketID, err := m.HandleInbound(ctx, "u1", long)
	require.NoError(t, err)
	require.NotEmpty(t, ticketID)

	var tickets []store.Document
	unsub, err := st.Subscribe(ctx, store.CollectionTickets, func(docs []store.Document) {
		tickets = docs
	})
	require.NoError(t, err)
	defer unsub()

	ticket, err := domain.TicketFromDocument(map[string]any(tickets[0]))
	require.NoError(t, err)
	require.True(t, utf8.ValidString(ticket.Title))
	require.LessOrEqual(t, utf8.RuneCountInString(ticket.Title), 80)
	require.True(t, strings.HasSuffix(ticket.Title, "..."))
}
