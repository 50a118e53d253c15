package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/store"
	"github.com/spec-kit/support-desk/internal/store/memstore"
	"github.com/spec-kit/support-desk/pkg/util"
)

// spyStore counts writes so tests can assert that local validation failures
// never reach the store.
type spyStore struct {
	*memstore.Store
	mu      sync.Mutex
	updates int
	appends int
}

func (s *spyStore) UpdateFields(ctx context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	s.updates++
	s.mu.Unlock()
	return s.Store.UpdateFields(ctx, collection, id, fields)
}

func (s *spyStore) Append(ctx context.Context, collection string, doc store.Document) (string, error) {
	s.mu.Lock()
	s.appends++
	s.mu.Unlock()
	return s.Store.Append(ctx, collection, doc)
}

func (s *spyStore) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

func newSpyRegistry(t *testing.T) (*Registry, *spyStore) {
	t.Helper()
	st := &spyStore{Store: memstore.New()}
	reg := Open(context.Background(), st, events.NewInMemoryDispatcher(), zap.NewNop())
	t.Cleanup(reg.Close)
	return reg, st
}

func TestSetStatusRoundTrip(t *testing.T) {
	reg, st := newSpyRegistry(t)
	ctx := context.Background()
	id, err := st.Append(ctx, store.CollectionTickets, store.Document{
		"userId": "u1", "status": "open", "priority": "high",
	})
	require.NoError(t, err)

	require.NoError(t, reg.SetStatus(ctx, id, domain.TicketStatusResolved))

	resolved := reg.List(Filter{Status: "resolved", Priority: "all", UserID: "all"})
	require.Len(t, resolved, 1)
	require.Equal(t, id, resolved[0].ID)
}

func TestSetStatusClosedIsTerminal(t *testing.T) {
	reg, st := newSpyRegistry(t)
	ctx := context.Background()
	id, err := st.Append(ctx, store.CollectionTickets, store.Document{"userId": "u1", "status": "closed"})
	require.NoError(t, err)

	for _, target := range []domain.TicketStatus{
		domain.TicketStatusOpen, domain.TicketStatusInProgress, domain.TicketStatusResolved,
	} {
		err := reg.SetStatus(ctx, id, target)
		require.True(t, util.IsCode(err, "VALIDATION_FAILED"), "closed -> %s must be rejected", target)
	}

	// Re-asserting the current status is an accepted no-op.
	require.NoError(t, reg.SetStatus(ctx, id, domain.TicketStatusClosed))

	ticket, ok := reg.Get(id)
	require.True(t, ok)
	require.Equal(t, domain.TicketStatusClosed, ticket.Status)
}

func TestSetStatusRejectsBackwardTransition(t *testing.T) {
	reg, st := newSpyRegistry(t)
	ctx := context.Background()
	id, err := st.Append(ctx, store.CollectionTickets, store.Document{"userId": "u1", "status": "resolved"})
	require.NoError(t, err)

	err = reg.SetStatus(ctx, id, domain.TicketStatusInProgress)
	require.True(t, util.IsCode(err, "VALIDATION_FAILED"))
}

func TestSetStatusUnknownValue(t *testing.T) {
	reg, st := newSpyRegistry(t)
	ctx := context.Background()
	id, err := st.Append(ctx, store.CollectionTickets, store.Document{"userId": "u1", "status": "open"})
	require.NoError(t, err)

	writes := st.updateCount()
	err = reg.SetStatus(ctx, id, domain.TicketStatus("reopened"))
	require.True(t, util.IsCode(err, "VALIDATION_FAILED"))
	require.Equal(t, writes, st.updateCount())
}

func TestSetStatusUnknownTicket(t *testing.T) {
	reg, _ := newSpyRegistry(t)
	err := reg.SetStatus(context.Background(), "missing", domain.TicketStatusClosed)
	require.True(t, util.IsCode(err, "NOT_FOUND"))
}

func TestAppendReplyEmptyTextIsLocalNoOp(t *testing.T) {
	reg, st := newSpyRegistry(t)
	ctx := context.Background()
	id, err := st.Append(ctx, store.CollectionTickets, store.Document{"userId": "u1", "status": "open"})
	require.NoError(t, err)

	writes := st.updateCount()
	for _, text := range []string{"", "   ", "\n\t"} {
		err := reg.AppendReply(ctx, id, text)
		require.True(t, util.IsCode(err, "VALIDATION_FAILED"))
	}
	require.Equal(t, writes, st.updateCount(), "validation failures must not reach the store")

	ticket, _ := reg.Get(id)
	require.Empty(t, ticket.Messages)
}

func TestAppendReplyWithoutSelection(t *testing.T) {
	reg, _ := newSpyRegistry(t)
	err := reg.AppendReply(context.Background(), "", "hello")
	require.True(t, util.IsCode(err, "VALIDATION_FAILED"))
}

func TestAppendReplyActsOnSelection(t *testing.T) {
	reg, st := newSpyRegistry(t)
	ctx := context.Background()
	id, err := st.Append(ctx, store.CollectionTickets, store.Document{"userId": "u1", "status": "open"})
	require.NoError(t, err)

	require.NoError(t, reg.Select(id))
	require.NoError(t, reg.AppendReply(ctx, "", "looking into it"))

	ticket, _ := reg.Get(id)
	require.Len(t, ticket.Messages, 1)
	require.Equal(t, domain.SenderAdmin, ticket.Messages[0].Sender)
}

func TestAppendReplyOrderingInvariant(t *testing.T) {
	reg, st := newSpyRegistry(t)
	ctx := context.Background()
	id, err := st.Append(ctx, store.CollectionTickets, store.Document{"userId": "u1", "status": "open"})
	require.NoError(t, err)

	require.NoError(t, reg.AppendReply(ctx, id, "first"))
	require.NoError(t, reg.AppendReply(ctx, id, "second"))
	require.NoError(t, reg.AppendReply(ctx, id, "third"))

	ticket, _ := reg.Get(id)
	require.Len(t, ticket.Messages, 3)
	for i := 1; i < len(ticket.Messages); i++ {
		require.False(t, ticket.Messages[i].Time.Before(ticket.Messages[i-1].Time))
	}
}

func TestFailedWriteLeavesProjectionUnchanged(t *testing.T) {
	reg, st := newSpyRegistry(t)
	ctx := context.Background()
	id, err := st.Append(ctx, store.CollectionTickets, store.Document{"userId": "u1", "status": "open"})
	require.NoError(t, err)

	st.SetWriteError(errors.New("permission denied"))

	err = reg.SetStatus(ctx, id, domain.TicketStatusClosed)
	require.True(t, util.IsCode(err, "STORE_FAILURE"))
	ticket, _ := reg.Get(id)
	require.Equal(t, domain.TicketStatusOpen, ticket.Status)

	err = reg.AppendReply(ctx, id, "hello")
	require.True(t, util.IsCode(err, "STORE_FAILURE"))
	ticket, _ = reg.Get(id)
	require.Empty(t, ticket.Messages)
}

func TestTicketLifecycleEndToEnd(t *testing.T) {
	reg, st := newSpyRegistry(t)
	ctx := context.Background()
	id, err := st.Append(ctx, store.CollectionTickets, store.Document{
		"userId":   "u1",
		"status":   "open",
		"priority": "high",
		"messages": []any{},
	})
	require.NoError(t, err)

	require.NoError(t, reg.AppendReply(ctx, id, "We are looking into it"))
	ticket, ok := reg.Get(id)
	require.True(t, ok)
	require.Len(t, ticket.Messages, 1)
	require.Equal(t, domain.SenderAdmin, ticket.Messages[0].Sender)

	require.NoError(t, reg.SetStatus(ctx, id, domain.TicketStatusClosed))
	ticket, _ = reg.Get(id)
	require.Equal(t, domain.TicketStatusClosed, ticket.Status)

	for _, target := range []domain.TicketStatus{
		domain.TicketStatusOpen, domain.TicketStatusInProgress, domain.TicketStatusResolved,
	} {
		require.Error(t, reg.SetStatus(ctx, id, target))
	}
	require.NoError(t, reg.SetStatus(ctx, id, domain.TicketStatusClosed))
}
