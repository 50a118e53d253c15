package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/store"
)

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.Append(ctx, "tickets", store.Document{"status": "open"})
	require.NoError(t, err)

	var snapshots [][]store.Document
	unsub, err := s.Subscribe(ctx, "tickets", func(docs []store.Document) {
		snapshots = append(snapshots, docs)
	})
	require.NoError(t, err)
	defer unsub()

	require.Len(t, snapshots, 1)
	require.Len(t, snapshots[0], 1)
	require.Equal(t, "open", snapshots[0][0]["status"])
	require.NotEmpty(t, snapshots[0][0]["id"])
}

func TestSnapshotsAreAuthoritative(t *testing.T) {
	s := New()
	ctx := context.Background()

	var latest []store.Document
	unsub, err := s.Subscribe(ctx, "tickets", func(docs []store.Document) {
		latest = docs
	})
	require.NoError(t, err)
	defer unsub()
	require.Empty(t, latest)

	id, err := s.Append(ctx, "tickets", store.Document{"status": "open"})
	require.NoError(t, err)
	require.Len(t, latest, 1)

	require.NoError(t, s.UpdateFields(ctx, "tickets", id, map[string]any{"status": "closed"}))
	require.Len(t, latest, 1)
	require.Equal(t, "closed", latest[0]["status"])
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	s := New()
	ctx := context.Background()

	calls := 0
	unsub, err := s.Subscribe(ctx, "tickets", func(docs []store.Document) {
		calls++
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	unsub()
	_, err = s.Append(ctx, "tickets", store.Document{})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestAppendStampsCreatedAt(t *testing.T) {
	s := New()
	ctx := context.Background()

	var latest []store.Document
	unsub, err := s.Subscribe(ctx, "tickets", func(docs []store.Document) { latest = docs })
	require.NoError(t, err)
	defer unsub()

	_, err = s.Append(ctx, "tickets", store.Document{})
	require.NoError(t, err)
	require.NotEmpty(t, latest[0]["createdAt"])
}

func TestUpdateFieldsUnknownDocument(t *testing.T) {
	s := New()
	err := s.UpdateFields(context.Background(), "tickets", "missing", map[string]any{"status": "open"})
	require.Error(t, err)
}

func TestCount(t *testing.T) {
	s := New()
	ctx := context.Background()

	n, err := s.Count(ctx, "tickets")
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = s.Append(ctx, "tickets", store.Document{})
	require.NoError(t, err)
	_, err = s.Append(ctx, "tickets", store.Document{})
	require.NoError(t, err)

	n, err = s.Count(ctx, "tickets")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestWriteErrorInjection(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("transport down")

	s.SetWriteError(boom)
	_, err := s.Append(ctx, "tickets", store.Document{})
	require.ErrorIs(t, err, boom)

	s.SetWriteError(nil)
	_, err = s.Append(ctx, "tickets", store.Document{})
	require.NoError(t, err)
}

func TestCallbackMayWriteBack(t *testing.T) {
	s := New()
	ctx := context.Background()

	seeded := false
	unsub, err := s.Subscribe(ctx, "chatRooms/u1/messages", func(docs []store.Document) {
		if len(docs) == 0 && !seeded {
			seeded = true
			_, err := s.Append(ctx, "chatRooms/u1/messages", store.Document{"text": "hi"})
			require.NoError(t, err)
		}
	})
	require.NoError(t, err)
	defer unsub()

	n, err := s.Count(ctx, "chatRooms/u1/messages")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
