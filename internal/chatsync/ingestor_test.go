package chatsync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tenantry/tenantry/internal/models"
)

func TestIngestorBuffersPeerMessagesForActiveConversation(t *testing.T) {
	store := NewStore()
	store.Activate("tenant-1")
	ingestor := NewIngestor(store, nil, "landlord-1", nil)

	added := ingestor.HandleNewMessage(msg("m1", "tenant-1", "landlord-1", "leak in kitchen", "2024-01-01T10:00:00Z"))

	require.True(t, added)
	require.Len(t, store.LiveBuffer(), 1)
}

func TestIngestorSkipsOwnMessages(t *testing.T) {
	store := NewStore()
	store.Activate("tenant-1")
	ingestor := NewIngestor(store, nil, "landlord-1", nil)

	added := ingestor.HandleNewMessage(msg("m1", "landlord-1", "tenant-1", "on my way", "2024-01-01T10:00:00Z"))

	require.False(t, added)
	require.Empty(t, store.LiveBuffer())
}

func TestIngestorSkipsOtherConversations(t *testing.T) {
	store := NewStore()
	store.Activate("tenant-1")
	ingestor := NewIngestor(store, nil, "landlord-1", nil)

	require.False(t, ingestor.HandleNewMessage(msg("m1", "tenant-2", "landlord-1", "hi", "2024-01-01T10:00:00Z")))
	require.Empty(t, store.LiveBuffer())
}

func TestIngestorWithoutActiveConversation(t *testing.T) {
	store := NewStore()
	ingestor := NewIngestor(store, nil, "landlord-1", nil)

	require.False(t, ingestor.HandleNewMessage(msg("m1", "tenant-1", "landlord-1", "hi", "2024-01-01T10:00:00Z")))
}

func TestIngestorIgnoresMalformedEvents(t *testing.T) {
	store := NewStore()
	store.Activate("tenant-1")
	ingestor := NewIngestor(store, nil, "landlord-1", nil)

	missingSender := msg("m1", "", "tenant-1", "hi", "2024-01-01T10:00:00Z")
	missingRecipient := msg("m2", "tenant-1", "", "hi", "2024-01-01T10:00:00Z")
	missingSentAt := msg("m3", "tenant-1", "landlord-1", "hi", "2024-01-01T10:00:00Z")
	missingSentAt.SentAt = time.Time{}

	require.False(t, ingestor.HandleNewMessage(missingSender))
	require.False(t, ingestor.HandleNewMessage(missingRecipient))
	require.False(t, ingestor.HandleNewMessage(missingSentAt))
	require.Empty(t, store.LiveBuffer())
	require.Empty(t, store.Conversations())
}

func TestIngestorUndatedMessageKeepsViewRenderable(t *testing.T) {
	store := NewStore()
	store.Activate("tenant-1")
	require.True(t, store.CommitHistory("tenant-1", []models.Message{
		msg("m1", "tenant-1", "landlord-1", "rent paid", "2024-01-01T09:00:00Z"),
	}))
	ingestor := NewIngestor(store, nil, "landlord-1", nil)

	undated := msg("m2", "tenant-1", "landlord-1", "hello?", "2024-01-01T10:00:00Z")
	undated.SentAt = time.Time{}
	require.False(t, ingestor.HandleNewMessage(undated))

	_, history, live := store.Snapshot()
	view, err := MergedView(history, live)
	require.NoError(t, err)
	require.Len(t, view, 1)
	require.Equal(t, "m1", view[0].ID)
}

func TestIngestorRepeatedDeliveryCountsUnreadOnce(t *testing.T) {
	store := NewStore()
	store.Activate("tenant-1")
	ingestor := NewIngestor(store, nil, "landlord-1", nil)

	incoming := msg("m7", "tenant-2", "landlord-1", "boiler noise", "2024-01-01T10:00:00Z")
	ingestor.HandleNewMessage(incoming)
	ingestor.HandleNewMessage(incoming)

	conversations := store.Conversations()
	require.Len(t, conversations, 1)
	require.Equal(t, 1, conversations[0].UnreadCount)
	require.Equal(t, 1, store.Unread())

	ingestor.HandleNewMessage(msg("m8", "tenant-2", "landlord-1", "still noisy", "2024-01-01T10:05:00Z"))
	require.Equal(t, 2, store.Conversations()[0].UnreadCount)
	require.Equal(t, 2, store.Unread())
}

func TestIngestorSubscriptionDeliversPushedMessages(t *testing.T) {
	store := NewStore()
	store.Activate("tenant-1")
	push := newFakePush()
	ingestor := NewIngestor(store, push, "landlord-1", nil)
	ingestor.Start()
	defer ingestor.Stop()

	push.emit(msg("m1", "tenant-1", "landlord-1", "keys left at desk", "2024-01-01T10:00:00Z"))

	require.Len(t, store.LiveBuffer(), 1)
}

func TestIngestorReadsActiveConversationAtEventTime(t *testing.T) {
	store := NewStore()
	push := newFakePush()
	ingestor := NewIngestor(store, push, "landlord-1", nil)
	ingestor.Start()

	store.Activate("tenant-1")
	store.Activate("tenant-2")

	push.emit(msg("m1", "tenant-1", "landlord-1", "late event", "2024-01-01T10:00:00Z"))
	require.Empty(t, store.LiveBuffer())

	push.emit(msg("m2", "tenant-2", "landlord-1", "fresh event", "2024-01-01T10:00:01Z"))
	require.Len(t, store.LiveBuffer(), 1)
}

func TestIngestorSubscribesOnce(t *testing.T) {
	push := newFakePush()
	ingestor := NewIngestor(NewStore(), push, "landlord-1", nil)

	ingestor.Start()
	ingestor.Start()
	require.Equal(t, 1, push.subscribes)

	ingestor.Stop()
	require.Empty(t, push.handlers)
}

func TestIngestorTracksBackgroundConversations(t *testing.T) {
	store := NewStore()
	store.Activate("tenant-1")
	store.SetConversations([]models.ConversationSummary{
		{Peer: models.Ref("tenant-1")},
		{Peer: models.Ref("tenant-2"), UnreadCount: 1},
	})
	ingestor := NewIngestor(store, nil, "landlord-1", nil)

	incoming := msg("m5", "tenant-2", "landlord-1", "lease question", "2024-01-01T10:00:00Z")
	incoming.SenderID.Role = models.RoleTenant
	ingestor.HandleNewMessage(incoming)

	conversations := store.Conversations()
	require.Len(t, conversations, 2)
	require.Equal(t, "tenant-2", conversations[0].Peer.ID)
	require.Equal(t, models.RoleTenant, conversations[0].Peer.Role)
	require.Equal(t, 2, conversations[0].UnreadCount)
	require.Equal(t, "m5", conversations[0].LastMessage.ID)
	require.Equal(t, 1, store.Unread())
	require.Empty(t, store.LiveBuffer())
}

func TestIngestorOpenConversationDoesNotCountUnread(t *testing.T) {
	store := NewStore()
	store.Activate("tenant-1")
	ingestor := NewIngestor(store, nil, "landlord-1", nil)

	ingestor.HandleNewMessage(msg("m1", "tenant-1", "landlord-1", "hi", "2024-01-01T10:00:00Z"))

	conversations := store.Conversations()
	require.Len(t, conversations, 1)
	require.Zero(t, conversations[0].UnreadCount)
	require.Zero(t, store.Unread())
}

func TestIngestorLiveMessageAppearsInView(t *testing.T) {
	api := newFakeAPI()
	api.histories["tenant-1"] = []models.Message{
		msg("m1", "landlord-1", "tenant-1", "hello", "2024-01-01T10:00:00Z"),
	}
	push := newFakePush()
	client, err := New(Options{API: api, Push: push, CurrentUserID: "landlord-1"})
	require.NoError(t, err)
	client.Start(context.Background())
	t.Cleanup(client.Close)

	require.NoError(t, client.SelectConversation(context.Background(), "tenant-1"))
	push.emit(msg("m2", "tenant-1", "landlord-1", "hi back", "2024-01-01T10:00:05Z"))
	push.emit(msg("m1", "landlord-1", "tenant-1", "hello", "2024-01-01T10:00:00Z"))

	view, err := client.View()
	require.NoError(t, err)
	require.Len(t, view, 2)
	require.Equal(t, "m1", view[0].ID)
	require.True(t, view[0].IsOwn)
	require.Equal(t, "m2", view[1].ID)
	require.False(t, view[1].IsOwn)
}
