package chatsync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewRequiresAPIAndUser(t *testing.T) {
	_, err := New(Options{CurrentUserID: "landlord-1"})
	require.Error(t, err)

	_, err = New(Options{API: newFakeAPI()})
	require.Error(t, err)
}

func TestClientSendShowsConfirmedMessage(t *testing.T) {
	api := newFakeAPI()
	api.histories["tenant-1"] = append(api.histories["tenant-1"],
		msg("m1", "tenant-1", "me", "Heater broken", "2024-01-01T09:00:00Z"),
	)
	client, err := New(Options{API: api, Push: newFakePush(), CurrentUserID: "me"})
	require.NoError(t, err)
	client.Start(context.Background())
	defer client.Close()

	require.NoError(t, client.SelectConversation(context.Background(), "tenant-1"))
	require.NoError(t, client.Send(context.Background(), "On my way"))

	view, err := client.View()
	require.NoError(t, err)
	require.Len(t, view, 2)
	require.Equal(t, "Heater broken", view[0].Content)
	require.False(t, view[0].IsOwn)
	require.Equal(t, "On my way", view[1].Content)
	require.True(t, view[1].IsOwn)
	require.Empty(t, client.Sender().Draft())
}

func TestClientStartIsIdempotentAndCloseStopsDelivery(t *testing.T) {
	api := newFakeAPI()
	push := newFakePush()
	client, err := New(Options{API: api, Push: push, CurrentUserID: "landlord-1"})
	require.NoError(t, err)

	client.Start(context.Background())
	client.Start(context.Background())
	require.Equal(t, 1, push.subscribes)

	require.NoError(t, client.SelectConversation(context.Background(), "tenant-1"))
	client.Close()

	push.emit(msg("m1", "tenant-1", "landlord-1", "late", "2024-01-01T10:00:00Z"))
	require.Empty(t, client.Store().LiveBuffer())
}

func TestClientCloseRightAfterStart(t *testing.T) {
	for i := 0; i < 200; i++ {
		client, err := New(Options{API: newFakeAPI(), Push: newFakePush(), CurrentUserID: "landlord-1"})
		require.NoError(t, err)

		client.Start(context.Background())
		client.Close()
		client.Close()
	}
}

func TestClientRestartAfterClose(t *testing.T) {
	client, err := New(Options{API: newFakeAPI(), CurrentUserID: "landlord-1"})
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		client.Start(context.Background())
		client.Close()
	}
}

func TestClientCooldownTicksDown(t *testing.T) {
	api := newFakeAPI()
	api.sendErr = &rateLimitErr{retryAfter: "2"}
	client, err := New(Options{API: api, CurrentUserID: "landlord-1", TickInterval: 50 * time.Millisecond})
	require.NoError(t, err)
	client.Start(context.Background())
	defer client.Close()

	require.NoError(t, client.SelectConversation(context.Background(), "tenant-1"))
	require.Error(t, client.Send(context.Background(), "rent reminder"))
	require.Contains(t, []int{1, 2}, client.Sender().Cooldown())

	require.Eventually(t, func() bool {
		return client.Sender().Cooldown() == 0
	}, 2*time.Second, 10*time.Millisecond)
	require.Empty(t, client.Sender().Notice())
	require.Equal(t, "rent reminder", client.Sender().Draft())
}

func TestClientChangesNotifies(t *testing.T) {
	client, err := New(Options{API: newFakeAPI(), CurrentUserID: "landlord-1"})
	require.NoError(t, err)

	require.NoError(t, client.SelectConversation(context.Background(), "tenant-1"))

	select {
	case <-client.Changes():
	case <-time.After(time.Second):
		t.Fatal("expected a change notification after selecting a conversation")
	}
}
