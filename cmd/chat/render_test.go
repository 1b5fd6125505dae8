package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tenantry/tenantry/internal/chatsync"
	"github.com/tenantry/tenantry/internal/models"
)

func viewMessage(id, sender, content string, own bool, minute int) chatsync.ViewMessage {
	return chatsync.ViewMessage{
		Message: models.Message{
			ID:          id,
			SenderID:    models.Ref(sender),
			RecipientID: models.Ref("other"),
			Content:     content,
			SentAt:      time.Date(2024, 1, 1, 10, minute, 0, 0, time.UTC),
		},
		IsOwn: own,
	}
}

func TestRendererPrintsEachMessageOnce(t *testing.T) {
	var out bytes.Buffer
	r := newRenderer(&out)
	r.reset("tenant-1")

	first := []chatsync.ViewMessage{
		viewMessage("m1", "tenant-1", "Heater broken", false, 0),
		viewMessage("m2", "landlord-1", "On my way", true, 1),
	}
	r.render(first, nil, "", 0)
	r.render(append(first, viewMessage("m3", "tenant-1", "Thanks", false, 2)), nil, "", 0)

	text := out.String()
	require.Equal(t, 1, strings.Count(text, "Heater broken"))
	require.Equal(t, 1, strings.Count(text, "Thanks"))
	require.Contains(t, text, "you: On my way")
	require.Contains(t, text, "tenant-1: Heater broken")
}

func TestRendererNoticeTransitions(t *testing.T) {
	var out bytes.Buffer
	r := newRenderer(&out)

	r.render(nil, nil, "You're sending messages too quickly. Please wait 3 seconds before sending again.", 3)
	r.render(nil, nil, "You're sending messages too quickly. Please wait 2 seconds before sending again.", 2)
	r.render(nil, nil, "", 0)

	text := out.String()
	require.Equal(t, 1, strings.Count(text, "too quickly"))
	require.Contains(t, text, "wait 3 seconds")
	require.Contains(t, text, "You can send messages again.")
}

func TestRendererReportsLoadFailureOnce(t *testing.T) {
	var out bytes.Buffer
	r := newRenderer(&out)

	failure := errors.New("connection refused")
	r.render(nil, failure, "", 0)
	r.render(nil, failure, "", 0)

	require.Equal(t, 1, strings.Count(out.String(), "connection refused"))
}

func TestPrintConversations(t *testing.T) {
	var out bytes.Buffer
	printConversations(&out, []models.ConversationSummary{
		{
			Peer:        models.ParticipantRef{ID: "tenant-1", Role: models.RoleTenant, Name: "Dana"},
			UnreadCount: 2,
			LastMessage: &models.Message{
				ID:       "m1",
				SenderID: models.Ref("landlord-1"),
				Content:  "Water shut-off Tuesday",
				SentAt:   time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
			},
		},
		{Peer: models.Ref("tenant-2")},
	}, "landlord-1")

	text := out.String()
	require.Contains(t, text, "Dana (tenant-1) [tenant]")
	require.Contains(t, text, "you: Water shut-off Tuesday")
	require.Contains(t, text, "tenant-2")

	out.Reset()
	printConversations(&out, nil, "landlord-1")
	require.Equal(t, "No conversations yet.\n", out.String())
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", truncate("short", 10))
	require.Equal(t, "a b c", truncate("a\n b\t c", 10))
	require.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
