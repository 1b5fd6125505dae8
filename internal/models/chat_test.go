package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParticipantRefDecodesEveryShape(t *testing.T) {
	cases := []struct {
		raw  string
		want ParticipantRef
	}{
		{`"tenant-1"`, ParticipantRef{ID: "tenant-1"}},
		{`42`, ParticipantRef{ID: "42"}},
		{`null`, ParticipantRef{}},
		{`{"id":"tenant-1","role":"tenant"}`, ParticipantRef{ID: "tenant-1", Role: RoleTenant}},
		{`{"_id":"tenant-1","displayName":"Dana"}`, ParticipantRef{ID: "tenant-1", Name: "Dana"}},
		{`{"_id":7}`, ParticipantRef{ID: "7"}},
		{`{"role":"tenant"}`, ParticipantRef{Role: RoleTenant}},
	}
	for _, tc := range cases {
		var got ParticipantRef
		require.NoError(t, json.Unmarshal([]byte(tc.raw), &got), tc.raw)
		require.Equal(t, tc.want, got, tc.raw)
	}
}

func TestParticipantRefEncoding(t *testing.T) {
	bare, err := json.Marshal(Ref("tenant-1"))
	require.NoError(t, err)
	require.JSONEq(t, `"tenant-1"`, string(bare))

	expanded, err := json.Marshal(ParticipantRef{ID: "tenant-1", Role: RoleTenant})
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"tenant-1","role":"tenant"}`, string(expanded))
}

func TestMessageDecodesMixedReferences(t *testing.T) {
	raw := `{"id":"m1","senderId":{"_id":"tenant-1","role":"tenant"},"recipientId":"landlord-1","content":"hi","sentAt":"2024-01-01T10:00:00Z","read":false}`

	var m Message
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	require.Equal(t, "tenant-1", m.SenderID.ID)
	require.Equal(t, "landlord-1", m.RecipientID.ID)
	require.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), m.SentAt)
	require.True(t, m.Involves("tenant-1"))
	require.True(t, m.Involves("landlord-1"))
	require.False(t, m.Involves("tenant-2"))
	require.False(t, m.Involves(""))
}
