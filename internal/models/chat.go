package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	RoleLandlord = "landlord"
	RoleTenant   = "tenant"
)

// ParticipantRef identifies a conversation participant. On the wire it is
// either a bare identifier or an expanded participant object; both decode
// into the same value so callers can compare ID directly.
type ParticipantRef struct {
	ID   string
	Role string
	Name string
}

type expandedParticipant struct {
	ID          string          `json:"id,omitempty"`
	LegacyID    json.RawMessage `json:"_id,omitempty"`
	Role        string          `json:"role,omitempty"`
	Name        string          `json:"name,omitempty"`
	DisplayName string          `json:"displayName,omitempty"`
}

func Ref(id string) ParticipantRef {
	return ParticipantRef{ID: id}
}

// Expanded reports whether the reference carries more than the identifier.
func (p ParticipantRef) Expanded() bool {
	return p.Role != "" || p.Name != ""
}

func (p ParticipantRef) IsZero() bool {
	return p.ID == ""
}

func (p ParticipantRef) MarshalJSON() ([]byte, error) {
	if !p.Expanded() {
		return json.Marshal(p.ID)
	}
	return json.Marshal(expandedParticipant{ID: p.ID, Role: p.Role, Name: p.Name})
}

// UnmarshalJSON accepts a string id, a numeric id, null, or an object
// holding the id under "id" or "_id". Anything else leaves the reference
// empty rather than failing the whole message.
func (p *ParticipantRef) UnmarshalJSON(data []byte) error {
	*p = ParticipantRef{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		p.ID = strings.TrimSpace(id)
	case '{':
		var expanded expandedParticipant
		if err := json.Unmarshal(data, &expanded); err != nil {
			return err
		}
		p.ID = strings.TrimSpace(expanded.ID)
		if p.ID == "" && len(expanded.LegacyID) > 0 {
			p.ID = rawID(expanded.LegacyID)
		}
		p.Role = expanded.Role
		p.Name = expanded.Name
		if p.Name == "" {
			p.Name = expanded.DisplayName
		}
	default:
		p.ID = rawID(data)
	}
	return nil
}

func rawID(data json.RawMessage) string {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}

type Message struct {
	ID          string         `json:"id,omitempty"`
	SenderID    ParticipantRef `json:"senderId"`
	RecipientID ParticipantRef `json:"recipientId"`
	Content     string         `json:"content"`
	SentAt      time.Time      `json:"sentAt"`
	Read        bool           `json:"read"`
}

func (m Message) String() string {
	return fmt.Sprintf("%s %s->%s %q", m.SentAt.UTC().Format(time.RFC3339), m.SenderID.ID, m.RecipientID.ID, m.Content)
}

// Involves reports whether participantID is either end of the message.
func (m Message) Involves(participantID string) bool {
	if participantID == "" {
		return false
	}
	return m.SenderID.ID == participantID || m.RecipientID.ID == participantID
}

type SendMessageInput struct {
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
}

type Participant struct {
	ID          string    `json:"id"`
	Role        string    `json:"role"`
	DisplayName string    `json:"displayName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}

type ConversationSummary struct {
	Peer        ParticipantRef `json:"peer"`
	LastMessage *Message       `json:"lastMessage,omitempty"`
	UnreadCount int            `json:"unreadCount"`
}
