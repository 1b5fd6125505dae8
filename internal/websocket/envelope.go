package chatws

import (
	"encoding/json"
	"fmt"

	"github.com/tenantry/tenantry/internal/models"
)

const (
	EventJoinConversation  = "join-conversation"
	EventLeaveConversation = "leave-conversation"
	EventNewMessage        = "new-message"
	EventAck               = "ack"
	EventError             = "error"
)

// Envelope is the single frame shape exchanged on the push channel in
// both directions.
type Envelope struct {
	Event string          `json:"event"`
	Ack   string          `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type RoomRequest struct {
	PeerID string `json:"peerId"`
}

type Ack struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type errorPayload struct {
	Error string `json:"error"`
}

func encodeEnvelope(event, ack string, data any) ([]byte, error) {
	envelope := Envelope{Event: event, Ack: ack}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", event, err)
		}
		envelope.Data = raw
	}
	return json.Marshal(envelope)
}

func encodeNewMessage(message *models.Message) ([]byte, error) {
	return encodeEnvelope(EventNewMessage, "", message)
}
