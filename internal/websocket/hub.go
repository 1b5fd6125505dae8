package chatws

import (
	"encoding/json"
	"strings"

	websocket "github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"github.com/tenantry/tenantry/internal/metrics"
	"github.com/tenantry/tenantry/internal/models"
)

// Hub owns every server-side push connection. Its maps are only touched by
// the Run goroutine.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *models.Message
	rooms      chan roomChange
	direct     chan directFrame
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte

	// joined peers; owned by the hub goroutine.
	rooms map[string]struct{}
}

type roomChange struct {
	client *Client
	peerID string
	join   bool
	ack    string
}

type directFrame struct {
	client  *Client
	payload []byte
}

type HubOption func(*Hub)

func WithLogger(logger *zap.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) HubOption {
	return func(h *Hub) {
		h.metrics = m
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *models.Message, 64),
		rooms:      make(chan roomChange, 16),
		direct:     make(chan directFrame, 16),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 32),
		rooms:  make(map[string]struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
			h.metrics.PushConnected()
		case client := <-h.unregister:
			h.remove(client)
		case change := <-h.rooms:
			h.applyRoomChange(change)
		case frame := <-h.direct:
			if h.connected(frame.client) {
				h.sendDirect(frame.client, frame.payload)
			}
		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Publish queues a stored message for delivery. It never blocks the caller;
// when the queue is full the push is dropped and clients catch up on their
// next history fetch.
func (h *Hub) Publish(message *models.Message) {
	if message == nil {
		return
	}
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("push queue full, dropping new-message", zap.String("id", message.ID))
	}
}

func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, exists := set[client]; exists {
		delete(set, client)
		close(client.send)
		h.metrics.PushDisconnected()
	}
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
}

func (h *Hub) connected(client *Client) bool {
	_, ok := h.clients[client.userID][client]
	return ok
}

func (h *Hub) applyRoomChange(change roomChange) {
	client := change.client
	if !h.connected(client) {
		return
	}
	if change.join {
		client.rooms[change.peerID] = struct{}{}
	} else {
		delete(client.rooms, change.peerID)
	}
	if change.ack != "" {
		h.sendAck(client, change.ack, Ack{OK: true})
	}
}

// deliver sends message to every connection of the recipient, and to the
// sender's connections that joined the recipient's room.
func (h *Hub) deliver(message *models.Message) {
	encoded, err := encodeNewMessage(message)
	if err != nil {
		h.logger.Error("chat hub encode message", zap.Error(err))
		return
	}

	senderID := message.SenderID.ID
	recipientID := message.RecipientID.ID

	if recipientID != "" {
		h.sendToUser(recipientID, encoded, nil)
	}
	if senderID != "" && senderID != recipientID {
		h.sendToUser(senderID, encoded, func(c *Client) bool {
			_, joined := c.rooms[recipientID]
			return joined
		})
	}
}

func (h *Hub) sendToUser(userID string, payload []byte, filter func(*Client) bool) {
	set, ok := h.clients[userID]
	if !ok {
		return
	}

	for client := range set {
		if filter != nil && !filter(client) {
			continue
		}
		select {
		case client.send <- payload:
		default:
			delete(set, client)
			close(client.send)
			h.metrics.PushDisconnected()
			h.metrics.PushDropped()
			h.logger.Warn("dropping slow push client", zap.String("user_id", userID))
		}
	}
	if len(set) == 0 {
		delete(h.clients, userID)
	}
}

func (h *Hub) sendAck(client *Client, ack string, result Ack) {
	payload, err := encodeEnvelope(EventAck, ack, result)
	if err != nil {
		return
	}
	h.sendDirect(client, payload)
}

func (h *Hub) sendDirect(client *Client, payload []byte) {
	select {
	case client.send <- payload:
	default:
		h.logger.Debug("push client buffer full, frame dropped", zap.String("user_id", client.userID))
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.handleFrame(payload)
	}
}

func (c *Client) handleFrame(payload []byte) {
	var incoming Envelope
	if err := json.Unmarshal(payload, &incoming); err != nil {
		writeError(c, "invalid frame")
		return
	}

	switch incoming.Event {
	case EventJoinConversation, EventLeaveConversation:
	default:
		writeError(c, "unsupported event")
		return
	}

	var req RoomRequest
	if len(incoming.Data) > 0 {
		if err := json.Unmarshal(incoming.Data, &req); err != nil {
			c.reject(incoming.Ack, "invalid payload")
			return
		}
	}
	peerID := strings.TrimSpace(req.PeerID)
	if peerID == "" || peerID == c.userID {
		c.reject(incoming.Ack, "invalid peer id")
		return
	}

	c.hub.rooms <- roomChange{
		client: c,
		peerID: peerID,
		join:   incoming.Event == EventJoinConversation,
		ack:    incoming.Ack,
	}
}

func (c *Client) reject(ack, reason string) {
	if ack == "" {
		writeError(c, reason)
		return
	}
	payload, err := encodeEnvelope(EventAck, ack, Ack{OK: false, Error: reason})
	if err != nil {
		return
	}
	c.enqueue(payload)
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// enqueue hands a frame to the hub, which owns c.send.
func (c *Client) enqueue(payload []byte) {
	c.hub.direct <- directFrame{client: c, payload: payload}
}

func writeError(client *Client, message string) {
	payload, err := encodeEnvelope(EventError, "", errorPayload{Error: message})
	if err != nil {
		return
	}
	client.enqueue(payload)
}
