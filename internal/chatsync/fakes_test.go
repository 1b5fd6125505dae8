package chatsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tenantry/tenantry/internal/models"
)

type fakeAPI struct {
	mu sync.Mutex

	histories     map[string][]models.Message
	listErr       error
	sendErr       error
	sent          []models.SendMessageInput
	markRead      []string
	conversations []models.ConversationSummary
	unread        int

	// beforeList runs inside ListMessages, before the response is returned.
	beforeList func(peerID string)

	// onSend runs inside SendMessage, while the send is in flight.
	onSend func()
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{histories: map[string][]models.Message{}}
}

func (f *fakeAPI) ListMessages(_ context.Context, peerID string) ([]models.Message, error) {
	if f.beforeList != nil {
		f.beforeList(peerID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Message(nil), f.histories[peerID]...), nil
}

func (f *fakeAPI) SendMessage(_ context.Context, input models.SendMessageInput) (*models.Message, error) {
	if f.onSend != nil {
		f.onSend()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, input)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	message := models.Message{
		ID:          fmt.Sprintf("srv-%d", len(f.sent)),
		SenderID:    models.Ref("me"),
		RecipientID: models.Ref(input.RecipientID),
		Content:     input.Content,
		SentAt:      time.Date(2024, 1, 1, 12, 0, len(f.sent), 0, time.UTC),
	}
	f.histories[input.RecipientID] = append(f.histories[input.RecipientID], message)
	return &message, nil
}

func (f *fakeAPI) ListConversations(context.Context) ([]models.ConversationSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conversations, nil
}

func (f *fakeAPI) MarkRead(_ context.Context, peerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markRead = append(f.markRead, peerID)
	return nil
}

func (f *fakeAPI) UnreadCount(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread, nil
}

func (f *fakeAPI) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakePush struct {
	mu         sync.Mutex
	handlers   map[int]func(models.Message)
	nextID     int
	subscribes int
	joined     []string
	left       []string
	joinErr    error
}

func newFakePush() *fakePush {
	return &fakePush{handlers: map[int]func(models.Message){}}
}

func (p *fakePush) Join(_ context.Context, peerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.joined = append(p.joined, peerID)
	return p.joinErr
}

func (p *fakePush) Leave(_ context.Context, peerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.left = append(p.left, peerID)
	return nil
}

func (p *fakePush) Subscribe(handler func(models.Message)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.subscribes++
	p.handlers[id] = handler
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.handlers, id)
	}
}

func (p *fakePush) emit(message models.Message) {
	p.mu.Lock()
	handlers := make([]func(models.Message), 0, len(p.handlers))
	for _, handler := range p.handlers {
		handlers = append(handlers, handler)
	}
	p.mu.Unlock()
	for _, handler := range handlers {
		handler(message)
	}
}

type rateLimitErr struct {
	retryAfter string
}

func (e *rateLimitErr) Error() string           { return "429 too many requests" }
func (e *rateLimitErr) RateLimited() bool       { return true }
func (e *rateLimitErr) RetryAfterValue() string { return e.retryAfter }

func msg(id, sender, recipient, content, sentAt string) models.Message {
	ts, err := time.Parse(time.RFC3339, sentAt)
	if err != nil {
		panic(err)
	}
	return models.Message{
		ID:          id,
		SenderID:    models.Ref(sender),
		RecipientID: models.Ref(recipient),
		Content:     content,
		SentAt:      ts,
	}
}
