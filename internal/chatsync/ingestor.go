package chatsync

import (
	"sync"

	"go.uber.org/zap"

	"github.com/tenantry/tenantry/internal/models"
)

// Ingestor feeds push-delivered messages into the store. It owns at most
// one subscription on the push channel for its lifetime.
type Ingestor struct {
	store         *Store
	push          PushChannel
	currentUserID string
	logger        *zap.Logger

	once        sync.Once
	mu          sync.Mutex
	unsubscribe func()
}

func NewIngestor(store *Store, push PushChannel, currentUserID string, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		store:         store,
		push:          push,
		currentUserID: currentUserID,
		logger:        logger,
	}
}

// Start subscribes to the push channel. Calling it again is a no-op.
func (i *Ingestor) Start() {
	if i.push == nil {
		return
	}
	i.once.Do(func() {
		unsubscribe := i.push.Subscribe(i.handle)
		i.mu.Lock()
		i.unsubscribe = unsubscribe
		i.mu.Unlock()
	})
}

func (i *Ingestor) Stop() {
	i.mu.Lock()
	unsubscribe := i.unsubscribe
	i.unsubscribe = nil
	i.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// HandleNewMessage processes one new-message event. The active conversation
// is read at handling time, never captured earlier. It reports whether the
// message entered the live buffer.
func (i *Ingestor) HandleNewMessage(message models.Message) bool {
	if malformed(message) {
		i.logger.Debug("ignored malformed live message", zap.String("id", message.ID))
		return false
	}
	i.trackConversation(message)
	return i.bufferIfRelevant(message)
}

func (i *Ingestor) handle(message models.Message) {
	i.HandleNewMessage(message)
}

// malformed reports events the merged view could not place: both
// participants and the timestamp are required.
func malformed(message models.Message) bool {
	return message.SenderID.ID == "" || message.RecipientID.ID == "" || message.SentAt.IsZero()
}

func (i *Ingestor) bufferIfRelevant(message models.Message) bool {
	if message.SenderID.ID == i.currentUserID {
		return false
	}

	active := i.store.ActivePeer()
	if active == "" || !message.Involves(active) {
		return false
	}

	if !i.store.AppendLiveFor(active, message) {
		return false
	}
	i.logger.Debug("buffered live message", zap.String("peer", active), zap.String("id", message.ID))
	return true
}

// trackConversation keeps the conversation-list cache fresh for every
// message addressed to the current user, open conversation or not.
func (i *Ingestor) trackConversation(message models.Message) {
	if i.currentUserID == "" || message.RecipientID.ID != i.currentUserID {
		return
	}
	i.store.RecordIncoming(message)
}
