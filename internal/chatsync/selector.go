package chatsync

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/tenantry/tenantry/internal/models"
)

// MessagesAPI is the request/response side of the messaging backend.
type MessagesAPI interface {
	ListMessages(ctx context.Context, peerID string) ([]models.Message, error)
	SendMessage(ctx context.Context, input models.SendMessageInput) (*models.Message, error)
	ListConversations(ctx context.Context) ([]models.ConversationSummary, error)
	MarkRead(ctx context.Context, peerID string) error
	UnreadCount(ctx context.Context) (int, error)
}

// PushChannel is the session's single event-stream connection.
type PushChannel interface {
	Join(ctx context.Context, peerID string) error
	Leave(ctx context.Context, peerID string) error
	Subscribe(handler func(models.Message)) (unsubscribe func())
}

type Selector struct {
	store  *Store
	api    MessagesAPI
	push   PushChannel
	logger *zap.Logger
}

func NewSelector(store *Store, api MessagesAPI, push PushChannel, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{store: store, api: api, push: push, logger: logger}
}

// Select opens the conversation with peerID: the live buffer is cleared,
// the push subscription moves to the new room, history is refetched and
// the peer's messages are marked read. Only a history fetch failure is
// returned; it is also recorded on the store.
func (s *Selector) Select(ctx context.Context, peerID string) error {
	peerID = strings.TrimSpace(peerID)
	if peerID == "" {
		return ErrInvalidPeer
	}

	previous := s.store.Activate(peerID)
	s.logger.Debug("conversation selected", zap.String("peer", peerID), zap.String("previous", previous))

	if s.push != nil {
		if previous != "" && previous != peerID {
			if err := s.push.Leave(ctx, previous); err != nil {
				s.logger.Warn("leave conversation room", zap.String("peer", previous), zap.Error(err))
			}
		}
		if err := s.push.Join(ctx, peerID); err != nil {
			s.logger.Warn("join conversation room", zap.String("peer", peerID), zap.Error(err))
		}
	}

	err := s.Refresh(ctx, peerID)

	if markErr := s.api.MarkRead(ctx, peerID); markErr != nil {
		s.logger.Warn("mark conversation read", zap.String("peer", peerID), zap.Error(markErr))
	}
	return err
}

// Refresh refetches history for peerID and commits it only if peerID is
// still the active conversation when the response arrives.
func (s *Selector) Refresh(ctx context.Context, peerID string) error {
	if peerID == "" {
		return ErrNoConversation
	}

	messages, err := s.api.ListMessages(ctx, peerID)
	if err != nil {
		if s.store.FailHistory(peerID, err) {
			return err
		}
		return nil
	}
	if !s.store.CommitHistory(peerID, messages) {
		s.logger.Debug("discarded stale history", zap.String("peer", peerID), zap.Int("messages", len(messages)))
	}
	return nil
}

// RefreshActive refetches whatever conversation is open right now.
func (s *Selector) RefreshActive(ctx context.Context) error {
	return s.Refresh(ctx, s.store.ActivePeer())
}

func (s *Selector) RefreshConversations(ctx context.Context) error {
	conversations, err := s.api.ListConversations(ctx)
	if err != nil {
		return err
	}
	s.store.SetConversations(conversations)
	return nil
}

func (s *Selector) RefreshUnread(ctx context.Context) error {
	count, err := s.api.UnreadCount(ctx)
	if err != nil {
		return err
	}
	s.store.SetUnread(count)
	return nil
}
