package services

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tenantry/tenantry/internal/metrics"
	"github.com/tenantry/tenantry/internal/models"
	"github.com/tenantry/tenantry/internal/repository"
)

const (
	DefaultHistoryLimit = 200
	MaxHistoryLimit     = 500
)

type ChatService struct {
	db               *pgxpool.Pool
	conversationRepo *repository.ConversationRepository
	messageRepo      *repository.MessageRepository
	participantRepo  *repository.ParticipantRepository
	limiter          *SendLimiter
	metrics          *metrics.Metrics
	logger           *zap.Logger
}

type ChatServiceOption func(*ChatService)

func WithSendLimiter(limiter *SendLimiter) ChatServiceOption {
	return func(s *ChatService) { s.limiter = limiter }
}

func WithMetrics(m *metrics.Metrics) ChatServiceOption {
	return func(s *ChatService) { s.metrics = m }
}

func WithLogger(logger *zap.Logger) ChatServiceOption {
	return func(s *ChatService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewChatService(
	db *pgxpool.Pool,
	conversationRepo *repository.ConversationRepository,
	messageRepo *repository.MessageRepository,
	participantRepo *repository.ParticipantRepository,
	opts ...ChatServiceOption,
) *ChatService {
	s := &ChatService{
		db:               db,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		participantRepo:  participantRepo,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validRole(role string) bool {
	return role == models.RoleLandlord || role == models.RoleTenant
}

func (s *ChatService) touch(ctx context.Context, actorID, role string) error {
	if !validRole(role) || strings.TrimSpace(actorID) == "" {
		return ErrForbidden
	}
	_, err := s.participantRepo.Upsert(ctx, actorID, role)
	return err
}

func (s *ChatService) ListConversations(
	ctx context.Context,
	actorID string,
	role string,
) ([]models.ConversationSummary, error) {
	if err := s.touch(ctx, actorID, role); err != nil {
		return nil, err
	}
	return s.conversationRepo.ListForParticipant(ctx, actorID)
}

// ListMessages returns the most recent window of the conversation with
// peerID, oldest first. An unknown peer yields an empty history.
func (s *ChatService) ListMessages(
	ctx context.Context,
	actorID string,
	role string,
	peerID string,
	limit int,
) ([]models.Message, error) {
	peerID = strings.TrimSpace(peerID)
	if peerID == "" || peerID == actorID {
		return nil, ErrInvalidInput
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if err := s.touch(ctx, actorID, role); err != nil {
		return nil, err
	}
	return s.messageRepo.ListBetween(ctx, actorID, peerID, limit)
}

func (s *ChatService) SendMessage(
	ctx context.Context,
	actorID string,
	role string,
	input models.SendMessageInput,
) (*models.Message, error) {
	if !validRole(role) || strings.TrimSpace(actorID) == "" {
		return nil, ErrForbidden
	}

	recipientID := strings.TrimSpace(input.RecipientID)
	trimmed := strings.TrimSpace(input.Content)
	if recipientID == "" || recipientID == actorID || trimmed == "" {
		s.metrics.SendRejected("invalid")
		return nil, ErrInvalidInput
	}

	if wait, ok := s.limiter.Reserve(actorID); !ok {
		s.metrics.SendRejected("rate_limited")
		s.logger.Info("send rate limited",
			zap.String("sender_id", actorID),
			zap.Duration("retry_after", wait),
		)
		return nil, &RateLimitError{RetryAfter: wait}
	}

	recipient, err := s.participantRepo.GetByID(ctx, recipientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.metrics.SendRejected("unknown_recipient")
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}
	if recipient.Role == role {
		s.metrics.SendRejected("forbidden")
		return nil, ErrForbidden
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := repository.NewParticipantRepository(tx).Upsert(ctx, actorID, role); err != nil {
		return nil, err
	}

	message, err := repository.NewMessageRepository(tx).Create(ctx, actorID, recipientID, trimmed)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	message.SenderID = models.ParticipantRef{ID: actorID, Role: role}
	message.RecipientID = models.ParticipantRef{ID: recipient.ID, Role: recipient.Role, Name: recipient.DisplayName}
	s.metrics.MessageSent()
	return message, nil
}

// MarkRead marks every message peerID sent to the actor as read.
func (s *ChatService) MarkRead(ctx context.Context, actorID, role, peerID string) (int64, error) {
	peerID = strings.TrimSpace(peerID)
	if peerID == "" || peerID == actorID {
		return 0, ErrInvalidInput
	}
	if err := s.touch(ctx, actorID, role); err != nil {
		return 0, err
	}
	return s.messageRepo.MarkReadFrom(ctx, actorID, peerID)
}

func (s *ChatService) UnreadCount(ctx context.Context, actorID, role string) (int, error) {
	if err := s.touch(ctx, actorID, role); err != nil {
		return 0, err
	}
	return s.messageRepo.CountUnread(ctx, actorID)
}
