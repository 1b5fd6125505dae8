package chatsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tenantry/tenantry/internal/models"
)

type SendState int

const (
	StateIdle SendState = iota
	StateSending
	StateCooldown
)

func (s SendState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateCooldown:
		return "cooldown"
	default:
		return fmt.Sprintf("SendState(%d)", int(s))
	}
}

// Refresher reloads the authoritative views after a successful send.
type Refresher interface {
	RefreshActive(ctx context.Context) error
	RefreshConversations(ctx context.Context) error
}

// Sender serializes outgoing messages and enforces the cooldown that
// follows a rate-limit rejection. The draft is only cleared by a
// successful send. Cooldown and the last error are not tied to a
// conversation.
type Sender struct {
	api       MessagesAPI
	store     *Store
	refresher Refresher
	now       func() time.Time
	logger    *zap.Logger

	mu       sync.Mutex
	draft    string
	sending  bool
	cooldown int
	notice   string
	limited  bool
}

func NewSender(api MessagesAPI, store *Store, refresher Refresher, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		api:       api,
		store:     store,
		refresher: refresher,
		now:       time.Now,
		logger:    logger,
	}
}

func (s *Sender) SetDraft(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = content
}

func (s *Sender) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

func (s *Sender) Cooldown() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cooldown
}

// Notice is the user-facing message describing the last failed send.
func (s *Sender) Notice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notice
}

func (s *Sender) State() SendState {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.sending:
		return StateSending
	case s.cooldown > 0:
		return StateCooldown
	default:
		return StateIdle
	}
}

// CanSend reports whether a send issued now would go out, ignoring content.
func (s *Sender) CanSend() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.sending && s.cooldown == 0 && s.store.ActivePeer() != ""
}

// Send submits content to the open conversation. content becomes the draft
// first, so it survives any failure. When a precondition does not hold the
// call changes nothing and returns the matching sentinel error.
func (s *Sender) Send(ctx context.Context, content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ErrEmptyContent
	}

	s.mu.Lock()
	peerID := s.store.ActivePeer()
	switch {
	case peerID == "":
		s.mu.Unlock()
		return ErrNoConversation
	case s.sending:
		s.mu.Unlock()
		return ErrSendInFlight
	case s.cooldown > 0:
		s.mu.Unlock()
		return ErrCoolingDown
	}
	s.sending = true
	s.draft = content
	s.mu.Unlock()

	message, err := s.api.SendMessage(ctx, models.SendMessageInput{
		RecipientID: peerID,
		Content:     trimmed,
	})

	s.mu.Lock()
	s.sending = false
	if err != nil {
		s.recordFailureLocked(err, peerID)
		s.mu.Unlock()
		return err
	}
	if s.draft == content {
		s.draft = ""
	}
	s.notice = ""
	s.limited = false
	s.mu.Unlock()

	if message != nil {
		s.logger.Debug("message sent", zap.String("peer", peerID), zap.String("id", message.ID))
	}
	s.refreshAfterSend(ctx)
	return nil
}

func (s *Sender) recordFailureLocked(err error, peerID string) {
	var limited RateLimitedError
	if errors.As(err, &limited) && limited.RateLimited() {
		seconds := ParseRetryAfter(limited.RetryAfterValue(), s.now())
		s.cooldown = seconds
		s.limited = true
		s.notice = fmt.Sprintf(rateLimitNotice, seconds)
		s.logger.Info("send rate limited", zap.String("peer", peerID), zap.Int("cooldown_seconds", seconds))
		return
	}
	s.notice = sendFailedNotice
	s.logger.Warn("send failed", zap.String("peer", peerID), zap.Error(err))
}

func (s *Sender) refreshAfterSend(ctx context.Context) {
	if s.refresher == nil {
		return
	}
	if err := s.refresher.RefreshActive(ctx); err != nil {
		s.logger.Warn("refresh history after send", zap.Error(err))
	}
	if err := s.refresher.RefreshConversations(ctx); err != nil {
		s.logger.Warn("refresh conversations after send", zap.Error(err))
	}
}

// Tick advances the cooldown by one second. Reaching zero clears the
// rate-limit notice. It reports the remaining cooldown.
func (s *Sender) Tick() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cooldown <= 0 {
		return 0
	}
	s.cooldown--
	if s.cooldown == 0 && s.limited {
		s.limited = false
		s.notice = ""
	} else if s.limited {
		s.notice = fmt.Sprintf(rateLimitNotice, s.cooldown)
	}
	return s.cooldown
}

// RunCooldown ticks the cooldown once per interval until ctx is done.
func (s *Sender) RunCooldown(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.Cooldown() > 0 {
				s.Tick()
				s.store.notify()
			}
		}
	}
}
