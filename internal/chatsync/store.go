package chatsync

import (
	"sync"

	"github.com/tenantry/tenantry/internal/models"
)

// Store is the state container shared by the selector, the ingestor and
// the send coordinator. Every method takes the lock for the whole update so
// no caller observes a half-applied change.
type Store struct {
	mu sync.RWMutex

	active      string
	history     []models.Message
	historyPeer string
	loading     bool
	historyErr  error
	live        []models.Message

	conversations []models.ConversationSummary
	unread        int

	changes chan struct{}
}

func NewStore() *Store {
	return &Store{changes: make(chan struct{}, 1)}
}

// Changes delivers a coalesced signal after any mutation.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

func (s *Store) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *Store) ActivePeer() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Activate makes peerID the open conversation and empties the live buffer,
// even when peerID was already active. It returns the previous peer.
func (s *Store) Activate(peerID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.active
	s.active = peerID
	s.live = nil
	if s.historyPeer != peerID {
		s.history = nil
		s.historyPeer = ""
	}
	s.loading = true
	s.historyErr = nil
	s.notify()
	return previous
}

// CommitHistory stores a fetched history for peerID. A response for a peer
// that is no longer active is dropped and false is returned.
func (s *Store) CommitHistory(peerID string, messages []models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if peerID == "" || peerID != s.active {
		return false
	}
	s.history = append([]models.Message(nil), messages...)
	s.historyPeer = peerID
	s.loading = false
	s.historyErr = nil
	s.notify()
	return true
}

// FailHistory records a fetch failure for peerID if it is still active.
func (s *Store) FailHistory(peerID string, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if peerID == "" || peerID != s.active {
		return false
	}
	s.loading = false
	s.historyErr = err
	s.notify()
	return true
}

// AppendLiveFor appends message to the live buffer only while peerID is
// still the active conversation.
func (s *Store) AppendLiveFor(peerID string, message models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if peerID == "" || peerID != s.active {
		return false
	}
	s.live = append(s.live, message)
	s.notify()
	return true
}

func (s *Store) ClearLive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = nil
	s.notify()
}

func (s *Store) History() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Message(nil), s.history...)
}

func (s *Store) LiveBuffer() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Message(nil), s.live...)
}

// Snapshot returns the active peer together with copies of both message
// sources, read under one lock.
func (s *Store) Snapshot() (string, []models.Message, []models.Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active,
		append([]models.Message(nil), s.history...),
		append([]models.Message(nil), s.live...)
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.historyErr
}

func (s *Store) SetConversations(conversations []models.ConversationSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = append([]models.ConversationSummary(nil), conversations...)
	s.notify()
}

func (s *Store) Conversations() []models.ConversationSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ConversationSummary(nil), s.conversations...)
}

// RecordIncoming folds a message addressed to the current user into the
// conversation-list cache. The sender's summary moves to the front; its
// unread count and the badge grow unless that conversation is open or the
// message is the one already recorded as its last.
func (s *Store) RecordIncoming(message models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	peer := message.SenderID
	open := peer.ID == s.active
	last := message

	summary := models.ConversationSummary{Peer: peer}
	rest := make([]models.ConversationSummary, 0, len(s.conversations)+1)
	for _, existing := range s.conversations {
		if existing.Peer.ID == peer.ID {
			summary = existing
			if !summary.Peer.Expanded() && peer.Expanded() {
				summary.Peer = peer
			}
			continue
		}
		rest = append(rest, existing)
	}
	repeat := message.ID != "" && summary.LastMessage != nil && summary.LastMessage.ID == message.ID
	summary.LastMessage = &last
	if !open && !repeat {
		summary.UnreadCount++
		s.unread++
	}

	s.conversations = append([]models.ConversationSummary{summary}, rest...)
	s.notify()
}

func (s *Store) SetUnread(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if count < 0 {
		count = 0
	}
	s.unread = count
	s.notify()
}

func (s *Store) Unread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}
