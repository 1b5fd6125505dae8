package chatsync

import "errors"

var (
	ErrNoConversation   = errors.New("no conversation selected")
	ErrEmptyContent     = errors.New("message content is empty")
	ErrSendInFlight     = errors.New("a message is already being sent")
	ErrCoolingDown      = errors.New("sending is paused after a rate limit")
	ErrInvalidTimestamp = errors.New("message has no valid sentAt timestamp")
	ErrInvalidPeer      = errors.New("invalid peer id")
)

// RateLimitedError is returned by an API implementation, or wraps one, when
// the backend rejected a send for exceeding its rate limit.
type RateLimitedError interface {
	error
	RateLimited() bool
	RetryAfterValue() string
}

const (
	sendFailedNotice = "Message not sent. Please try again."
	rateLimitNotice  = "You're sending messages too quickly. Please wait %d seconds before sending again."
)
