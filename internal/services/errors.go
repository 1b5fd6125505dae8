package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidInput        = errors.New("invalid input")
	ErrParticipantNotFound = errors.New("participant not found")
)

// RateLimitError rejects a send until RetryAfter has elapsed.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("send rate exceeded, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) RetryAfterSeconds() int {
	return RetryAfterSeconds(e.RetryAfter)
}
