package services

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultSendsPerMinute = 20
	defaultSendBurst      = 5
)

// SendLimiter keeps one token bucket per sender.
type SendLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

func NewSendLimiter(perMinute, burst int) *SendLimiter {
	if perMinute <= 0 {
		perMinute = defaultSendsPerMinute
	}
	if burst <= 0 {
		burst = defaultSendBurst
	}
	return &SendLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
		now:      time.Now,
	}
}

func (l *SendLimiter) get(senderID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.limiters[senderID]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(l.limit, l.burst)
	l.limiters[senderID] = limiter
	return limiter
}

// Reserve takes a token for senderID. When none is available it returns how
// long the sender has to wait and consumes nothing.
func (l *SendLimiter) Reserve(senderID string) (time.Duration, bool) {
	if l == nil {
		return 0, true
	}
	now := l.now()
	reservation := l.get(senderID).ReserveN(now, 1)
	if !reservation.OK() {
		return time.Minute, false
	}
	delay := reservation.DelayFrom(now)
	if delay > 0 {
		reservation.CancelAt(now)
		return delay, false
	}
	return 0, true
}

// RetryAfterSeconds rounds a wait up to whole seconds, never below one.
func RetryAfterSeconds(wait time.Duration) int {
	seconds := int(math.Ceil(wait.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}
