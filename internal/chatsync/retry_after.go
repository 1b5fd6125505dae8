package chatsync

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultCooldownSeconds applies when a rate-limit rejection carries no
// usable retry hint.
const DefaultCooldownSeconds = 10

// ParseRetryAfter turns a Retry-After value (delay in seconds or an
// HTTP-date) into a whole number of seconds to wait.
func ParseRetryAfter(value string, now time.Time) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultCooldownSeconds
	}

	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
			return DefaultCooldownSeconds
		}
		return int(math.Ceil(seconds))
	}

	if at, err := http.ParseTime(value); err == nil {
		remaining := int(math.Ceil(at.Sub(now).Seconds()))
		if remaining <= 0 {
			return DefaultCooldownSeconds
		}
		return remaining
	}

	if at, err := time.Parse(time.RFC3339, value); err == nil {
		remaining := int(math.Ceil(at.Sub(now).Seconds()))
		if remaining <= 0 {
			return DefaultCooldownSeconds
		}
		return remaining
	}

	return DefaultCooldownSeconds
}
