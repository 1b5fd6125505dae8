package chatsync

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tenantry/tenantry/internal/models"
)

// DedupKey returns the identity used to recognize two records as the same
// logical message: the durable id when present, otherwise the composite of
// sender, recipient, timestamp and content.
//
// Two distinct messages with equal content sent within the same timestamp
// between the same pair collapse into one under the composite key.
func DedupKey(message models.Message) string {
	if id := strings.TrimSpace(message.ID); id != "" {
		return "id:" + id
	}
	return strings.Join([]string{
		"composite",
		message.SenderID.ID,
		message.RecipientID.ID,
		message.SentAt.UTC().Format(time.RFC3339Nano),
		message.Content,
	}, "\x00")
}

// MergedView combines the authoritative history with the live buffer into
// one chronologically ordered sequence holding each logical message once.
// History is scanned first, so its copy wins over a live duplicate. Equal
// timestamps keep first-seen order.
func MergedView(history, live []models.Message) ([]models.Message, error) {
	seen := make(map[string]struct{}, len(history)+len(live))
	merged := make([]models.Message, 0, len(history)+len(live))

	for _, source := range [][]models.Message{history, live} {
		for _, message := range source {
			if message.SentAt.IsZero() {
				return nil, fmt.Errorf("%w: message %q", ErrInvalidTimestamp, DedupKey(message))
			}
			key := DedupKey(message)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, message)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].SentAt.Before(merged[j].SentAt)
	})
	return merged, nil
}

// ViewMessage is a merged entry annotated for rendering.
type ViewMessage struct {
	models.Message
	IsOwn bool
}

func annotate(messages []models.Message, currentUserID string) []ViewMessage {
	view := make([]ViewMessage, 0, len(messages))
	for _, message := range messages {
		view = append(view, ViewMessage{
			Message: message,
			IsOwn:   currentUserID != "" && message.SenderID.ID == currentUserID,
		})
	}
	return view
}
