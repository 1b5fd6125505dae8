package repository

import (
	"context"
	"database/sql"

	"github.com/tenantry/tenantry/internal/models"
)

// ConversationRepository derives conversations from the messages table; a
// conversation exists once the first message between two participants does.
type ConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) ListForParticipant(
	ctx context.Context,
	participantID string,
) ([]models.ConversationSummary, error) {
	query := `
		WITH peers AS (
			SELECT DISTINCT
				CASE WHEN sender_id = $1 THEN recipient_id ELSE sender_id END AS peer_id
			FROM messages
			WHERE sender_id = $1 OR recipient_id = $1
		)
		SELECT
			p.peer_id,
			COALESCE(pt.role, ''),
			COALESCE(pt.display_name, ''),
			lm.id,
			lm.sender_id,
			lm.recipient_id,
			lm.content,
			lm.sent_at,
			lm.read,
			COALESCE(uc.unread_count, 0)
		FROM peers p
		LEFT JOIN participants pt ON pt.id = p.peer_id
		LEFT JOIN LATERAL (
			SELECT id::text AS id, sender_id, recipient_id, content, sent_at, read
			FROM messages
			WHERE (sender_id = $1 AND recipient_id = p.peer_id)
			   OR (sender_id = p.peer_id AND recipient_id = $1)
			ORDER BY sent_at DESC, id DESC
			LIMIT 1
		) lm ON TRUE
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unread_count
			FROM messages
			WHERE sender_id = p.peer_id
			  AND recipient_id = $1
			  AND read = FALSE
		) uc ON TRUE
		ORDER BY lm.sent_at DESC NULLS LAST, p.peer_id
	`

	rows, err := r.db.Query(ctx, query, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var summary models.ConversationSummary
		var peerID, peerRole, peerName string
		var messageID sql.NullString
		var messageSenderID sql.NullString
		var messageRecipientID sql.NullString
		var messageContent sql.NullString
		var messageSentAt sql.NullTime
		var messageRead sql.NullBool

		if err := rows.Scan(
			&peerID,
			&peerRole,
			&peerName,
			&messageID,
			&messageSenderID,
			&messageRecipientID,
			&messageContent,
			&messageSentAt,
			&messageRead,
			&summary.UnreadCount,
		); err != nil {
			return nil, err
		}

		summary.Peer = models.ParticipantRef{ID: peerID, Role: peerRole, Name: peerName}
		if messageID.Valid {
			summary.LastMessage = &models.Message{
				ID:          messageID.String,
				SenderID:    models.Ref(messageSenderID.String),
				RecipientID: models.Ref(messageRecipientID.String),
				Content:     messageContent.String,
				SentAt:      messageSentAt.Time.UTC(),
				Read:        messageRead.Bool,
			}
		}

		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}
