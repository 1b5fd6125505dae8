package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/tenantry/tenantry/internal/models"
)

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(
	ctx context.Context,
	senderID string,
	recipientID string,
	content string,
) (*models.Message, error) {
	query := `
		INSERT INTO messages (id, sender_id, recipient_id, content, read)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING id::text, sender_id, recipient_id, content, sent_at, read
	`

	return scanMessage(r.db.QueryRow(ctx, query, uuid.NewString(), senderID, recipientID, content))
}

// ListBetween returns the most recent limit messages exchanged by the two
// participants, oldest first.
func (r *MessageRepository) ListBetween(
	ctx context.Context,
	participantID string,
	peerID string,
	limit int,
) ([]models.Message, error) {
	query := `
		SELECT id, sender_id, recipient_id, content, sent_at, read
		FROM (
			SELECT id::text AS id, sender_id, recipient_id, content, sent_at, read
			FROM messages
			WHERE (sender_id = $1 AND recipient_id = $2)
			   OR (sender_id = $2 AND recipient_id = $1)
			ORDER BY sent_at DESC, id DESC
			LIMIT $3
		) recent
		ORDER BY sent_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, participantID, peerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *message)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

// MarkReadFrom marks everything peerID sent to readerID as read.
func (r *MessageRepository) MarkReadFrom(
	ctx context.Context,
	readerID string,
	peerID string,
) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages
		SET read = TRUE
		WHERE recipient_id = $1
		  AND sender_id = $2
		  AND read = FALSE
	`, readerID, peerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *MessageRepository) CountUnread(ctx context.Context, readerID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM messages
		WHERE recipient_id = $1
		  AND read = FALSE
	`, readerID).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var (
		message     models.Message
		senderID    string
		recipientID string
	)
	if err := row.Scan(
		&message.ID,
		&senderID,
		&recipientID,
		&message.Content,
		&message.SentAt,
		&message.Read,
	); err != nil {
		return nil, err
	}
	message.SenderID = models.Ref(senderID)
	message.RecipientID = models.Ref(recipientID)
	message.SentAt = message.SentAt.UTC()
	return &message, nil
}
