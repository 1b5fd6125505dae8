package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tenantry/tenantry/internal/models"
)

type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type ParticipantRepository struct {
	db DBTX
}

func NewParticipantRepository(db DBTX) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

// Upsert records that the participant is active. The role of an existing
// participant is never changed.
func (r *ParticipantRepository) Upsert(ctx context.Context, id, role string) (*models.Participant, error) {
	query := `
		INSERT INTO participants (id, role)
		VALUES ($1, $2)
		ON CONFLICT (id)
		DO UPDATE SET last_seen_at = NOW()
		RETURNING id, role, display_name, created_at, last_seen_at
	`
	var participant models.Participant
	err := r.db.QueryRow(ctx, query, id, role).
		Scan(&participant.ID, &participant.Role, &participant.DisplayName, &participant.CreatedAt, &participant.LastSeenAt)
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

func (r *ParticipantRepository) GetByID(ctx context.Context, id string) (*models.Participant, error) {
	query := `
		SELECT id, role, display_name, created_at, last_seen_at
		FROM participants
		WHERE id = $1
	`
	var participant models.Participant
	err := r.db.QueryRow(ctx, query, id).
		Scan(&participant.ID, &participant.Role, &participant.DisplayName, &participant.CreatedAt, &participant.LastSeenAt)
	if err != nil {
		return nil, err
	}
	return &participant, nil
}
