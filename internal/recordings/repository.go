package recordings

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ringline/backend/internal/models"
)

// MessageStore persists recording messages.
type MessageStore interface {
	InsertRecording(ctx context.Context, msg *models.RecordingMessage) error
	DeleteByFilePath(ctx context.Context, filePath string) (int64, error)
}

// Repository handles one-to-one message persistence for recordings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a recordings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertRecording inserts a recording message and fills in its id and created_at.
func (r *Repository) InsertRecording(ctx context.Context, msg *models.RecordingMessage) error {
	const q = `INSERT INTO one_to_one_messages (id, sender_id, receiver_id, file_path, timming, seen, type)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, msg.SenderID, msg.ReceiverID, msg.FilePath, msg.Timming, msg.Seen, msg.Type).
		Scan(&msg.ID, &msg.CreatedAt)
}

// DeleteByFilePath removes recording messages pointing at filePath and returns how many were removed.
func (r *Repository) DeleteByFilePath(ctx context.Context, filePath string) (int64, error) {
	const q = `DELETE FROM one_to_one_messages WHERE type = $1 AND file_path = $2`
	tag, err := r.pool.Exec(ctx, q, models.MessageTypeRecording, filePath)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ExistsByFilePath reports whether a recording message references filePath.
func (r *Repository) ExistsByFilePath(ctx context.Context, filePath string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM one_to_one_messages WHERE type = $1 AND file_path = $2)`
	var exists bool
	err := r.pool.QueryRow(ctx, q, models.MessageTypeRecording, filePath).Scan(&exists)
	return exists, err
}
