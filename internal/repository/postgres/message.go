package postgres

import (
	"context"
	"time"

	"github.com/dtroode/gophchat-server/internal/ids"
	"github.com/dtroode/gophchat-server/internal/model"
)

var _ model.MessageStore = (*MessageRepository)(nil)

// MessageRepository orders messages by the seq column; created_at is clamped
// so it never falls behind the newest stored row.
type MessageRepository struct {
	db  *Connection
	ids *ids.Generator
	now func() time.Time
}

func NewMessageRepository(db *Connection) *MessageRepository {
	return &MessageRepository{
		db:  db,
		ids: ids.NewGenerator(),
		now: time.Now,
	}
}

func (r *MessageRepository) Append(ctx context.Context, message model.ChatMessage) (model.ChatMessage, error) {
	query := `
		INSERT INTO messages (id, sender_id, sender_label, text, created_at)
		VALUES ($1, $2, $3, $4, GREATEST($5::timestamptz, COALESCE((SELECT MAX(created_at) FROM messages), $5::timestamptz)))
		RETURNING created_at`

	message.ID, message.CreatedAt = r.ids.Next(r.now().UTC())

	err := r.db.QueryRow(ctx, query,
		message.ID, message.SenderID, message.SenderLabel, message.Text, message.CreatedAt,
	).Scan(&message.CreatedAt)
	if err != nil {
		return model.ChatMessage{}, storeError("append message", err)
	}
	message.CreatedAt = message.CreatedAt.UTC()
	r.ids.Observe(message.CreatedAt)

	return message, nil
}

func (r *MessageRepository) ListRecent(ctx context.Context, limit int) ([]model.ChatMessage, error) {
	query := `
		SELECT id, sender_id, sender_label, text, created_at
		FROM (
			SELECT seq, id, sender_id, sender_label, text, created_at
			FROM messages
			ORDER BY seq DESC
			LIMIT $1
		) recent
		ORDER BY seq ASC`

	if limit <= 0 {
		return []model.ChatMessage{}, nil
	}

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, storeError("list recent messages", err)
	}
	defer rows.Close()

	messages := make([]model.ChatMessage, 0, limit)
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.ID, &m.SenderID, &m.SenderLabel, &m.Text, &m.CreatedAt); err != nil {
			return nil, storeError("scan message", err)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("iterate messages", err)
	}

	return messages, nil
}
