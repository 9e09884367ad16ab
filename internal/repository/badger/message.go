package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/dtroode/gophchat-server/internal/ids"
	"github.com/dtroode/gophchat-server/internal/model"
)

var _ model.MessageStore = (*MessageRepository)(nil)

// Messages are keyed "msg:{ulid}" so key order is append order.
const messagePrefix = "msg:"

type MessageRepository struct {
	db  *Connection
	ids *ids.Generator
	now func() time.Time
}

type diskMessage struct {
	ID          string     `json:"id"`
	SenderID    *uuid.UUID `json:"sender_id,omitempty"`
	SenderLabel string     `json:"sender_label"`
	Text        string     `json:"text"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewMessageRepository resumes the ID generator from the newest stored message
// so CreatedAt keeps growing across restarts.
func NewMessageRepository(db *Connection) (*MessageRepository, error) {
	r := &MessageRepository{
		db:  db,
		ids: ids.NewGenerator(),
		now: time.Now,
	}

	last, err := r.ListRecent(context.Background(), 1)
	if err != nil {
		return nil, err
	}
	if len(last) == 1 {
		// Fresh entropy cannot continue the stored millisecond's sequence.
		r.ids.Observe(last[0].CreatedAt.Add(time.Millisecond))
	}

	return r, nil
}

func (r *MessageRepository) Append(ctx context.Context, message model.ChatMessage) (model.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return model.ChatMessage{}, err
	}

	message.ID, message.CreatedAt = r.ids.Next(r.now().UTC())

	data, err := json.Marshal(diskMessage{
		ID:          message.ID,
		SenderID:    message.SenderID,
		SenderLabel: message.SenderLabel,
		Text:        message.Text,
		CreatedAt:   message.CreatedAt,
	})
	if err != nil {
		return model.ChatMessage{}, fmt.Errorf("encode message: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(messagePrefix+message.ID), data)
	})
	if err != nil {
		return model.ChatMessage{}, storeError("append message", err)
	}

	return message, nil
}

// ListRecent scans backwards from the end of the message range and returns
// the collected messages in ascending order.
func (r *MessageRepository) ListRecent(_ context.Context, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 {
		return []model.ChatMessage{}, nil
	}

	messages := make([]model.ChatMessage, 0, limit)
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(messages) < limit; it.Next() {
			var dm diskMessage
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &dm)
			})
			if err != nil {
				return fmt.Errorf("decode message: %w", err)
			}
			messages = append(messages, model.ChatMessage{
				ID:          dm.ID,
				SenderID:    dm.SenderID,
				SenderLabel: dm.SenderLabel,
				Text:        dm.Text,
				CreatedAt:   dm.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, storeError("list recent messages", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
