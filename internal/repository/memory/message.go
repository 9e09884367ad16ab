package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dtroode/gophchat-server/internal/ids"
	"github.com/dtroode/gophchat-server/internal/model"
)

var _ model.MessageStore = (*MessageRepository)(nil)

// MessageRepository keeps the message log in a slice; append order is the
// slice order.
type MessageRepository struct {
	mu       sync.RWMutex
	messages []model.ChatMessage
	ids      *ids.Generator
	now      func() time.Time
}

func NewMessageRepository() *MessageRepository {
	return &MessageRepository{
		ids: ids.NewGenerator(),
		now: time.Now,
	}
}

func (r *MessageRepository) Append(ctx context.Context, message model.ChatMessage) (model.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return model.ChatMessage{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	message.ID, message.CreatedAt = r.ids.Next(r.now().UTC())
	r.messages = append(r.messages, message)

	return message, nil
}

func (r *MessageRepository) ListRecent(ctx context.Context, limit int) ([]model.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		return []model.ChatMessage{}, nil
	}

	start := len(r.messages) - limit
	if start < 0 {
		start = 0
	}

	out := make([]model.ChatMessage, len(r.messages)-start)
	copy(out, r.messages[start:])

	return out, nil
}

// Len reports the number of stored messages.
func (r *MessageRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages)
}
