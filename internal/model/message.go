package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// HistoryLimit is the number of most recent messages replayed to a newly
// registered connection.
const HistoryLimit = 200

// MessageStore is an append-only log of chat messages.
type MessageStore interface {
	// Append assigns ID and CreatedAt, stores the message and returns the
	// canonical record. CreatedAt never decreases in append order.
	Append(ctx context.Context, message ChatMessage) (ChatMessage, error)
	// ListRecent returns up to limit most recent messages in ascending order.
	ListRecent(ctx context.Context, limit int) ([]ChatMessage, error)
}

// ChatMessage is a persisted chat message.
type ChatMessage struct {
	ID          string
	SenderID    *uuid.UUID
	SenderLabel string
	Text        string
	CreatedAt   time.Time
}

// InboundMessage is a client submission after normalisation at the transport
// boundary.
type InboundMessage struct {
	Text                string
	SenderLabelOverride string
}
