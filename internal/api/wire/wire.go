// Package wire holds the realtime event envelope shared by the websocket and
// gRPC transports, and the JSON shape of chat messages.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/dtroode/gophchat-server/internal/model"
)

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrMalformed    = errors.New("malformed message")
)

// Envelope is the frame exchanged on realtime channels.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Message is the client-facing form of a chat message.
type Message struct {
	ID          string    `json:"id"`
	SenderID    *string   `json:"senderId,omitempty"`
	SenderLabel string    `json:"senderLabel"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"createdAt"`
}

func FromModel(m model.ChatMessage) Message {
	out := Message{
		ID:          m.ID,
		SenderLabel: m.SenderLabel,
		Text:        m.Text,
		CreatedAt:   m.CreatedAt.UTC(),
	}
	if m.SenderID != nil {
		out.SenderID = lo.ToPtr(m.SenderID.String())
	}
	return out
}

func FromModels(messages []model.ChatMessage) []Message {
	return lo.Map(messages, func(m model.ChatMessage, _ int) Message {
		return FromModel(m)
	})
}

// Map renders the message with JSON-compatible scalar values.
func (m Message) Map() map[string]any {
	out := map[string]any{
		"id":          m.ID,
		"senderLabel": m.SenderLabel,
		"text":        m.Text,
		"createdAt":   m.CreatedAt.Format(time.RFC3339Nano),
	}
	if m.SenderID != nil {
		out["senderId"] = *m.SenderID
	}
	return out
}

// EnvelopeOf converts an outbound hub event to its wire envelope.
func EnvelopeOf(event model.Event) Envelope {
	if event.Name == model.EventChatHistory {
		return Envelope{Event: event.Name, Data: FromModels(event.History)}
	}
	return Envelope{Event: event.Name, Data: FromModel(event.Message)}
}

// EventMap is EnvelopeOf flattened into maps and slices of any, the shape
// structpb accepts.
func EventMap(event model.Event) map[string]any {
	var data any
	if event.Name == model.EventChatHistory {
		data = lo.Map(event.History, func(m model.ChatMessage, _ int) any {
			return FromModel(m).Map()
		})
	} else {
		data = FromModel(event.Message).Map()
	}
	return map[string]any{
		"event": event.Name,
		"data":  data,
	}
}

// EncodeEvent marshals an outbound event as a JSON text frame.
func EncodeEvent(event model.Event) ([]byte, error) {
	b, err := json.Marshal(EnvelopeOf(event))
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", event.Name, err)
	}
	return b, nil
}

// DecodeFrame parses an inbound text frame. Frames that are not JSON are
// taken as plain message text.
func DecodeFrame(raw []byte) (model.InboundMessage, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return model.InboundMessage{Text: string(raw)}, nil
	}

	switch v := generic.(type) {
	case map[string]any:
		event, _ := v["event"].(string)
		return DecodeEvent(event, v["data"])
	case string:
		return model.InboundMessage{Text: v}, nil
	default:
		return model.InboundMessage{Text: string(raw)}, nil
	}
}

// DecodeEvent normalises an inbound envelope. data is either the message
// text or an object {text, sender}.
func DecodeEvent(event string, data any) (model.InboundMessage, error) {
	if event != model.EventChatMessage {
		return model.InboundMessage{}, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}

	switch d := data.(type) {
	case string:
		return model.InboundMessage{Text: d}, nil
	case map[string]any:
		text, ok := d["text"].(string)
		if !ok {
			return model.InboundMessage{}, fmt.Errorf("%w: text must be a string", ErrMalformed)
		}
		in := model.InboundMessage{Text: text}
		if sender, ok := d["sender"].(string); ok {
			in.SenderLabelOverride = sender
		}
		return in, nil
	default:
		return model.InboundMessage{}, fmt.Errorf("%w: unsupported data %T", ErrMalformed, data)
	}
}
