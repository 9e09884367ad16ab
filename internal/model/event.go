package model

// Event names exchanged over realtime channels.
const (
	EventChatHistory = "chat_history"
	EventChatMessage = "chat message"
)

// Event is an outbound realtime event. Exactly one of History or Message is
// meaningful depending on Name.
type Event struct {
	Name    string
	History []ChatMessage
	Message ChatMessage
}

// NewHistoryEvent wraps a bounded history replay.
func NewHistoryEvent(history []ChatMessage) Event {
	if history == nil {
		history = []ChatMessage{}
	}
	return Event{Name: EventChatHistory, History: history}
}

// NewMessageEvent wraps a single persisted message broadcast.
func NewMessageEvent(message ChatMessage) Event {
	return Event{Name: EventChatMessage, Message: message}
}
