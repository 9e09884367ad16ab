package hub

import (
	"sync"

	"github.com/dtroode/gophchat-server/internal/model"
)

var _ Conn = (*Mailbox)(nil)

// Mailbox is a bounded outbound queue that transports embed to satisfy Conn.
// The transport drains Events from its writer goroutine and calls Finish when
// all of its goroutines have exited.
type Mailbox struct {
	id      string
	events  chan model.Event
	onClose func()

	closeOnce  sync.Once
	closed     chan struct{}
	finishOnce sync.Once
	done       chan struct{}
}

// NewMailbox creates a mailbox holding up to size events. onClose runs once,
// on the first Close, and must not block.
func NewMailbox(id string, size int, onClose func()) *Mailbox {
	if size <= 0 {
		size = 1
	}
	return &Mailbox{
		id:      id,
		events:  make(chan model.Event, size),
		onClose: onClose,
		closed:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (m *Mailbox) ID() string {
	return m.id
}

func (m *Mailbox) Enqueue(event model.Event) bool {
	select {
	case <-m.closed:
		return false
	default:
	}

	select {
	case m.events <- event:
		return true
	default:
		return false
	}
}

// Events yields queued events in enqueue order.
func (m *Mailbox) Events() <-chan model.Event {
	return m.events
}

// Closed is closed after the first Close call.
func (m *Mailbox) Closed() <-chan struct{} {
	return m.closed
}

func (m *Mailbox) Close() {
	m.closeOnce.Do(func() {
		close(m.closed)
		if m.onClose != nil {
			m.onClose()
		}
	})
}

func (m *Mailbox) Done() <-chan struct{} {
	return m.done
}

// Finish marks the connection's goroutines as exited.
func (m *Mailbox) Finish() {
	m.finishOnce.Do(func() {
		close(m.done)
	})
}
