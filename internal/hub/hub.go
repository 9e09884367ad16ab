// Package hub implements the chat broadcast hub shared by every realtime
// transport. It owns the connection registry, replays history to joining
// connections and fans persisted messages out in store-append order.
package hub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dtroode/gophchat-server/internal/logger"
	"github.com/dtroode/gophchat-server/internal/metrics"
	"github.com/dtroode/gophchat-server/internal/model"
)

const maxSenderLabelLength = 64

var (
	ErrClosed        = errors.New("hub is shut down")
	ErrNotRegistered = errors.New("connection is not registered")
	ErrEmptyMessage  = errors.New("message text is empty")
)

// Conn is a live client connection as seen by the hub. Enqueue and Close are
// called under the hub's publish lock and must not block.
type Conn interface {
	ID() string
	// Enqueue queues an outbound event, reporting false when the connection
	// cannot accept it.
	Enqueue(event model.Event) bool
	// Close terminates the connection. It must be idempotent.
	Close()
	// Done is closed once the connection's goroutines have exited.
	Done() <-chan struct{}
}

type session struct {
	conn         Conn
	identity     model.Identity
	registeredAt time.Time
}

type Options struct {
	HistoryLimit  int
	MaxTextLength int
	StoreTimeout  time.Duration
}

func DefaultOptions() Options {
	return Options{
		HistoryLimit:  model.HistoryLimit,
		MaxTextLength: 2000,
		StoreTimeout:  5 * time.Second,
	}
}

type Hub struct {
	store   model.MessageStore
	logger  *logger.Logger
	metrics *metrics.Metrics
	opts    Options

	// publishMu orders registration and append+fan-out.
	publishMu sync.Mutex

	mu       sync.RWMutex
	sessions map[string]*session
	closed   bool
}

func New(store model.MessageStore, logger *logger.Logger, m *metrics.Metrics, opts Options) *Hub {
	def := DefaultOptions()
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = def.HistoryLimit
	}
	if opts.MaxTextLength <= 0 {
		opts.MaxTextLength = def.MaxTextLength
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = def.StoreTimeout
	}

	return &Hub{
		store:    store,
		logger:   logger,
		metrics:  m,
		opts:     opts,
		sessions: make(map[string]*session),
	}
}

// Register adds conn to the registry and queues the recent history to it
// alone. A history read failure still registers the connection with an
// empty replay.
func (h *Hub) Register(ctx context.Context, conn Conn, identity model.Identity) error {
	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	if h.isClosed() {
		return ErrClosed
	}

	history, err := h.recent(ctx)
	if err != nil {
		h.metrics.StoreFailure()
		h.logger.Error("Hub: failed to load history",
			"connection_id", conn.ID(),
			"error", err.Error())
		history = nil
	}

	h.mu.Lock()
	if _, exists := h.sessions[conn.ID()]; exists {
		h.mu.Unlock()
		return fmt.Errorf("connection %s is already registered", conn.ID())
	}
	h.sessions[conn.ID()] = &session{
		conn:         conn,
		identity:     identity,
		registeredAt: time.Now(),
	}
	h.mu.Unlock()

	h.metrics.ConnectionOpened(identity.Anonymous)
	h.logger.Info("Hub: connection registered",
		"connection_id", conn.ID(),
		"sender", identity.Label,
		"history", len(history))

	if !h.deliver(conn, model.NewHistoryEvent(history)) {
		h.drop(conn, "history replay rejected")
	}

	return nil
}

// Submit validates and persists an inbound message, then broadcasts the
// stored record to every registered connection, the sender included.
func (h *Hub) Submit(ctx context.Context, conn Conn, in model.InboundMessage) (model.ChatMessage, error) {
	sess, ok := h.lookup(conn.ID())
	if !ok {
		return model.ChatMessage{}, ErrNotRegistered
	}

	text := truncateRunes(strings.TrimSpace(in.Text), h.opts.MaxTextLength)
	if text == "" {
		h.metrics.MessageRejected(metrics.RejectEmpty)
		h.logger.Debug("Hub: dropping empty message",
			"connection_id", conn.ID())
		return model.ChatMessage{}, ErrEmptyMessage
	}

	label := truncateRunes(strings.TrimSpace(in.SenderLabelOverride), maxSenderLabelLength)
	if label == "" {
		label = sess.identity.Label
	}

	msg := model.ChatMessage{
		SenderID:    sess.identity.SenderID(),
		SenderLabel: label,
		Text:        text,
	}

	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	storeCtx, cancel := context.WithTimeout(ctx, h.opts.StoreTimeout)
	saved, err := h.store.Append(storeCtx, msg)
	cancel()
	if err != nil {
		h.metrics.StoreFailure()
		h.logger.Error("Hub: failed to persist message",
			"connection_id", conn.ID(),
			"error", err.Error())
		return model.ChatMessage{}, fmt.Errorf("failed to append message: %w", err)
	}
	h.metrics.MessagePersisted()

	h.broadcast(model.NewMessageEvent(saved))

	return saved, nil
}

// Deregister removes conn from the registry. Calling it more than once, or
// for an unknown connection, is a no-op.
func (h *Hub) Deregister(conn Conn) {
	if h.remove(conn.ID()) {
		h.logger.Info("Hub: connection deregistered",
			"connection_id", conn.ID())
	}
}

// History returns the recent messages in ascending order.
func (h *Hub) History(ctx context.Context) ([]model.ChatMessage, error) {
	history, err := h.recent(ctx)
	if err != nil {
		h.metrics.StoreFailure()
		return nil, fmt.Errorf("failed to list recent messages: %w", err)
	}
	if history == nil {
		history = []model.ChatMessage{}
	}
	return history, nil
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Shutdown closes every registered connection and waits for their
// goroutines to finish or ctx to expire. Later registrations fail.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.publishMu.Lock()
	h.mu.Lock()
	h.closed = true
	conns := make([]Conn, 0, len(h.sessions))
	for id, s := range h.sessions {
		conns = append(conns, s.conn)
		delete(h.sessions, id)
		h.metrics.ConnectionClosed()
	}
	h.mu.Unlock()
	h.publishMu.Unlock()

	h.logger.Info("Hub: shutting down",
		"connections", len(conns))

	for _, c := range conns {
		c.Close()
	}
	for _, c := range conns {
		select {
		case <-c.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (h *Hub) broadcast(event model.Event) {
	for _, conn := range h.snapshot() {
		if !h.deliver(conn, event) {
			h.metrics.BroadcastDropped()
			h.drop(conn, "outbound queue full")
		}
	}
}

// deliver enqueues without blocking. A panicking connection counts as a
// failed delivery.
func (h *Hub) deliver(conn Conn, event model.Event) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Hub: recovered panic while enqueueing",
				"connection_id", conn.ID(),
				"panic", fmt.Sprint(r))
			ok = false
		}
	}()
	return conn.Enqueue(event)
}

func (h *Hub) drop(conn Conn, reason string) {
	if !h.remove(conn.ID()) {
		return
	}
	h.logger.Warn("Hub: disconnecting connection",
		"connection_id", conn.ID(),
		"reason", reason)
	conn.Close()
}

func (h *Hub) remove(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[id]; !ok {
		return false
	}
	delete(h.sessions, id)
	h.metrics.ConnectionClosed()
	return true
}

func (h *Hub) lookup(id string) (*session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[id]
	return s, ok
}

func (h *Hub) snapshot() []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]Conn, 0, len(h.sessions))
	for _, s := range h.sessions {
		conns = append(conns, s.conn)
	}
	return conns
}

func (h *Hub) isClosed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

func (h *Hub) recent(ctx context.Context) ([]model.ChatMessage, error) {
	storeCtx, cancel := context.WithTimeout(ctx, h.opts.StoreTimeout)
	defer cancel()
	return h.store.ListRecent(storeCtx, h.opts.HistoryLimit)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit]))
}
