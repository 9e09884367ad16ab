package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/dtroode/gophchat-server/internal/api/wire"
	"github.com/dtroode/gophchat-server/internal/hub"
	"github.com/dtroode/gophchat-server/internal/logger"
	"github.com/dtroode/gophchat-server/internal/metrics"
	"github.com/dtroode/gophchat-server/internal/model"
)

// client is one websocket connection. The read pump submits inbound frames to
// the hub; the write pump drains the mailbox.
type client struct {
	*hub.Mailbox
	conn     *websocket.Conn
	hub      *hub.Hub
	identity model.Identity
	limiter  *rate.Limiter
	opts     Options
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func newClient(conn *websocket.Conn, h *hub.Hub, identity model.Identity, opts Options, log *logger.Logger, m *metrics.Metrics) *client {
	id := uuid.NewString()
	conn.SetReadLimit(opts.MaxFrameBytes)

	return &client{
		Mailbox:  hub.NewMailbox(id, opts.SendBuffer, nil),
		conn:     conn,
		hub:      h,
		identity: identity,
		limiter:  rate.NewLimiter(rate.Limit(opts.MessagesPerSecond), opts.MessageBurst),
		opts:     opts,
		logger:   log.With("connection_id", id),
		metrics:  m,
	}
}

// run starts both pumps and marks the mailbox finished once they exit.
func (c *client) run() {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.writePump()
	}()
	go func() {
		defer wg.Done()
		c.readPump()
	}()
	go func() {
		wg.Wait()
		c.Finish()
	}()
}

func (c *client) readPump() {
	defer func() {
		c.hub.Deregister(c)
		c.Close()
	}()

	c.setupReadDeadline()
	ctx := context.Background()

	for {
		msgType, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		if !c.limiter.Allow() {
			c.metrics.MessageRejected(metrics.RejectRateLimited)
			c.logger.Debug("Websocket: rate limit exceeded, discarding message")
			continue
		}

		in, err := wire.DecodeFrame(raw)
		if err != nil {
			c.metrics.MessageRejected(metrics.RejectMalformed)
			c.logger.Debug("Websocket: discarding malformed frame",
				"error", err.Error())
			continue
		}

		if _, err := c.hub.Submit(ctx, c, in); err != nil {
			c.logger.Debug("Websocket: submission dropped",
				"error", err.Error())
		}
	}
}

func (c *client) setupReadDeadline() {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})
}

func (c *client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.metrics.MessageRejected(metrics.RejectTooLarge)
		c.logger.Info("Websocket: frame exceeded maximum size",
			"limit", c.opts.MaxFrameBytes)
	case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		c.logger.Info("Websocket: unexpected close",
			"error", err.Error())
	default:
		c.logger.Debug("Websocket: connection closed",
			"error", err.Error())
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case event := <-c.Events():
			if !c.writeEvent(event) {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.Closed():
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}

func (c *client) writeEvent(event model.Event) bool {
	payload, err := wire.EncodeEvent(event)
	if err != nil {
		c.logger.Error("Websocket: failed to encode event",
			"error", err.Error())
		return true
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.logger.Debug("Websocket: write failed",
			"error", err.Error())
		return false
	}
	return true
}
