// Package ws serves the chat over websocket connections.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dtroode/gophchat-server/internal/api/respond"
	"github.com/dtroode/gophchat-server/internal/gateway"
	"github.com/dtroode/gophchat-server/internal/hub"
	"github.com/dtroode/gophchat-server/internal/logger"
	"github.com/dtroode/gophchat-server/internal/metrics"
)

type Options struct {
	AllowedOrigins    []string
	MaxFrameBytes     int64
	SendBuffer        int
	MessageBurst      int
	MessagesPerSecond float64
	PingInterval      time.Duration
	PongWait          time.Duration
	WriteWait         time.Duration
}

func DefaultOptions() Options {
	return Options{
		AllowedOrigins:    []string{"*"},
		MaxFrameBytes:     8192,
		SendBuffer:        256,
		MessageBurst:      5,
		MessagesPerSecond: 5,
		PingInterval:      54 * time.Second,
		PongWait:          60 * time.Second,
		WriteWait:         10 * time.Second,
	}
}

type Handler struct {
	gateway  *gateway.Gateway
	hub      *hub.Hub
	upgrader websocket.Upgrader
	errors   *respond.Errors
	opts     Options
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewHandler(gw *gateway.Gateway, h *hub.Hub, errs *respond.Errors, opts Options, log *logger.Logger, m *metrics.Metrics) *Handler {
	origins := newOriginPolicy(opts.AllowedOrigins, log)
	return &Handler{
		gateway: gw,
		hub:     h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
		errors:  errs,
		opts:    opts,
		logger:  log,
		metrics: m,
	}
}

// ServeHTTP authenticates the handshake, upgrades it and registers the
// connection with the hub.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := h.gateway.ResolveRequest(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Info("Websocket: upgrade failed",
			"remote_addr", r.RemoteAddr,
			"error", err.Error())
		return
	}

	c := newClient(conn, h.hub, identity, h.opts, h.logger, h.metrics)
	if err := h.hub.Register(context.WithoutCancel(r.Context()), c, identity); err != nil {
		h.logger.Warn("Websocket: registration refused",
			"error", err.Error())
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server is shutting down"))
		_ = conn.Close()
		return
	}

	c.logger.Info("Websocket: connection opened",
		"remote_addr", r.RemoteAddr,
		"sender", identity.Label,
		"anonymous", identity.Anonymous)
	c.run()
}
