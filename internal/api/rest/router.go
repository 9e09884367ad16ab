// Package rest exposes the JSON HTTP API: accounts, profiles, message
// history, probes and metrics. The websocket endpoint is mounted here too.
package rest

import (
	"net/http"
	"net/netip"

	"github.com/dtroode/gophchat-server/internal/api/respond"
	"github.com/dtroode/gophchat-server/internal/health"
	"github.com/dtroode/gophchat-server/internal/hub"
	"github.com/dtroode/gophchat-server/internal/logger"
	"github.com/dtroode/gophchat-server/internal/metrics"
	"github.com/dtroode/gophchat-server/internal/model"
	"github.com/dtroode/gophchat-server/internal/service"
)

type Options struct {
	MaxBodyBytes     int64
	AuthRequestsPerS float64
	AuthBurst        int
	TrustedProxies   []netip.Prefix
}

// Handler serves the REST endpoints.
type Handler struct {
	auth           *service.Auth
	tokens         *service.TokenService
	hub            *hub.Hub
	health         *health.Checker
	contextManager model.ContextManager
	errors         *respond.Errors
	metrics        *metrics.Metrics
	opts           Options
	logger         *logger.Logger
}

func NewHandler(
	auth *service.Auth,
	tokens *service.TokenService,
	h *hub.Hub,
	checker *health.Checker,
	contextManager model.ContextManager,
	errs *respond.Errors,
	m *metrics.Metrics,
	opts Options,
	log *logger.Logger,
) *Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	return &Handler{
		auth:           auth,
		tokens:         tokens,
		hub:            h,
		health:         checker,
		contextManager: contextManager,
		errors:         errs,
		metrics:        m,
		opts:           opts,
		logger:         log,
	}
}

// Router builds the request multiplexer. ws may be nil.
func (h *Handler) Router(ws http.Handler) http.Handler {
	mux := http.NewServeMux()

	handle := func(pattern, route string, next http.Handler) {
		mux.Handle(pattern, Instrument(h.metrics, route, next))
	}
	jsonBody := func(fn http.HandlerFunc) http.Handler {
		return MaxBodyBytes(h.opts.MaxBodyBytes, fn)
	}
	authLimited := func(next http.Handler) http.Handler {
		if h.opts.AuthBurst <= 0 {
			return next
		}
		return RateLimit(h.opts.AuthRequestsPerS, h.opts.AuthBurst, h.opts.TrustedProxies, next)
	}

	handle("POST /signup", "/signup", authLimited(jsonBody(h.signup)))
	handle("POST /login", "/login", authLimited(jsonBody(h.login)))
	handle("GET /me", "/me", h.RequireAuth(http.HandlerFunc(h.me)))
	handle("GET /profile", "/profile", h.RequireAuth(http.HandlerFunc(h.getProfile)))
	handle("PUT /profile", "/profile", h.RequireAuth(jsonBody(h.updateProfile)))
	handle("PUT /profile/avatar", "/profile/avatar", h.RequireAuth(http.HandlerFunc(h.uploadAvatar)))
	handle("GET /users/{id}/avatar", "/users/{id}/avatar", http.HandlerFunc(h.avatar))
	handle("GET /messages", "/messages", http.HandlerFunc(h.messages))
	handle("GET /healthz", "/healthz", http.HandlerFunc(h.healthz))
	handle("GET /readyz", "/readyz", http.HandlerFunc(h.readyz))
	mux.Handle("GET /metrics", h.metrics.Handler())
	if ws != nil {
		mux.Handle("GET /ws", ws)
	}

	return Logging(h.logger)(mux)
}
