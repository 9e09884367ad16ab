package router

import (
	"context"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dtroode/gophchat-server/internal/api/grpc/handler"
	"github.com/dtroode/gophchat-server/internal/api/grpc/middleware"
	"github.com/dtroode/gophchat-server/internal/hub"
	"github.com/dtroode/gophchat-server/internal/logger"
	"github.com/dtroode/gophchat-server/internal/metrics"
	"github.com/dtroode/gophchat-server/internal/model"
)

// Router builds the gRPC server exposing the chat stream and the standard
// health service.
type Router struct {
	resolver       middleware.Resolver
	hub            *hub.Hub
	contextManager model.ContextManager
	opts           handler.ChatOptions
	logger         *logger.Logger
	metrics        *metrics.Metrics
	health         *health.Server
}

// New creates new gRPC Router instance.
func New(
	resolver middleware.Resolver,
	h *hub.Hub,
	contextManager model.ContextManager,
	opts handler.ChatOptions,
	logger *logger.Logger,
	m *metrics.Metrics,
) *Router {
	return &Router{
		resolver:       resolver,
		hub:            h,
		contextManager: contextManager,
		opts:           opts,
		logger:         logger,
		metrics:        m,
		health:         health.NewServer(),
	}
}

func authSkip(_ context.Context, c interceptors.CallMeta) bool {
	return !strings.HasPrefix(c.FullMethod(), "/"+healthpb.Health_ServiceDesc.ServiceName+"/")
}

// Register registers all gRPC services and middleware and returns the
// configured server.
func (r *Router) Register() *grpc.Server {
	logging := middleware.NewLogging(r.logger)
	authenticate := middleware.NewAuthenticate(r.resolver, r.contextManager, r.logger)

	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logging.HandleGRPC,
			selector.UnaryServerInterceptor(
				auth.UnaryServerInterceptor(authenticate.AuthFunc),
				selector.MatchFunc(authSkip),
			),
		),
		grpc.ChainStreamInterceptor(
			logging.HandleStream,
			selector.StreamServerInterceptor(
				auth.StreamServerInterceptor(authenticate.AuthFunc),
				selector.MatchFunc(authSkip),
			),
		),
	)
	r.registerChatRoutes(s)
	r.registerHealthRoutes(s)

	return s
}

// Shutdown flips every health status to NOT_SERVING so probes drain
// before the listener closes.
func (r *Router) Shutdown() {
	r.health.Shutdown()
}

func (r *Router) registerChatRoutes(server *grpc.Server) {
	chatHandler := handler.NewChat(r.hub, r.contextManager, r.opts, r.logger, r.metrics)
	handler.RegisterChatServer(server, chatHandler)
}

func (r *Router) registerHealthRoutes(server *grpc.Server) {
	r.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	r.health.SetServingStatus(handler.ChatServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, r.health)
}
