package middleware

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/gophchat-server/internal/apierror"
	"github.com/dtroode/gophchat-server/internal/logger"
	"github.com/dtroode/gophchat-server/internal/model"
)

// Resolver turns incoming call metadata into a sender identity.
type Resolver interface {
	ResolveContext(ctx context.Context) (model.Identity, error)
}

// Authenticate resolves the caller identity and injects it into context.
type Authenticate struct {
	resolver       Resolver
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(resolver Resolver, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{resolver: resolver, contextManager: contextManager, logger: logger}
}

// AuthFunc reads the bearer token from metadata and returns a context
// carrying the resolved identity. Anonymous callers pass unless the
// gateway runs the strict policy.
func (m *Authenticate) AuthFunc(ctx context.Context) (context.Context, error) {
	identity, err := m.resolver.ResolveContext(ctx)
	if err != nil {
		apiErr := apierror.From(err)
		m.logger.Debug("gRPC authentication rejected",
			"error", err.Error())
		return nil, status.Error(codes.Unauthenticated, apiErr.Message)
	}

	return m.contextManager.SetIdentityToContext(ctx, identity), nil
}
