// Package gateway binds each realtime connection to exactly one identity.
package gateway

import (
	"context"
	"net/http"
	"strings"

	"google.golang.org/grpc/metadata"

	"github.com/dtroode/gophchat-server/internal/apierror"
	"github.com/dtroode/gophchat-server/internal/logger"
	"github.com/dtroode/gophchat-server/internal/model"
)

// Policy decides what happens to connections without a valid token.
type Policy string

const (
	// PolicyOptional admits them as anonymous.
	PolicyOptional Policy = "optional"
	// PolicyStrict refuses them.
	PolicyStrict Policy = "strict"
)

const (
	authorizationHeader = "authorization"
	bearerPrefix        = "bearer "
	tokenQueryParam     = "token"
)

// Authenticator turns a presented token into a subject identity.
type Authenticator interface {
	Authenticate(token string) (model.Identity, error)
}

type Gateway struct {
	auth   Authenticator
	policy Policy
	logger *logger.Logger
}

func New(auth Authenticator, policy Policy, logger *logger.Logger) *Gateway {
	if policy != PolicyStrict {
		policy = PolicyOptional
	}
	return &Gateway{auth: auth, policy: policy, logger: logger}
}

func (g *Gateway) Policy() Policy {
	return g.policy
}

// Resolve applies the policy to a raw token. Under the strict policy a
// missing or invalid token yields an auth *apierror.APIError.
func (g *Gateway) Resolve(token string) (model.Identity, error) {
	if token == "" {
		if g.policy == PolicyStrict {
			return model.Identity{}, apierror.NewErrMissingAuthorizationToken()
		}
		return model.NewAnonymousIdentity(), nil
	}

	identity, err := g.auth.Authenticate(token)
	if err != nil {
		if g.policy == PolicyStrict {
			return model.Identity{}, err
		}
		g.logger.Debug("Gateway: invalid token, continuing anonymously",
			"error", err.Error())
		return model.NewAnonymousIdentity(), nil
	}

	return identity, nil
}

// ResolveRequest authenticates a websocket handshake or HTTP request.
func (g *Gateway) ResolveRequest(r *http.Request) (model.Identity, error) {
	return g.Resolve(TokenFromRequest(r))
}

// ResolveContext authenticates a gRPC call from its incoming metadata.
func (g *Gateway) ResolveContext(ctx context.Context) (model.Identity, error) {
	return g.Resolve(TokenFromMetadata(ctx))
}

// TokenFromRequest reads the bearer token from the Authorization header,
// falling back to the token query parameter.
func TokenFromRequest(r *http.Request) string {
	if token := BearerToken(r.Header.Get(authorizationHeader)); token != "" {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get(tokenQueryParam))
}

// TokenFromMetadata reads the bearer token from gRPC metadata.
func TokenFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, v := range md.Get(authorizationHeader) {
		if token := BearerToken(v); token != "" {
			return token
		}
	}
	return ""
}

// BearerToken extracts the token from an "Authorization: Bearer" value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}
