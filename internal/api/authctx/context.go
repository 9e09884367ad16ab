// Package authctx carries the caller identity on a request context.
package authctx

import (
	"context"

	"github.com/dtroode/gophchat-server/internal/model"
)

type identityKey struct{}

var _ model.ContextManager = (*Manager)(nil)

// Manager stores the identity resolved by the transport's auth layer.
type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) SetIdentityToContext(ctx context.Context, identity model.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func (m *Manager) GetIdentityFromContext(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(model.Identity)
	return identity, ok
}
