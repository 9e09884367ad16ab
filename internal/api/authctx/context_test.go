package authctx

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/gophchat-server/internal/model"
)

func TestManager(t *testing.T) {
	m := NewManager()

	_, ok := m.GetIdentityFromContext(context.Background())
	assert.False(t, ok)

	want := model.NewSubjectIdentity(uuid.New(), "a@b.co")
	ctx := m.SetIdentityToContext(context.Background(), want)
	got, ok := m.GetIdentityFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, want, got)

	ctx = m.SetIdentityToContext(ctx, model.NewAnonymousIdentity())
	got, ok = m.GetIdentityFromContext(ctx)
	require.True(t, ok)
	assert.True(t, got.Anonymous)
}
