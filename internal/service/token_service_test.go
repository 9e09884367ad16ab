package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	servermocks "github.com/dtroode/gophchat-server/internal/mocks"
	"github.com/dtroode/gophchat-server/internal/model"
	"github.com/dtroode/gophchat-server/internal/testutil"
	"github.com/dtroode/gophchat-server/internal/token"
)

func TestTokenService_Authenticate(t *testing.T) {
	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	now := issued
	manager := token.NewJWT("secret", token.WithClock(func() time.Time { return now }))
	svc := NewTokenService(manager, testutil.MakeNoopLogger())

	user := model.User{ID: uuid.New(), Email: "a@b.co"}
	tok, err := svc.Issue(user)
	require.NoError(t, err)

	identity, err := svc.Authenticate(tok)
	require.NoError(t, err)
	assert.Equal(t, user.ID, identity.SubjectID)
	assert.Equal(t, "a@b.co", identity.Label)
	assert.False(t, identity.Anonymous)

	now = issued.Add(model.SessionTokenTTL)
	_, err = svc.Authenticate(tok)
	requireAPIError(t, err, 401, "Unauthorized")
	assert.ErrorIs(t, err, model.ErrTokenExpired)

	_, err = svc.Authenticate("   ")
	requireAPIError(t, err, 401, "No token provided")

	_, err = svc.Authenticate("garbage")
	requireAPIError(t, err, 401, "Unauthorized")
}

func TestTokenService_IssueError(t *testing.T) {
	manager := servermocks.NewTokenManager(t)
	user := model.User{ID: uuid.New(), Email: "a@b.co"}
	manager.On("Issue", user.ID, user.Email).Return("", assert.AnError)

	_, err := NewTokenService(manager, testutil.MakeNoopLogger()).Issue(user)
	assert.ErrorIs(t, err, assert.AnError)
}
