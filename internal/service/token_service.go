package service

import (
	"fmt"
	"strings"

	"github.com/dtroode/gophchat-server/internal/apierror"
	"github.com/dtroode/gophchat-server/internal/logger"
	"github.com/dtroode/gophchat-server/internal/model"
)

// TokenService issues session tokens and turns presented tokens into identities.
type TokenService struct {
	manager model.TokenManager
	logger  *logger.Logger
}

func NewTokenService(manager model.TokenManager, logger *logger.Logger) *TokenService {
	return &TokenService{manager: manager, logger: logger}
}

func (s *TokenService) Issue(user model.User) (string, error) {
	token, err := s.manager.Issue(user.ID, user.Email)
	if err != nil {
		return "", fmt.Errorf("issue session token: %w", err)
	}
	return token, nil
}

// Authenticate verifies token and returns the subject identity. Failures are
// *apierror.APIError values of kind auth.
func (s *TokenService) Authenticate(token string) (model.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return model.Identity{}, apierror.NewErrMissingAuthorizationToken()
	}

	claims, err := s.manager.Verify(token)
	if err != nil {
		s.logger.Debug("Token service: token rejected",
			"error", err.Error())
		return model.Identity{}, apierror.NewErrInvalidAuthorizationToken(err)
	}

	return model.NewSubjectIdentity(claims.SubjectID, claims.Email), nil
}
