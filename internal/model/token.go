package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionTokenTTL is the validity window of issued session tokens.
const SessionTokenTTL = 7 * 24 * time.Hour

// TokenManager issues and verifies signed session tokens.
type TokenManager interface {
	Issue(subjectID uuid.UUID, email string) (string, error)
	Verify(token string) (SessionClaims, error)
}

// SessionClaims are the verified contents of a session token.
type SessionClaims struct {
	SubjectID uuid.UUID
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
