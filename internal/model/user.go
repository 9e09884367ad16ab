package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultDisplayName is assigned to users who sign up without a name.
const DefaultDisplayName = "Anonymous"

// UserStore defines persistence operations for users.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	Create(ctx context.Context, user User) (User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) (User, error)
}

// User represents a stored user with its credential hash.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Name         string
	Avatar       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProfileUpdate carries optional profile changes. Nil fields are left untouched.
type ProfileUpdate struct {
	Name   *string
	Avatar *string
}
