package model

import "github.com/google/uuid"

// AnonymousLabel is the sender label bound to unauthenticated connections.
const AnonymousLabel = "Anonymous"

// Identity is the subject bound to a connection or request.
type Identity struct {
	SubjectID uuid.UUID
	Email     string
	Label     string
	Anonymous bool
}

// NewSubjectIdentity builds an identity for an authenticated user.
func NewSubjectIdentity(subjectID uuid.UUID, email string) Identity {
	return Identity{
		SubjectID: subjectID,
		Email:     email,
		Label:     email,
	}
}

// NewAnonymousIdentity builds the placeholder identity.
func NewAnonymousIdentity() Identity {
	return Identity{
		Label:     AnonymousLabel,
		Anonymous: true,
	}
}

// SenderID returns a pointer to the subject ID, or nil for anonymous identities.
func (i Identity) SenderID() *uuid.UUID {
	if i.Anonymous || i.SubjectID == uuid.Nil {
		return nil
	}
	id := i.SubjectID
	return &id
}
