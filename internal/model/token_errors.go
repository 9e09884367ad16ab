package model

import "errors"

var (
	ErrTokenInvalidSignature = errors.New("session token signature is invalid")
	ErrTokenExpired          = errors.New("session token expired")
	ErrTokenMalformed        = errors.New("session token is malformed")
)
