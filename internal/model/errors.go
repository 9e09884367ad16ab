package model

import "errors"

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a unique key is taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrStoreUnavailable wraps underlying persistence failures.
	ErrStoreUnavailable = errors.New("store unavailable")
)
