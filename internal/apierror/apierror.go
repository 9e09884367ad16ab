// Package apierror defines client-facing errors shared by the HTTP, websocket
// and gRPC transports.
package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// Kind classifies an API error.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindAuth             Kind = "auth"
	KindStoreUnavailable Kind = "store_unavailable"
	KindUnavailable      Kind = "unavailable"
	KindInternal         Kind = "internal"
)

// APIError is a terminal error carrying the status it maps to on every transport.
type APIError struct {
	Kind       Kind
	Message    string
	HTTPStatus int
	GRPCCode   codes.Code
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Detail returns the underlying cause text, if any.
func (e *APIError) Detail() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// As extracts an *APIError from err's chain.
func As(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// From returns err as an *APIError, classifying unknown errors as internal.
func From(err error) *APIError {
	if apiErr, ok := As(err); ok {
		return apiErr
	}
	return NewErrInternal(err)
}

func NewErrValidation(message string) *APIError {
	return &APIError{Kind: KindValidation, Message: message, HTTPStatus: http.StatusBadRequest, GRPCCode: codes.InvalidArgument}
}

func NewErrMissingCredentials() *APIError {
	return NewErrValidation("Email and password are required")
}

func NewErrEmailIsTaken(email string) *APIError {
	return &APIError{
		Kind:       KindValidation,
		Message:    "User already exists",
		HTTPStatus: http.StatusBadRequest,
		GRPCCode:   codes.AlreadyExists,
		Err:        fmt.Errorf("email %q is already taken", email),
	}
}

func NewErrUserNotFound() *APIError {
	return &APIError{Kind: KindNotFound, Message: "User not found", HTTPStatus: http.StatusNotFound, GRPCCode: codes.NotFound}
}

func NewErrNotFound(message string) *APIError {
	return &APIError{Kind: KindNotFound, Message: message, HTTPStatus: http.StatusNotFound, GRPCCode: codes.NotFound}
}

func NewErrInvalidCredentials() *APIError {
	return &APIError{Kind: KindAuth, Message: "Invalid credentials", HTTPStatus: http.StatusBadRequest, GRPCCode: codes.Unauthenticated}
}

func NewErrMissingAuthorizationToken() *APIError {
	return &APIError{Kind: KindAuth, Message: "No token provided", HTTPStatus: http.StatusUnauthorized, GRPCCode: codes.Unauthenticated}
}

func NewErrInvalidAuthorizationToken(cause error) *APIError {
	return &APIError{Kind: KindAuth, Message: "Unauthorized", HTTPStatus: http.StatusUnauthorized, GRPCCode: codes.Unauthenticated, Err: cause}
}

func NewErrStoreUnavailable(cause error) *APIError {
	return &APIError{Kind: KindStoreUnavailable, Message: "Storage is unavailable", HTTPStatus: http.StatusInternalServerError, GRPCCode: codes.Unavailable, Err: cause}
}

func NewErrFeatureDisabled(message string) *APIError {
	return &APIError{Kind: KindUnavailable, Message: message, HTTPStatus: http.StatusServiceUnavailable, GRPCCode: codes.Unavailable}
}

func NewErrInternal(cause error) *APIError {
	return &APIError{Kind: KindInternal, Message: "Internal server error", HTTPStatus: http.StatusInternalServerError, GRPCCode: codes.Internal, Err: cause}
}

// NewErrUnknownSubject reports a well-formed token whose subject no longer exists.
func NewErrUnknownSubject() *APIError {
	return &APIError{Kind: KindAuth, Message: "Invalid token", HTTPStatus: http.StatusUnauthorized, GRPCCode: codes.Unauthenticated}
}
