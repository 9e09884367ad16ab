package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestFrom(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantKind   Kind
		wantStatus int
		wantCode   codes.Code
	}{
		{
			name:       "api error passes through",
			err:        NewErrInvalidCredentials(),
			wantKind:   KindAuth,
			wantStatus: http.StatusBadRequest,
			wantCode:   codes.Unauthenticated,
		},
		{
			name:       "wrapped api error is found",
			err:        fmt.Errorf("login: %w", NewErrUserNotFound()),
			wantKind:   KindNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   codes.NotFound,
		},
		{
			name:       "unknown error becomes internal",
			err:        errors.New("boom"),
			wantKind:   KindInternal,
			wantStatus: http.StatusInternalServerError,
			wantCode:   codes.Internal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := From(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantStatus, got.HTTPStatus)
			assert.Equal(t, tt.wantCode, got.GRPCCode)
		})
	}
}

func TestAPIError_Detail(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewErrStoreUnavailable(cause)

	assert.Equal(t, "connection refused", err.Detail())
	assert.ErrorIs(t, err, cause)
	assert.Empty(t, NewErrUserNotFound().Detail())
}
