// Package respond writes JSON bodies and API errors for HTTP handlers.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/dtroode/gophchat-server/internal/apierror"
	"github.com/dtroode/gophchat-server/internal/logger"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// Errors renders errors, including the cause only when exposeDetail is set.
type Errors struct {
	exposeDetail bool
	logger       *logger.Logger
}

func NewErrors(exposeDetail bool, logger *logger.Logger) *Errors {
	return &Errors{exposeDetail: exposeDetail, logger: logger}
}

func (e *Errors) Write(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierror.From(err)
	if apiErr.HTTPStatus >= http.StatusInternalServerError {
		e.logger.Error("HTTP: request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err.Error())
	}

	body := ErrorBody{Message: apiErr.Message}
	if e.exposeDetail {
		body.Detail = apiErr.Detail()
	}
	JSON(w, apiErr.HTTPStatus, body)
}
