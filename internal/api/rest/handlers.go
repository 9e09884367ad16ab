package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/dtroode/gophchat-server/internal/api/respond"
	"github.com/dtroode/gophchat-server/internal/api/wire"
	"github.com/dtroode/gophchat-server/internal/apierror"
	"github.com/dtroode/gophchat-server/internal/model"
	"github.com/dtroode/gophchat-server/internal/service"
)

type userResponse struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

func toUserResponse(u model.User) userResponse {
	return userResponse{
		ID:     u.ID.String(),
		Email:  u.Email,
		Name:   u.Name,
		Avatar: u.Avatar,
	}
}

type sessionResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    userResponse `json:"user"`
}

type meResponse struct {
	Message string       `json:"message"`
	User    userResponse `json:"user"`
}

type profileResponse struct {
	User userResponse `json:"user"`
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	Name   *string `json:"name"`
	Avatar *string `json:"avatar"`
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	session, err := h.auth.Signup(r.Context(), service.SignupRequest{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, sessionResponse{
		Message: "Signup successful",
		Token:   session.Token,
		User:    toUserResponse(session.User),
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	session, err := h.auth.Login(r.Context(), service.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, sessionResponse{
		Message: "Login successful",
		Token:   session.Token,
		User:    toUserResponse(session.User),
	})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	identity, _ := h.contextManager.GetIdentityFromContext(r.Context())
	user, err := h.auth.Me(r.Context(), identity)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, meResponse{
		Message: "Authenticated successfully",
		User:    toUserResponse(user),
	})
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	identity, _ := h.contextManager.GetIdentityFromContext(r.Context())
	user, err := h.auth.GetProfile(r.Context(), identity.SubjectID)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, profileResponse{User: toUserResponse(user)})
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	identity, _ := h.contextManager.GetIdentityFromContext(r.Context())
	user, err := h.auth.UpdateProfile(r.Context(), identity.SubjectID, model.ProfileUpdate{
		Name:   req.Name,
		Avatar: req.Avatar,
	})
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, profileResponse{User: toUserResponse(user)})
}

func (h *Handler) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	identity, _ := h.contextManager.GetIdentityFromContext(r.Context())
	user, err := h.auth.UploadAvatar(r.Context(), identity.SubjectID, r.Body)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, profileResponse{User: toUserResponse(user)})
}

func (h *Handler) avatar(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.errors.Write(w, r, apierror.NewErrNotFound("Avatar not found"))
		return
	}

	body, contentType, err := h.auth.Avatar(r.Context(), userID)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	defer body.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Debug("HTTP: avatar stream interrupted",
			"user_id", userID,
			"error", err.Error())
	}
}

func (h *Handler) messages(w http.ResponseWriter, r *http.Request) {
	history, err := h.hub.History(r.Context())
	if err != nil {
		h.errors.Write(w, r, apierror.NewErrStoreUnavailable(err))
		return
	}
	respond.JSON(w, http.StatusOK, wire.FromModels(history))
}

type healthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, healthResponse{Status: "Server is running!", Connections: h.hub.Count()})
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	report := h.health.Check(r.Context())
	status := http.StatusOK
	if !report.Ready {
		status = http.StatusServiceUnavailable
	}
	respond.JSON(w, status, report)
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apierror.NewErrValidation("Request body is too large")
		case errors.Is(err, io.EOF):
			return apierror.NewErrValidation("Request body is required")
		default:
			return apierror.NewErrValidation("Invalid request body")
		}
	}
	return nil
}

func writeRaw(w http.ResponseWriter, status int, message string) {
	respond.JSON(w, status, respond.ErrorBody{Message: message})
}
