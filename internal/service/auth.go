package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dtroode/gophchat-server/internal/apierror"
	"github.com/dtroode/gophchat-server/internal/logger"
	"github.com/dtroode/gophchat-server/internal/model"
)

const maxNameLength = 64

// maxPasswordBytes is the bcrypt input limit.
const maxPasswordBytes = 72

// SignupRequest is the payload of a signup call.
type SignupRequest struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
	Name     string
}

// LoginRequest is the payload of a login call.
type LoginRequest struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// Session is the result of a successful signup or login.
type Session struct {
	Token string
	User  model.User
}

// AuthOption configures optional Auth dependencies.
type AuthOption func(*Auth)

// WithAvatarStorage enables avatar uploads capped at maxBytes.
func WithAvatarStorage(storage model.ObjectStorage, maxBytes int64) AuthOption {
	return func(a *Auth) {
		a.avatars = storage
		a.maxAvatarBytes = maxBytes
	}
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) AuthOption {
	return func(a *Auth) {
		a.now = now
	}
}

type Auth struct {
	userStore      model.UserStore
	tokenService   *TokenService
	hasher         *PasswordHasher
	validate       *validator.Validate
	avatars        model.ObjectStorage
	maxAvatarBytes int64
	now            func() time.Time
	logger         *logger.Logger
}

func NewAuth(
	userStore model.UserStore,
	tokenService *TokenService,
	hasher *PasswordHasher,
	logger *logger.Logger,
	opts ...AuthOption,
) *Auth {
	a := &Auth{
		userStore:    userStore,
		tokenService: tokenService,
		hasher:       hasher,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		now:          time.Now,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Auth) Signup(ctx context.Context, req SignupRequest) (Session, error) {
	req.Email = normalizeEmail(req.Email)
	a.logger.Debug("Auth service: starting signup",
		"email", req.Email)

	if err := a.validateCredentials(req); err != nil {
		return Session{}, err
	}
	if len(req.Password) > maxPasswordBytes {
		return Session{}, apierror.NewErrValidation("Password is too long")
	}

	existing, err := a.userStore.GetByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		a.logger.Error("Auth service: failed to get user by email",
			"email", req.Email,
			"error", err.Error())
		return Session{}, fmt.Errorf("failed to get user by email: %w", err)
	}
	if existing.ID != uuid.Nil {
		a.logger.Info("Auth service: user already exists",
			"email", req.Email)
		return Session{}, apierror.NewErrEmailIsTaken(req.Email)
	}

	hash, err := a.hasher.Hash(req.Password)
	if err != nil {
		return Session{}, err
	}

	name, err := normalizeName(req.Name)
	if err != nil {
		return Session{}, err
	}
	if name == "" {
		name = model.DefaultDisplayName
	}

	now := a.now().UTC()
	user, err := a.userStore.Create(ctx, model.User{
		ID:           uuid.New(),
		Email:        req.Email,
		PasswordHash: hash,
		Name:         name,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, model.ErrAlreadyExists) {
		return Session{}, apierror.NewErrEmailIsTaken(req.Email)
	}
	if err != nil {
		a.logger.Error("Auth service: failed to create user",
			"email", req.Email,
			"error", err.Error())
		return Session{}, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := a.tokenService.Issue(user)
	if err != nil {
		return Session{}, err
	}

	a.logger.Info("Auth service: signup completed",
		"email", user.Email,
		"user_id", user.ID)

	return Session{Token: token, User: user}, nil
}

func (a *Auth) Login(ctx context.Context, req LoginRequest) (Session, error) {
	req.Email = normalizeEmail(req.Email)
	a.logger.Debug("Auth service: starting login",
		"email", req.Email)

	if err := a.validateCredentials(req); err != nil {
		return Session{}, err
	}

	user, err := a.userStore.GetByEmail(ctx, req.Email)
	if errors.Is(err, model.ErrNotFound) {
		return Session{}, apierror.NewErrUserNotFound()
	}
	if err != nil {
		a.logger.Error("Auth service: failed to get user by email",
			"email", req.Email,
			"error", err.Error())
		return Session{}, fmt.Errorf("failed to get user by email: %w", err)
	}

	ok, err := a.hasher.Matches(user.PasswordHash, req.Password)
	if err != nil {
		a.logger.Warn("Auth service: stored password hash is unusable",
			"user_id", user.ID,
			"error", err.Error())
	}
	if !ok {
		a.logger.Info("Auth service: invalid credentials",
			"email", req.Email)
		return Session{}, apierror.NewErrInvalidCredentials()
	}

	token, err := a.tokenService.Issue(user)
	if err != nil {
		return Session{}, err
	}

	a.logger.Info("Auth service: login completed",
		"user_id", user.ID)

	return Session{Token: token, User: user}, nil
}

// Me resolves an authenticated identity to its stored user.
func (a *Auth) Me(ctx context.Context, identity model.Identity) (model.User, error) {
	if identity.Anonymous {
		return model.User{}, apierror.NewErrMissingAuthorizationToken()
	}

	user, err := a.userStore.GetByID(ctx, identity.SubjectID)
	if errors.Is(err, model.ErrNotFound) {
		return model.User{}, apierror.NewErrUnknownSubject()
	}
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}

func (a *Auth) GetProfile(ctx context.Context, userID uuid.UUID) (model.User, error) {
	user, err := a.userStore.GetByID(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return model.User{}, apierror.NewErrUserNotFound()
	}
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}

func (a *Auth) UpdateProfile(ctx context.Context, userID uuid.UUID, update model.ProfileUpdate) (model.User, error) {
	if update.Name != nil {
		name, err := normalizeName(*update.Name)
		if err != nil {
			return model.User{}, err
		}
		if name == "" {
			name = model.DefaultDisplayName
		}
		update.Name = &name
	}
	if update.Avatar != nil {
		avatar := strings.TrimSpace(*update.Avatar)
		update.Avatar = &avatar
	}

	user, err := a.userStore.UpdateProfile(ctx, userID, update)
	if errors.Is(err, model.ErrNotFound) {
		return model.User{}, apierror.NewErrUserNotFound()
	}
	if err != nil {
		a.logger.Error("Auth service: failed to update profile",
			"user_id", userID,
			"error", err.Error())
		return model.User{}, fmt.Errorf("failed to update profile: %w", err)
	}

	a.logger.Info("Auth service: profile updated",
		"user_id", userID)
	return user, nil
}

// UploadAvatar stores an image in object storage and points the profile's
// avatar at it.
func (a *Auth) UploadAvatar(ctx context.Context, userID uuid.UUID, body io.Reader) (model.User, error) {
	if a.avatars == nil {
		return model.User{}, apierror.NewErrFeatureDisabled("Avatar storage is disabled")
	}

	data, err := io.ReadAll(io.LimitReader(body, a.maxAvatarBytes+1))
	if err != nil {
		return model.User{}, fmt.Errorf("failed to read avatar: %w", err)
	}
	if len(data) == 0 {
		return model.User{}, apierror.NewErrValidation("Avatar image is required")
	}
	if int64(len(data)) > a.maxAvatarBytes {
		return model.User{}, apierror.NewErrValidation("Avatar image is too large")
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return model.User{}, apierror.NewErrValidation("Avatar must be an image")
	}

	if _, err := a.GetProfile(ctx, userID); err != nil {
		return model.User{}, err
	}

	key := avatarKey(userID)
	if err := a.avatars.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), mime.String()); err != nil {
		a.logger.Error("Auth service: failed to upload avatar",
			"user_id", userID,
			"error", err.Error())
		return model.User{}, fmt.Errorf("failed to upload avatar: %w", err)
	}

	avatar := "/users/" + userID.String() + "/avatar"
	return a.UpdateProfile(ctx, userID, model.ProfileUpdate{Avatar: &avatar})
}

// Avatar returns the stored avatar image and its content type.
func (a *Auth) Avatar(ctx context.Context, userID uuid.UUID) (io.ReadCloser, string, error) {
	if a.avatars == nil {
		return nil, "", apierror.NewErrFeatureDisabled("Avatar storage is disabled")
	}

	rc, contentType, err := a.avatars.Download(ctx, avatarKey(userID))
	if errors.Is(err, model.ErrNotFound) {
		return nil, "", apierror.NewErrNotFound("Avatar not found")
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to download avatar: %w", err)
	}
	return rc, contentType, nil
}

func (a *Auth) validateCredentials(req any) error {
	err := a.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "required" {
				return apierror.NewErrMissingCredentials()
			}
		}
		return apierror.NewErrValidation("Invalid email")
	}
	return fmt.Errorf("failed to validate request: %w", err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", apierror.NewErrValidation("Name is too long")
	}
	return name, nil
}

func avatarKey(userID uuid.UUID) string {
	return "avatars/" + userID.String()
}
