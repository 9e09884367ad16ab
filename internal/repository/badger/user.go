package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/dtroode/gophchat-server/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

const (
	userIDPrefix    = "user:id:"
	userEmailPrefix = "user:email:"
)

type UserRepository struct {
	db *Connection
}

func NewUserRepository(db *Connection) *UserRepository {
	return &UserRepository{db: db}
}

type diskUser struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Name         string    `json:"name"`
	Avatar       string    `json:"avatar"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (model.User, error) {
	var user model.User
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userEmailPrefix + strings.ToLower(email)))
		if err != nil {
			return err
		}
		rawID, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		id, err := uuid.FromBytes(rawID)
		if err != nil {
			return err
		}
		user, err = getUser(txn, id)
		return err
	})
	if err != nil {
		return model.User{}, storeError("get user by email", err)
	}

	return user, nil
}

func (r *UserRepository) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	var user model.User
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		user, err = getUser(txn, id)
		return err
	})
	if err != nil {
		return model.User{}, storeError("get user by id", err)
	}

	return user, nil
}

func (r *UserRepository) Create(_ context.Context, user model.User) (model.User, error) {
	user.Email = strings.ToLower(user.Email)
	emailKey := []byte(userEmailPrefix + user.Email)

	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey); err == nil {
			return model.ErrAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := putUser(txn, user); err != nil {
			return err
		}
		return txn.Set(emailKey, user.ID[:])
	})
	if err != nil {
		return model.User{}, storeError("create user", err)
	}

	return user, nil
}

func (r *UserRepository) UpdateProfile(_ context.Context, id uuid.UUID, update model.ProfileUpdate) (model.User, error) {
	var user model.User
	err := r.db.Update(func(txn *badger.Txn) error {
		var err error
		user, err = getUser(txn, id)
		if err != nil {
			return err
		}
		if update.Name != nil {
			user.Name = *update.Name
		}
		if update.Avatar != nil {
			user.Avatar = *update.Avatar
		}
		user.UpdatedAt = time.Now().UTC()
		return putUser(txn, user)
	})
	if err != nil {
		return model.User{}, storeError("update profile", err)
	}

	return user, nil
}

func getUser(txn *badger.Txn, id uuid.UUID) (model.User, error) {
	item, err := txn.Get([]byte(userIDPrefix + id.String()))
	if err != nil {
		return model.User{}, err
	}

	var du diskUser
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &du)
	})
	if err != nil {
		return model.User{}, fmt.Errorf("decode user: %w", err)
	}

	return model.User{
		ID:           du.ID,
		Email:        du.Email,
		PasswordHash: du.PasswordHash,
		Name:         du.Name,
		Avatar:       du.Avatar,
		CreatedAt:    du.CreatedAt,
		UpdatedAt:    du.UpdatedAt,
	}, nil
}

func putUser(txn *badger.Txn, user model.User) error {
	data, err := json.Marshal(diskUser{
		ID:           user.ID,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Name:         user.Name,
		Avatar:       user.Avatar,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	return txn.Set([]byte(userIDPrefix+user.ID.String()), data)
}

// storeError maps badger failures onto model sentinels.
func storeError(op string, err error) error {
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return model.ErrNotFound
	case errors.Is(err, model.ErrAlreadyExists):
		return model.ErrAlreadyExists
	default:
		return fmt.Errorf("%w: %s: %w", model.ErrStoreUnavailable, op, err)
	}
}
