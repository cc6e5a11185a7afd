// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/agora-forum/agora/internal/auth"
)

// UserRepository implements auth.UserRepository with mutex-guarded maps.
type UserRepository struct {
	mu         sync.RWMutex
	byID       map[ulid.ULID]*auth.User
	byUsername map[string]ulid.ULID
	byEmail    map[string]ulid.ULID
}

var _ auth.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates an empty UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:       make(map[ulid.ULID]*auth.User),
		byUsername: make(map[string]ulid.ULID),
		byEmail:    make(map[string]ulid.ULID),
	}
}

// Create stores a copy of user.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUsername[user.Username]; ok {
		return oops.Code("USER_CREATE_FAILED").
			With("field", "username").
			Wrap(auth.ErrDuplicate)
	}
	if _, ok := r.byEmail[user.Email]; ok {
		return oops.Code("USER_CREATE_FAILED").
			With("field", "email").
			Wrap(auth.ErrDuplicate)
	}
	if _, ok := r.byID[user.ID]; ok {
		return oops.Code("USER_CREATE_FAILED").
			With("field", "id").
			Wrap(auth.ErrDuplicate)
	}

	c := *user
	r.byID[c.ID] = &c
	r.byUsername[c.Username] = c.ID
	r.byEmail[c.Email] = c.ID
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(id, "id", id.String())
}

// GetByUsername retrieves a user by exact username.
func (r *UserRepository) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(r.byUsername[username], "username", username)
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(r.byEmail[email], "email", email)
}

// FindByUsernameOrEmail returns the user holding username, else the one holding email.
func (r *UserRepository) FindByUsernameOrEmail(_ context.Context, username, email string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, ok := r.byUsername[username]; ok {
		return r.get(id, "username", username)
	}
	if id, ok := r.byEmail[email]; ok {
		return r.get(id, "email", email)
	}
	return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now()
	return nil
}

// get must be called with r.mu held.
func (r *UserRepository) get(id ulid.ULID, key, value string) (*auth.User, error) {
	u, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With(key, value).Wrap(auth.ErrNotFound)
	}
	c := *u
	return &c, nil
}
