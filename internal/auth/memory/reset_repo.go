// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package memory

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/patrickmn/go-cache"
	"github.com/samber/oops"

	"github.com/agora-forum/agora/internal/auth"
)

// PasswordResetRepository implements auth.PasswordResetRepository on a TTL
// cache keyed by user ID.
type PasswordResetRepository struct {
	mu    sync.Mutex
	items *cache.Cache
}

var _ auth.PasswordResetRepository = (*PasswordResetRepository)(nil)

// NewPasswordResetRepository creates an empty PasswordResetRepository.
func NewPasswordResetRepository() *PasswordResetRepository {
	return &PasswordResetRepository{items: newCache()}
}

// Create stores reset, replacing any reset pending for the same user.
func (r *PasswordResetRepository) Create(_ context.Context, reset *auth.PasswordReset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *reset
	r.items.Set(c.UserID.String(), &c, ttlUntil(c.ExpiresAt))
	return nil
}

// GetByUser retrieves the pending reset for a user.
func (r *PasswordResetRepository) GetByUser(_ context.Context, userID ulid.ULID) (*auth.PasswordReset, error) {
	v, ok := r.items.Get(userID.String())
	if !ok {
		return nil, oops.Code("RESET_NOT_FOUND").
			With("user_id", userID.String()).
			Wrap(auth.ErrNotFound)
	}
	c := *v.(*auth.PasswordReset)
	return &c, nil
}

// Claim deletes the user's reset if it still carries tokenHash.
func (r *PasswordResetRepository) Claim(_ context.Context, userID ulid.ULID, tokenHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := userID.String()
	v, ok := r.items.Get(key)
	if !ok || v.(*auth.PasswordReset).TokenHash != tokenHash {
		return false, nil
	}
	r.items.Delete(key)
	return true, nil
}

// DeleteByUser removes any reset pending for a user.
func (r *PasswordResetRepository) DeleteByUser(_ context.Context, userID ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items.Delete(userID.String())
	return nil
}

// DeleteExpired evicts expired resets ahead of the cache's own cleanup.
func (r *PasswordResetRepository) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return purge(r.items), nil
}
