// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/samber/oops"

	"github.com/agora-forum/agora/internal/auth"
)

// SessionRepository implements auth.SessionRepository on a TTL cache keyed
// by token hash.
type SessionRepository struct {
	mu    sync.Mutex
	items *cache.Cache
}

var _ auth.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository creates an empty SessionRepository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{items: newCache()}
}

// Create stores a copy of session until it expires.
func (r *SessionRepository) Create(_ context.Context, session *auth.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *session
	if err := r.items.Add(c.TokenHash, &c, ttlUntil(c.ExpiresAt)); err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "add session").
			Wrap(auth.ErrDuplicate)
	}
	return nil
}

// GetByTokenHash retrieves a live session by token hash.
func (r *SessionRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	v, ok := r.items.Get(tokenHash)
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	c := *v.(*auth.Session)
	return &c, nil
}

// UpdateLastSeen records activity on a session without extending it.
func (r *SessionRepository) UpdateLastSeen(_ context.Context, tokenHash string, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.items.Get(tokenHash)
	if !ok {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	c := *v.(*auth.Session)
	c.LastSeenAt = lastSeen
	r.items.Set(tokenHash, &c, ttlUntil(c.ExpiresAt))
	return nil
}

// Delete removes a session.
func (r *SessionRepository) Delete(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items.Get(tokenHash); !ok {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	r.items.Delete(tokenHash)
	return nil
}

// DeleteExpired evicts expired sessions ahead of the cache's own cleanup.
func (r *SessionRepository) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return purge(r.items), nil
}
