// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/agora-forum/agora/internal/auth"
)

// SessionStore implements auth.SessionRepository on Redis. Each session is
// a JSON value under <prefix>session:<token hash>.
type SessionStore struct {
	client goredis.Cmdable
	prefix string
}

// NewSessionStore creates a SessionStore. An empty prefix selects DefaultPrefix.
func NewSessionStore(client goredis.Cmdable, prefix string) *SessionStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &SessionStore{client: client, prefix: prefix}
}

func (s *SessionStore) key(tokenHash string) string {
	return s.prefix + "session:" + tokenHash
}

// Create stores a new session that Redis expires at session.ExpiresAt.
func (s *SessionStore) Create(ctx context.Context, session *auth.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").With("operation", "encode session").Wrap(err)
	}

	ok, err := s.client.SetNX(ctx, s.key(session.TokenHash), payload, ttlUntil(session.ExpiresAt)).Result()
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "set session").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}
	if !ok {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "set session").
			Wrap(auth.ErrDuplicate)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (s *SessionStore) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	payload, err := s.client.Get(ctx, s.key(tokenHash)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session").
			Wrap(err)
	}

	var session auth.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, oops.Code("SESSION_CORRUPT").
			With("operation", "decode session").
			Wrap(err)
	}
	return &session, nil
}

// UpdateLastSeen rewrites the session keeping its remaining TTL.
func (s *SessionStore) UpdateLastSeen(ctx context.Context, tokenHash string, lastSeen time.Time) error {
	session, err := s.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		return err
	}
	session.LastSeenAt = lastSeen

	payload, err := json.Marshal(session)
	if err != nil {
		return oops.Code("SESSION_UPDATE_LAST_SEEN_FAILED").With("operation", "encode session").Wrap(err)
	}

	err = s.client.SetArgs(ctx, s.key(tokenHash), payload, goredis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, goredis.Nil) {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return oops.Code("SESSION_UPDATE_LAST_SEEN_FAILED").
			With("operation", "set session").
			Wrap(err)
	}
	return nil
}

// Delete removes a session.
func (s *SessionStore) Delete(ctx context.Context, tokenHash string) error {
	n, err := s.client.Del(ctx, s.key(tokenHash)).Result()
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	if n == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteExpired is a no-op; Redis expires sessions through key TTLs.
func (s *SessionStore) DeleteExpired(context.Context) (int64, error) {
	return 0, nil
}

var _ auth.SessionRepository = (*SessionStore)(nil)
