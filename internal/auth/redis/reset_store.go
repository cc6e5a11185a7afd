// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package redis

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/agora-forum/agora/internal/auth"
)

// Hash fields of a stored reset record.
const (
	fieldTokenHash = "token_hash"
	fieldExpiresAt = "expires_at"
	fieldCreatedAt = "created_at"
)

// claimScript deletes the reset only while it still holds the expected hash.
var claimScript = goredis.NewScript(`
if redis.call("HGET", KEYS[1], "token_hash") == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ResetStore implements auth.PasswordResetRepository on Redis. The pending
// reset for a user is a hash under <prefix>reset:<user id>.
type ResetStore struct {
	client goredis.Cmdable
	prefix string
}

// NewResetStore creates a ResetStore. An empty prefix selects DefaultPrefix.
func NewResetStore(client goredis.Cmdable, prefix string) *ResetStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &ResetStore{client: client, prefix: prefix}
}

func (s *ResetStore) key(userID ulid.ULID) string {
	return s.prefix + "reset:" + userID.String()
}

// Create stores reset, replacing any pending reset for the same user.
func (s *ResetStore) Create(ctx context.Context, reset *auth.PasswordReset) error {
	key := s.key(reset.UserID)
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldTokenHash, reset.TokenHash,
			fieldExpiresAt, reset.ExpiresAt.UTC().Format(time.RFC3339Nano),
			fieldCreatedAt, reset.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		pipe.PExpire(ctx, key, ttlUntil(reset.ExpiresAt))
		return nil
	})
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "store password reset").
			With("user_id", reset.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByUser retrieves the pending reset for a user.
func (s *ResetStore) GetByUser(ctx context.Context, userID ulid.ULID) (*auth.PasswordReset, error) {
	fields, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return nil, oops.Code("RESET_GET_FAILED").
			With("operation", "get password reset").
			With("user_id", userID.String()).
			Wrap(err)
	}
	if len(fields) == 0 {
		return nil, oops.Code("RESET_NOT_FOUND").
			With("user_id", userID.String()).
			Wrap(auth.ErrNotFound)
	}

	reset := &auth.PasswordReset{UserID: userID, TokenHash: fields[fieldTokenHash]}
	if reset.ExpiresAt, err = time.Parse(time.RFC3339Nano, fields[fieldExpiresAt]); err != nil {
		return nil, oops.Code("RESET_CORRUPT").With("field", fieldExpiresAt).Wrap(err)
	}
	if reset.CreatedAt, err = time.Parse(time.RFC3339Nano, fields[fieldCreatedAt]); err != nil {
		return nil, oops.Code("RESET_CORRUPT").With("field", fieldCreatedAt).Wrap(err)
	}
	return reset, nil
}

// Claim atomically deletes the user's reset if it still holds tokenHash.
func (s *ResetStore) Claim(ctx context.Context, userID ulid.ULID, tokenHash string) (bool, error) {
	n, err := claimScript.Run(ctx, s.client, []string{s.key(userID)}, tokenHash).Int64()
	if err != nil {
		return false, oops.Code("RESET_CLAIM_FAILED").
			With("operation", "claim password reset").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return n == 1, nil
}

// DeleteByUser removes any pending reset for a user.
func (s *ResetStore) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil && !errors.Is(err, goredis.Nil) {
		return oops.Code("RESET_DELETE_FAILED").
			With("operation", "delete password reset").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired is a no-op; Redis expires resets through key TTLs.
func (s *ResetStore) DeleteExpired(context.Context) (int64, error) {
	return 0, nil
}

var _ auth.PasswordResetRepository = (*ResetStore)(nil)
