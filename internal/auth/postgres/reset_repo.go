// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/agora-forum/agora/internal/auth"
)

// PasswordResetRepository implements auth.PasswordResetRepository using
// PostgreSQL. The user_id primary key holds at most one reset per user.
type PasswordResetRepository struct {
	db DB
}

var _ auth.PasswordResetRepository = (*PasswordResetRepository)(nil)

// NewPasswordResetRepository creates a new PasswordResetRepository.
func NewPasswordResetRepository(db DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// Create stores reset, replacing any reset pending for the same user.
func (r *PasswordResetRepository) Create(ctx context.Context, reset *auth.PasswordReset) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO password_resets (user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET token_hash = EXCLUDED.token_hash,
		    expires_at = EXCLUDED.expires_at,
		    created_at = EXCLUDED.created_at
	`, reset.UserID.String(), reset.TokenHash, reset.ExpiresAt, reset.CreatedAt)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "upsert password_reset").
			With("user_id", reset.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByUser retrieves the pending reset for a user.
func (r *PasswordResetRepository) GetByUser(ctx context.Context, userID ulid.ULID) (*auth.PasswordReset, error) {
	row := r.db.QueryRow(ctx, `
		SELECT token_hash, expires_at, created_at
		FROM password_resets
		WHERE user_id = $1
	`, userID.String())

	reset := auth.PasswordReset{UserID: userID}
	err := row.Scan(&reset.TokenHash, &reset.ExpiresAt, &reset.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").
			With("user_id", userID.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_GET_FAILED").
			With("operation", "get password_reset by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	reset.ExpiresAt = utc(reset.ExpiresAt)
	reset.CreatedAt = utc(reset.CreatedAt)
	return &reset, nil
}

// Claim deletes the user's reset only if it still carries tokenHash.
func (r *PasswordResetRepository) Claim(ctx context.Context, userID ulid.ULID, tokenHash string) (bool, error) {
	result, err := r.db.Exec(ctx, `
		DELETE FROM password_resets WHERE user_id = $1 AND token_hash = $2
	`, userID.String(), tokenHash)
	if err != nil {
		return false, oops.Code("RESET_CLAIM_FAILED").
			With("operation", "claim password_reset").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return result.RowsAffected() == 1, nil
}

// DeleteByUser removes any reset pending for a user.
func (r *PasswordResetRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM password_resets WHERE user_id = $1`, userID.String())
	if err != nil {
		return oops.Code("RESET_DELETE_FAILED").
			With("operation", "delete password_reset by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes all expired resets.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM password_resets WHERE expires_at < NOW()`)
	if err != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired password_resets").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}
