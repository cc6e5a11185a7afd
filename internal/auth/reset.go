// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenBytes  = 32        // 32 bytes = 64 hex chars
	ResetTokenExpiry = time.Hour // default expiry
)

// PasswordReset is the pending reset for one user. At most one exists per user.
type PasswordReset struct {
	UserID    ulid.ULID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewPasswordReset creates a validated PasswordReset instance.
func NewPasswordReset(userID ulid.ULID, tokenHash string, expiresAt time.Time) (*PasswordReset, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("RESET_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("RESET_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("RESET_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}
	return &PasswordReset{
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

// IsExpired returns true if the reset token has expired.
func (r *PasswordReset) IsExpired() bool {
	return r.IsExpiredAt(time.Now())
}

// IsExpiredAt returns true if the reset would be expired at t.
func (r *PasswordReset) IsExpiredAt(t time.Time) bool {
	return t.After(r.ExpiresAt)
}

// TTL returns the remaining lifetime, or zero once expired.
func (r *PasswordReset) TTL() time.Duration {
	d := time.Until(r.ExpiresAt)
	if d < 0 {
		return 0
	}
	return d
}

// GenerateResetToken creates a secure random token and its hash.
// The plaintext token goes to the user out of band; only the hash is stored.
func GenerateResetToken() (token, hash string, err error) {
	tokenBytes := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashResetToken(token), nil
}

// HashResetToken computes the SHA256 hash of a token.
func HashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifyResetToken checks if the plaintext token matches the stored hash
// in constant time.
func VerifyResetToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := HashResetToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// ResetLink builds the out-of-band link a user follows to choose a new password.
func ResetLink(publicURL, token string, userID ulid.ULID) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("userId", userID.String())
	return strings.TrimRight(publicURL, "/") + "/change-password?" + q.Encode()
}

// PasswordResetRepository manages password reset persistence.
type PasswordResetRepository interface {
	// Create stores a reset, replacing any existing reset for the same user.
	Create(ctx context.Context, reset *PasswordReset) error

	// GetByUser retrieves the reset for a user.
	// Returns an error wrapping ErrNotFound if there is none.
	GetByUser(ctx context.Context, userID ulid.ULID) (*PasswordReset, error)

	// Claim deletes the user's reset only if its hash still equals tokenHash.
	// Returns false if the reset was already consumed or superseded.
	Claim(ctx context.Context, userID ulid.ULID, tokenHash string) (bool, error)

	// DeleteByUser removes the reset for a user. Deleting nothing is not an error.
	DeleteByUser(ctx context.Context, userID ulid.ULID) error

	// DeleteExpired removes all expired resets and returns the count.
	DeleteExpired(ctx context.Context) (int64, error)
}
