// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ErrInvalidResetToken is returned for a missing, mismatched, expired, or
// already consumed reset token. Callers must not distinguish these cases.
var ErrInvalidResetToken = errors.New("invalid or expired password reset token")

// ResetTokenService issues and consumes single-use password reset tokens.
type ResetTokenService struct {
	resets PasswordResetRepository
	ttl    time.Duration
}

// NewResetTokenService creates a ResetTokenService. A zero ttl selects ResetTokenExpiry.
func NewResetTokenService(resets PasswordResetRepository, ttl time.Duration) (*ResetTokenService, error) {
	if resets == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("reset repository is required")
	}
	if ttl <= 0 {
		ttl = ResetTokenExpiry
	}
	return &ResetTokenService{resets: resets, ttl: ttl}, nil
}

// Issue supersedes any pending reset for the user and returns a new plaintext token.
func (s *ResetTokenService) Issue(ctx context.Context, userID ulid.ULID) (string, error) {
	if err := s.resets.DeleteByUser(ctx, userID); err != nil {
		return "", oops.Code("RESET_ISSUE_FAILED").
			With("operation", "DeleteByUser").
			With("user_id", userID.String()).
			Wrap(err)
	}

	token, hash, err := GenerateResetToken()
	if err != nil {
		return "", oops.Code("RESET_ISSUE_FAILED").
			With("operation", "GenerateResetToken").
			Wrap(err)
	}

	reset, err := NewPasswordReset(userID, hash, time.Now().Add(s.ttl))
	if err != nil {
		return "", oops.Code("RESET_ISSUE_FAILED").
			With("operation", "NewPasswordReset").
			Wrap(err)
	}

	if err := s.resets.Create(ctx, reset); err != nil {
		return "", oops.Code("RESET_ISSUE_FAILED").
			With("operation", "Create").
			With("user_id", userID.String()).
			Wrap(err)
	}

	return token, nil
}

// Check returns the user's pending reset if token matches it.
// Any reason the token cannot be used yields ErrInvalidResetToken.
func (s *ResetTokenService) Check(ctx context.Context, userID ulid.ULID, token string) (*PasswordReset, error) {
	reset, err := s.resets.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("RESET_TOKEN_INVALID").Wrap(ErrInvalidResetToken)
		}
		return nil, oops.Code("RESET_CHECK_FAILED").
			With("operation", "GetByUser").
			With("user_id", userID.String()).
			Wrap(err)
	}

	// Hash comparison runs before the expiry check so both paths cost the same.
	if !VerifyResetToken(token, reset.TokenHash) || reset.IsExpired() {
		return nil, oops.Code("RESET_TOKEN_INVALID").Wrap(ErrInvalidResetToken)
	}

	return reset, nil
}

// Consume atomically removes a checked reset. If a concurrent request
// consumed or replaced it first, ErrInvalidResetToken is returned.
func (s *ResetTokenService) Consume(ctx context.Context, reset *PasswordReset) error {
	claimed, err := s.resets.Claim(ctx, reset.UserID, reset.TokenHash)
	if err != nil {
		return oops.Code("RESET_CONSUME_FAILED").
			With("operation", "Claim").
			With("user_id", reset.UserID.String()).
			Wrap(err)
	}
	if !claimed {
		return oops.Code("RESET_TOKEN_INVALID").Wrap(ErrInvalidResetToken)
	}
	return nil
}
