// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agora-forum/agora/internal/auth"
	"github.com/agora-forum/agora/pkg/errutil"
)

func TestPasswordResetRepository_CreateUpserts(t *testing.T) {
	reset, err := auth.NewPasswordReset(ulid.Make(), "hash", time.Now().Add(time.Hour))
	require.NoError(t, err)

	mock := newMock(t)
	mock.ExpectExec(`(?s)INSERT INTO password_resets.*ON CONFLICT \(user_id\) DO UPDATE`).
		WithArgs(reset.UserID.String(), "hash", reset.ExpiresAt, reset.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO password_resets`).
		WillReturnError(errors.New("fk violation"))

	repo := NewPasswordResetRepository(mock)
	require.NoError(t, repo.Create(context.Background(), reset))

	err = repo.Create(context.Background(), reset)
	errutil.AssertErrorCode(t, err, "RESET_CREATE_FAILED")
}

func TestPasswordResetRepository_GetByUser(t *testing.T) {
	userID := ulid.Make()
	now := time.Now().UTC()
	cols := []string{"token_hash", "expires_at", "created_at"}

	mock := newMock(t)
	mock.ExpectQuery(`FROM password_resets\s+WHERE user_id = \$1`).
		WithArgs(userID.String()).
		WillReturnRows(pgxmock.NewRows(cols).AddRow("hash", now.Add(time.Hour), now))
	mock.ExpectQuery(`FROM password_resets\s+WHERE user_id = \$1`).
		WithArgs(userID.String()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`FROM password_resets\s+WHERE user_id = \$1`).
		WithArgs(userID.String()).
		WillReturnError(errors.New("timeout"))

	repo := NewPasswordResetRepository(mock)
	reset, err := repo.GetByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, userID, reset.UserID)
	assert.Equal(t, "hash", reset.TokenHash)

	_, err = repo.GetByUser(context.Background(), userID)
	errutil.AssertWraps(t, err, auth.ErrNotFound, "RESET_NOT_FOUND")

	_, err = repo.GetByUser(context.Background(), userID)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "RESET_GET_FAILED")
}

func TestPasswordResetRepository_Claim(t *testing.T) {
	userID := ulid.Make()

	tests := []struct {
		name     string
		affected int64
		execErr  error
		want     bool
		wantCode string
	}{
		{name: "claimed", affected: 1, want: true},
		{name: "already consumed or superseded", affected: 0, want: false},
		{name: "failure", execErr: errors.New("timeout"), wantCode: "RESET_CLAIM_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			exp := mock.ExpectExec(`DELETE FROM password_resets WHERE user_id = \$1 AND token_hash = \$2`).
				WithArgs(userID.String(), "hash")
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(pgxmock.NewResult("DELETE", tt.affected))
			}

			ok, err := NewPasswordResetRepository(mock).Claim(context.Background(), userID, "hash")
			if tt.wantCode != "" {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.wantCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestPasswordResetRepository_Deletes(t *testing.T) {
	userID := ulid.Make()

	mock := newMock(t)
	mock.ExpectExec(`DELETE FROM password_resets WHERE user_id = \$1`).
		WithArgs(userID.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM password_resets WHERE expires_at < NOW\(\)`).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`DELETE FROM password_resets WHERE user_id = \$1`).
		WithArgs(userID.String()).
		WillReturnError(errors.New("timeout"))

	repo := NewPasswordResetRepository(mock)
	require.NoError(t, repo.DeleteByUser(context.Background(), userID), "deleting nothing is not an error")

	n, err := repo.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	err = repo.DeleteByUser(context.Background(), userID)
	errutil.AssertErrorCode(t, err, "RESET_DELETE_FAILED")
}
