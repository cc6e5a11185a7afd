// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes  = 32        // 32 bytes = 64 hex chars
	SessionTokenExpiry = time.Hour // matches the cookie max-age
)

// Session binds an opaque cookie token to a user.
type Session struct {
	ID         ulid.ULID `json:"id"`
	UserID     ulid.ULID `json:"userId"`
	TokenHash  string    `json:"tokenHash"`
	ExpiresAt  time.Time `json:"expiresAt"`
	CreatedAt  time.Time `json:"createdAt"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// NewSession creates a validated Session instance.
func NewSession(userID ulid.ULID, tokenHash string, expiresAt time.Time) (*Session, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	now := time.Now()
	return &Session{
		ID:         ulid.Make(),
		UserID:     userID,
		TokenHash:  tokenHash,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
		LastSeenAt: now,
	}, nil
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return s.IsExpiredAt(time.Now())
}

// IsExpiredAt returns true if the session would be expired at the given time.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return t.After(s.ExpiresAt)
}

// GenerateSessionToken creates a secure random token and its hash.
// The plaintext token is sent to the client; the hash is stored.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the SHA256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// SessionRepository manages session persistence. Sessions are addressed by
// the hash of their token.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByTokenHash retrieves a session by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// UpdateLastSeen updates the LastSeenAt timestamp for a session.
	UpdateLastSeen(ctx context.Context, tokenHash string, lastSeen time.Time) error

	// Delete removes a session. Returns an error wrapping ErrNotFound if absent.
	Delete(ctx context.Context, tokenHash string) error

	// DeleteExpired removes all expired sessions and returns the count.
	DeleteExpired(ctx context.Context) (int64, error)
}

// SessionHandle carries one request's session state between the transport
// and the auth services. The transport creates it from the incoming cookie
// and afterwards applies Issued or Cleared to the response.
type SessionHandle struct {
	incoming  string
	issued    string
	expiresAt time.Time
	cleared   bool
}

// NewSessionHandle creates a handle for a request presenting token.
// An empty token means the request has no session cookie.
func NewSessionHandle(token string) *SessionHandle {
	return &SessionHandle{incoming: token}
}

// Token returns the token that currently identifies the request's session.
func (h *SessionHandle) Token() string {
	if h.issued != "" {
		return h.issued
	}
	if h.cleared {
		return ""
	}
	return h.incoming
}

// Issued returns the token established during this request, if any.
func (h *SessionHandle) Issued() (token string, expiresAt time.Time, ok bool) {
	return h.issued, h.expiresAt, h.issued != ""
}

// Cleared reports whether the session cookie must be removed.
func (h *SessionHandle) Cleared() bool {
	return h.cleared && h.issued == ""
}

func (h *SessionHandle) issue(token string, expiresAt time.Time) {
	h.issued = token
	h.expiresAt = expiresAt
	h.cleared = false
}

func (h *SessionHandle) clear() {
	h.issued = ""
	h.expiresAt = time.Time{}
	h.cleared = true
}

// SessionManager creates, resolves, and destroys server-side sessions.
type SessionManager struct {
	sessions SessionRepository
	ttl      time.Duration
}

// NewSessionManager creates a SessionManager. A zero ttl selects SessionTokenExpiry.
func NewSessionManager(sessions SessionRepository, ttl time.Duration) (*SessionManager, error) {
	if sessions == nil {
		return nil, oops.Code("SESSION_MANAGER_INVALID").Errorf("session repository is required")
	}
	if ttl <= 0 {
		ttl = SessionTokenExpiry
	}
	return &SessionManager{sessions: sessions, ttl: ttl}, nil
}

// TTL returns the lifetime of new sessions.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Establish binds userID to the request, replacing any session it already had.
func (m *SessionManager) Establish(ctx context.Context, h *SessionHandle, userID ulid.ULID) (*Session, error) {
	if prev := h.Token(); prev != "" {
		if err := m.sessions.Delete(ctx, HashSessionToken(prev)); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_ESTABLISH_FAILED").
				With("operation", "delete previous session").
				Wrap(err)
		}
	}

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, oops.Code("SESSION_ESTABLISH_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	session, err := NewSession(userID, tokenHash, time.Now().Add(m.ttl))
	if err != nil {
		return nil, oops.Code("SESSION_ESTABLISH_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("user_id", userID.String()).
			Wrap(err)
	}

	h.issue(token, session.ExpiresAt)
	return session, nil
}

// Current returns the user bound to the request's session.
// Returns an error wrapping ErrNoSession if there is no live session.
func (m *SessionManager) Current(ctx context.Context, h *SessionHandle) (ulid.ULID, error) {
	token := h.Token()
	if token == "" {
		return ulid.ULID{}, oops.Code("SESSION_ABSENT").Wrap(ErrNoSession)
	}

	tokenHash := HashSessionToken(token)
	session, err := m.sessions.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ulid.ULID{}, oops.Code("SESSION_INVALID").Wrap(ErrNoSession)
		}
		return ulid.ULID{}, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.IsExpired() {
		return ulid.ULID{}, oops.Code("SESSION_EXPIRED").Wrap(ErrNoSession)
	}

	_ = m.sessions.UpdateLastSeen(ctx, tokenHash, time.Now()) //nolint:errcheck // Best effort, validation succeeds regardless

	return session.UserID, nil
}

// Destroy removes the request's session and marks the cookie for clearing.
// A request without a session succeeds without touching the store.
func (m *SessionManager) Destroy(ctx context.Context, h *SessionHandle) error {
	token := h.Token()
	h.clear()
	if token == "" {
		return nil
	}

	err := m.sessions.Delete(ctx, HashSessionToken(token))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("SESSION_DESTROY_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}
