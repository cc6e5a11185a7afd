// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/agora-forum/agora/pkg/errutil"
)

// Operation names reported to the Observer.
const (
	OpRegister       = "register"
	OpLogin          = "login"
	OpLogout         = "logout"
	OpForgotPassword = "forgot_password"
	OpChangePassword = "change_password"
	OpNotify         = "notify"
)

// LoginInput carries the fields of a login request.
type LoginInput struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
}

// ForgotPasswordInput carries the fields of a reset request.
type ForgotPasswordInput struct {
	Email string `json:"email"`
}

// ChangePasswordInput carries the fields of a password change with a reset token.
type ChangePasswordInput struct {
	Token       string `json:"token"`
	UserID      string `json:"userId"`
	NewPassword string `json:"newPassword"`
}

// Authenticator is the set of auth operations exposed to the transport.
type Authenticator interface {
	Register(ctx context.Context, h *SessionHandle, in RegisterInput) MutationResult
	Login(ctx context.Context, h *SessionHandle, in LoginInput) MutationResult
	Logout(ctx context.Context, h *SessionHandle) bool
	ForgotPassword(ctx context.Context, in ForgotPasswordInput) (bool, error)
	ChangePassword(ctx context.Context, h *SessionHandle, in ChangePasswordInput) MutationResult
	Me(ctx context.Context, h *SessionHandle) (*User, error)
}

// Notifier delivers a message to an address out of band.
type Notifier interface {
	Send(ctx context.Context, address, message string) error
}

// Observer records the outcome of auth operations.
type Observer interface {
	ObserveOperation(operation, result string)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string) {}

// ServiceConfig holds the collaborators of a Service.
type ServiceConfig struct {
	Users    UserRepository
	Hasher   PasswordHasher
	Sessions *SessionManager
	Resets   *ResetTokenService
	Notifier Notifier

	// PublicURL is the base of links sent to users, e.g. "https://agora.example".
	PublicURL string

	Logger   *slog.Logger
	Observer Observer
}

// Service sequences validation, storage, hashing, and sessions for each
// auth operation. All methods are safe for concurrent use.
type Service struct {
	users     UserRepository
	hasher    PasswordHasher
	sessions  *SessionManager
	resets    *ResetTokenService
	notifier  Notifier
	publicURL string
	logger    *slog.Logger
	observer  Observer

	dummyOnce sync.Once
	dummyHash string
}

var _ Authenticator = (*Service)(nil)

// NewAuthService creates a new Service.
func NewAuthService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.Users == nil:
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("user repository is required")
	case cfg.Hasher == nil:
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	case cfg.Sessions == nil:
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("session manager is required")
	case cfg.Resets == nil:
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("reset token service is required")
	case cfg.Notifier == nil:
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("notifier is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	return &Service{
		users:     cfg.Users,
		hasher:    cfg.Hasher,
		sessions:  cfg.Sessions,
		resets:    cfg.Resets,
		notifier:  cfg.Notifier,
		publicURL: cfg.PublicURL,
		logger:    logger.With("component", "auth"),
		observer:  observer,
	}, nil
}

// Register validates the input, creates the user, and logs them in.
func (s *Service) Register(ctx context.Context, h *SessionHandle, in RegisterInput) MutationResult {
	if failure := ValidateRegistration(in); failure != nil {
		return s.finish(OpRegister, invalidInput(failure))
	}

	existing, err := s.users.FindByUsernameOrEmail(ctx, in.Username, in.Email)
	switch {
	case err == nil:
		return s.finish(OpRegister, duplicateUser(existing, in))
	case !errors.Is(err, ErrNotFound):
		return s.fail(ctx, OpRegister, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "find existing user").
			Wrap(err))
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return s.fail(ctx, OpRegister, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err))
	}

	user, err := NewUser(in.Username, in.Email, hash)
	if err != nil {
		return s.fail(ctx, OpRegister, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "new user").
			Wrap(err))
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			// Lost a race with a concurrent registration; report which field collided.
			if existing, probeErr := s.users.FindByUsernameOrEmail(ctx, in.Username, in.Email); probeErr == nil {
				return s.finish(OpRegister, duplicateUser(existing, in))
			}
		}
		return s.fail(ctx, OpRegister, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err))
	}

	if _, err := s.sessions.Establish(ctx, h, user.ID); err != nil {
		return s.fail(ctx, OpRegister, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "establish session").
			With("user_id", user.ID.String()).
			Wrap(err))
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String())
	return s.finish(OpRegister, succeeded(MsgRegistered, user))
}

// Login authenticates by username or email and establishes a session.
// A dummy hash is verified for unknown identifiers so response time does
// not reveal whether the account exists.
func (s *Service) Login(ctx context.Context, h *SessionHandle, in LoginInput) MutationResult {
	var (
		user *User
		err  error
	)
	if strings.Contains(in.UsernameOrEmail, "@") {
		user, err = s.users.GetByEmail(ctx, in.UsernameOrEmail)
	} else {
		user, err = s.users.GetByUsername(ctx, in.UsernameOrEmail)
	}

	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return s.fail(ctx, OpLogin, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user").
				Wrap(err))
		}
		_, _ = s.hasher.Verify(in.Password, s.dummyPasswordHash()) //nolint:errcheck // timing equalization only
		return s.finish(OpLogin, rejected(MsgUserNotFound,
			FieldError{Field: "usernameOrEmail", Message: MsgIdentityIncorrect}))
	}

	valid, err := s.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		return s.fail(ctx, OpLogin, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(err))
	}
	if !valid {
		return s.finish(OpLogin, rejected(MsgWrongPassword,
			FieldError{Field: "password", Message: MsgWrongPassword}))
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, in.Password)
	}

	if _, err := s.sessions.Establish(ctx, h, user.ID); err != nil {
		return s.fail(ctx, OpLogin, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "establish session").
			With("user_id", user.ID.String()).
			Wrap(err))
	}

	return s.finish(OpLogin, succeeded(MsgLoggedIn, user))
}

// Logout destroys the request's session. It reports false, rather than an
// error, when the session store fails.
func (s *Service) Logout(ctx context.Context, h *SessionHandle) bool {
	if err := s.sessions.Destroy(ctx, h); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "logout failed", err)
		s.observer.ObserveOperation(OpLogout, "error")
		return false
	}
	s.observer.ObserveOperation(OpLogout, "ok")
	return true
}

// ForgotPassword issues a reset token for the account with the given email
// and sends the reset link. Unknown addresses and delivery failures still
// report true so the response reveals nothing about the account.
func (s *Service) ForgotPassword(ctx context.Context, in ForgotPasswordInput) (bool, error) {
	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.observer.ObserveOperation(OpForgotPassword, "ok")
			return true, nil
		}
		err = oops.Code("AUTH_FORGOT_PASSWORD_FAILED").
			With("operation", "get user by email").
			Wrap(err)
		errutil.LogErrorContext(ctx, s.logger, "forgot password failed", err)
		s.observer.ObserveOperation(OpForgotPassword, "error")
		return false, err
	}

	token, err := s.resets.Issue(ctx, user.ID)
	if err != nil {
		err = oops.Code("AUTH_FORGOT_PASSWORD_FAILED").
			With("operation", "issue reset token").
			With("user_id", user.ID.String()).
			Wrap(err)
		errutil.LogErrorContext(ctx, s.logger, "forgot password failed", err)
		s.observer.ObserveOperation(OpForgotPassword, "error")
		return false, err
	}

	link := ResetLink(s.publicURL, token, user.ID)
	message := fmt.Sprintf(`<a href="%s">Click here to reset your password</a>`, link)
	if err := s.notifier.Send(ctx, user.Email, message); err != nil {
		errutil.LogWarnContext(ctx, s.logger, "reset notification failed",
			oops.Code("AUTH_NOTIFY_FAILED").With("user_id", user.ID.String()).Wrap(err))
		s.observer.ObserveOperation(OpNotify, "error")
	} else {
		s.observer.ObserveOperation(OpNotify, "ok")
	}

	s.observer.ObserveOperation(OpForgotPassword, "ok")
	return true, nil
}

// ChangePassword sets a new password using a reset token and logs the user in.
// A missing record, a wrong token, and an expired token are indistinguishable.
func (s *Service) ChangePassword(ctx context.Context, h *SessionHandle, in ChangePasswordInput) MutationResult {
	if failure := ValidateNewPassword(in.NewPassword); failure != nil {
		return s.finish(OpChangePassword, invalidInput(failure))
	}

	userID, err := ulid.Parse(in.UserID)
	if err != nil {
		// Malformed ids cannot have a reset record.
		return s.finish(OpChangePassword, invalidResetToken())
	}

	reset, err := s.resets.Check(ctx, userID, in.Token)
	if err != nil {
		if errors.Is(err, ErrInvalidResetToken) {
			return s.finish(OpChangePassword, invalidResetToken())
		}
		return s.fail(ctx, OpChangePassword, oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "check reset token").
			Wrap(err))
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return s.finish(OpChangePassword, rejected(MsgUserNoLongerExists,
				FieldError{Field: "token", Message: MsgUserNoLongerExists}))
		}
		return s.fail(ctx, OpChangePassword, oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "get user").
			With("user_id", userID.String()).
			Wrap(err))
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return s.fail(ctx, OpChangePassword, oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err))
	}

	// Hashing runs before the claim so its failure leaves the token usable.
	// Claim before writing so two requests with the same token cannot both succeed.
	if err := s.resets.Consume(ctx, reset); err != nil {
		if errors.Is(err, ErrInvalidResetToken) {
			return s.finish(OpChangePassword, invalidResetToken())
		}
		return s.fail(ctx, OpChangePassword, oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "consume reset token").
			With("user_id", userID.String()).
			Wrap(err))
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return s.fail(ctx, OpChangePassword, oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "update password").
			With("user_id", user.ID.String()).
			Wrap(err))
	}
	user.PasswordHash = hash

	if _, err := s.sessions.Establish(ctx, h, user.ID); err != nil {
		return s.fail(ctx, OpChangePassword, oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "establish session").
			With("user_id", user.ID.String()).
			Wrap(err))
	}

	s.logger.InfoContext(ctx, "password reset completed", "user_id", user.ID.String())
	return s.finish(OpChangePassword, succeeded(MsgPasswordReset, user))
}

// Me returns the user bound to the request's session, or nil if there is none.
func (s *Service) Me(ctx context.Context, h *SessionHandle) (*User, error) {
	userID, err := s.sessions.Current(ctx, h)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil, nil
		}
		return nil, oops.Code("AUTH_ME_FAILED").With("operation", "current session").Wrap(err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, oops.Code("AUTH_ME_FAILED").
			With("operation", "get user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return user, nil
}

func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePassword(ctx, user.ID, hash)
	}
	if err != nil {
		errutil.LogWarnContext(ctx, s.logger, "password hash upgrade failed", err)
		return
	}
	user.PasswordHash = hash
}

// dummyPasswordHash returns a digest of a random secret produced by the
// configured hasher, so verifying against it costs the same as a real account.
func (s *Service) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		secret := make([]byte, 16)
		if _, err := rand.Read(secret); err != nil {
			return
		}
		if hash, err := s.hasher.Hash(hex.EncodeToString(secret)); err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

func (s *Service) finish(op string, r MutationResult) MutationResult {
	result := "ok"
	switch {
	case r.Code >= 500:
		result = "error"
	case !r.Success:
		result = "rejected"
	}
	s.observer.ObserveOperation(op, result)
	return r
}

func (s *Service) fail(ctx context.Context, op string, err error) MutationResult {
	errutil.LogErrorContext(ctx, s.logger, op+" failed", err)
	return s.finish(op, internalFailure())
}

func duplicateUser(existing *User, in RegisterInput) MutationResult {
	if existing.Username == in.Username {
		return rejected(MsgDuplicate, FieldError{Field: "username", Message: "Username already taken"})
	}
	return rejected(MsgDuplicate, FieldError{Field: "email", Message: "Email already taken"})
}
