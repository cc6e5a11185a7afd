// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package web

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agora-forum/agora/internal/auth"
	"github.com/agora-forum/agora/pkg/errutil"
)

// AuthHandler serves the /auth routes.
type AuthHandler struct {
	auth   auth.Authenticator
	cookie CookieConfig
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler over svc.
func NewAuthHandler(svc auth.Authenticator, cookie CookieConfig, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{auth: svc, cookie: cookie.withDefaults(), logger: logger}
}

// Routes registers the auth endpoints on r.
func (h *AuthHandler) Routes(r chi.Router) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.Post("/forgot-password", h.ForgotPassword)
	r.Post("/change-password", h.ChangePassword)
	r.Get("/me", h.Me)
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if !decode(w, r, &in) {
		return
	}
	session := h.cookie.handle(r)
	result := h.auth.Register(r.Context(), session, in)
	h.cookie.apply(w, session)
	writeResult(w, result)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in auth.LoginInput
	if !decode(w, r, &in) {
		return
	}
	session := h.cookie.handle(r)
	result := h.auth.Login(r.Context(), session, in)
	h.cookie.apply(w, session)
	writeResult(w, result)
}

type okResponse struct {
	OK bool `json:"ok"`
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := h.cookie.handle(r)
	ok := h.auth.Logout(r.Context(), session)
	h.cookie.apply(w, session)
	writeJSON(w, http.StatusOK, okResponse{OK: ok})
}

// ForgotPassword handles POST /auth/forgot-password. The response is the
// same whether or not the address belongs to an account.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in auth.ForgotPasswordInput
	if !decode(w, r, &in) {
		return
	}
	ok, err := h.auth.ForgotPassword(r.Context(), in)
	if err != nil {
		errutil.LogErrorContext(r.Context(), h.logger, "forgot password request failed", err)
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: ok})
}

// ChangePassword handles POST /auth/change-password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var in auth.ChangePasswordInput
	if !decode(w, r, &in) {
		return
	}
	session := h.cookie.handle(r)
	result := h.auth.ChangePassword(r.Context(), session, in)
	h.cookie.apply(w, session)
	writeResult(w, result)
}

type meResponse struct {
	User *auth.User `json:"user"`
}

// Me handles GET /auth/me. A request without a live session gets a null user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session := h.cookie.handle(r)
	user, err := h.auth.Me(r.Context(), session)
	if err != nil {
		errutil.LogErrorContext(r.Context(), h.logger, "me request failed", err)
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{User: user})
}
