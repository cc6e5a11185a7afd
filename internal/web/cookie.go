// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package web

import (
	"net/http"
	"time"

	"github.com/agora-forum/agora/internal/auth"
)

// DefaultCookieName names the session cookie when none is configured.
const DefaultCookieName = "agora_sid"

// CookieConfig shapes the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

func (c CookieConfig) withDefaults() CookieConfig {
	if c.Name == "" {
		c.Name = DefaultCookieName
	}
	if c.MaxAge <= 0 {
		c.MaxAge = auth.SessionTokenExpiry
	}
	return c
}

// handle reads the request's session cookie into a fresh handle.
func (c CookieConfig) handle(r *http.Request) *auth.SessionHandle {
	cookie, err := r.Cookie(c.Name)
	if err != nil {
		return auth.NewSessionHandle("")
	}
	return auth.NewSessionHandle(cookie.Value)
}

// apply writes whatever the handle asks for: a new cookie or its removal.
func (c CookieConfig) apply(w http.ResponseWriter, h *auth.SessionHandle) {
	if token, expiresAt, ok := h.Issued(); ok {
		http.SetCookie(w, &http.Cookie{
			Name:     c.Name,
			Value:    token,
			Path:     "/",
			MaxAge:   int(c.MaxAge.Seconds()),
			Expires:  expiresAt,
			HttpOnly: true,
			Secure:   c.Secure,
			SameSite: http.SameSiteLaxMode,
		})
		return
	}
	if h.Cleared() {
		http.SetCookie(w, &http.Cookie{
			Name:     c.Name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   c.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
