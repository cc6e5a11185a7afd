// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

//go:build integration

package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/agora-forum/agora/internal/auth"
)

// browser is an HTTP client that keeps the session cookie between calls.
type browser struct {
	client *http.Client
}

func newBrowser() *browser {
	jar, err := cookiejar.New(nil)
	Expect(err).NotTo(HaveOccurred())
	return &browser{client: &http.Client{Jar: jar, Timeout: 10 * time.Second}}
}

func (b *browser) post(path string, body any) (int, map[string]any) {
	payload, err := json.Marshal(body)
	Expect(err).NotTo(HaveOccurred())
	resp, err := b.client.Post(env.server.URL+path, "application/json", bytes.NewReader(payload))
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	var out map[string]any
	Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
	return resp.StatusCode, out
}

// me returns the username of the logged-in user, or "".
func (b *browser) me() string {
	resp, err := b.client.Get(env.server.URL + "/auth/me")
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	Expect(resp.StatusCode).To(Equal(http.StatusOK))

	var out struct {
		User *struct {
			Username string `json:"username"`
		} `json:"user"`
	}
	Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
	if out.User == nil {
		return ""
	}
	return out.User.Username
}

func resetParams(link string) (token, userID string) {
	u, err := url.Parse(link)
	Expect(err).NotTo(HaveOccurred())
	Expect(u.Path).To(Equal("/change-password"))
	return u.Query().Get("token"), u.Query().Get("userId")
}

var annie = map[string]string{"username": "annie", "email": "annie@test.com", "password": "1234567"}

var _ = Describe("Account flows", func() {
	BeforeEach(func() {
		cleanupDatabase(env.ctx, env.pool)
	})

	Describe("Registration", func() {
		It("creates the account and logs the browser in", func() {
			b := newBrowser()
			status, res := b.post("/auth/register", annie)
			Expect(status).To(Equal(http.StatusOK))
			Expect(res["success"]).To(BeTrue())
			Expect(res["message"]).To(Equal(auth.MsgRegistered))
			Expect(res["user"]).To(HaveKeyWithValue("email", "annie@test.com"))
			Expect(b.me()).To(Equal("annie"))
		})

		It("rejects a second account with the same username", func() {
			_, _ = newBrowser().post("/auth/register", annie)

			status, res := newBrowser().post("/auth/register", map[string]string{
				"username": "annie", "email": "other@test.com", "password": "1234567",
			})
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(res["message"]).To(Equal(auth.MsgDuplicate))
			Expect(res["errors"]).To(ContainElement(HaveKeyWithValue("field", "username")))
		})

		It("rejects a second account with the same email", func() {
			_, _ = newBrowser().post("/auth/register", annie)

			status, res := newBrowser().post("/auth/register", map[string]string{
				"username": "annabel", "email": "annie@test.com", "password": "1234567",
			})
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(res["errors"]).To(ContainElement(HaveKeyWithValue("field", "email")))
		})
	})

	Describe("Login and logout", func() {
		BeforeEach(func() {
			_, _ = newBrowser().post("/auth/register", annie)
		})

		It("accepts username or email", func() {
			for _, identity := range []string{"annie", "annie@test.com"} {
				b := newBrowser()
				status, res := b.post("/auth/login", map[string]string{
					"usernameOrEmail": identity, "password": "1234567",
				})
				Expect(status).To(Equal(http.StatusOK), "login as %s", identity)
				Expect(res["message"]).To(Equal(auth.MsgLoggedIn))
				Expect(b.me()).To(Equal("annie"))
			}
		})

		It("reports a wrong password on the password field", func() {
			status, res := newBrowser().post("/auth/login", map[string]string{
				"usernameOrEmail": "annie", "password": "not-it",
			})
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(res["message"]).To(Equal(auth.MsgWrongPassword))
			Expect(res["errors"]).To(ContainElement(HaveKeyWithValue("field", "password")))
		})

		It("ends the session on logout", func() {
			b := newBrowser()
			_, _ = b.post("/auth/login", map[string]string{"usernameOrEmail": "annie", "password": "1234567"})
			Expect(b.me()).To(Equal("annie"))

			status, res := b.post("/auth/logout", map[string]string{})
			Expect(status).To(Equal(http.StatusOK))
			Expect(res["ok"]).To(BeTrue())
			Expect(b.me()).To(BeEmpty())

			var count int
			Expect(env.pool.QueryRow(env.ctx, `SELECT COUNT(*) FROM sessions`).Scan(&count)).To(Succeed())
			Expect(count).To(Equal(0))
		})
	})

	Describe("Password recovery", func() {
		BeforeEach(func() {
			_, _ = newBrowser().post("/auth/register", annie)
		})

		It("resets the password with the mailed link exactly once", func() {
			status, res := newBrowser().post("/auth/forgot-password", map[string]string{"email": "annie@test.com"})
			Expect(status).To(Equal(http.StatusOK))
			Expect(res["ok"]).To(BeTrue())

			link := env.outbox.lastLink("annie@test.com")
			Expect(link).To(HavePrefix("http://forum.test/change-password?"))
			token, userID := resetParams(link)

			b := newBrowser()
			status, res = b.post("/auth/change-password", map[string]string{
				"token": token, "userId": userID, "newPassword": "7654321",
			})
			Expect(status).To(Equal(http.StatusOK))
			Expect(res["message"]).To(Equal(auth.MsgPasswordReset))
			Expect(b.me()).To(Equal("annie"))

			status, res = newBrowser().post("/auth/change-password", map[string]string{
				"token": token, "userId": userID, "newPassword": "1111111",
			})
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(res["message"]).To(Equal(auth.MsgInvalidResetToken))

			status, _ = newBrowser().post("/auth/login", map[string]string{"usernameOrEmail": "annie", "password": "1234567"})
			Expect(status).To(Equal(http.StatusBadRequest))
			status, _ = newBrowser().post("/auth/login", map[string]string{"usernameOrEmail": "annie", "password": "7654321"})
			Expect(status).To(Equal(http.StatusOK))
		})

		It("invalidates the previous link when a new one is requested", func() {
			_, _ = newBrowser().post("/auth/forgot-password", map[string]string{"email": "annie@test.com"})
			oldToken, userID := resetParams(env.outbox.lastLink("annie@test.com"))
			_, _ = newBrowser().post("/auth/forgot-password", map[string]string{"email": "annie@test.com"})

			status, res := newBrowser().post("/auth/change-password", map[string]string{
				"token": oldToken, "userId": userID, "newPassword": "7654321",
			})
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(res["message"]).To(Equal(auth.MsgInvalidResetToken))
		})

		It("answers the same for unknown addresses without sending mail", func() {
			status, res := newBrowser().post("/auth/forgot-password", map[string]string{"email": "nobody@test.com"})
			Expect(status).To(Equal(http.StatusOK))
			Expect(res["ok"]).To(BeTrue())
			Expect(env.outbox.count("nobody@test.com")).To(Equal(0))
		})
	})

	Describe("Metrics", func() {
		It("counts operations by result", func() {
			before := testutil.ToFloat64(env.metrics.AuthOperations.WithLabelValues(auth.OpRegister, "ok"))
			_, _ = newBrowser().post("/auth/register", annie)
			Expect(testutil.ToFloat64(env.metrics.AuthOperations.WithLabelValues(auth.OpRegister, "ok"))).
				To(Equal(before + 1))
		})
	})
})
