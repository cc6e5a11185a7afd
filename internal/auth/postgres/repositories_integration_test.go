// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

//go:build integration

package postgres_test

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/agora-forum/agora/internal/auth"
	"github.com/agora-forum/agora/internal/auth/postgres"
)

func createUser(repo *postgres.UserRepository, username, email string) *auth.User {
	u, err := auth.NewUser(username, email, "$2a$10$hash")
	Expect(err).NotTo(HaveOccurred())
	Expect(repo.Create(suiteCtx, u)).To(Succeed())
	return u
}

var _ = Describe("UserRepository", func() {
	var users *postgres.UserRepository

	BeforeEach(func() {
		truncateAll()
		users = postgres.NewUserRepository(testPool)
	})

	It("round-trips a user", func() {
		u := createUser(users, "annie", "annie@test.com")

		got, err := users.GetByID(suiteCtx, u.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Username).To(Equal("annie"))
		Expect(got.Email).To(Equal("annie@test.com"))
		Expect(got.PasswordHash).To(Equal("$2a$10$hash"))

		got, err = users.GetByEmail(suiteCtx, "annie@test.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID).To(Equal(u.ID))
	})

	It("rejects a duplicate username or email", func() {
		createUser(users, "annie", "annie@test.com")

		dupName, err := auth.NewUser("annie", "other@test.com", "h")
		Expect(err).NotTo(HaveOccurred())
		Expect(users.Create(suiteCtx, dupName)).To(MatchError(auth.ErrDuplicate))

		dupEmail, err := auth.NewUser("bobby", "annie@test.com", "h")
		Expect(err).NotTo(HaveOccurred())
		Expect(users.Create(suiteCtx, dupEmail)).To(MatchError(auth.ErrDuplicate))
	})

	It("prefers the username match over an email match", func() {
		byName := createUser(users, "annie", "annie@test.com")
		createUser(users, "bobby", "shared@test.com")

		got, err := users.FindByUsernameOrEmail(suiteCtx, "annie", "shared@test.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID).To(Equal(byName.ID))

		_, err = users.FindByUsernameOrEmail(suiteCtx, "carol", "carol@test.com")
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("updates the password hash", func() {
		u := createUser(users, "annie", "annie@test.com")

		Expect(users.UpdatePassword(suiteCtx, u.ID, "newhash")).To(Succeed())
		got, err := users.GetByID(suiteCtx, u.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.PasswordHash).To(Equal("newhash"))

		Expect(users.UpdatePassword(suiteCtx, ulid.Make(), "x")).To(MatchError(auth.ErrNotFound))
	})
})

var _ = Describe("SessionRepository", func() {
	var sessions *postgres.SessionRepository

	BeforeEach(func() {
		truncateAll()
		sessions = postgres.NewSessionRepository(testPool)
	})

	It("stores, refreshes and deletes a session", func() {
		s, err := auth.NewSession(ulid.Make(), "hash-1", time.Now().Add(time.Hour))
		Expect(err).NotTo(HaveOccurred())
		Expect(sessions.Create(suiteCtx, s)).To(Succeed())

		got, err := sessions.GetByTokenHash(suiteCtx, "hash-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.UserID).To(Equal(s.UserID))

		seen := time.Now().Add(time.Minute)
		Expect(sessions.UpdateLastSeen(suiteCtx, "hash-1", seen)).To(Succeed())
		got, err = sessions.GetByTokenHash(suiteCtx, "hash-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.LastSeenAt).To(BeTemporally("~", seen, time.Millisecond))

		Expect(sessions.Delete(suiteCtx, "hash-1")).To(Succeed())
		Expect(sessions.Delete(suiteCtx, "hash-1")).To(MatchError(auth.ErrNotFound))
	})

	It("purges only expired sessions", func() {
		live, err := auth.NewSession(ulid.Make(), "live", time.Now().Add(time.Hour))
		Expect(err).NotTo(HaveOccurred())
		dead, err := auth.NewSession(ulid.Make(), "dead", time.Now().Add(-time.Minute))
		Expect(err).NotTo(HaveOccurred())
		Expect(sessions.Create(suiteCtx, live)).To(Succeed())
		Expect(sessions.Create(suiteCtx, dead)).To(Succeed())

		n, err := sessions.DeleteExpired(suiteCtx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))

		_, err = sessions.GetByTokenHash(suiteCtx, "live")
		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("PasswordResetRepository", func() {
	var (
		resets *postgres.PasswordResetRepository
		user   *auth.User
	)

	BeforeEach(func() {
		truncateAll()
		resets = postgres.NewPasswordResetRepository(testPool)
		user = createUser(postgres.NewUserRepository(testPool), "annie", "annie@test.com")
	})

	newReset := func(hash string, ttl time.Duration) *auth.PasswordReset {
		r, err := auth.NewPasswordReset(user.ID, hash, time.Now().Add(ttl))
		Expect(err).NotTo(HaveOccurred())
		return r
	}

	It("keeps one pending reset per user", func() {
		Expect(resets.Create(suiteCtx, newReset("first", time.Hour))).To(Succeed())
		Expect(resets.Create(suiteCtx, newReset("second", time.Hour))).To(Succeed())

		got, err := resets.GetByUser(suiteCtx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.TokenHash).To(Equal("second"))
	})

	It("claims a reset exactly once under contention", func() {
		Expect(resets.Create(suiteCtx, newReset("hash", time.Hour))).To(Succeed())

		var (
			wg      sync.WaitGroup
			claimed atomic.Int32
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				ok, err := resets.Claim(suiteCtx, user.ID, "hash")
				Expect(err).NotTo(HaveOccurred())
				if ok {
					claimed.Add(1)
				}
			}()
		}
		wg.Wait()

		Expect(claimed.Load()).To(Equal(int32(1)))
		_, err := resets.GetByUser(suiteCtx, user.ID)
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("does not claim with a stale hash", func() {
		Expect(resets.Create(suiteCtx, newReset("current", time.Hour))).To(Succeed())

		ok, err := resets.Claim(suiteCtx, user.ID, "stale")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("purges expired resets and cascades user deletion", func() {
		Expect(resets.Create(suiteCtx, newReset("old", -time.Minute))).To(Succeed())
		n, err := resets.DeleteExpired(suiteCtx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))

		Expect(resets.Create(suiteCtx, newReset("new", time.Hour))).To(Succeed())
		_, err = testPool.Exec(suiteCtx, `DELETE FROM users WHERE id = $1`, user.ID.String())
		Expect(err).NotTo(HaveOccurred())
		_, err = resets.GetByUser(suiteCtx, user.ID)
		Expect(err).To(MatchError(auth.ErrNotFound))
	})
})
