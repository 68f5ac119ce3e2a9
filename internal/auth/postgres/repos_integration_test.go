// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GridHive Contributors

//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gridhive/authd/internal/auth"
	"github.com/gridhive/authd/internal/auth/postgres"
	"github.com/gridhive/authd/internal/store"
)

// setupDatabase starts a PostgreSQL container, applies the schema, and
// returns a connected pool.
func setupDatabase() (*pgxpool.Pool, func(), error) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("authd_test"),
		tcpostgres.WithUsername("authd"),
		tcpostgres.WithPassword("authd"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = container.Terminate(ctx)
		return nil, nil, err
	}
	if err := migrator.Close(); err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	pool, err := store.Connect(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}
	return pool, cleanup, nil
}

var _ = Describe("Repositories", Ordered, func() {
	var (
		pool    *pgxpool.Pool
		cleanup func()
		users   *postgres.UserRepository
		tokens  *postgres.TokenRepository
		otps    *postgres.OtpRepository
		ctx     context.Context
		seq     int
	)

	BeforeAll(func() {
		var err error
		pool, cleanup, err = setupDatabase()
		Expect(err).NotTo(HaveOccurred())
		users = postgres.NewUserRepository(pool)
		tokens = postgres.NewTokenRepository(pool)
		otps = postgres.NewOtpRepository(pool)
		ctx = context.Background()
	})

	AfterAll(func() {
		cleanup()
	})

	newUser := func(email string) *auth.User {
		seq++
		return &auth.User{
			UserID:       fmt.Sprintf("USER%06d", seq),
			Name:         "Integration User",
			Email:        email,
			PasswordHash: "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA",
			RegisteredAt: time.Now().UTC(),
		}
	}

	Describe("UserRepository", func() {
		It("creates and retrieves a user", func() {
			user := newUser("create@example.com")
			Expect(users.Create(ctx, user)).To(Succeed())

			byEmail, err := users.GetByEmail(ctx, user.Email)
			Expect(err).NotTo(HaveOccurred())
			Expect(byEmail.UserID).To(Equal(user.UserID))

			byID, err := users.GetByUserID(ctx, user.UserID)
			Expect(err).NotTo(HaveOccurred())
			Expect(byID.Email).To(Equal(user.Email))
		})

		It("rejects a duplicate email via the unique index", func() {
			user := newUser("dup@example.com")
			Expect(users.Create(ctx, user)).To(Succeed())

			dup := newUser("dup@example.com")
			err := users.Create(ctx, dup)
			Expect(err).To(MatchError(auth.ErrAlreadyRegistered))
		})

		It("reports existence by email", func() {
			user := newUser("exists@example.com")
			Expect(users.Create(ctx, user)).To(Succeed())

			exists, err := users.ExistsByEmail(ctx, user.Email)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())

			exists, err = users.ExistsByEmail(ctx, "nobody@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())
		})

		It("updates the password hash", func() {
			user := newUser("rehash@example.com")
			Expect(users.Create(ctx, user)).To(Succeed())

			Expect(users.UpdatePassword(ctx, user.UserID, "newhash")).To(Succeed())

			updated, err := users.GetByUserID(ctx, user.UserID)
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.PasswordHash).To(Equal("newhash"))
		})

		It("maps unknown lookups to not found", func() {
			_, err := users.GetByEmail(ctx, "ghost@example.com")
			Expect(err).To(MatchError(auth.ErrNotFound))

			Expect(users.UpdatePassword(ctx, "MISSING", "hash")).To(MatchError(auth.ErrNotFound))
		})
	})

	Describe("TokenRepository", func() {
		newToken := func(user *auth.User, value string, expiredAt time.Time) *auth.Token {
			seq++
			return &auth.Token{
				TokenID:   fmt.Sprintf("TOKEN%06d", seq),
				Value:     value,
				UserID:    user.UserID,
				CreatedAt: time.Now().UTC(),
				ExpiredAt: expiredAt,
			}
		}

		It("round-trips a session token", func() {
			user := newUser("token@example.com")
			Expect(users.Create(ctx, user)).To(Succeed())

			now := time.Now().UTC()
			token := newToken(user, "RTT_roundtrip", now.Add(time.Hour))
			Expect(tokens.Create(ctx, token)).To(Succeed())

			got, err := tokens.GetActiveByValue(ctx, token.Value, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.TokenID).To(Equal(token.TokenID))
			Expect(got.OtpID).To(BeEmpty())
		})

		It("hides expired tokens from the active lookup but not the raw one", func() {
			user := newUser("expired@example.com")
			Expect(users.Create(ctx, user)).To(Succeed())

			now := time.Now().UTC()
			token := newToken(user, "RTT_expired", now.Add(-time.Hour))
			Expect(tokens.Create(ctx, token)).To(Succeed())

			_, err := tokens.GetActiveByValue(ctx, token.Value, now)
			Expect(err).To(MatchError(auth.ErrNotFound))

			got, err := tokens.GetByValue(ctx, token.Value)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Active(now)).To(BeFalse())
		})

		It("backdates expiry via UpdateExpiry", func() {
			user := newUser("backdate@example.com")
			Expect(users.Create(ctx, user)).To(Succeed())

			now := time.Now().UTC()
			token := newToken(user, "RTT_backdate", now.Add(time.Hour))
			Expect(tokens.Create(ctx, token)).To(Succeed())

			Expect(tokens.UpdateExpiry(ctx, token.TokenID, now.Add(-24*time.Hour))).To(Succeed())

			_, err := tokens.GetActiveByValue(ctx, token.Value, now)
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("finds the newest active token per board and deletes by board", func() {
			user := newUser("board@example.com")
			Expect(users.Create(ctx, user)).To(Succeed())

			now := time.Now().UTC()
			old := newToken(user, "boardsecret-old", now.Add(auth.BoardTokenExpiry))
			old.BoardID = "board-42"
			old.RoleID = auth.BoardRoleID
			old.CreatedAt = now.Add(-time.Minute)
			Expect(tokens.Create(ctx, old)).To(Succeed())

			fresh := newToken(user, "boardsecret-new", now.Add(auth.BoardTokenExpiry))
			fresh.BoardID = "board-42"
			fresh.RoleID = auth.BoardRoleID
			Expect(tokens.Create(ctx, fresh)).To(Succeed())

			got, err := tokens.GetActiveByBoard(ctx, "board-42", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Value).To(Equal("boardsecret-new"))

			Expect(tokens.DeleteByBoard(ctx, "board-42")).To(Succeed())
			_, err = tokens.GetActiveByBoard(ctx, "board-42", now)
			Expect(err).To(MatchError(auth.ErrNotFound))

			// Deleting again is a valid no-op.
			Expect(tokens.DeleteByBoard(ctx, "board-42")).To(Succeed())
		})
	})

	Describe("OtpRepository", func() {
		newOtp := func(user *auth.User, createdAt time.Time) *auth.Otp {
			seq++
			return &auth.Otp{
				OtpID:     fmt.Sprintf("OTP%06d", seq),
				Value:     "042137",
				Email:     user.Email,
				UserID:    user.UserID,
				State:     auth.OtpStateGenerated,
				CreatedAt: createdAt,
			}
		}

		It("transitions state exactly once", func() {
			user := newUser("otp-cas@example.com")
			Expect(users.Create(ctx, user)).To(Succeed())

			otp := newOtp(user, time.Now().UTC())
			Expect(otps.Create(ctx, otp)).To(Succeed())

			moved, err := otps.TransitionState(ctx, otp.OtpID, auth.OtpStateGenerated, auth.OtpStateVerified)
			Expect(err).NotTo(HaveOccurred())
			Expect(moved).To(BeTrue())

			moved, err = otps.TransitionState(ctx, otp.OtpID, auth.OtpStateGenerated, auth.OtpStateVerified)
			Expect(err).NotTo(HaveOccurred())
			Expect(moved).To(BeFalse(), "second transition must lose the race")

			got, err := otps.GetByIDAndState(ctx, otp.OtpID, auth.OtpStateVerified)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.State).To(Equal(auth.OtpStateVerified))
		})

		It("expires every active passcode for an email", func() {
			user := newUser("otp-expire@example.com")
			Expect(users.Create(ctx, user)).To(Succeed())

			now := time.Now().UTC()
			Expect(otps.Create(ctx, newOtp(user, now.Add(-2*time.Minute)))).To(Succeed())
			Expect(otps.Create(ctx, newOtp(user, now.Add(-time.Minute)))).To(Succeed())

			expired, err := otps.ExpireActive(ctx, user.Email)
			Expect(err).NotTo(HaveOccurred())
			Expect(expired).To(Equal(int64(2)))

			_, err = otps.GetGeneratedByEmail(ctx, user.Email)
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("counts passcodes inside the rate window regardless of state", func() {
			user := newUser("otp-count@example.com")
			Expect(users.Create(ctx, user)).To(Succeed())

			now := time.Now().UTC()
			Expect(otps.Create(ctx, newOtp(user, now.Add(-5*time.Minute)))).To(Succeed())
			stale := newOtp(user, now.Add(-15*time.Minute))
			stale.State = auth.OtpStateExpired
			Expect(otps.Create(ctx, stale)).To(Succeed())

			count, err := otps.CountByEmailCreatedAfter(ctx, user.Email, now.Add(-auth.OtpRateWindow))
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(1)), "entries outside the window do not count")
		})

		It("lists only stale generated passcodes", func() {
			user := newUser("otp-sweep@example.com")
			Expect(users.Create(ctx, user)).To(Succeed())

			now := time.Now().UTC()
			staleOtp := newOtp(user, now.Add(-15*time.Minute))
			Expect(otps.Create(ctx, staleOtp)).To(Succeed())
			Expect(otps.Create(ctx, newOtp(user, now))).To(Succeed())

			stale, err := otps.ListGeneratedBefore(ctx, now.Add(-auth.OtpTTL))
			Expect(err).NotTo(HaveOccurred())

			ids := make([]string, 0, len(stale))
			for _, o := range stale {
				ids = append(ids, o.OtpID)
			}
			Expect(ids).To(ContainElement(staleOtp.OtpID))

			for _, o := range stale {
				Expect(o.State).To(Equal(auth.OtpStateGenerated))
				Expect(o.CreatedAt.Before(now.Add(-auth.OtpTTL))).To(BeTrue())
			}
		})
	})
})
