// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GridHive Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
)

// TokenMinter mints tokens for verified passcodes.
type TokenMinter interface {
	GenerateToken(ctx context.Context, userID string, expiredAt time.Time, opts TokenOptions) (*Token, error)
}

// UserLookup resolves an email to a user.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// OtpService generates and verifies one-time passcodes.
//
// Per-email operations serialize on a keyed mutex so the
// single-active-passcode invariant holds even under concurrent
// requests for the same address.
type OtpService struct {
	otps      OtpRepository
	ids       IDGenerator
	users     UserLookup
	minter    TokenMinter
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*emailLock
}

// emailLock serializes passcode operations for one email. refs counts
// holders and waiters so the entry can be evicted once uncontended.
type emailLock struct {
	mu   sync.Mutex
	refs int
}

// NewOtpService creates an OtpService.
func NewOtpService(otps OtpRepository, ids IDGenerator, users UserLookup, minter TokenMinter, publisher Publisher, logger *slog.Logger) *OtpService {
	return &OtpService{
		otps:      otps,
		ids:       ids,
		users:     users,
		minter:    minter,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		locks:     make(map[string]*emailLock),
	}
}

// lockEmail acquires the mutex serializing operations for an email,
// creating the entry on first use.
func (s *OtpService) lockEmail(email string) *emailLock {
	s.mu.Lock()
	l, ok := s.locks[email]
	if !ok {
		l = &emailLock{}
		s.locks[email] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return l
}

// unlockEmail releases the lock and evicts the entry when no other
// caller holds or waits on it, so the map cannot grow without bound
// across distinct emails.
func (s *OtpService) unlockEmail(email string, l *emailLock) {
	l.mu.Unlock()

	s.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, email)
	}
	s.mu.Unlock()
}

// GenerateOtp creates a passcode for the email and hands it to the
// communication topic for delivery.
//
// The rate limit is checked first and counts every generation attempt
// in the trailing window regardless of outcome, so it is evaluated
// before the account lookup. Any previously GENERATED passcode for the
// email is expired: at most one passcode per email is redeemable.
func (s *OtpService) GenerateOtp(ctx context.Context, email string) (*Otp, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	lock := s.lockEmail(email)
	defer s.unlockEmail(email, lock)

	now := s.now()
	count, err := s.otps.CountByEmailCreatedAfter(ctx, email, now.Add(-OtpRateWindow))
	if err != nil {
		return nil, oops.Code("AUTH_OTP_GENERATE_FAILED").
			With("operation", "count recent passcodes").
			Wrap(err)
	}
	if count >= OtpRateLimit {
		return nil, oops.Code("AUTH_TOO_MANY_REQUESTS").
			With("email", email).
			With("window", OtpRateWindow.String()).
			Wrap(ErrTooManyRequests)
	}

	if _, err := s.otps.ExpireActive(ctx, email); err != nil {
		return nil, oops.Code("AUTH_OTP_GENERATE_FAILED").
			With("operation", "expire previous passcodes").
			Wrap(err)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_USER_NOT_FOUND").
				With("email", email).
				Wrap(ErrNotFound)
		}
		return nil, oops.Code("AUTH_OTP_GENERATE_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	otpID, err := s.ids.Generate(IDKindOtp)
	if err != nil {
		s.audit(AuditGenerateOtp, user.UserID, false, nil)
		return nil, oops.Code("AUTH_OTP_GENERATE_FAILED").
			With("operation", "generate passcode ID").
			Wrap(err)
	}
	code, err := GenerateOtpCode(OtpCodeLength)
	if err != nil {
		s.audit(AuditGenerateOtp, user.UserID, false, nil)
		return nil, err
	}
	otp := &Otp{
		OtpID:     otpID,
		Value:     code,
		Email:     email,
		UserID:    user.UserID,
		State:     OtpStateGenerated,
		CreatedAt: now,
	}
	if err := s.otps.Create(ctx, otp); err != nil {
		s.audit(AuditGenerateOtp, user.UserID, false, nil)
		return nil, oops.Code("AUTH_OTP_GENERATE_FAILED").
			With("operation", "persist passcode").
			Wrap(err)
	}

	s.publisher.Publish(TopicNotification, NotificationMessage{
		Type:     "OTP",
		To:       otp.Email,
		UserID:   otp.UserID,
		Metadata: map[string]string{"name": user.Name, "otp": otp.Value},
	})
	s.audit(AuditGenerateOtp, user.UserID, true, map[string]string{"otpId": otpID})
	return otp, nil
}

// VerifyOtp checks a submitted code against a GENERATED passcode and,
// on match, moves it to VERIFIED and mints a short-lived reset-scoped
// token. Verification is single-use: a second attempt against the same
// passcode returns ErrUnauthorized because it is no longer GENERATED.
// A mismatched code returns ErrInvalidOtp and leaves the passcode
// redeemable.
func (s *OtpService) VerifyOtp(ctx context.Context, otpID, code string) (*Token, error) {
	otp, err := s.otps.GetByIDAndState(ctx, otpID, OtpStateGenerated)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_OTP_NOT_FOUND").
				With("otp_id", otpID).
				Wrap(ErrUnauthorized)
		}
		return nil, oops.Code("AUTH_OTP_VERIFY_FAILED").
			With("operation", "get passcode").
			Wrap(err)
	}

	if !otp.Matches(code) {
		s.audit(AuditVerifyOtp, otp.UserID, false, map[string]string{"otpId": otp.OtpID})
		return nil, oops.Code("AUTH_INVALID_OTP").
			With("otp_id", otpID).
			Wrap(ErrInvalidOtp)
	}

	moved, err := s.otps.TransitionState(ctx, otp.OtpID, OtpStateGenerated, OtpStateVerified)
	if err != nil {
		return nil, oops.Code("AUTH_OTP_VERIFY_FAILED").
			With("operation", "transition passcode state").
			Wrap(err)
	}
	if !moved {
		// Raced with the sweeper or a concurrent verification.
		return nil, oops.Code("AUTH_OTP_NOT_FOUND").
			With("otp_id", otpID).
			Wrap(ErrUnauthorized)
	}
	s.audit(AuditVerifyOtp, otp.UserID, true, map[string]string{"otpId": otp.OtpID})

	return s.minter.GenerateToken(ctx, otp.UserID, s.now().Add(ResetTokenExpiry), TokenOptions{
		OtpID: otp.OtpID,
	})
}

func (s *OtpService) audit(event AuditEvent, userID string, success bool, metadata map[string]string) {
	s.publisher.Publish(TopicAudit, newAuditMessage(event, userID, success, metadata))
}
