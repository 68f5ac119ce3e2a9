// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GridHive Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"time"

	"github.com/samber/oops"
)

// OTP configuration.
const (
	// OtpCodeLength is the number of digits in a passcode.
	OtpCodeLength = 6

	// OtpTTL bounds the lifetime of a GENERATED passcode; the sweeper
	// expires anything older.
	OtpTTL = 10 * time.Minute

	// OtpRateWindow and OtpRateLimit form the sliding-window rate
	// limit: at most OtpRateLimit codes per email per trailing window.
	OtpRateWindow = 10 * time.Minute
	OtpRateLimit  = 3
)

// OtpState is the lifecycle state of a passcode.
type OtpState string

// Passcode states. Transitions are monotonic: GENERATED may move to
// VERIFIED or EXPIRED, both terminal.
const (
	OtpStateGenerated OtpState = "GENERATED"
	OtpStateVerified  OtpState = "VERIFIED"
	OtpStateExpired   OtpState = "EXPIRED"
)

// Otp is a one-time numeric passcode bound to an email.
type Otp struct {
	OtpID     string
	Value     string
	Email     string
	UserID    string
	State     OtpState
	CreatedAt time.Time
}

// Matches compares a submitted code against the stored value in
// constant time.
func (o Otp) Matches(code string) bool {
	return subtle.ConstantTimeCompare([]byte(o.Value), []byte(code)) == 1
}

// Verified returns a copy of the passcode in the VERIFIED state.
func (o Otp) Verified() Otp {
	o.State = OtpStateVerified
	return o
}

// Expired returns a copy of the passcode in the EXPIRED state.
func (o Otp) Expired() Otp {
	o.State = OtpStateExpired
	return o
}

// GenerateOtpCode creates a uniformly random numeric code of the given
// length. Bytes at or above the largest multiple of 10 are rejected so
// no digit is favored.
func GenerateOtpCode(length int) (string, error) {
	const limit = 250
	code := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(code) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", oops.Code("AUTH_OTP_GENERATE_FAILED").
				With("operation", "crypto/rand.Read").
				Wrap(err)
		}
		for _, c := range buf {
			if c >= limit {
				continue
			}
			code = append(code, '0'+c%10)
			if len(code) == length {
				break
			}
		}
	}
	return string(code), nil
}

// OtpRepository manages passcode persistence.
//
// State transitions go through TransitionState, a conditional write that
// only succeeds when the stored state still matches from. This keeps
// transitions monotonic even when the sweeper and the request path race.
type OtpRepository interface {
	// Create stores a new passcode.
	Create(ctx context.Context, otp *Otp) error

	// GetGeneratedByEmail retrieves the GENERATED passcode for an
	// email, if any. Returns ErrNotFound when there is none.
	GetGeneratedByEmail(ctx context.Context, email string) (*Otp, error)

	// GetByIDAndState retrieves a passcode by ID in a specific state.
	// Returns ErrNotFound when absent.
	GetByIDAndState(ctx context.Context, otpID string, state OtpState) (*Otp, error)

	// CountByEmailCreatedAfter counts passcodes created for the email
	// after the given instant, regardless of state.
	CountByEmailCreatedAfter(ctx context.Context, email string, after time.Time) (int64, error)

	// TransitionState moves a passcode from one state to another.
	// Returns false without error when the passcode was not in the
	// expected state.
	TransitionState(ctx context.Context, otpID string, from, to OtpState) (bool, error)

	// ExpireActive expires every GENERATED passcode for the email and
	// returns how many were expired.
	ExpireActive(ctx context.Context, email string) (int64, error)

	// ListGeneratedBefore returns GENERATED passcodes created before
	// the threshold.
	ListGeneratedBefore(ctx context.Context, threshold time.Time) ([]*Otp, error)
}
