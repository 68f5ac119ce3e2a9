// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GridHive Contributors

package auth

import "errors"

// Sentinel errors for the failure taxonomy. Call sites wrap these with
// samber/oops codes so callers can match with errors.Is while surfaces
// read the stable code.
var (
	// ErrAlreadyRegistered is returned when a sign-up email is taken.
	ErrAlreadyRegistered = errors.New("already registered")

	// ErrInvalidCredentials is returned for a bad email/password pair.
	// Unknown email and wrong password map to the same error so callers
	// cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthorized is returned for a bad, expired, or absent token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTooManyRequests is returned when the OTP sliding-window rate
	// limit is exceeded.
	ErrTooManyRequests = errors.New("too many requests")

	// ErrInvalidOtp is returned when a submitted code does not match.
	ErrInvalidOtp = errors.New("invalid otp")

	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")
)
