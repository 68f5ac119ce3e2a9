// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GridHive Contributors

// Package auth implements the credential and session lifecycle of the
// GridHive platform's auth service.
//
// # Domain Types
//
// Domain types (User, Token, Otp) are plain records. State transitions
// are pure functions returning a new value (Token.Expired, Otp.Verified,
// Otp.Expired) followed by an explicit repository write; records are
// never mutated in place.
//
// # Services
//
// Service types coordinate domain operations:
//   - UserService - registration, credential verification, password reset
//   - TokenService - bearer token issuance, validation, and expiry
//   - OtpService - one-time passcode generation and verification
//   - Sweeper - background expiry of abandoned passcodes
//
// Persistence, password hashing, ID generation, audit publishing, and
// account/board authorization are consumed through interfaces declared in
// this package; PostgreSQL implementations live in the postgres
// subpackage.
package auth
