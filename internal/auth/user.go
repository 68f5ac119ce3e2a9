// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GridHive Contributors

package auth

import (
	"context"
	"regexp"
	"time"

	"github.com/samber/oops"
)

// emailRegex is a pragmatic shape check; full address validation is the
// mail system's problem.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// User represents a registered account.
//
// UserID is assigned once at registration and never changes. Email is
// unique across the store. PasswordHash is the only mutable field, and
// only through the reset paths.
type User struct {
	UserID       string
	Name         string
	Email        string
	PasswordHash string
	RegisteredAt time.Time
}

// NewUser creates a validated User record.
func NewUser(userID, name, email, passwordHash string) (*User, error) {
	if userID == "" {
		return nil, oops.Code("AUTH_INVALID_USER").Errorf("user ID cannot be empty")
	}
	if name == "" {
		return nil, oops.Code("AUTH_INVALID_USER").Errorf("name cannot be empty")
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_USER").Errorf("password hash cannot be empty")
	}
	return &User{
		UserID:       userID,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		RegisteredAt: time.Now(),
	}, nil
}

// WithPassword returns a copy of the user carrying the new hash.
func (u User) WithPassword(passwordHash string) User {
	u.PasswordHash = passwordHash
	return u
}

// ValidateEmail checks the syntactic shape of an email address.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if !emailRegex.MatchString(email) {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email is not a valid address")
	}
	return nil
}

// ValidatePassword enforces the platform password policy: at least
// MinPasswordLength characters with one uppercase letter, one lowercase
// letter, and one digit.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return oops.Code("AUTH_INVALID_PASSWORD").
			Errorf("password must contain an uppercase letter, a lowercase letter, and a digit")
	}
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. Returns ErrAlreadyRegistered when the
	// email is already taken.
	Create(ctx context.Context, user *User) error

	// ExistsByEmail reports whether a user with the email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// GetByEmail retrieves a user by email. Returns ErrNotFound when absent.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByUserID retrieves a user by ID. Returns ErrNotFound when absent.
	GetByUserID(ctx context.Context, userID string) (*User, error)

	// UpdatePassword replaces the stored password hash.
	// Returns ErrNotFound when the user does not exist.
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}
