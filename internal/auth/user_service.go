// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GridHive Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// UserService provides registration, credential verification, and
// password reset.
type UserService struct {
	users     UserRepository
	hasher    PasswordHasher
	ids       IDGenerator
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewUserService creates a UserService.
func NewUserService(users UserRepository, hasher PasswordHasher, ids IDGenerator, publisher Publisher, logger *slog.Logger) *UserService {
	return &UserService{
		users:     users,
		hasher:    hasher,
		ids:       ids,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Register creates a new user account. Returns ErrAlreadyRegistered
// when the email is taken.
func (s *UserService) Register(ctx context.Context, name, email, password string) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "check email").
			Wrap(err)
	}
	if exists {
		s.audit(AuditSignUp, "", false, map[string]string{"email": email})
		return nil, oops.Code("AUTH_ALREADY_REGISTERED").
			With("email", email).
			Wrap(ErrAlreadyRegistered)
	}

	userID, err := s.ids.Generate(IDKindUser)
	if err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "generate user ID").
			Wrap(err)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}
	user, err := NewUser(userID, name, email, hash)
	if err != nil {
		return nil, err
	}
	user.RegisteredAt = s.now()

	if err := s.users.Create(ctx, user); err != nil {
		// The uniqueness race loses to the database constraint.
		if errors.Is(err, ErrAlreadyRegistered) {
			s.audit(AuditSignUp, "", false, map[string]string{"email": email})
			return nil, oops.Code("AUTH_ALREADY_REGISTERED").
				With("email", email).
				Wrap(ErrAlreadyRegistered)
		}
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "persist user").
			Wrap(err)
	}

	s.audit(AuditSignUp, user.UserID, true, nil)
	return user, nil
}

// VerifyCredentials checks an email/password pair and returns the user
// on success. Unknown email and wrong password both return
// ErrInvalidCredentials, and both paths run a hash verification so
// response time does not leak which one happened.
func (s *UserService) VerifyCredentials(ctx context.Context, email, password string) (*User, error) {
	user, lookupErr := s.users.GetByEmail(ctx, email)

	targetHash := dummyPasswordHash
	userExists := false
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("AUTH_VERIFY_FAILED").
				With("operation", "get user by email").
				Wrap(lookupErr)
		}
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !userExists {
			return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
		}
		return nil, oops.Code("AUTH_VERIFY_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	if !userExists || !valid {
		if userExists {
			s.audit(AuditVerifyPassword, user.UserID, false, nil)
		}
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	s.audit(AuditVerifyPassword, user.UserID, true, nil)
	return user, nil
}

// ResetPassword replaces a user's password without checking the old
// one. Callers must have already proven control of the account, for
// example through a verified passcode.
func (s *UserService) ResetPassword(ctx context.Context, userID, newPassword string) (*User, error) {
	if err := ValidatePassword(newPassword); err != nil {
		return nil, err
	}
	user, err := s.users.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_USER_NOT_FOUND").
				With("user_id", userID).
				Wrap(ErrNotFound)
		}
		return nil, oops.Code("AUTH_RESET_FAILED").
			With("operation", "get user").
			Wrap(err)
	}
	return s.replacePassword(ctx, user, newPassword)
}

// ResetPasswordWithCurrent replaces a user's password after verifying
// the current one. A wrong current password returns
// ErrInvalidCredentials.
func (s *UserService) ResetPasswordWithCurrent(ctx context.Context, userID, currentPassword, newPassword string) (*User, error) {
	if err := ValidatePassword(newPassword); err != nil {
		return nil, err
	}
	user, err := s.users.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_USER_NOT_FOUND").
				With("user_id", userID).
				Wrap(ErrNotFound)
		}
		return nil, oops.Code("AUTH_RESET_FAILED").
			With("operation", "get user").
			Wrap(err)
	}

	valid, err := s.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil {
		return nil, oops.Code("AUTH_RESET_FAILED").
			With("operation", "verify current password").
			Wrap(err)
	}
	if !valid {
		s.audit(AuditResetPassword, user.UserID, false, nil)
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}
	return s.replacePassword(ctx, user, newPassword)
}

func (s *UserService) replacePassword(ctx context.Context, user *User, newPassword string) (*User, error) {
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, oops.Code("AUTH_RESET_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}
	if err := s.users.UpdatePassword(ctx, user.UserID, hash); err != nil {
		return nil, oops.Code("AUTH_RESET_FAILED").
			With("operation", "persist password").
			Wrap(err)
	}
	updated := user.WithPassword(hash)
	s.audit(AuditResetPassword, user.UserID, true, nil)
	return &updated, nil
}

// GetByEmail retrieves a user by email. Returns ErrNotFound when absent.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_USER_NOT_FOUND").
				With("email", email).
				Wrap(ErrNotFound)
		}
		return nil, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	return user, nil
}

// GetByUserID retrieves a user by ID. Returns ErrNotFound when absent.
func (s *UserService) GetByUserID(ctx context.Context, userID string) (*User, error) {
	user, err := s.users.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_USER_NOT_FOUND").
				With("user_id", userID).
				Wrap(ErrNotFound)
		}
		return nil, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "get user by ID").
			Wrap(err)
	}
	return user, nil
}

func (s *UserService) audit(event AuditEvent, userID string, success bool, metadata map[string]string) {
	s.publisher.Publish(TopicAudit, newAuditMessage(event, userID, success, metadata))
}
