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

// TokenClaims is the authorization context carried by a valid token.
type TokenClaims struct {
	UserID    string
	AccountID string
	RoleID    string
	BoardID   string
}

// TokenOptions carries the optional fields of a minted token.
type TokenOptions struct {
	OtpID     string
	AccountID string
	RoleID    string
	BoardID   string
}

// ResetPasswordRequest is the input to the token-authorized password
// reset. CurrentPassword is required unless the token is reset-scoped.
type ResetPasswordRequest struct {
	CurrentPassword string
	Password        string
}

// resetMode selects which proof of account control a reset demands.
type resetMode int

const (
	// resetModeSelfService demands the current password.
	resetModeSelfService resetMode = iota
	// resetModeOtpAuthorized accepts the reset-scoped token alone; the
	// passcode already proved control of the mailbox.
	resetModeOtpAuthorized
)

// CredentialVerifier checks an email/password pair.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, email, password string) (*User, error)
}

// PasswordResetter replaces a user's password through either reset path.
type PasswordResetter interface {
	ResetPassword(ctx context.Context, userID, newPassword string) (*User, error)
	ResetPasswordWithCurrent(ctx context.Context, userID, currentPassword, newPassword string) (*User, error)
}

// TokenService mints, validates, and retires bearer tokens.
type TokenService struct {
	tokens    TokenRepository
	ids       IDGenerator
	verifier  CredentialVerifier
	resetter  PasswordResetter
	gateway   AuthorizationGateway
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewTokenService creates a TokenService.
func NewTokenService(
	tokens TokenRepository,
	ids IDGenerator,
	verifier CredentialVerifier,
	resetter PasswordResetter,
	gateway AuthorizationGateway,
	publisher Publisher,
	logger *slog.Logger,
) *TokenService {
	return &TokenService{
		tokens:    tokens,
		ids:       ids,
		verifier:  verifier,
		resetter:  resetter,
		gateway:   gateway,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Login verifies credentials and mints a week-long session token.
func (s *TokenService) Login(ctx context.Context, email, password string) (*Token, error) {
	user, err := s.verifier.VerifyCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.GenerateToken(ctx, user.UserID, s.now().Add(SessionTokenExpiry), TokenOptions{})
}

// Validate resolves a token value to its claims. Returns
// ErrUnauthorized when the value is unknown or the token has expired.
func (s *TokenService) Validate(ctx context.Context, value string) (*TokenClaims, error) {
	if value == "" {
		return nil, oops.Code("AUTH_TOKEN_INVALID").Wrap(ErrUnauthorized)
	}
	token, err := s.tokens.GetActiveByValue(ctx, value, s.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_TOKEN_INVALID").Wrap(ErrUnauthorized)
		}
		return nil, oops.Code("AUTH_VALIDATE_FAILED").
			With("operation", "get token by value").
			Wrap(err)
	}
	return &TokenClaims{
		UserID:    token.UserID,
		AccountID: token.AccountID,
		RoleID:    token.RoleID,
		BoardID:   token.BoardID,
	}, nil
}

// GenerateToken mints and persists a token for the user.
func (s *TokenService) GenerateToken(ctx context.Context, userID string, expiredAt time.Time, opts TokenOptions) (*Token, error) {
	tokenID, err := s.ids.Generate(IDKindToken)
	if err != nil {
		s.audit(AuditGenerateToken, userID, false, nil)
		return nil, oops.Code("AUTH_TOKEN_GENERATE_FAILED").
			With("operation", "generate token ID").
			Wrap(err)
	}
	value, err := GenerateTokenValue(opts.BoardID != "")
	if err != nil {
		s.audit(AuditGenerateToken, userID, false, nil)
		return nil, err
	}
	token := &Token{
		TokenID:   tokenID,
		Value:     value,
		UserID:    userID,
		OtpID:     opts.OtpID,
		AccountID: opts.AccountID,
		RoleID:    opts.RoleID,
		BoardID:   opts.BoardID,
		CreatedAt: s.now(),
		ExpiredAt: expiredAt,
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		s.audit(AuditGenerateToken, userID, false, nil)
		return nil, oops.Code("AUTH_TOKEN_GENERATE_FAILED").
			With("operation", "persist token").
			Wrap(err)
	}
	s.audit(AuditGenerateToken, userID, true, map[string]string{"tokenId": tokenID})
	return token, nil
}

// UpdateToken exchanges a valid token for a new one carrying account
// and role context. The account service must confirm the user holds the
// role in the account. The old token is not expired; both remain valid
// until their shared expiry.
func (s *TokenService) UpdateToken(ctx context.Context, value, accountID, roleID string) (*Token, error) {
	token, err := s.tokens.GetActiveByValue(ctx, value, s.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_TOKEN_INVALID").Wrap(ErrUnauthorized)
		}
		return nil, oops.Code("AUTH_UPDATE_TOKEN_FAILED").
			With("operation", "get token by value").
			Wrap(err)
	}

	valid, err := s.gateway.IsValidAccountAndRole(ctx, token.UserID, accountID, roleID)
	if err != nil {
		return nil, oops.Code("AUTH_UPDATE_TOKEN_FAILED").
			With("operation", "validate account and role").
			Wrap(err)
	}
	if !valid {
		return nil, oops.Code("AUTH_TOKEN_INVALID").
			With("account_id", accountID).
			With("role_id", roleID).
			Wrap(ErrUnauthorized)
	}

	return s.GenerateToken(ctx, token.UserID, token.ExpiredAt, TokenOptions{
		AccountID: accountID,
		RoleID:    roleID,
	})
}

// Logout force-expires a token by value. Expired tokens log out
// cleanly; an unknown value returns ErrUnauthorized.
func (s *TokenService) Logout(ctx context.Context, value string) error {
	token, err := s.tokens.GetByValue(ctx, value)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.audit(AuditLogOut, "", false, nil)
			return oops.Code("AUTH_TOKEN_INVALID").Wrap(ErrUnauthorized)
		}
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "get token by value").
			Wrap(err)
	}
	expired := token.Expired(s.now())
	if err := s.tokens.UpdateExpiry(ctx, token.TokenID, expired.ExpiredAt); err != nil {
		s.audit(AuditLogOut, token.UserID, false, nil)
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "expire token").
			Wrap(err)
	}
	s.audit(AuditLogOut, token.UserID, true, map[string]string{"tokenId": token.TokenID})
	return nil
}

// GenerateTokenForBoard issues the board's long-lived secret key. The
// call is idempotent: an existing active board token is returned as is.
// New issuance requires the account service to confirm the board
// belongs to the caller's account.
func (s *TokenService) GenerateTokenForBoard(ctx context.Context, boardID, accountID string) (*Token, error) {
	existing, err := s.tokens.GetActiveByBoard(ctx, boardID, s.now())
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("AUTH_BOARD_TOKEN_FAILED").
			With("operation", "get board token").
			Wrap(err)
	}

	valid, err := s.gateway.IsValidBoard(ctx, boardID, accountID)
	if err != nil {
		return nil, oops.Code("AUTH_BOARD_TOKEN_FAILED").
			With("operation", "validate board").
			Wrap(err)
	}
	if !valid {
		return nil, oops.Code("AUTH_TOKEN_INVALID").
			With("board_id", boardID).
			Wrap(ErrUnauthorized)
	}

	return s.GenerateToken(ctx, BoardUserPrefix+boardID, s.now().Add(BoardTokenExpiry), TokenOptions{
		AccountID: accountID,
		RoleID:    BoardRoleID,
		BoardID:   boardID,
	})
}

// UpdateTokenForBoard rotates the board's secret key: every token the
// board holds is removed before a fresh one is issued.
func (s *TokenService) UpdateTokenForBoard(ctx context.Context, boardID, accountID string) (*Token, error) {
	if err := s.tokens.DeleteByBoard(ctx, boardID); err != nil {
		return nil, oops.Code("AUTH_BOARD_TOKEN_FAILED").
			With("operation", "delete board tokens").
			Wrap(err)
	}
	return s.GenerateTokenForBoard(ctx, boardID, accountID)
}

// ResetPassword performs a token-authorized password reset. A
// reset-scoped token authorizes the change on its own; any other token
// additionally demands the current password. The consumed token is
// force-expired on success.
func (s *TokenService) ResetPassword(ctx context.Context, req ResetPasswordRequest, value string) (*User, error) {
	token, err := s.tokens.GetActiveByValue(ctx, value, s.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_TOKEN_INVALID").Wrap(ErrUnauthorized)
		}
		return nil, oops.Code("AUTH_RESET_FAILED").
			With("operation", "get token by value").
			Wrap(err)
	}

	mode := resetModeSelfService
	if token.IsResetScoped() {
		mode = resetModeOtpAuthorized
	}

	var user *User
	switch mode {
	case resetModeOtpAuthorized:
		user, err = s.resetter.ResetPassword(ctx, token.UserID, req.Password)
	default:
		user, err = s.resetter.ResetPasswordWithCurrent(ctx, token.UserID, req.CurrentPassword, req.Password)
	}
	if err != nil {
		return nil, err
	}

	// The token is single-use for resets; retire it even though the
	// reset already succeeded.
	expired := token.Expired(s.now())
	if uerr := s.tokens.UpdateExpiry(ctx, token.TokenID, expired.ExpiredAt); uerr != nil {
		s.logger.WarnContext(ctx, "failed to expire consumed reset token",
			"token_id", token.TokenID, "error", uerr)
	}
	return user, nil
}

func (s *TokenService) audit(event AuditEvent, userID string, success bool, metadata map[string]string) {
	s.publisher.Publish(TopicAudit, newAuditMessage(event, userID, success, metadata))
}
