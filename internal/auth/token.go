// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GridHive Contributors

package auth

import (
	"context"
	"crypto/rand"
	"strings"
	"time"

	"github.com/samber/oops"
)

// Token value configuration.
const (
	// TokenValuePrefix marks every token value issued by this service.
	TokenValuePrefix = "RTT_"

	// SessionTokenLength is the random-part length of a session token.
	SessionTokenLength = 120

	// BoardTokenLength is the random-part length of a board token.
	// Boards store their secret in constrained flash, so the value is
	// short; the reduced search space is an accepted trade-off.
	BoardTokenLength = 32
)

// Token lifetimes.
const (
	SessionTokenExpiry = 7 * 24 * time.Hour
	ResetTokenExpiry   = 10 * time.Minute

	// BoardTokenExpiry makes board tokens effectively non-expiring;
	// they are rotated by replacement, not by expiry.
	BoardTokenExpiry = 100 * 365 * 24 * time.Hour

	// logoutBackdate is how far into the past a force-expired token's
	// expiry is moved.
	logoutBackdate = 24 * time.Hour
)

// BoardRoleID is the fixed low-privilege role carried by board tokens.
const BoardRoleID = "00004"

// BoardUserPrefix builds the synthetic owner identity of board tokens.
const BoardUserPrefix = "Board_"

// tokenAlphabet is the character set of token values.
const tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_-"

// Token is a bearer credential for an authenticated session or device.
//
// A token is valid iff now < ExpiredAt. The value is unguessable and
// never reused. OtpID is set only on tokens minted through OTP
// verification and marks them reset-scoped. AccountID, RoleID, and
// BoardID are authorization context carried for downstream services and
// opaque here.
type Token struct {
	TokenID   string
	Value     string
	UserID    string
	OtpID     string
	AccountID string
	RoleID    string
	BoardID   string
	CreatedAt time.Time
	ExpiredAt time.Time
}

// Active reports whether the token is valid at the given instant.
// The comparison is strictly exclusive: a token is already invalid at
// now == ExpiredAt.
func (t Token) Active(now time.Time) bool {
	return now.Before(t.ExpiredAt)
}

// Expired returns a copy of the token force-expired at the given
// instant. The expiry is backdated so the token fails validation on any
// clock within a day of skew. Force-expiry is permanent; there is no
// re-activation transition.
func (t Token) Expired(now time.Time) Token {
	t.ExpiredAt = now.Add(-logoutBackdate)
	return t
}

// IsResetScoped reports whether the token was minted through OTP
// verification and may only authorize a password reset.
func (t Token) IsResetScoped() bool {
	return t.OtpID != ""
}

// GenerateTokenValue creates a random token value with the service
// prefix. Board tokens get the short form.
func GenerateTokenValue(board bool) (string, error) {
	length := SessionTokenLength
	if board {
		length = BoardTokenLength
	}
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("AUTH_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			Wrap(err)
	}
	var sb strings.Builder
	sb.Grow(len(TokenValuePrefix) + length)
	sb.WriteString(TokenValuePrefix)
	for _, c := range b {
		sb.WriteByte(tokenAlphabet[int(c)%len(tokenAlphabet)])
	}
	return sb.String(), nil
}

// TokenRepository manages token persistence.
type TokenRepository interface {
	// Create stores a new token.
	Create(ctx context.Context, token *Token) error

	// GetByValue retrieves a token by value regardless of expiry.
	// Returns ErrNotFound when absent.
	GetByValue(ctx context.Context, value string) (*Token, error)

	// GetActiveByValue retrieves a token by value with expired_at
	// strictly after now. Returns ErrNotFound when absent or expired.
	GetActiveByValue(ctx context.Context, value string, now time.Time) (*Token, error)

	// GetActiveByBoard retrieves an unexpired token for a board.
	// Returns ErrNotFound when the board has none.
	GetActiveByBoard(ctx context.Context, boardID string, now time.Time) (*Token, error)

	// UpdateExpiry persists a new expiry for a token.
	UpdateExpiry(ctx context.Context, tokenID string, expiredAt time.Time) error

	// DeleteByBoard removes all tokens issued to a board.
	DeleteByBoard(ctx context.Context, boardID string) error
}
