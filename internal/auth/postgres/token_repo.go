// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GridHive Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/gridhive/authd/internal/auth"
)

// TokenRepository implements auth.TokenRepository using PostgreSQL.
type TokenRepository struct {
	pool Pool
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(pool Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// Create stores a new token.
func (r *TokenRepository) Create(ctx context.Context, token *auth.Token) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tokens (token_id, value, user_id, otp_id, account_id, role_id, board_id, created_at, expired_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		token.TokenID,
		token.Value,
		token.UserID,
		nullable(token.OtpID),
		nullable(token.AccountID),
		nullable(token.RoleID),
		nullable(token.BoardID),
		token.CreatedAt,
		token.ExpiredAt,
	)
	if err != nil {
		return oops.Code("TOKEN_CREATE_FAILED").
			With("operation", "insert token").
			With("token_id", token.TokenID).
			Wrap(err)
	}
	return nil
}

// GetByValue retrieves a token by value regardless of expiry.
func (r *TokenRepository) GetByValue(ctx context.Context, value string) (*auth.Token, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT token_id, value, user_id, otp_id, account_id, role_id, board_id, created_at, expired_at
		FROM tokens
		WHERE value = $1
	`, value)

	token, err := r.scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_GET_BY_VALUE_FAILED").
			With("operation", "get token by value").
			Wrap(err)
	}
	return token, nil
}

// GetActiveByValue retrieves a token by value with expiry strictly
// after now.
func (r *TokenRepository) GetActiveByValue(ctx context.Context, value string, now time.Time) (*auth.Token, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT token_id, value, user_id, otp_id, account_id, role_id, board_id, created_at, expired_at
		FROM tokens
		WHERE value = $1 AND expired_at > $2
	`, value, now)

	token, err := r.scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_GET_ACTIVE_FAILED").
			With("operation", "get active token by value").
			Wrap(err)
	}
	return token, nil
}

// GetActiveByBoard retrieves an unexpired token for a board.
func (r *TokenRepository) GetActiveByBoard(ctx context.Context, boardID string, now time.Time) (*auth.Token, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT token_id, value, user_id, otp_id, account_id, role_id, board_id, created_at, expired_at
		FROM tokens
		WHERE board_id = $1 AND expired_at > $2
		ORDER BY created_at DESC
		LIMIT 1
	`, boardID, now)

	token, err := r.scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").
			With("board_id", boardID).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_GET_BY_BOARD_FAILED").
			With("operation", "get active token by board").
			With("board_id", boardID).
			Wrap(err)
	}
	return token, nil
}

// UpdateExpiry persists a new expiry for a token.
func (r *TokenRepository) UpdateExpiry(ctx context.Context, tokenID string, expiredAt time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE tokens SET expired_at = $2
		WHERE token_id = $1
	`, tokenID, expiredAt)
	if err != nil {
		return oops.Code("TOKEN_UPDATE_EXPIRY_FAILED").
			With("operation", "update expired_at").
			With("token_id", tokenID).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("TOKEN_NOT_FOUND").
			With("token_id", tokenID).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteByBoard removes all tokens issued to a board. Deleting for a
// board with no tokens is a valid no-op.
func (r *TokenRepository) DeleteByBoard(ctx context.Context, boardID string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM tokens WHERE board_id = $1
	`, boardID)
	if err != nil {
		return oops.Code("TOKEN_DELETE_BY_BOARD_FAILED").
			With("operation", "delete tokens by board").
			With("board_id", boardID).
			Wrap(err)
	}
	return nil
}

func (r *TokenRepository) scanToken(row pgx.Row) (*auth.Token, error) {
	var token auth.Token
	var otpID, accountID, roleID, boardID *string
	err := row.Scan(
		&token.TokenID,
		&token.Value,
		&token.UserID,
		&otpID,
		&accountID,
		&roleID,
		&boardID,
		&token.CreatedAt,
		&token.ExpiredAt,
	)
	if err != nil {
		return nil, err
	}
	token.OtpID = deref(otpID)
	token.AccountID = deref(accountID)
	token.RoleID = deref(roleID)
	token.BoardID = deref(boardID)
	return &token, nil
}

// nullable maps the empty string to NULL for optional columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
