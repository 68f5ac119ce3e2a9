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

// OtpRepository implements auth.OtpRepository using PostgreSQL.
type OtpRepository struct {
	pool Pool
}

// NewOtpRepository creates a new OtpRepository.
func NewOtpRepository(pool Pool) *OtpRepository {
	return &OtpRepository{pool: pool}
}

// Create stores a new passcode.
func (r *OtpRepository) Create(ctx context.Context, otp *auth.Otp) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO otps (otp_id, value, email, user_id, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		otp.OtpID,
		otp.Value,
		otp.Email,
		otp.UserID,
		string(otp.State),
		otp.CreatedAt,
	)
	if err != nil {
		return oops.Code("OTP_CREATE_FAILED").
			With("operation", "insert otp").
			With("otp_id", otp.OtpID).
			Wrap(err)
	}
	return nil
}

// GetGeneratedByEmail retrieves the GENERATED passcode for an email.
func (r *OtpRepository) GetGeneratedByEmail(ctx context.Context, email string) (*auth.Otp, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT otp_id, value, email, user_id, state, created_at
		FROM otps
		WHERE email = $1 AND state = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, email, string(auth.OtpStateGenerated))

	otp, err := r.scanOtp(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("OTP_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("OTP_GET_BY_EMAIL_FAILED").
			With("operation", "get generated otp by email").
			Wrap(err)
	}
	return otp, nil
}

// GetByIDAndState retrieves a passcode by ID in a specific state.
func (r *OtpRepository) GetByIDAndState(ctx context.Context, otpID string, state auth.OtpState) (*auth.Otp, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT otp_id, value, email, user_id, state, created_at
		FROM otps
		WHERE otp_id = $1 AND state = $2
	`, otpID, string(state))

	otp, err := r.scanOtp(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("OTP_NOT_FOUND").
			With("otp_id", otpID).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("OTP_GET_BY_ID_FAILED").
			With("operation", "get otp by id and state").
			With("otp_id", otpID).
			Wrap(err)
	}
	return otp, nil
}

// CountByEmailCreatedAfter counts passcodes created for the email
// after the given instant, regardless of state.
func (r *OtpRepository) CountByEmailCreatedAfter(ctx context.Context, email string, after time.Time) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM otps
		WHERE email = $1 AND created_at > $2
	`, email, after).Scan(&count)
	if err != nil {
		return 0, oops.Code("OTP_COUNT_FAILED").
			With("operation", "count otps by email").
			Wrap(err)
	}
	return count, nil
}

// TransitionState moves a passcode from one state to another. The
// write is conditional on the stored state so concurrent transitions
// cannot both win.
func (r *OtpRepository) TransitionState(ctx context.Context, otpID string, from, to auth.OtpState) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE otps SET state = $3
		WHERE otp_id = $1 AND state = $2
	`, otpID, string(from), string(to))
	if err != nil {
		return false, oops.Code("OTP_TRANSITION_FAILED").
			With("operation", "transition otp state").
			With("otp_id", otpID).
			With("from", string(from)).
			With("to", string(to)).
			Wrap(err)
	}
	return result.RowsAffected() > 0, nil
}

// ExpireActive expires every GENERATED passcode for the email.
func (r *OtpRepository) ExpireActive(ctx context.Context, email string) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE otps SET state = $2
		WHERE email = $1 AND state = $3
	`, email, string(auth.OtpStateExpired), string(auth.OtpStateGenerated))
	if err != nil {
		return 0, oops.Code("OTP_EXPIRE_FAILED").
			With("operation", "expire active otps").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// ListGeneratedBefore returns GENERATED passcodes created before the
// threshold.
func (r *OtpRepository) ListGeneratedBefore(ctx context.Context, threshold time.Time) ([]*auth.Otp, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT otp_id, value, email, user_id, state, created_at
		FROM otps
		WHERE state = $1 AND created_at < $2
	`, string(auth.OtpStateGenerated), threshold)
	if err != nil {
		return nil, oops.Code("OTP_LIST_FAILED").
			With("operation", "list generated otps").
			Wrap(err)
	}
	defer rows.Close()

	var otps []*auth.Otp
	for rows.Next() {
		otp, err := r.scanOtp(rows)
		if err != nil {
			return nil, oops.Code("OTP_SCAN_FAILED").
				With("operation", "scan otp row").
				Wrap(err)
		}
		otps = append(otps, otp)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("OTP_ROWS_ERROR").
			With("operation", "iterate otp rows").
			Wrap(err)
	}
	return otps, nil
}

func (r *OtpRepository) scanOtp(row pgx.Row) (*auth.Otp, error) {
	var otp auth.Otp
	var state string
	err := row.Scan(
		&otp.OtpID,
		&otp.Value,
		&otp.Email,
		&otp.UserID,
		&state,
		&otp.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	otp.State = auth.OtpState(state)
	return &otp, nil
}
