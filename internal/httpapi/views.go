// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GridHive Contributors

package httpapi

import (
	"time"

	"github.com/samber/oops"

	"github.com/gridhive/authd/internal/auth"
)

// Name length bounds for sign-up.
const (
	minNameLength = 4
	maxNameLength = 30
)

// SignUpRequest is the body of POST /auth/sign-up.
type SignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the request fields.
func (r SignUpRequest) Validate() error {
	if len(r.Name) < minNameLength || len(r.Name) > maxNameLength {
		return oops.Code("AUTH_INVALID_NAME").
			Errorf("name must be between %d and %d characters", minNameLength, maxNameLength)
	}
	if err := auth.ValidateEmail(r.Email); err != nil {
		return err
	}
	return auth.ValidatePassword(r.Password)
}

// SignUpResponse is the body returned by POST /auth/sign-up.
type SignUpResponse struct {
	Email  string `json:"email"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the request fields.
func (r LoginRequest) Validate() error {
	if err := auth.ValidateEmail(r.Email); err != nil {
		return err
	}
	if r.Password == "" {
		return oops.Code("AUTH_INVALID_PASSWORD").Errorf("password is required")
	}
	return nil
}

// TokenResponse carries an issued token value.
type TokenResponse struct {
	Token   string `json:"token"`
	Success bool   `json:"success"`
}

// LogoutResponse is the body returned by GET /auth/logout.
type LogoutResponse struct {
	Success bool `json:"success"`
}

// ValidateTokenResponse is the body returned by GET /auth/validate.
type ValidateTokenResponse struct {
	UserID    string `json:"userId"`
	ProjectID string `json:"projectId"`
	RoleID    string `json:"roleId"`
	BoardID   string `json:"boardId,omitempty"`
}

// GenerateOtpRequest is the body of POST /auth/generate-otp.
type GenerateOtpRequest struct {
	Email string `json:"email"`
}

// Validate checks the request fields.
func (r GenerateOtpRequest) Validate() error {
	return auth.ValidateEmail(r.Email)
}

// OtpResponse is the body returned by POST /auth/generate-otp.
type OtpResponse struct {
	OtpID      string    `json:"otpId"`
	Success    bool      `json:"success"`
	GenerateAt time.Time `json:"generateAt"`
}

// VerifyOtpRequest is the body of POST /auth/verify-otp.
type VerifyOtpRequest struct {
	OtpID string `json:"otpId"`
	Otp   string `json:"otp"`
}

// Validate checks the request fields.
func (r VerifyOtpRequest) Validate() error {
	if r.OtpID == "" {
		return oops.Code("AUTH_INVALID_OTP_ID").Errorf("otpId must not be blank")
	}
	if r.Otp == "" {
		return oops.Code("AUTH_INVALID_OTP_CODE").Errorf("otp must not be blank")
	}
	return nil
}

// ResetPasswordRequest is the body of POST /auth/reset-password.
// CurrentPassword may be empty when the bearer token is reset-scoped.
type ResetPasswordRequest struct {
	CurrentPassword string `json:"currentPassword,omitempty"`
	Password        string `json:"password"`
}

// Validate checks the request fields.
func (r ResetPasswordRequest) Validate() error {
	return auth.ValidatePassword(r.Password)
}

// ResetPasswordResponse is the body returned by POST /auth/reset-password.
type ResetPasswordResponse struct {
	Success bool `json:"success"`
}

// UpdateTokenRequest is the body of POST /auth/update-token.
type UpdateTokenRequest struct {
	ProjectID string `json:"projectId"`
	RoleID    string `json:"roleId"`
}

// Validate checks the request fields.
func (r UpdateTokenRequest) Validate() error {
	if r.ProjectID == "" {
		return oops.Code("AUTH_INVALID_PROJECT").Errorf("projectId must not be blank")
	}
	if r.RoleID == "" {
		return oops.Code("AUTH_INVALID_ROLE").Errorf("roleId must not be blank")
	}
	return nil
}

// UserDetailsResponse is the body returned by GET /auth/user-details.
type UserDetailsResponse struct {
	UserID       string    `json:"userId"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registeredAt"`
	RoleID       string    `json:"roleId"`
}

// SecretKeyResponse is the body returned by the board secret-key routes.
type SecretKeyResponse struct {
	SecretKey string `json:"secretKey"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Success bool   `json:"success"`
}
