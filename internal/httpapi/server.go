// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GridHive Contributors

// Package httpapi exposes the auth operations over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gridhive/authd/internal/auth"
	"github.com/gridhive/authd/internal/observability"
)

// UserAPI is the slice of the user service the API uses.
type UserAPI interface {
	Register(ctx context.Context, name, email, password string) (*auth.User, error)
	GetByUserID(ctx context.Context, userID string) (*auth.User, error)
}

// TokenAPI is the slice of the token service the API uses.
type TokenAPI interface {
	Login(ctx context.Context, email, password string) (*auth.Token, error)
	Validate(ctx context.Context, value string) (*auth.TokenClaims, error)
	Logout(ctx context.Context, value string) error
	UpdateToken(ctx context.Context, value, accountID, roleID string) (*auth.Token, error)
	ResetPassword(ctx context.Context, req auth.ResetPasswordRequest, value string) (*auth.User, error)
	GenerateTokenForBoard(ctx context.Context, boardID, accountID string) (*auth.Token, error)
	UpdateTokenForBoard(ctx context.Context, boardID, accountID string) (*auth.Token, error)
}

// OtpAPI is the slice of the OTP service the API uses.
type OtpAPI interface {
	GenerateOtp(ctx context.Context, email string) (*auth.Otp, error)
	VerifyOtp(ctx context.Context, otpID, code string) (*auth.Token, error)
}

// Server is the public HTTP API.
type Server struct {
	users   UserAPI
	tokens  TokenAPI
	otps    OtpAPI
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewServer creates the API server. metrics may be nil.
func NewServer(users UserAPI, tokens TokenAPI, otps OtpAPI, metrics *observability.Metrics, logger *slog.Logger) *Server {
	return &Server{
		users:   users,
		tokens:  tokens,
		otps:    otps,
		metrics: metrics,
		logger:  logger,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/sign-up", s.handleSignUp)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("GET /auth/logout", s.handleLogout)
	mux.HandleFunc("GET /auth/validate", s.handleValidate)
	mux.HandleFunc("POST /auth/generate-otp", s.handleGenerateOtp)
	mux.HandleFunc("POST /auth/verify-otp", s.handleVerifyOtp)
	mux.HandleFunc("POST /auth/reset-password", s.handleResetPassword)
	mux.HandleFunc("POST /auth/update-token", s.handleUpdateToken)
	mux.HandleFunc("GET /auth/user-details", s.handleUserDetails)
	mux.HandleFunc("GET /auth/boards/{boardId}/secret-key", s.handleGetBoardSecretKey)
	mux.HandleFunc("PUT /auth/boards/{boardId}/secret-key", s.handleUpdateBoardSecretKey)
	return mux
}

// NewHTTPServer wraps the handler in an http.Server with sane timeouts.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}

// bearerToken extracts the token value from the Authorization header.
// A "Bearer " prefix is accepted and stripped.
func bearerToken(r *http.Request) string {
	value := r.Header.Get("Authorization")
	if rest, found := strings.CutPrefix(value, "Bearer "); found {
		return rest
	}
	return value
}
