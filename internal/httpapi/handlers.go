// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GridHive Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/samber/oops"

	"github.com/gridhive/authd/internal/auth"
	"github.com/gridhive/authd/pkg/errutil"
)

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if !s.decode(w, r, &req) {
		return
	}
	user, err := s.users.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, "sign-up", err)
		return
	}
	s.writeJSON(w, r, "sign-up", http.StatusOK, SignUpResponse{
		Email:  user.Email,
		UserID: user.UserID,
		Name:   user.Name,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !s.decode(w, r, &req) {
		return
	}
	token, err := s.tokens.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.countLogin("failure")
		s.writeError(w, r, "login", err)
		return
	}
	s.countLogin("success")
	s.writeJSON(w, r, "login", http.StatusOK, TokenResponse{Token: token.Value, Success: true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.tokens.Logout(r.Context(), bearerToken(r)); err != nil {
		s.writeError(w, r, "logout", err)
		return
	}
	s.writeJSON(w, r, "logout", http.StatusOK, LogoutResponse{Success: true})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	claims, err := s.tokens.Validate(r.Context(), bearerToken(r))
	if err != nil {
		s.countValidation("failure")
		s.writeError(w, r, "validate", err)
		return
	}
	s.countValidation("success")
	s.writeJSON(w, r, "validate", http.StatusOK, ValidateTokenResponse{
		UserID:    claims.UserID,
		ProjectID: claims.AccountID,
		RoleID:    claims.RoleID,
		BoardID:   claims.BoardID,
	})
}

func (s *Server) handleGenerateOtp(w http.ResponseWriter, r *http.Request) {
	var req GenerateOtpRequest
	if !s.decode(w, r, &req) {
		return
	}
	otp, err := s.otps.GenerateOtp(r.Context(), req.Email)
	if err != nil {
		s.countOtpGenerated("failure")
		s.writeError(w, r, "generate-otp", err)
		return
	}
	s.countOtpGenerated("success")
	s.writeJSON(w, r, "generate-otp", http.StatusOK, OtpResponse{
		OtpID:      otp.OtpID,
		Success:    true,
		GenerateAt: otp.CreatedAt,
	})
}

func (s *Server) handleVerifyOtp(w http.ResponseWriter, r *http.Request) {
	var req VerifyOtpRequest
	if !s.decode(w, r, &req) {
		return
	}
	token, err := s.otps.VerifyOtp(r.Context(), req.OtpID, req.Otp)
	if err != nil {
		s.countOtpVerified("failure")
		s.writeError(w, r, "verify-otp", err)
		return
	}
	s.countOtpVerified("success")
	s.writeJSON(w, r, "verify-otp", http.StatusOK, TokenResponse{Token: token.Value, Success: true})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !s.decode(w, r, &req) {
		return
	}
	_, err := s.tokens.ResetPassword(r.Context(), auth.ResetPasswordRequest{
		CurrentPassword: req.CurrentPassword,
		Password:        req.Password,
	}, bearerToken(r))
	if err != nil {
		s.writeError(w, r, "reset-password", err)
		return
	}
	s.writeJSON(w, r, "reset-password", http.StatusOK, ResetPasswordResponse{Success: true})
}

func (s *Server) handleUpdateToken(w http.ResponseWriter, r *http.Request) {
	var req UpdateTokenRequest
	if !s.decode(w, r, &req) {
		return
	}
	token, err := s.tokens.UpdateToken(r.Context(), bearerToken(r), req.ProjectID, req.RoleID)
	if err != nil {
		s.writeError(w, r, "update-token", err)
		return
	}
	s.writeJSON(w, r, "update-token", http.StatusOK, TokenResponse{Token: token.Value, Success: true})
}

func (s *Server) handleUserDetails(w http.ResponseWriter, r *http.Request) {
	claims, err := s.tokens.Validate(r.Context(), bearerToken(r))
	if err != nil {
		s.writeError(w, r, "user-details", err)
		return
	}
	user, err := s.users.GetByUserID(r.Context(), claims.UserID)
	if err != nil {
		s.writeError(w, r, "user-details", err)
		return
	}
	s.writeJSON(w, r, "user-details", http.StatusOK, UserDetailsResponse{
		UserID:       user.UserID,
		Name:         user.Name,
		Email:        user.Email,
		RegisteredAt: user.RegisteredAt,
		RoleID:       claims.RoleID,
	})
}

func (s *Server) handleGetBoardSecretKey(w http.ResponseWriter, r *http.Request) {
	claims, err := s.tokens.Validate(r.Context(), bearerToken(r))
	if err != nil {
		s.writeError(w, r, "board-secret-key", err)
		return
	}
	token, err := s.tokens.GenerateTokenForBoard(r.Context(), r.PathValue("boardId"), claims.AccountID)
	if err != nil {
		s.writeError(w, r, "board-secret-key", err)
		return
	}
	s.writeJSON(w, r, "board-secret-key", http.StatusOK, SecretKeyResponse{SecretKey: token.Value})
}

func (s *Server) handleUpdateBoardSecretKey(w http.ResponseWriter, r *http.Request) {
	claims, err := s.tokens.Validate(r.Context(), bearerToken(r))
	if err != nil {
		s.writeError(w, r, "board-secret-key", err)
		return
	}
	token, err := s.tokens.UpdateTokenForBoard(r.Context(), r.PathValue("boardId"), claims.AccountID)
	if err != nil {
		s.writeError(w, r, "board-secret-key", err)
		return
	}
	s.writeJSON(w, r, "board-secret-key", http.StatusOK, SecretKeyResponse{SecretKey: token.Value})
}

// validator is implemented by request bodies that check their own fields.
type validator interface {
	Validate() error
}

// decode parses the JSON body into dst and runs its validation. On
// failure it writes the error response and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst validator) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, r, "decode", oops.Code("AUTH_INVALID_BODY").
			Wrapf(err, "request body is not valid JSON"))
		return false
	}
	if err := dst.Validate(); err != nil {
		s.writeError(w, r, "validate-body", err)
		return false
	}
	return true
}

// statusFor maps domain failures to HTTP status codes. Anything not in
// the failure taxonomy is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrTooManyRequests):
		return http.StatusTooManyRequests
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrAlreadyRegistered),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidOtp):
		return http.StatusBadRequest
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, ok := oopsErr.Code().(string); ok && strings.HasPrefix(code, "AUTH_INVALID_") {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, route string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		errutil.LogError(s.logger, "request failed", err)
	} else {
		s.logger.DebugContext(r.Context(), "request rejected",
			"route", route, "status", status, "error", err)
	}

	body := ErrorResponse{Error: http.StatusText(status), Success: false}
	if oopsErr, ok := oops.AsOops(err); ok && status != http.StatusInternalServerError {
		if code, ok := oopsErr.Code().(string); ok {
			body.Code = code
		}
		body.Error = oopsErr.Error()
	}

	s.countRequest(route, status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // nothing to do if the client went away
	json.NewEncoder(w).Encode(body)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, route string, status int, body any) {
	s.countRequest(route, status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WarnContext(r.Context(), "failed to write response",
			"route", route, "error", err)
	}
}

func (s *Server) countRequest(route string, status int) {
	if s.metrics == nil {
		return
	}
	class := strconv.Itoa(status/100) + "xx"
	s.metrics.HTTPRequestsTotal.WithLabelValues(route, class).Inc()
}

func (s *Server) countLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Server) countValidation(outcome string) {
	if s.metrics != nil {
		s.metrics.TokenValidationsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Server) countOtpGenerated(outcome string) {
	if s.metrics != nil {
		s.metrics.OtpGeneratedTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Server) countOtpVerified(outcome string) {
	if s.metrics != nil {
		s.metrics.OtpVerifiedTotal.WithLabelValues(outcome).Inc()
	}
}
