// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GridHive Contributors

package auth

import (
	"context"
	"log/slog"
	"time"
)

// SweepInterval is how often the sweeper scans for stale passcodes.
const SweepInterval = time.Minute

// Sweeper expires GENERATED passcodes older than OtpTTL on a fixed
// cadence. It is the liveness backstop for abandoned OTP flows; the
// request path never depends on it for correctness.
type Sweeper struct {
	otps     OtpRepository
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
}

// NewSweeper creates a Sweeper.
func NewSweeper(otps OtpRepository, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		otps:     otps,
		logger:   logger,
		interval: SweepInterval,
		now:      time.Now,
	}
}

// Run sweeps on the configured cadence until the context is canceled.
// Sweep failures are logged and never stop the loop.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "otp sweeper started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "otp sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	threshold := s.now().Add(-OtpTTL)
	stale, err := s.otps.ListGeneratedBefore(ctx, threshold)
	if err != nil {
		s.logger.ErrorContext(ctx, "otp sweep failed", "error", err)
		return
	}
	expired := 0
	for _, otp := range stale {
		moved, err := s.otps.TransitionState(ctx, otp.OtpID, OtpStateGenerated, OtpStateExpired)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to expire passcode",
				"otp_id", otp.OtpID, "error", err)
			continue
		}
		if moved {
			expired++
		}
	}
	if expired > 0 {
		s.logger.InfoContext(ctx, "expired stale passcodes", "count", expired)
	}
}
