// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GridHive Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gridhive/authd/internal/auth"
	authpg "github.com/gridhive/authd/internal/auth/postgres"
	"github.com/gridhive/authd/internal/config"
	"github.com/gridhive/authd/internal/httpapi"
	"github.com/gridhive/authd/internal/logging"
	"github.com/gridhive/authd/internal/observability"
	"github.com/gridhive/authd/internal/store"
)

const shutdownTimeout = 15 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the auth service",
		Long:  `Start the HTTP API, the observability endpoints, and the passcode sweeper.`,
		RunE:  runServe,
	}

	cmd.Flags().String("listen_addr", "", "HTTP API listen address")
	cmd.Flags().String("observability_addr", "", "metrics and health listen address")
	cmd.Flags().String("database_url", "", "PostgreSQL connection string")
	cmd.Flags().String("account_service_url", "", "account service base URL")
	cmd.Flags().String("log_format", "", "log format: json or text")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("authd", version, cfg.LogFormat)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	dispatcher := auth.NewDispatcher(logger, cfg.AuditBuffer)
	defer dispatcher.Close()

	users := authpg.NewUserRepository(pool)
	tokens := authpg.NewTokenRepository(pool)
	otps := authpg.NewOtpRepository(pool)

	ids := auth.NewRandomIDGenerator()
	hasher := auth.NewArgon2idHasher()
	gateway := auth.NewAccountGateway(cfg.AccountServiceURL)

	userService := auth.NewUserService(users, hasher, ids, dispatcher, logger)
	tokenService := auth.NewTokenService(tokens, ids, userService, userService, gateway, dispatcher, logger)
	otpService := auth.NewOtpService(otps, ids, userService, tokenService, dispatcher, logger)

	sweeper := auth.NewSweeper(otps, logger)
	go sweeper.Run(ctx)

	obs := observability.NewServer(cfg.ObservabilityAddr, func() bool {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return pool.Ping(pingCtx) == nil
	})
	obsErrCh, err := obs.Start()
	if err != nil {
		return err
	}

	api := httpapi.NewServer(userService, tokenService, otpService, obs.Metrics(), logger)
	httpSrv := api.NewHTTPServer(cfg.ListenAddr)

	apiErrCh := make(chan error, 1)
	go func() {
		logger.Info("http api started", "addr", cfg.ListenAddr)
		if serveErr := httpSrv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			apiErrCh <- serveErr
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case serveErr := <-apiErrCh:
		stop()
		return oops.Code("SERVER_FAILED").Wrap(serveErr)
	case obsErr := <-obsErrCh:
		if obsErr != nil {
			stop()
			return oops.Code("SERVER_FAILED").Wrap(obsErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http api shutdown failed", "error", err)
	}
	if err := obs.Stop(shutdownCtx); err != nil {
		logger.Error("observability shutdown failed", "error", err)
	}
	logger.Info("authd stopped")
	return nil
}
