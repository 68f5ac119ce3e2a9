// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GridHive Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gridhive/authd/internal/store"
)

// ServiceStatus holds the status report printed by the status command.
type ServiceStatus struct {
	Database         string `json:"database"`
	MigrationVersion uint   `json:"migration_version"`
	MigrationDirty   bool   `json:"migration_dirty"`
	Error            string `json:"error,omitempty"`
}

// statusConfig holds flags for the status subcommand.
type statusConfig struct {
	jsonOutput bool
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show database and migration status",
		Long:  `Check database connectivity and report the current schema migration version.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}

	status := queryStatus(cmd.Context(), databaseURL)

	if cfg.jsonOutput {
		out, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return oops.Code("STATUS_FORMAT_FAILED").Wrap(err)
		}
		cmd.Println(string(out))
		return nil
	}

	cmd.Printf("database:          %s\n", status.Database)
	cmd.Printf("migration version: %d\n", status.MigrationVersion)
	cmd.Printf("migration dirty:   %t\n", status.MigrationDirty)
	if status.Error != "" {
		cmd.Printf("error:             %s\n", status.Error)
	}
	return nil
}

func queryStatus(ctx context.Context, databaseURL string) ServiceStatus {
	status := ServiceStatus{Database: "unreachable"}

	connCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := store.Connect(connCtx, databaseURL)
	if err != nil {
		status.Error = fmt.Sprintf("connect: %v", err)
		return status
	}
	pool.Close()
	status.Database = "ok"

	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		status.Error = fmt.Sprintf("migrator: %v", err)
		return status
	}
	defer migrator.Close() //nolint:errcheck // status is read-only

	version, dirty, err := migrator.Version()
	if err != nil {
		status.Error = fmt.Sprintf("version: %v", err)
		return status
	}
	status.MigrationVersion = version
	status.MigrationDirty = dirty
	return status
}
