// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GridHive Contributors

// Package config loads service configuration from defaults, an
// optional YAML file, and command-line flags, in that order of
// precedence (later wins).
package config

import (
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config holds the service configuration.
type Config struct {
	// ListenAddr is the address of the public HTTP API.
	ListenAddr string `koanf:"listen_addr"`

	// ObservabilityAddr is the address of the metrics and health
	// endpoints.
	ObservabilityAddr string `koanf:"observability_addr"`

	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string `koanf:"database_url"`

	// AccountServiceURL is the base URL of the account service.
	AccountServiceURL string `koanf:"account_service_url"`

	// LogFormat selects "json" or "text" log output.
	LogFormat string `koanf:"log_format"`

	// AuditBuffer is the capacity of the async audit queue.
	AuditBuffer int `koanf:"audit_buffer"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:        ":8080",
		ObservabilityAddr: ":9090",
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		AccountServiceURL: "http://account-service:8080",
		LogFormat:         "json",
		AuditBuffer:       256,
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// if non-empty, then any set flags.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")
	cfg := Default()

	// Defaults go in first so posflag can tell an unset flag apart
	// from an explicit empty value.
	err := k.Load(confmap.Provider(map[string]any{
		"listen_addr":         cfg.ListenAddr,
		"observability_addr":  cfg.ObservabilityAddr,
		"database_url":        cfg.DatabaseURL,
		"account_service_url": cfg.AccountServiceURL,
		"log_format":          cfg.LogFormat,
		"audit_buffer":        cfg.AuditBuffer,
	}, "."), nil)
	if err != nil {
		return Config{}, oops.Code("CONFIG_LOAD_FAILED").
			With("operation", "load defaults").
			Wrap(err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}
	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "load flags").
				Wrap(err)
		}
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_INVALID").
			With("operation", "unmarshal config").
			Wrap(err)
	}

	if cfg.DatabaseURL == "" {
		return Config{}, oops.Code("CONFIG_INVALID").
			Errorf("database_url is required (flag, config file, or DATABASE_URL)")
	}
	return cfg, nil
}
