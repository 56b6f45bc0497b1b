// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

// Package config loads and validates the deckd configuration from file and
// environment.
package config

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	deckderr "github.com/deckd-dev/deckd/pkg/errors"
)

// Config is the top-level deckd configuration.
type Config struct {
	Networking NetworkingConfig `mapstructure:"networking"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Index      IndexConfig      `mapstructure:"index"`
	Search     SearchConfig     `mapstructure:"search"`
}

// NetworkingConfig controls how deckd listens for connections.
type NetworkingConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// StorageConfig selects the storage backend and its location.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	DataDir string `mapstructure:"data_dir"`
}

// EmbeddingConfig holds credentials and model selection for the embedding
// provider.
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	BaseURL    string `mapstructure:"base_url"`
}

// IndexConfig controls retry and reconciliation behavior for vector index
// writes.
type IndexConfig struct {
	RetryAttempts     int           `mapstructure:"retry_attempts"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	ReconcileEnabled  bool          `mapstructure:"reconcile_enabled"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
}

// SearchConfig controls search defaults.
type SearchConfig struct {
	DefaultK int `mapstructure:"default_k"`
}

// SetDefaults installs the default value for every config key on v.
// Every key needs a default so environment-only overrides are visible to
// Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("networking.listen", "127.0.0.1:18710")
	v.SetDefault("networking.cors_origins", []string{})
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.data_dir", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimensions", 1536)
	v.SetDefault("index.retry_attempts", 3)
	v.SetDefault("index.retry_backoff", 200*time.Millisecond)
	v.SetDefault("index.reconcile_enabled", true)
	v.SetDefault("index.reconcile_interval", 5*time.Minute)
	v.SetDefault("search.default_k", 10)
}

// SetupEnv binds DECKD_ environment variables to config keys.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("DECKD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix DECKD_).
func Load(path string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)
	SetupEnv(v)

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, deckderr.Errorf(deckderr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, deckderr.Errorf(deckderr.CodeConfigValidateInvalidValue, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, deckderr.Errorf(deckderr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors. It returns all
// validation errors found rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateNetworking()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateIndex()...)
	errs = append(errs, c.validateSearch()...)

	return errs
}

func (c *Config) validateNetworking() []error {
	var errs []error

	if c.Networking.Listen == "" {
		errs = append(errs, deckderr.Errorf(deckderr.CodeConfigValidateInvalidValue, "config: networking.listen must not be empty"))
		return errs
	}

	_, portStr, err := net.SplitHostPort(c.Networking.Listen)
	if err != nil {
		errs = append(errs, deckderr.Errorf(deckderr.CodeConfigValidateInvalidValue,
			"config: networking.listen must be a valid host:port address, got %q: %w",
			c.Networking.Listen, err,
		))
		return errs
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, deckderr.Errorf(deckderr.CodeConfigValidateInvalidValue,
			"config: networking.listen port must be a number, got %q",
			portStr,
		))
	} else if port < 1 || port > 65535 {
		errs = append(errs, deckderr.Errorf(deckderr.CodeConfigValidateInvalidValue,
			"config: networking.listen port must be between 1 and 65535, got %d",
			port,
		))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, deckderr.Errorf(deckderr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite], got %q",
			c.Storage.Backend,
		))
	}

	return errs
}

func (c *Config) validateEmbedding() []error {
	var errs []error

	if c.Embedding.Model == "" {
		errs = append(errs, deckderr.Errorf(deckderr.CodeConfigValidateInvalidValue, "config: embedding.model must not be empty"))
	}

	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, deckderr.Errorf(deckderr.CodeConfigValidateInvalidValue,
			"config: embedding.dimensions must be greater than 0, got %d",
			c.Embedding.Dimensions,
		))
	}

	return errs
}

func (c *Config) validateIndex() []error {
	var errs []error

	if c.Index.RetryAttempts <= 0 {
		errs = append(errs, deckderr.Errorf(deckderr.CodeConfigValidateInvalidValue,
			"config: index.retry_attempts must be greater than 0, got %d",
			c.Index.RetryAttempts,
		))
	}

	if c.Index.RetryBackoff <= 0 {
		errs = append(errs, deckderr.Errorf(deckderr.CodeConfigValidateInvalidValue,
			"config: index.retry_backoff must be greater than 0, got %s",
			c.Index.RetryBackoff,
		))
	}

	if c.Index.ReconcileEnabled && c.Index.ReconcileInterval < time.Second {
		errs = append(errs, deckderr.Errorf(deckderr.CodeConfigValidateInvalidValue,
			"config: index.reconcile_interval must be at least 1s when reconciliation is enabled, got %s",
			c.Index.ReconcileInterval,
		))
	}

	return errs
}

func (c *Config) validateSearch() []error {
	var errs []error

	if c.Search.DefaultK <= 0 {
		errs = append(errs, deckderr.Errorf(deckderr.CodeConfigValidateInvalidValue,
			"config: search.default_k must be greater than 0, got %d",
			c.Search.DefaultK,
		))
	}

	return errs
}
