// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/deckd-dev/deckd/internal/config"
	deckderr "github.com/deckd-dev/deckd/pkg/errors"
)

// NewRootCmd creates the root deckd command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "deckd",
		Short:         "deckd — flashcard persistence and semantic retrieval",
		Long:          "deckd stores flashcard decks relationally and indexes them for semantic search.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	// Global flags — these map to viper keys via initViper.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("data-dir", "", "path to data directory")

	root.AddCommand(
		newServeCmd(),
		newReconcileCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings, and optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return deckderr.Errorf(deckderr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// Auto-discover deckd.yaml from standard locations.
		// Note: SetConfigType is intentionally omitted. When set, Viper
		// falls back to trying the bare config name without extension,
		// which collides with the ./deckd binary in the project root.
		v.SetConfigName("deckd")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/deckd")
		v.AddConfigPath("/etc/deckd")
		// No config file is fine — defaults and env vars still apply.
		// Parse or permission errors must surface.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return deckderr.Errorf(deckderr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			// No config found anywhere — bootstrap a default to ~/.config/deckd/.
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return deckderr.Errorf(deckderr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}

	// Bind persistent flags to viper keys.
	if err := v.BindPFlag("storage.data_dir", cmd.Root().PersistentFlags().Lookup("data-dir")); err != nil {
		return deckderr.Errorf(deckderr.CodeCLISetupFailure, "binding data-dir flag: %w", err)
	}

	return nil
}

// loadConfig loads and validates the effective configuration for a command.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		cfgPath = viper.ConfigFileUsed()
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	// Apply flag overrides Viper resolved in initViper.
	if dataDir := viper.GetString("storage.data_dir"); dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}

	config.WarnInsecurePermissions(viper.ConfigFileUsed())

	return cfg, nil
}
