// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

package main

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the deckd HTTP server",
		Long:  "Load configuration, open both stores, and serve the deck, index, and search API.",
		RunE:  runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("networking.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if listen := viper.GetString("networking.listen"); listen != "" {
		cfg.Networking.Listen = listen
	}

	app, err := WireApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Warn("closing stores", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Index.ReconcileEnabled {
		go app.Coordinator.RunReconcileLoop(ctx, cfg.Index.ReconcileInterval)
	}

	slog.Info("starting deckd", "listen", cfg.Networking.Listen)
	return app.Server.Start(ctx)
}
