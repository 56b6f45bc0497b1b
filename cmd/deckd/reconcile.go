// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation pass and exit",
		Long: "Purge vector records whose deck no longer exists and re-index " +
			"cards whose vector write was never confirmed.",
		RunE: runReconcile,
	}
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	app, err := WireApp(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if err := app.Coordinator.Reconcile(cmd.Context()); err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), "reconciliation complete")
	return err
}
