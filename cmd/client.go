// SPDX-License-Identifier: AGPL-3.0-or-later
// PVHub - Run an EPICS pvAccess network in a single binary
// Copyright (C) 2024-2026 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// The source code is available at <https://github.com/USA-RedDragon/PVHub>

package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/USA-RedDragon/PVHub/internal/metrics"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/client"
	"github.com/spf13/cobra"
)

func newClientCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "client",
		Short: "Run the pvAccess client",
		RunE:  runClient,
	}
}

func runClient(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return err
	}
	setupLogger(cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	cleanup, err := setupTracing(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup tracing: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer func() {
		if err := cleanup(ctx); err != nil {
			slog.Error("Failed to shutdown tracer", "error", err)
		}
	}()

	startBackgroundServices(cfg)

	m := metrics.NewMetrics()
	c := client.New(cfg, m)

	slog.Info("PVHub client starting",
		"version", cmd.Root().Annotations["version"],
		"commit", cmd.Root().Annotations["commit"])

	if err := c.Run(ctx); err != nil {
		return fmt.Errorf("client failed: %w", err)
	}
	slog.Info("PVHub client stopped")
	return nil
}
