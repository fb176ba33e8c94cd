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
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/USA-RedDragon/PVHub/internal/http"
	"github.com/USA-RedDragon/PVHub/internal/kv"
	"github.com/USA-RedDragon/PVHub/internal/metrics"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/hub"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/servers/pva"
	"github.com/USA-RedDragon/PVHub/internal/pubsub"
	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const janitorInterval = time.Minute

func newServerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Run the pvAccess server",
		RunE:  runServer,
	}
}

//nolint:golint,gocyclo
func runServer(cmd *cobra.Command, _ []string) error {
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

	kvStore, err := kv.MakeKV(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to key-value store: %w", err)
	}
	defer func() {
		if err := kvStore.Close(); err != nil {
			slog.Error("Failed to close key-value store", "error", err)
		}
	}()

	pubsubClient, err := pubsub.MakePubSub(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to pubsub: %w", err)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			slog.Error("Failed to close pubsub", "error", err)
		}
	}()

	m := metrics.NewMetrics()
	registry := hub.NewRegistry(pubsubClient, m)
	server := pva.MakeServer(cfg, registry, kvStore, m, cmd.Root().Annotations["version"], cmd.Root().Annotations["commit"])

	adminServer := http.MakeAdminServer(cfg, registry, server, pubsubClient, cmd.Root().Annotations["version"], cmd.Root().Annotations["commit"])
	go func() {
		if err := adminServer.Start(); err != nil {
			slog.Error("Failed to start admin server", "error", err)
		}
	}()
	defer adminServer.Stop(ctx)

	scheduler, err := setupServerJobs(kvStore, registry, server)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			slog.Error("Failed to shutdown scheduler", "error", err)
		}
	}()

	slog.Info("PVHub server starting",
		"version", cmd.Root().Annotations["version"],
		"commit", cmd.Root().Annotations["commit"])

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return server.Listen(ctx)
	})
	group.Go(func() error {
		return server.RunBeacon(ctx)
	})

	if err := group.Wait(); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	slog.Info("PVHub server stopped")
	return nil
}

// setupServerJobs schedules the KV expiry sweep and the stale-subscriber
// janitor.
func setupServerJobs(kvStore kv.KV, registry *hub.Registry, server *pva.Server) (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(janitorInterval),
		gocron.NewTask(func() {
			removed, err := kvStore.SweepExpired(context.Background())
			if err != nil {
				slog.Error("KV sweep failed", "error", err)
				return
			}
			if removed > 0 {
				slog.Debug("KV sweep", "removed", removed)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule KV sweep: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(janitorInterval),
		gocron.NewTask(func() {
			sessions := server.Sessions()
			addrs := make([]string, 0, len(sessions))
			for _, s := range sessions {
				addrs = append(addrs, s.Address)
			}
			for _, channel := range registry.List() {
				for _, sub := range channel.Subscribers() {
					if !slices.Contains(addrs, sub) {
						channel.Unsubscribe(sub)
						slog.Debug("Pruned stale subscriber", "channel", channel.Name(), "subscriber", sub)
					}
				}
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule subscriber janitor: %w", err)
	}

	return scheduler, nil
}
