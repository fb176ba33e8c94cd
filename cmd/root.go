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
	"os"

	"github.com/USA-RedDragon/PVHub/internal/config"
	"github.com/USA-RedDragon/PVHub/internal/metrics"
	"github.com/USA-RedDragon/PVHub/internal/pprof"
	"github.com/USA-RedDragon/configulator"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// NewCommand creates the root command with the server and client
// subcommands.
func NewCommand(version, commit string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "PVHub",
		Version: fmt.Sprintf("%s - %s", version, commit),
		Annotations: map[string]string{
			"version": version,
			"commit":  commit,
		},
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
	cmd.AddCommand(newServerCommand())
	cmd.AddCommand(newClientCommand())
	return cmd
}

// loadConfig loads the configuration from context
func loadConfig(ctx context.Context) (*config.Config, error) {
	c, err := configulator.FromContext[config.Config](ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get config from context: %w", err)
	}

	cfg, err := c.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// setupLogger configures the structured logger
func setupLogger(cfg *config.Config) {
	var logger *slog.Logger
	switch cfg.LogLevel {
	case config.LogLevelDebug:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelDebug}))
	case config.LogLevelInfo:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	case config.LogLevelWarn:
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelWarn}))
	case config.LogLevelError:
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelError}))
	default:
		// Fall back to info level for unrecognized log levels to prevent nil logger panic
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	}
	slog.SetDefault(logger)
}

// setupTracing initializes OpenTelemetry tracing if configured.
// When tracing is not configured it returns a no-op cleanup function.
func setupTracing(cfg *config.Config) (func(context.Context) error, error) {
	if cfg.Metrics.OTLPEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	return initTracer(cfg)
}

func initTracer(cfg *config.Config) (func(context.Context) error, error) {
	exporter, err := otlptrace.New(
		context.Background(),
		otlptracegrpc.NewClient(
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithEndpoint(cfg.Metrics.OTLPEndpoint),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	resources, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", "PVHub"),
			attribute.String("library.language", "go"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("could not set tracing resources: %w", err)
	}

	otel.SetTracerProvider(
		sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(resources),
		),
	)
	return exporter.Shutdown, nil
}

// startBackgroundServices starts the metrics and pprof servers.
func startBackgroundServices(cfg *config.Config) {
	go func() {
		if err := metrics.CreateMetricsServer(cfg); err != nil {
			slog.Error("Failed to start metrics server", "error", err)
		}
	}()
	go func() {
		if err := pprof.CreatePProfServer(cfg); err != nil {
			slog.Error("Failed to start pprof server", "error", err)
		}
	}()
}
