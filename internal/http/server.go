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

// Package http is the optional admin surface: JSON snapshots of channels
// and sessions plus a websocket pushing lifecycle events.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/USA-RedDragon/PVHub/internal/config"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/hub"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/servers/pva"
	"github.com/USA-RedDragon/PVHub/internal/pubsub"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const defTimeout = 10 * time.Second

// AdminServer serves the admin API and websocket.
type AdminServer struct {
	config   *config.Config
	registry *hub.Registry
	pva      *pva.Server
	pubsub   pubsub.PubSub
	server   *http.Server
	Version  string
	Commit   string
}

type channelInfo struct {
	Name        string    `json:"name"`
	ID          uint32    `json:"id"`
	HistoryLen  int       `json:"history_len"`
	Subscribers []string  `json:"subscribers"`
	LastUpdate  time.Time `json:"last_update"`
}

// MakeAdminServer creates the admin server.
func MakeAdminServer(config *config.Config, registry *hub.Registry, pvaServer *pva.Server, ps pubsub.PubSub, version, commit string) *AdminServer {
	return &AdminServer{
		config:   config,
		registry: registry,
		pva:      pvaServer,
		pubsub:   ps,
		Version:  version,
		Commit:   commit,
	}
}

// Start serves until Stop or a listen failure. A no-op when disabled.
func (s *AdminServer) Start() error {
	if !s.config.HTTP.Enabled {
		return nil
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	if s.config.Metrics.OTLPEndpoint != "" {
		r.Use(otelgin.Middleware("PVHub"))
	}
	if err := r.SetTrustedProxies(s.config.HTTP.TrustedProxies); err != nil {
		slog.Error("Failed setting trusted proxies", "error", err)
	}

	v1 := r.Group("/api/v1")
	v1.GET("/version", s.getVersion)
	v1.GET("/channels", s.getChannels)
	v1.GET("/sessions", s.getSessions)
	r.GET("/ws", s.websocket)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.config.HTTP.Bind, s.config.HTTP.Port),
		Handler:           r,
		ReadHeaderTimeout: defTimeout,
	}
	slog.Info("Admin HTTP server listening", "address", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("admin server failed: %w", err)
	}
	return nil
}

// Stop shuts the admin server down gracefully.
func (s *AdminServer) Stop(ctx context.Context) {
	if s.server == nil {
		return
	}
	if err := s.server.Shutdown(ctx); err != nil {
		slog.Error("Admin server shutdown failed", "error", err)
	}
}

func (s *AdminServer) getVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": s.Version, "commit": s.Commit})
}

func (s *AdminServer) getChannels(c *gin.Context) {
	channels := s.registry.List()
	out := make([]channelInfo, 0, len(channels))
	for _, ch := range channels {
		out = append(out, channelInfo{
			Name:        ch.Name(),
			ID:          ch.ID(),
			HistoryLen:  len(ch.History()),
			Subscribers: ch.Subscribers(),
			LastUpdate:  ch.LastUpdate(),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *AdminServer) getSessions(c *gin.Context) {
	c.JSON(http.StatusOK, s.pva.Sessions())
}
