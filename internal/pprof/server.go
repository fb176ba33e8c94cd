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

package pprof

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/USA-RedDragon/PVHub/internal/config"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
)

const readTimeout = 3 * time.Second

// CreatePProfServer serves the pprof endpoints when enabled.
func CreatePProfServer(config *config.Config) error {
	if !config.PProf.Enabled {
		return nil
	}

	r := gin.New()
	r.Use(gin.Recovery())

	if err := r.SetTrustedProxies(config.PProf.TrustedProxies); err != nil {
		slog.Error("Failed setting trusted proxies", "error", err)
	}

	pprof.Register(r)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.PProf.Bind, config.PProf.Port),
		Handler:           r,
		ReadHeaderTimeout: readTimeout,
	}
	slog.Info("PProf Server Listening", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil {
		return fmt.Errorf("pprof server failed: %w", err)
	}
	return nil
}
