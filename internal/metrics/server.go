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

package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/USA-RedDragon/PVHub/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const readTimeout = 3 * time.Second

// CreateMetricsServer serves the Prometheus scrape endpoint when enabled.
func CreateMetricsServer(config *config.Config) error {
	if !config.Metrics.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Metrics.Bind, config.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: readTimeout,
	}
	if err := server.ListenAndServe(); err != nil {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}
