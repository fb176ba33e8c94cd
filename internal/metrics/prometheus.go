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
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	// Wire metrics
	FramesReceivedTotal *prometheus.CounterVec
	DecodeFailuresTotal *prometheus.CounterVec
	BeaconsSentTotal    prometheus.Counter

	// Session metrics
	SessionsActive       prometheus.Gauge
	HandshakeFailures    prometheus.Counter
	ChannelsActive       prometheus.Gauge
	MonitorUpdatesTotal  prometheus.Counter
	SearchRequestsTotal  prometheus.Counter
	SearchResponsesTotal prometheus.Counter
}

func NewMetrics() *Metrics {
	metrics := &Metrics{
		FramesReceivedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pvhub_frames_received_total",
			Help: "The total number of frames received, by command and transport",
		}, []string{"command", "transport"}),
		DecodeFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pvhub_decode_failures_total",
			Help: "The total number of frames that failed to decode",
		}, []string{"reason"}),
		BeaconsSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pvhub_beacons_sent_total",
			Help: "The total number of beacons emitted",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pvhub_sessions_active",
			Help: "The current number of open TCP sessions, validated or not",
		}),
		HandshakeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pvhub_handshake_failures_total",
			Help: "The total number of sessions closed before validation completed",
		}),
		ChannelsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pvhub_channels_active",
			Help: "The current number of channels in the registry",
		}),
		MonitorUpdatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pvhub_monitor_updates_total",
			Help: "The total number of values fanned out to monitor subscribers",
		}),
		SearchRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pvhub_search_requests_total",
			Help: "The total number of search requests received",
		}),
		SearchResponsesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pvhub_search_responses_total",
			Help: "The total number of search responses sent",
		}),
	}
	metrics.register()
	return metrics
}

func (m *Metrics) register() {
	prometheus.MustRegister(m.FramesReceivedTotal)
	prometheus.MustRegister(m.DecodeFailuresTotal)
	prometheus.MustRegister(m.BeaconsSentTotal)
	prometheus.MustRegister(m.SessionsActive)
	prometheus.MustRegister(m.HandshakeFailures)
	prometheus.MustRegister(m.ChannelsActive)
	prometheus.MustRegister(m.MonitorUpdatesTotal)
	prometheus.MustRegister(m.SearchRequestsTotal)
	prometheus.MustRegister(m.SearchResponsesTotal)
}

func (m *Metrics) RecordFrameReceived(command, transport string) {
	m.FramesReceivedTotal.WithLabelValues(command, transport).Inc()
}

func (m *Metrics) RecordDecodeFailure(reason string) {
	m.DecodeFailuresTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementBeaconsSent() {
	m.BeaconsSentTotal.Inc()
}

func (m *Metrics) SetSessionsActive(count float64) {
	m.SessionsActive.Set(count)
}

func (m *Metrics) IncrementHandshakeFailures() {
	m.HandshakeFailures.Inc()
}

func (m *Metrics) SetChannelsActive(count float64) {
	m.ChannelsActive.Set(count)
}

func (m *Metrics) IncrementMonitorUpdates() {
	m.MonitorUpdatesTotal.Inc()
}

func (m *Metrics) IncrementSearchRequests() {
	m.SearchRequestsTotal.Inc()
}

func (m *Metrics) IncrementSearchResponses() {
	m.SearchResponsesTotal.Inc()
}
