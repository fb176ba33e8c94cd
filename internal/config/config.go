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

package config

import "time"

// Config stores the application configuration.
type Config struct {
	LogLevel LogLevel `name:"log-level" description:"Logging level, one of debug, info, warn, error" default:"info"`
	PVA      PVA      `name:"pva" description:"pvAccess TCP server settings"`
	Beacon   Beacon   `name:"beacon" description:"UDP beacon emitter settings"`
	Client   Client   `name:"client" description:"pvAccess client settings"`
	Redis    Redis    `name:"redis" description:"Redis settings"`
	Metrics  Metrics  `name:"metrics" description:"Metrics server settings"`
	PProf    PProf    `name:"pprof" description:"PProf server settings"`
	HTTP     HTTP     `name:"http" description:"Admin HTTP server settings"`
}

// PVA configures the pvAccess TCP listener and the parameters advertised
// during connection validation.
type PVA struct {
	Bind                         string        `name:"bind" description:"Address to bind the pvAccess TCP server to" default:"[::]"`
	Port                         int           `name:"port" description:"Port to bind the pvAccess TCP server to" default:"5075"`
	ReceiveBufferSize            uint32        `name:"receive-buffer-size" description:"Receive buffer size advertised in the connection validation request" default:"105576"`
	IntrospectionRegistryMaxSize uint16        `name:"introspection-registry-max-size" description:"Maximum number of type descriptors a peer may cache" default:"512"`
	AuthMechanisms               []string      `name:"auth-mechanisms" description:"Authentication mechanisms offered to clients"`
	HandshakeTimeout             time.Duration `name:"handshake-timeout" description:"Deadline for the connection validation handshake" default:"10s"`
	ChannelHistorySize           int           `name:"channel-history-size" description:"Number of values retained per channel" default:"100"`
}

// Beacon configures the UDP beacon emitter.
type Beacon struct {
	Bind            string        `name:"bind" description:"Address to bind the beacon UDP socket to" default:"[::]"`
	Port            int           `name:"port" description:"Port to bind the beacon UDP socket to, 0 for ephemeral" default:"0"`
	TargetAddress   string        `name:"target-address" description:"Address beacons are sent to" default:"255.255.255.255"`
	TargetPort      int           `name:"target-port" description:"Port beacons are sent to" default:"5076"`
	InitialInterval time.Duration `name:"initial-interval" description:"Beacon interval during the startup burst" default:"15s"`
	InitialCount    int           `name:"initial-count" description:"Number of beacons sent at the initial interval" default:"15"`
	LongInterval    time.Duration `name:"long-interval" description:"Beacon interval after the startup burst" default:"60s"`
}

// Client configures the pvAccess client role.
type Client struct {
	Bind                         string        `name:"bind" description:"Address to bind the beacon listener UDP socket to" default:"[::]"`
	Port                         int           `name:"port" description:"Port to bind the beacon listener UDP socket to" default:"5076"`
	ConnectTimeout               time.Duration `name:"connect-timeout" description:"Ceiling for TCP connection establishment" default:"5s"`
	ReceiveBufferSize            uint32        `name:"receive-buffer-size" description:"Receive buffer size sent in the connection validation response" default:"105576"`
	IntrospectionRegistryMaxSize uint16        `name:"introspection-registry-max-size" description:"Maximum number of type descriptors this client will cache" default:"512"`
}

// Redis configures the optional Redis backend for the KV store and pubsub.
type Redis struct {
	Enabled  bool   `name:"enabled" description:"Enable Redis-backed KV and pubsub"`
	Host     string `name:"host" description:"Redis host" default:"localhost"`
	Port     int    `name:"port" description:"Redis port" default:"6379"`
	Password string `name:"password" description:"Redis password"`
}

// Metrics configures the Prometheus metrics server and tracing.
type Metrics struct {
	Enabled      bool   `name:"enabled" description:"Enable the Prometheus metrics server"`
	Bind         string `name:"bind" description:"Address to bind the metrics server to" default:"127.0.0.1"`
	Port         int    `name:"port" description:"Port to bind the metrics server to" default:"3006"`
	OTLPEndpoint string `name:"otlp-endpoint" description:"OTLP gRPC endpoint for tracing, empty to disable"`
}

// PProf configures the debug pprof server.
type PProf struct {
	Enabled        bool     `name:"enabled" description:"Enable the pprof server"`
	Bind           string   `name:"bind" description:"Address to bind the pprof server to" default:"127.0.0.1"`
	Port           int      `name:"port" description:"Port to bind the pprof server to" default:"3007"`
	TrustedProxies []string `name:"trusted-proxies" description:"Trusted proxies for the pprof server"`
}

// HTTP configures the admin API and websocket server.
type HTTP struct {
	Enabled        bool     `name:"enabled" description:"Enable the admin HTTP server"`
	Bind           string   `name:"bind" description:"Address to bind the admin HTTP server to" default:"127.0.0.1"`
	Port           int      `name:"port" description:"Port to bind the admin HTTP server to" default:"3005"`
	TrustedProxies []string `name:"trusted-proxies" description:"Trusted proxies for the admin HTTP server"`
}
