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

import "errors"

var (
	// ErrInvalidLogLevel indicates that the provided log level is not valid.
	ErrInvalidLogLevel = errors.New("invalid log level provided")
	// ErrInvalidPVABind indicates that the provided pvAccess bind address is not valid.
	ErrInvalidPVABind = errors.New("invalid pvAccess bind address provided")
	// ErrInvalidPVAPort indicates that the provided pvAccess port is not valid.
	ErrInvalidPVAPort = errors.New("invalid pvAccess port provided")
	// ErrInvalidReceiveBufferSize indicates that the provided receive buffer size is not valid.
	ErrInvalidReceiveBufferSize = errors.New("invalid receive buffer size provided")
	// ErrInvalidChannelHistorySize indicates that the provided channel history size is not valid.
	ErrInvalidChannelHistorySize = errors.New("invalid channel history size provided")
	// ErrInvalidHandshakeTimeout indicates that the provided handshake timeout is not valid.
	ErrInvalidHandshakeTimeout = errors.New("invalid handshake timeout provided")
	// ErrInvalidBeaconBind indicates that the provided beacon bind address is not valid.
	ErrInvalidBeaconBind = errors.New("invalid beacon bind address provided")
	// ErrInvalidBeaconTarget indicates that the provided beacon target is not valid.
	ErrInvalidBeaconTarget = errors.New("invalid beacon target provided")
	// ErrInvalidBeaconInterval indicates that a beacon interval is not valid.
	ErrInvalidBeaconInterval = errors.New("invalid beacon interval provided")
	// ErrInvalidBeaconCount indicates that the initial beacon count is not valid.
	ErrInvalidBeaconCount = errors.New("invalid initial beacon count provided")
	// ErrInvalidClientBind indicates that the provided client bind address is not valid.
	ErrInvalidClientBind = errors.New("invalid client bind address provided")
	// ErrInvalidClientPort indicates that the provided client port is not valid.
	ErrInvalidClientPort = errors.New("invalid client port provided")
	// ErrInvalidConnectTimeout indicates that the provided connect timeout is not valid.
	ErrInvalidConnectTimeout = errors.New("invalid connect timeout provided")
	// ErrInvalidRedisHost indicates that the provided Redis host is not valid.
	ErrInvalidRedisHost = errors.New("invalid Redis host provided")
	// ErrInvalidRedisPort indicates that the provided Redis port is not valid.
	ErrInvalidRedisPort = errors.New("invalid Redis port provided")
	// ErrInvalidMetricsBindAddress indicates that the provided metrics server bind address is not valid.
	ErrInvalidMetricsBindAddress = errors.New("invalid metrics server bind address provided")
	// ErrInvalidMetricsPort indicates that the provided metrics server port is not valid.
	ErrInvalidMetricsPort = errors.New("invalid metrics server port provided")
	// ErrInvalidPProfBindAddress indicates that the provided PProf server bind address is not valid.
	ErrInvalidPProfBindAddress = errors.New("invalid PProf server bind address provided")
	// ErrInvalidPProfPort indicates that the provided PProf server port is not valid.
	ErrInvalidPProfPort = errors.New("invalid PProf server port provided")
	// ErrInvalidHTTPHost indicates that the provided HTTP bind address is not valid.
	ErrInvalidHTTPHost = errors.New("invalid HTTP bind address provided")
	// ErrInvalidHTTPPort indicates that the provided HTTP port is not valid.
	ErrInvalidHTTPPort = errors.New("invalid HTTP port provided")
)

// Validate validates the PVA configuration.
func (p PVA) Validate() error {
	if p.Bind == "" {
		return ErrInvalidPVABind
	}
	if p.Port <= 0 || p.Port > 65535 {
		return ErrInvalidPVAPort
	}
	if p.ReceiveBufferSize == 0 {
		return ErrInvalidReceiveBufferSize
	}
	if p.ChannelHistorySize <= 0 {
		return ErrInvalidChannelHistorySize
	}
	if p.HandshakeTimeout <= 0 {
		return ErrInvalidHandshakeTimeout
	}

	return nil
}

// Validate validates the Beacon configuration.
func (b Beacon) Validate() error {
	if b.Bind == "" {
		return ErrInvalidBeaconBind
	}
	if b.TargetAddress == "" || b.TargetPort <= 0 || b.TargetPort > 65535 {
		return ErrInvalidBeaconTarget
	}
	if b.InitialInterval <= 0 || b.LongInterval <= 0 {
		return ErrInvalidBeaconInterval
	}
	if b.InitialCount <= 0 {
		return ErrInvalidBeaconCount
	}

	return nil
}

// Validate validates the Client configuration.
func (c Client) Validate() error {
	if c.Bind == "" {
		return ErrInvalidClientBind
	}
	if c.Port <= 0 || c.Port > 65535 {
		return ErrInvalidClientPort
	}
	if c.ConnectTimeout <= 0 {
		return ErrInvalidConnectTimeout
	}
	if c.ReceiveBufferSize == 0 {
		return ErrInvalidReceiveBufferSize
	}

	return nil
}

// Validate validates the Redis configuration.
func (r Redis) Validate() error {
	if !r.Enabled {
		return nil
	}

	if r.Host == "" {
		return ErrInvalidRedisHost
	}
	if r.Port <= 0 || r.Port > 65535 {
		return ErrInvalidRedisPort
	}

	return nil
}

// Validate validates the Metrics configuration.
func (m Metrics) Validate() error {
	if !m.Enabled {
		return nil
	}

	if m.Bind == "" {
		return ErrInvalidMetricsBindAddress
	}
	if m.Port <= 0 || m.Port > 65535 {
		return ErrInvalidMetricsPort
	}

	return nil
}

// Validate validates the PProf configuration.
func (p PProf) Validate() error {
	if !p.Enabled {
		return nil
	}

	if p.Bind == "" {
		return ErrInvalidPProfBindAddress
	}
	if p.Port <= 0 || p.Port > 65535 {
		return ErrInvalidPProfPort
	}

	return nil
}

// Validate validates the HTTP configuration.
func (h HTTP) Validate() error {
	if !h.Enabled {
		return nil
	}

	if h.Bind == "" {
		return ErrInvalidHTTPHost
	}
	if h.Port <= 0 || h.Port > 65535 {
		return ErrInvalidHTTPPort
	}

	return nil
}

// Validate validates the configuration.
func (c Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return ErrInvalidLogLevel
	}

	if err := c.PVA.Validate(); err != nil {
		return err
	}
	if err := c.Beacon.Validate(); err != nil {
		return err
	}
	if err := c.Client.Validate(); err != nil {
		return err
	}
	if err := c.Redis.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	if err := c.PProf.Validate(); err != nil {
		return err
	}
	if err := c.HTTP.Validate(); err != nil {
		return err
	}

	return nil
}
