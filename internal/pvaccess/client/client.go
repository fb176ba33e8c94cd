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

// Package client implements the pvAccess client role: a UDP discovery task
// and a TCP session task coordinated through single-slot broadcasts. The
// client listens for beacons in UDP mode, upgrades to a TCP session when a
// beacon arrives, and falls back to UDP when the session ends.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/USA-RedDragon/PVHub/internal/config"
	"github.com/USA-RedDragon/PVHub/internal/metrics"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/messages"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/pvconst"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/wire"
	"github.com/USA-RedDragon/PVHub/internal/watch"
	"golang.org/x/sync/errgroup"
)

// Mode is the client's transport state.
type Mode int

const (
	// ModeUDP means the client is listening for beacons.
	ModeUDP Mode = iota
	// ModeTCP means the client is engaged in a session.
	ModeTCP
)

func (m Mode) String() string {
	switch m {
	case ModeUDP:
		return "udp"
	case ModeTCP:
		return "tcp"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

const commandQueueSize = 100
const largestDatagramSize = 1500

// Client runs the discovery and session tasks.
type Client struct {
	config  *config.Config
	metrics *metrics.Metrics

	mode   *watch.Source[Mode]
	beacon *watch.Source[messages.BeaconMessage]

	commands chan Command
}

// New creates a client in UDP mode.
func New(config *config.Config, m *metrics.Metrics) *Client {
	return &Client{
		config:   config,
		metrics:  m,
		mode:     watch.NewSource(ModeUDP),
		beacon:   watch.NewSource(messages.BeaconMessage{Protocol: "unknown"}),
		commands: make(chan Command, commandQueueSize),
	}
}

// Mode returns the client's current transport state.
func (c *Client) Mode() Mode {
	return c.mode.Borrow()
}

// Send enqueues a programmatic command for the session task. Commands sent
// while no session is up wait in the queue.
func (c *Client) Send(cmd Command) {
	c.commands <- cmd
}

// Run starts the UDP and TCP tasks and blocks until the context is
// cancelled or a task fails terminally.
func (c *Client) Run(parent context.Context) error {
	group, ctx := errgroup.WithContext(parent)
	group.Go(func() error {
		return c.runUDP(ctx)
	})
	group.Go(func() error {
		return c.runTCP(ctx)
	})
	if err := group.Wait(); err != nil && parent.Err() == nil {
		return err
	}
	return nil
}

// runUDP listens for beacons. A bad datagram is logged and skipped; the
// loop never exits on a single bad packet.
func (c *Client) runUDP(ctx context.Context) error {
	lc := net.ListenConfig{}
	packetConn, err := lc.ListenPacket(ctx, "udp", fmt.Sprintf("%s:%d", c.config.Client.Bind, c.config.Client.Port))
	if err != nil {
		return fmt.Errorf("failed to bind beacon listener: %w", err)
	}
	conn, ok := packetConn.(*net.UDPConn)
	if !ok {
		return fmt.Errorf("failed to bind beacon listener: unexpected socket type")
	}

	slog.Info("Listening for beacons", "address", conn.LocalAddr().String())

	go func() {
		<-ctx.Done()
		if err := conn.Close(); err != nil {
			slog.Debug("Error closing beacon listener", "error", err)
		}
	}()

	buf := make([]byte, largestDatagramSize)
	for {
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("Error reading from UDP socket, swallowing", "error", err)
			continue
		}

		header, body, err := wire.DecodeDatagram(buf[:n])
		if err != nil {
			c.metrics.RecordDecodeFailure(err.Error())
			slog.Warn("Dropping datagram", "peer", remote.String(), "error", err)
			continue
		}
		c.metrics.RecordFrameReceived(header.Command.String(), "udp")

		if header.Command != pvconst.CommandBeacon {
			slog.Debug("Ignoring datagram", "peer", remote.String(), "command", header.Command.String())
			continue
		}

		beacon, err := messages.DecodeBeacon(body, header.ByteOrder())
		if err != nil {
			c.metrics.RecordDecodeFailure(err.Error())
			slog.Warn("Dropping beacon", "peer", remote.String(), "error", err)
			continue
		}

		slog.Debug("Beacon received",
			"peer", remote.String(),
			"server", beacon.ServerAddress.String(),
			"port", beacon.ServerPort,
			"sequence_id", beacon.SequenceID)

		c.beacon.Set(beacon)
		c.mode.Set(ModeTCP)
	}
}

// runTCP parks while the mode is UDP, connects when a beacon flips the
// mode, and reverts to UDP on connect failure, session error, or clean
// disconnect.
func (c *Client) runTCP(ctx context.Context) error {
	watcher := c.mode.Watch()
	for {
		if ctx.Err() != nil {
			return nil
		}
		if c.mode.Borrow() != ModeTCP {
			if err := watcher.Changed(ctx); err != nil {
				return nil //nolint:golint,nilerr
			}
			continue
		}

		beacon := c.beacon.Borrow()
		if beacon.Protocol != "tcp" {
			slog.Warn("Beacon protocol is not tcp, staying in discovery", "protocol", beacon.Protocol)
			c.mode.Set(ModeUDP)
			continue
		}

		addr := net.JoinHostPort(beacon.ServerAddress.String(), fmt.Sprintf("%d", beacon.ServerPort))
		slog.Info("Connecting", "server", addr)

		dialer := net.Dialer{Timeout: c.config.Client.ConnectTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			slog.Error("TCP connection failed", "server", addr, "error", err)
			c.mode.Set(ModeUDP)
			continue
		}

		if err := c.runSession(ctx, conn); err != nil {
			slog.Error("Session ended", "server", addr, "error", err)
		} else {
			slog.Info("Session closed", "server", addr)
		}
		c.mode.Set(ModeUDP)
	}
}
