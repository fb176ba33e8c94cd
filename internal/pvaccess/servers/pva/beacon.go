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

package pva

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/USA-RedDragon/PVHub/internal/pvaccess/messages"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/pvconst"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/wire"
	"go.opentelemetry.io/otel"
)

const largestDatagramSize = 1500

// RunBeacon broadcasts the server's presence on UDP: a startup burst at the
// initial interval, then steady sends at the long interval. The sequence id
// is monotonic with rollover; change_count is read from the registry at
// send time. The same socket answers search requests.
func (s *Server) RunBeacon(ctx context.Context) error {
	ctx, span := otel.Tracer("PVHub").Start(ctx, "Server.RunBeacon")
	defer span.End()

	// SO_BROADCAST so the beacon can target a broadcast address.
	lc := net.ListenConfig{
		Control: func(_, _ string, conn syscall.RawConn) error {
			var ctrlErr error
			err := conn.Control(func(fd uintptr) {
				ctrlErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
			})
			if err != nil {
				return err
			}
			return ctrlErr
		},
	}
	packetConn, err := lc.ListenPacket(ctx, "udp", fmt.Sprintf("%s:%d", s.config.Beacon.Bind, s.config.Beacon.Port))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpenSocket, err)
	}
	conn, ok := packetConn.(*net.UDPConn)
	if !ok {
		return ErrOpenSocket
	}
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("Error closing beacon socket", "error", err)
		}
	}()

	if err := conn.SetWriteBuffer(bufferSize); err != nil {
		return fmt.Errorf("%w: %w", ErrSocketBuffer, err)
	}
	if err := conn.SetReadBuffer(bufferSize); err != nil {
		return fmt.Errorf("%w: %w", ErrSocketBuffer, err)
	}

	target := &net.UDPAddr{
		IP:   net.ParseIP(s.config.Beacon.TargetAddress),
		Port: s.config.Beacon.TargetPort,
	}

	beacon := messages.BeaconMessage{
		GUID:           s.guid,
		ServerAddress:  s.advertisedAddress(),
		ServerPort:     uint16(s.config.PVA.Port),
		Protocol:       "tcp",
		ServerStatusIF: pvconst.NullTypeCode,
	}

	slog.Info("Beacon emitter started",
		"bind", conn.LocalAddr().String(),
		"target", target.String(),
		"initial_interval", s.config.Beacon.InitialInterval,
		"long_interval", s.config.Beacon.LongInterval)

	go s.searchResponder(ctx, conn)

	var sequenceID uint8
	send := func() {
		beacon.SequenceID = sequenceID
		beacon.ChangeCount = s.registry.ChangeCount()
		frame := wire.EncodeFrame(
			wire.NewHeader(serverFlags, pvconst.CommandBeacon, 0),
			beacon.Encode(binary.BigEndian),
		)
		if _, err := conn.WriteToUDP(frame, target); err != nil {
			// A send failure must not stop the emitter.
			slog.Error("Beacon send failed", "target", target.String(), "error", err)
		} else {
			s.metrics.IncrementBeaconsSent()
		}
		sequenceID++ // rolls over at 256
	}

	initial := time.NewTicker(s.config.Beacon.InitialInterval)
	for range s.config.Beacon.InitialCount {
		send()
		select {
		case <-ctx.Done():
			initial.Stop()
			return nil
		case <-initial.C:
		}
	}
	initial.Stop()

	long := time.NewTicker(s.config.Beacon.LongInterval)
	defer long.Stop()
	for {
		send()
		select {
		case <-ctx.Done():
			return nil
		case <-long.C:
		}
	}
}

// advertisedAddress resolves the IPv4 address embedded into beacons. A
// wildcard bind falls back to the SERVER_IP environment variable, then
// loopback.
func (s *Server) advertisedAddress() net.IP {
	bind := s.config.PVA.Bind
	switch bind {
	case "", "[::]", "::", "0.0.0.0":
		if env := os.Getenv("SERVER_IP"); env != "" {
			if ip := net.ParseIP(env); ip != nil {
				return ip
			}
			slog.Warn("SERVER_IP is not a valid address", "value", env)
		}
		return net.IPv4(127, 0, 0, 1)
	default:
		if ip := net.ParseIP(bind); ip != nil {
			return ip
		}
		return net.IPv4(127, 0, 0, 1)
	}
}

// searchResponder answers search requests arriving on the beacon socket.
// A bad datagram is logged and skipped; the loop only exits with the
// context.
func (s *Server) searchResponder(ctx context.Context, conn *net.UDPConn) {
	buf := make([]byte, largestDatagramSize)
	for {
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("Error reading from beacon socket, swallowing", "error", err)
			continue
		}

		header, body, err := wire.DecodeDatagram(buf[:n])
		if err != nil {
			s.metrics.RecordDecodeFailure(err.Error())
			slog.Warn("Dropping datagram", "peer", remote.String(), "error", err)
			continue
		}
		s.metrics.RecordFrameReceived(header.Command.String(), "udp")

		if header.Command != pvconst.CommandSearchRequest {
			slog.Debug("Ignoring datagram", "peer", remote.String(), "command", header.Command.String())
			continue
		}

		req, err := messages.DecodeSearchRequest(body, header.ByteOrder())
		if err != nil {
			s.metrics.RecordDecodeFailure(err.Error())
			slog.Warn("Dropping search request", "peer", remote.String(), "error", err)
			continue
		}
		s.metrics.IncrementSearchRequests()
		s.answerSearch(conn, remote, req)
	}
}

func (s *Server) answerSearch(conn *net.UDPConn, remote *net.UDPAddr, req messages.SearchRequest) {
	var matched []uint32
	for _, ch := range req.Channels {
		if _, ok := s.registry.Lookup(ch.Name); ok {
			matched = append(matched, ch.InstanceID)
		}
	}

	if len(matched) == 0 && !req.ReplyRequired() {
		return
	}

	resp := messages.SearchResponse{
		GUID:          s.guid,
		SequenceID:    req.SequenceID,
		ServerAddress: s.advertisedAddress(),
		ServerPort:    uint16(s.config.PVA.Port),
		Protocol:      "tcp",
		Found:         len(matched) > 0,
		InstanceIDs:   matched,
	}
	frame := wire.EncodeFrame(
		wire.NewHeader(serverFlags, pvconst.CommandSearchResponse, 0),
		resp.Encode(binary.BigEndian),
	)

	dest := remote
	if req.ResponseAddress != nil && !req.ResponseAddress.IsUnspecified() && req.ResponsePort != 0 {
		dest = &net.UDPAddr{IP: req.ResponseAddress, Port: int(req.ResponsePort)}
	}
	if _, err := conn.WriteToUDP(frame, dest); err != nil {
		slog.Error("Search response send failed", "peer", dest.String(), "error", err)
		return
	}
	s.metrics.IncrementSearchResponses()
}
