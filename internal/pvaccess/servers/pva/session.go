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
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/USA-RedDragon/PVHub/internal/pvaccess/pvconst"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/wire"
	"github.com/USA-RedDragon/PVHub/internal/pubsub"
	"go.opentelemetry.io/otel"
)

const writeQueueSize = 100

// noDeadline clears a connection deadline.
var noDeadline = time.Time{}

// serverFlags are the header flags on every server-originated frame.
const serverFlags = pvconst.FlagFromServer | pvconst.FlagBigEndian

// monitor is one active subscription feeding a session.
type monitor struct {
	channel string
	sub     pubsub.Subscription
	cancel  context.CancelFunc
}

// Session is one TCP connection from accept to close. The read half drives
// dispatch. The validation request is written directly before any frame is
// dispatched; every later write is funneled through the writer goroutine so
// frames never interleave.
type Session struct {
	server *Server
	conn   net.Conn
	addr   string

	mu            sync.Mutex
	authenticated bool
	openChannels  map[uint32]string
	monitors      map[uint32]*monitor

	// expected is the command the server is awaiting from this peer.
	// hasExpected false means idle.
	expected    pvconst.Command
	hasExpected bool

	framer  *wire.Framer
	writeCh chan []byte
}

func newSession(server *Server, conn net.Conn) *Session {
	return &Session{
		server:       server,
		conn:         conn,
		addr:         conn.RemoteAddr().String(),
		openChannels: make(map[uint32]string),
		monitors:     make(map[uint32]*monitor),
		framer:       wire.NewFramer(),
		writeCh:      make(chan []byte, writeQueueSize),
	}
}

func (s *Session) info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	channels := make([]string, 0, len(s.openChannels))
	for _, name := range s.openChannels {
		channels = append(channels, name)
	}
	return SessionInfo{
		Address:       s.addr,
		Authenticated: s.authenticated,
		OpenChannels:  channels,
	}
}

func (s *Session) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.server.registerSession(s)
	s.publishEvent("session_connected")
	defer func() {
		s.teardown()
		s.server.unregisterSession(s)
		s.publishEvent("session_disconnected")
		if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			slog.Debug("Error closing connection", "peer", s.addr, "error", err)
		}
	}()

	go s.writer(ctx)

	slog.Info("Session accepted", "peer", s.addr)

	if err := s.sendValidationRequest(); err != nil {
		slog.Error("Failed to send validation request", "peer", s.addr, "error", err)
		return
	}
	s.setExpected(pvconst.CommandConnectionValidation)
	if err := s.conn.SetReadDeadline(time.Now().Add(s.server.config.PVA.HandshakeTimeout)); err != nil {
		slog.Error("Failed to set handshake deadline", "peer", s.addr, "error", err)
		return
	}

	buf := make([]byte, s.server.config.PVA.ReceiveBufferSize)
	for {
		n, err := s.conn.Read(buf)
		if err != nil {
			s.logReadEnd(err)
			return
		}
		s.framer.Push(buf[:n])

		for {
			frame, err := s.framer.Next()
			if err != nil {
				slog.Warn("Closing session on frame error", "peer", s.addr, "error", err)
				return
			}
			if frame == nil {
				break
			}
			if err := s.dispatch(ctx, frame); err != nil {
				slog.Warn("Closing session", "peer", s.addr, "command", frame.Header.Command.String(), "error", err)
				return
			}
		}
	}
}

func (s *Session) logReadEnd(err error) {
	var netErr net.Error
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		if !s.isAuthenticated() {
			s.server.metrics.IncrementHandshakeFailures()
			slog.Warn("Session closed", "peer", s.addr, "error", wire.ErrHandshakeTimeout)
			return
		}
		slog.Info("Session read timed out", "peer", s.addr)
	case errors.Is(err, net.ErrClosed):
		slog.Debug("Session socket closed", "peer", s.addr)
	default:
		slog.Info("Session closed", "peer", s.addr, "error", err)
	}
}

// writer owns the socket's write half. Backpressure is the socket's: when
// the peer stops reading, writes block here and the queue fills, which
// stalls handlers instead of growing an unbounded buffer.
func (s *Session) writer(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-s.writeCh:
			if _, err := s.conn.Write(frame); err != nil {
				slog.Debug("Session write failed", "peer", s.addr, "error", err)
				// Kill the read half too; the session is done.
				_ = s.conn.Close()
				return
			}
		}
	}
}

func (s *Session) send(command pvconst.Command, flags byte, body []byte) {
	s.writeCh <- wire.EncodeFrame(wire.NewHeader(flags, command, 0), body)
}

func (s *Session) sendValidationRequest() error {
	req := validationRequestFromConfig(s.server.config)
	frame := wire.EncodeFrame(
		wire.NewHeader(serverFlags, pvconst.CommandConnectionValidation, 0),
		req.Encode(binary.BigEndian),
	)
	if _, err := s.conn.Write(frame); err != nil {
		return err
	}
	return nil
}

func (s *Session) setExpected(command pvconst.Command) {
	s.mu.Lock()
	s.expected = command
	s.hasExpected = true
	s.mu.Unlock()
}

func (s *Session) clearExpected() {
	s.mu.Lock()
	s.hasExpected = false
	s.mu.Unlock()
}

func (s *Session) expectedMismatch(command pvconst.Command) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasExpected && s.expected != command
}

func (s *Session) isAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// dispatch routes one frame through the closed command set. A nil return
// keeps the session alive; an error closes it.
func (s *Session) dispatch(ctx context.Context, frame *wire.Frame) error {
	ctx, span := otel.Tracer("PVHub").Start(ctx, "Session.dispatch")
	defer span.End()

	header := frame.Header
	s.server.metrics.RecordFrameReceived(header.Command.String(), "tcp")

	if header.IsControl() {
		slog.Debug("Ignoring control message", "peer", s.addr, "command", header.Command.String())
		return nil
	}

	if s.expectedMismatch(header.Command) {
		return wire.ErrUnexpectedCommand
	}

	order := header.ByteOrder()
	switch header.Command {
	case pvconst.CommandConnectionValidation:
		return s.handleValidationResponse(frame.Body, order)
	case pvconst.CommandEcho:
		return s.handleEcho(header, frame.Body)
	case pvconst.CommandCreateChannel:
		return s.handleCreateChannel(frame.Body, order)
	case pvconst.CommandDestroyChannel:
		return s.handleDestroyChannel(frame.Body, order)
	case pvconst.CommandChannelGet:
		return s.handleChannelGet(ctx, frame.Body, order)
	case pvconst.CommandChannelPut:
		return s.handleChannelPut(ctx, frame.Body, order)
	case pvconst.CommandChannelMonitor:
		return s.handleChannelMonitor(ctx, frame.Body, order)
	case pvconst.CommandDestroyRequest:
		return s.handleDestroyRequest(frame.Body, order)
	case pvconst.CommandChannelProcess:
		return s.handleChannelProcess(frame.Body, order)
	case pvconst.CommandGetField:
		return s.handleGetField(frame.Body, order)
	case pvconst.CommandMessage:
		return s.handleMessage(frame.Body, order)
	default:
		// Unknown or unhandled commands are logged and skipped.
		slog.Warn("Ignoring command", "peer", s.addr, "command", header.Command.String())
		return nil
	}
}

// teardown closes monitors and removes this session from channel
// subscriber sets.
func (s *Session) teardown() {
	s.mu.Lock()
	monitors := s.monitors
	s.monitors = make(map[uint32]*monitor)
	s.mu.Unlock()

	for _, m := range monitors {
		m.cancel()
		if err := m.sub.Close(); err != nil {
			slog.Debug("Error closing monitor subscription", "peer", s.addr, "error", err)
		}
		if ch, ok := s.server.registry.Lookup(m.channel); ok {
			ch.Unsubscribe(s.addr)
		}
	}
}

func (s *Session) publishEvent(kind string) {
	event, err := json.Marshal(map[string]string{
		"type":    kind,
		"address": s.addr,
	})
	if err != nil {
		return
	}
	s.server.registry.PublishEvent(event)
}
