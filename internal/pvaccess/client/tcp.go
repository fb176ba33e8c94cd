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

package client

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"slices"

	"github.com/USA-RedDragon/PVHub/internal/pvaccess/messages"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/pvconst"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/wire"
)

// clientFlags are the header flags on every client-originated frame.
const clientFlags = pvconst.FlagBigEndian

// sessionState tracks channel bindings within one TCP session. Bindings do
// not survive a disconnect.
type sessionState struct {
	// pendingCreate maps client channel ids to names awaiting a response.
	pendingCreate map[uint32]string
	// channels maps open channel names to server channel ids.
	channels map[string]uint32

	nextClientID  uint32
	nextRequestID uint32

	// outstandingEcho is the payload of an echo we sent and have not yet
	// seen answered. Server echoes that do not match it get a reply.
	outstandingEcho []byte
}

// runSession drives one TCP session: the client half of the validation
// handshake, then the dispatch loop. Returns nil on clean disconnect.
func (c *Client) runSession(ctx context.Context, conn net.Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	frames := make(chan *wire.Frame, 1)
	readErr := make(chan error, 1)
	go c.readFrames(ctx, conn, frames, readErr)

	if err := c.handshake(ctx, conn, frames, readErr); err != nil {
		return err
	}
	slog.Info("Session validated", "server", conn.RemoteAddr().String())

	state := &sessionState{
		pendingCreate: make(map[uint32]string),
		channels:      make(map[string]uint32),
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		case frame := <-frames:
			if err := c.handleServerFrame(conn, state, frame); err != nil {
				return err
			}
		case cmd := <-c.commands:
			if err := c.sendCommand(conn, state, cmd); err != nil {
				return err
			}
		}
	}
}

// readFrames owns the read half: it feeds complete frames to the dispatch
// loop and reports the terminal error.
func (c *Client) readFrames(ctx context.Context, conn net.Conn, frames chan<- *wire.Frame, readErr chan<- error) {
	framer := wire.NewFramer()
	buf := make([]byte, c.config.Client.ReceiveBufferSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			readErr <- err
			return
		}
		framer.Push(buf[:n])
		for {
			frame, err := framer.Next()
			if err != nil {
				readErr <- err
				return
			}
			if frame == nil {
				break
			}
			c.metrics.RecordFrameReceived(frame.Header.Command.String(), "tcp")
			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			}
		}
	}
}

// handshake receives the server's validation request and answers it with
// the local configuration. QoS carries the default priority.
func (c *Client) handshake(ctx context.Context, conn net.Conn, frames <-chan *wire.Frame, readErr <-chan error) error {
	deadline, cancel := context.WithTimeout(ctx, c.config.PVA.HandshakeTimeout)
	defer cancel()

	var frame *wire.Frame
	select {
	case <-deadline.Done():
		return wire.ErrHandshakeTimeout
	case err := <-readErr:
		return fmt.Errorf("handshake read failed: %w", err)
	case frame = <-frames:
	}

	if frame.Header.Command != pvconst.CommandConnectionValidation {
		return wire.ErrUnexpectedCommand
	}
	request, err := messages.DecodeConnectionValidationRequest(frame.Body, frame.Header.ByteOrder())
	if err != nil {
		return fmt.Errorf("validation request: %w", err)
	}

	response := messages.ConnectionValidationResponse{
		ClientReceiveBufferSize:            c.config.Client.ReceiveBufferSize,
		ClientIntrospectionRegistryMaxSize: c.config.Client.IntrospectionRegistryMaxSize,
		QoS:                                0,
		AuthNZ:                             chooseMechanism(request.AuthNZ),
	}
	return c.write(conn, pvconst.CommandConnectionValidation, response.Encode(binary.BigEndian))
}

// chooseMechanism picks the authentication mechanism for the response:
// anonymous when offered, otherwise the server's first choice.
func chooseMechanism(offered []string) string {
	if slices.Contains(offered, "anonymous") {
		return "anonymous"
	}
	if len(offered) > 0 {
		return offered[0]
	}
	return ""
}

func (c *Client) write(conn net.Conn, command pvconst.Command, body []byte) error {
	frame := wire.EncodeFrame(wire.NewHeader(clientFlags, command, 0), body)
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

func (c *Client) handleServerFrame(conn net.Conn, state *sessionState, frame *wire.Frame) error {
	order := frame.Header.ByteOrder()
	switch frame.Header.Command {
	case pvconst.CommandEcho:
		echo, err := messages.DecodeEcho(frame.Body, order)
		if err != nil {
			return fmt.Errorf("echo: %w", err)
		}
		if state.outstandingEcho != nil && bytes.Equal(state.outstandingEcho, echo.Payload) {
			slog.Debug("Echo answered", "bytes", len(echo.Payload))
			state.outstandingEcho = nil
			return nil
		}
		// Server-initiated echo: repeat the payload with its endianness.
		return c.write(conn, pvconst.CommandEcho, echo.Encode(order))
	case pvconst.CommandCreateChannel:
		resp, err := messages.DecodeCreateChannelResponse(frame.Body, order)
		if err != nil {
			return fmt.Errorf("create channel response: %w", err)
		}
		name, ok := state.pendingCreate[resp.ClientChannelID]
		if !ok {
			slog.Warn("Create response for unknown channel", "client_channel_id", resp.ClientChannelID)
			return nil
		}
		delete(state.pendingCreate, resp.ClientChannelID)
		if resp.Status.Type != pvconst.StatusOK {
			slog.Warn("Channel create failed", "channel", name, "status", resp.Status.Message)
			return nil
		}
		state.channels[name] = resp.ServerChannelID
		slog.Info("Channel open", "channel", name, "server_channel_id", resp.ServerChannelID)
	case pvconst.CommandChannelGet:
		resp, err := messages.DecodeChannelGetResponse(frame.Body, order)
		if err != nil {
			return fmt.Errorf("channel get response: %w", err)
		}
		if resp.Status.Type != pvconst.StatusOK {
			slog.Warn("Get failed", "request_id", resp.RequestID, "status", resp.Status.Message)
			return nil
		}
		slog.Info("Value", "request_id", resp.RequestID, "bytes", len(resp.Value))
	case pvconst.CommandChannelPut:
		resp, err := messages.DecodeChannelPutResponse(frame.Body, order)
		if err != nil {
			return fmt.Errorf("channel put response: %w", err)
		}
		if resp.Status.Type != pvconst.StatusOK {
			slog.Warn("Put failed", "request_id", resp.RequestID, "status", resp.Status.Message)
		}
	case pvconst.CommandChannelMonitor:
		update, err := messages.DecodeChannelMonitorUpdate(frame.Body, order)
		if err != nil {
			return fmt.Errorf("monitor update: %w", err)
		}
		slog.Info("Monitor update", "request_id", update.RequestID, "bytes", len(update.Value))
	case pvconst.CommandMessage:
		msg, err := messages.DecodeMessage(frame.Body, order)
		if err != nil {
			return fmt.Errorf("message: %w", err)
		}
		slog.Info("Server message", "severity", msg.Type.String(), "message", msg.Message)
	default:
		slog.Warn("Ignoring command", "command", frame.Header.Command.String())
	}
	return nil
}

func (c *Client) sendCommand(conn net.Conn, state *sessionState, cmd Command) error {
	switch cmd.Type {
	case CommandEcho:
		state.outstandingEcho = cmd.Payload
		return c.write(conn, pvconst.CommandEcho,
			messages.EchoMessage{Payload: cmd.Payload}.Encode(binary.BigEndian))
	case CommandCreateChannel:
		state.nextClientID++
		state.pendingCreate[state.nextClientID] = cmd.Channel
		req := messages.CreateChannelRequest{
			Channels: []messages.ChannelInit{{ClientChannelID: state.nextClientID, Name: cmd.Channel}},
		}
		return c.write(conn, pvconst.CommandCreateChannel, req.Encode(binary.BigEndian))
	case CommandPut:
		id, ok := state.channels[cmd.Channel]
		if !ok {
			slog.Warn("Put on unopened channel", "channel", cmd.Channel)
			return nil
		}
		state.nextRequestID++
		req := messages.ChannelPutRequest{
			ServerChannelID: id,
			RequestID:       state.nextRequestID,
			Value:           cmd.Payload,
		}
		return c.write(conn, pvconst.CommandChannelPut, req.Encode(binary.BigEndian))
	case CommandGet:
		id, ok := state.channels[cmd.Channel]
		if !ok {
			slog.Warn("Get on unopened channel", "channel", cmd.Channel)
			return nil
		}
		state.nextRequestID++
		req := messages.ChannelGetRequest{
			ServerChannelID: id,
			RequestID:       state.nextRequestID,
			Subcommand:      pvconst.SubcommandGet,
		}
		return c.write(conn, pvconst.CommandChannelGet, req.Encode(binary.BigEndian))
	case CommandMonitor:
		id, ok := state.channels[cmd.Channel]
		if !ok {
			slog.Warn("Monitor on unopened channel", "channel", cmd.Channel)
			return nil
		}
		state.nextRequestID++
		req := messages.ChannelMonitorRequest{
			ServerChannelID: id,
			RequestID:       state.nextRequestID,
			Subcommand:      pvconst.SubcommandInit,
		}
		return c.write(conn, pvconst.CommandChannelMonitor, req.Encode(binary.BigEndian))
	default:
		slog.Warn("Unknown client command", "type", int(cmd.Type))
		return nil
	}
}
