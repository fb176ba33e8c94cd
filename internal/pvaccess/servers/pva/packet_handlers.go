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
	"errors"
	"fmt"
	"log/slog"

	"github.com/USA-RedDragon/PVHub/internal/config"
	"github.com/USA-RedDragon/PVHub/internal/kv"
	"github.com/USA-RedDragon/PVHub/internal/models"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/messages"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/pvconst"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/wire"
)

// valueKey is the KV key holding a channel's last-published value. It
// outlives the in-memory channel entry, so a recreated channel still
// answers its first Get.
func valueKey(channel string) string {
	return "pvhub:value:" + channel
}

func validationRequestFromConfig(cfg *config.Config) messages.ConnectionValidationRequest {
	return messages.ConnectionValidationRequest{
		ServerReceiveBufferSize:            cfg.PVA.ReceiveBufferSize,
		ServerIntrospectionRegistryMaxSize: cfg.PVA.IntrospectionRegistryMaxSize,
		AuthNZ:                             cfg.PVA.AuthMechanisms,
	}
}

func (s *Session) handleValidationResponse(body []byte, order binary.ByteOrder) error {
	resp, err := messages.DecodeConnectionValidationResponse(body, order)
	if err != nil {
		s.server.metrics.IncrementHandshakeFailures()
		return fmt.Errorf("validation response: %w", err)
	}

	s.mu.Lock()
	s.authenticated = true
	s.mu.Unlock()
	s.clearExpected()

	// Handshake done; lift the deadline for the dispatch loop.
	if err := s.conn.SetReadDeadline(noDeadline); err != nil {
		return fmt.Errorf("failed to clear read deadline: %w", err)
	}

	slog.Info("Session validated", "peer", s.addr,
		"buffer_size", resp.ClientReceiveBufferSize,
		"priority", resp.Priority(),
		"auth", resp.AuthNZ)
	s.publishEvent("session_validated")
	return nil
}

// handleEcho repeats the request payload verbatim, preserving the
// endianness of the incoming header.
func (s *Session) handleEcho(header wire.Header, body []byte) error {
	order := header.ByteOrder()
	echo, err := messages.DecodeEcho(body, order)
	if err != nil {
		return fmt.Errorf("echo: %w", err)
	}

	flags := pvconst.FlagFromServer | header.Flags&pvconst.FlagBigEndian
	s.send(pvconst.CommandEcho, flags, echo.Encode(order))
	return nil
}

func (s *Session) handleCreateChannel(body []byte, order binary.ByteOrder) error {
	req, err := messages.DecodeCreateChannelRequest(body, order)
	if err != nil {
		return fmt.Errorf("create channel: %w", err)
	}

	for _, init := range req.Channels {
		channel := s.server.registry.GetOrCreate(init.Name, s.server.config.PVA.ChannelHistorySize)

		s.mu.Lock()
		s.openChannels[channel.ID()] = init.Name
		s.mu.Unlock()

		resp := messages.CreateChannelResponse{
			ClientChannelID: init.ClientChannelID,
			ServerChannelID: channel.ID(),
			Status:          messages.StatusOK(),
		}
		s.send(pvconst.CommandCreateChannel, serverFlags, resp.Encode(binary.BigEndian))
	}
	return nil
}

func (s *Session) handleDestroyChannel(body []byte, order binary.ByteOrder) error {
	req, err := messages.DecodeDestroyChannelRequest(body, order)
	if err != nil {
		return fmt.Errorf("destroy channel: %w", err)
	}

	s.mu.Lock()
	name, open := s.openChannels[req.ServerChannelID]
	delete(s.openChannels, req.ServerChannelID)
	s.mu.Unlock()

	if open {
		s.server.registry.Destroy(name)
	} else {
		slog.Warn("Destroy for unopened channel", "peer", s.addr, "server_channel_id", req.ServerChannelID)
	}

	// The response repeats both ids.
	s.send(pvconst.CommandDestroyChannel, serverFlags, req.Encode(binary.BigEndian))
	return nil
}

func (s *Session) handleChannelGet(ctx context.Context, body []byte, order binary.ByteOrder) error {
	req, err := messages.DecodeChannelGetRequest(body, order)
	if err != nil {
		return fmt.Errorf("channel get: %w", err)
	}

	resp := messages.ChannelGetResponse{
		RequestID:  req.RequestID,
		Subcommand: req.Subcommand,
		Status:     messages.StatusOK(),
	}

	if req.Subcommand&pvconst.SubcommandGet != 0 {
		channel, ok := s.server.registry.LookupID(req.ServerChannelID)
		if !ok {
			resp.Status = messages.StatusError("unknown channel")
		} else if value, ok := channel.Latest(); ok {
			resp.Value = value
		} else if value, err := s.server.kv.Get(ctx, valueKey(channel.Name())); err == nil {
			resp.Value = value
		} else if !errors.Is(err, kv.ErrNotFound) {
			slog.Error("KV read failed", "peer", s.addr, "channel", channel.Name(), "error", err)
			resp.Status = messages.StatusError("value store unavailable")
		} else {
			resp.Status = messages.StatusError("channel has no value")
		}
	}

	s.send(pvconst.CommandChannelGet, serverFlags, resp.Encode(binary.BigEndian))
	return nil
}

func (s *Session) handleChannelPut(ctx context.Context, body []byte, order binary.ByteOrder) error {
	req, err := messages.DecodeChannelPutRequest(body, order)
	if err != nil {
		return fmt.Errorf("channel put: %w", err)
	}

	resp := messages.ChannelPutResponse{
		RequestID:  req.RequestID,
		Subcommand: req.Subcommand,
		Status:     messages.StatusOK(),
	}

	isData := req.Subcommand&(pvconst.SubcommandInit|pvconst.SubcommandDestroy) == 0
	if isData {
		channel, ok := s.server.registry.LookupID(req.ServerChannelID)
		if !ok {
			resp.Status = messages.StatusError("unknown channel")
		} else {
			channel.Push(req.Value, s.addr)
			if err := s.server.kv.Set(ctx, valueKey(channel.Name()), req.Value); err != nil {
				slog.Error("KV write failed", "peer", s.addr, "channel", channel.Name(), "error", err)
			}
		}
	}

	s.send(pvconst.CommandChannelPut, serverFlags, resp.Encode(binary.BigEndian))
	return nil
}

func (s *Session) handleChannelMonitor(ctx context.Context, body []byte, order binary.ByteOrder) error {
	req, err := messages.DecodeChannelMonitorRequest(body, order)
	if err != nil {
		return fmt.Errorf("channel monitor: %w", err)
	}

	channel, ok := s.server.registry.LookupID(req.ServerChannelID)
	if !ok {
		resp := messages.ChannelMonitorUpdate{RequestID: req.RequestID, Subcommand: req.Subcommand}
		s.send(pvconst.CommandChannelMonitor, serverFlags, resp.Encode(binary.BigEndian))
		return nil
	}

	switch {
	case req.Subcommand&pvconst.SubcommandInit != 0:
		s.startMonitor(ctx, channel.Name(), req.RequestID)
		channel.Subscribe(s.addr)
		ack := messages.ChannelMonitorUpdate{RequestID: req.RequestID, Subcommand: pvconst.SubcommandInit}
		s.send(pvconst.CommandChannelMonitor, serverFlags, ack.Encode(binary.BigEndian))
	case req.Subcommand&pvconst.SubcommandDestroy != 0:
		s.stopMonitor(req.RequestID)
		channel.Unsubscribe(s.addr)
		ack := messages.ChannelMonitorUpdate{RequestID: req.RequestID, Subcommand: pvconst.SubcommandDestroy}
		s.send(pvconst.CommandChannelMonitor, serverFlags, ack.Encode(binary.BigEndian))
	default:
		slog.Warn("Monitor subcommand ignored", "peer", s.addr, "subcommand", req.Subcommand)
	}
	return nil
}

// startMonitor forwards channel updates to the session writer as monitor
// DATA frames until the session or the subscription closes.
func (s *Session) startMonitor(ctx context.Context, channel string, requestID uint32) {
	s.stopMonitor(requestID)

	monCtx, cancel := context.WithCancel(ctx)
	sub := s.server.registry.Subscribe(channel)

	s.mu.Lock()
	s.monitors[requestID] = &monitor{channel: channel, sub: sub, cancel: cancel}
	s.mu.Unlock()

	go func() {
		for {
			select {
			case <-monCtx.Done():
				return
			case raw, ok := <-sub.Channel():
				if !ok {
					return
				}
				var frame models.RawFrame
				if _, err := frame.UnmarshalMsg(raw); err != nil {
					slog.Warn("Dropping malformed monitor update", "channel", channel, "error", err)
					continue
				}
				update := messages.ChannelMonitorUpdate{
					RequestID: requestID,
					Value:     frame.Data,
				}
				s.send(pvconst.CommandChannelMonitor, serverFlags, update.Encode(binary.BigEndian))
			}
		}
	}()
}

func (s *Session) stopMonitor(requestID uint32) {
	s.mu.Lock()
	m, ok := s.monitors[requestID]
	delete(s.monitors, requestID)
	s.mu.Unlock()
	if !ok {
		return
	}
	m.cancel()
	if err := m.sub.Close(); err != nil {
		slog.Debug("Error closing monitor subscription", "peer", s.addr, "error", err)
	}
}

func (s *Session) handleDestroyRequest(body []byte, order binary.ByteOrder) error {
	req, err := messages.DecodeDestroyRequest(body, order)
	if err != nil {
		return fmt.Errorf("destroy request: %w", err)
	}
	s.stopMonitor(req.RequestID)
	slog.Debug("Request destroyed", "peer", s.addr, "request_id", req.RequestID)
	return nil
}

func (s *Session) handleChannelProcess(body []byte, order binary.ByteOrder) error {
	req, err := messages.DecodeChannelProcessRequest(body, order)
	if err != nil {
		return fmt.Errorf("channel process: %w", err)
	}

	resp := messages.ChannelProcessResponse{
		RequestID:  req.RequestID,
		Subcommand: req.Subcommand,
		Status:     messages.StatusOK(),
	}
	if _, ok := s.server.registry.LookupID(req.ServerChannelID); !ok {
		resp.Status = messages.StatusError("unknown channel")
	}
	s.send(pvconst.CommandChannelProcess, serverFlags, resp.Encode(binary.BigEndian))
	return nil
}

func (s *Session) handleGetField(body []byte, order binary.ByteOrder) error {
	req, err := messages.DecodeGetFieldRequest(body, order)
	if err != nil {
		return fmt.Errorf("get field: %w", err)
	}

	resp := messages.GetFieldResponse{
		RequestID: req.RequestID,
		Status:    messages.StatusOK(),
	}
	if channel, ok := s.server.registry.LookupID(req.ServerChannelID); ok {
		resp.Field = channel.Schema()
	} else {
		resp.Status = messages.StatusError("unknown channel")
	}
	s.send(pvconst.CommandGetField, serverFlags, resp.Encode(binary.BigEndian))
	return nil
}

func (s *Session) handleMessage(body []byte, order binary.ByteOrder) error {
	msg, err := messages.DecodeMessage(body, order)
	if err != nil {
		return fmt.Errorf("message: %w", err)
	}
	slog.Info("Peer message", "peer", s.addr,
		"request_id", msg.RequestID,
		"severity", msg.Type.String(),
		"message", msg.Message)
	return nil
}
