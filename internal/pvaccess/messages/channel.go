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

package messages

import (
	"encoding/binary"

	"github.com/USA-RedDragon/PVHub/internal/pvaccess/wire"
)

// ChannelInit is one (client channel id, name) pair in a create request.
type ChannelInit struct {
	ClientChannelID uint32
	Name            string
}

// CreateChannelRequest asks the server to resolve or allocate channels.
type CreateChannelRequest struct {
	Channels []ChannelInit
}

// Encode serializes the create request body with the given byte order.
func (m CreateChannelRequest) Encode(order binary.ByteOrder) []byte {
	w := wire.NewWriter(order)
	w.Uint16(uint16(len(m.Channels)))
	for _, ch := range m.Channels {
		w.Uint32(ch.ClientChannelID)
		w.String(ch.Name)
	}
	return w.Out()
}

// DecodeCreateChannelRequest decodes a create request body.
func DecodeCreateChannelRequest(data []byte, order binary.ByteOrder) (CreateChannelRequest, error) {
	r := wire.NewReader(data, order)
	var m CreateChannelRequest

	count, err := r.Uint16()
	if err != nil {
		return m, err
	}
	for range count {
		var ch ChannelInit
		if ch.ClientChannelID, err = r.Uint32(); err != nil {
			return m, err
		}
		if ch.Name, err = r.String(); err != nil {
			return m, err
		}
		m.Channels = append(m.Channels, ch)
	}

	return m, r.Close()
}

// CreateChannelResponse confirms one channel creation with the server's
// opaque channel id.
type CreateChannelResponse struct {
	ClientChannelID uint32
	ServerChannelID uint32
	Status          Status
}

// Encode serializes the create response body with the given byte order.
func (m CreateChannelResponse) Encode(order binary.ByteOrder) []byte {
	w := wire.NewWriter(order)
	w.Uint32(m.ClientChannelID)
	w.Uint32(m.ServerChannelID)
	writeStatus(w, m.Status)
	return w.Out()
}

// DecodeCreateChannelResponse decodes a create response body.
func DecodeCreateChannelResponse(data []byte, order binary.ByteOrder) (CreateChannelResponse, error) {
	r := wire.NewReader(data, order)
	var m CreateChannelResponse
	var err error

	if m.ClientChannelID, err = r.Uint32(); err != nil {
		return m, err
	}
	if m.ServerChannelID, err = r.Uint32(); err != nil {
		return m, err
	}
	if m.Status, err = readStatus(r); err != nil {
		return m, err
	}

	return m, r.Close()
}

// DestroyChannelRequest tears down one channel binding. The response
// repeats both ids.
type DestroyChannelRequest struct {
	ServerChannelID uint32
	ClientChannelID uint32
}

// Encode serializes the destroy request body with the given byte order.
func (m DestroyChannelRequest) Encode(order binary.ByteOrder) []byte {
	w := wire.NewWriter(order)
	w.Uint32(m.ServerChannelID)
	w.Uint32(m.ClientChannelID)
	return w.Out()
}

// DecodeDestroyChannelRequest decodes a destroy channel body.
func DecodeDestroyChannelRequest(data []byte, order binary.ByteOrder) (DestroyChannelRequest, error) {
	r := wire.NewReader(data, order)
	var m DestroyChannelRequest
	var err error

	if m.ServerChannelID, err = r.Uint32(); err != nil {
		return m, err
	}
	if m.ClientChannelID, err = r.Uint32(); err != nil {
		return m, err
	}

	return m, r.Close()
}

// ChannelGetRequest reads a channel's current value. Subcommand bits select
// INIT, GET, and DESTROY.
type ChannelGetRequest struct {
	ServerChannelID uint32
	RequestID       uint32
	Subcommand      byte
}

// Encode serializes the get request body with the given byte order.
func (m ChannelGetRequest) Encode(order binary.ByteOrder) []byte {
	w := wire.NewWriter(order)
	w.Uint32(m.ServerChannelID)
	w.Uint32(m.RequestID)
	w.Uint8(m.Subcommand)
	return w.Out()
}

// DecodeChannelGetRequest decodes a get request body.
func DecodeChannelGetRequest(data []byte, order binary.ByteOrder) (ChannelGetRequest, error) {
	r := wire.NewReader(data, order)
	var m ChannelGetRequest
	var err error

	if m.ServerChannelID, err = r.Uint32(); err != nil {
		return m, err
	}
	if m.RequestID, err = r.Uint32(); err != nil {
		return m, err
	}
	if m.Subcommand, err = r.Uint8(); err != nil {
		return m, err
	}

	return m, r.Close()
}

// ChannelGetResponse returns a status and, for GET subcommands, the value
// bytes.
type ChannelGetResponse struct {
	RequestID  uint32
	Subcommand byte
	Status     Status
	Value      []byte
}

// Encode serializes the get response body with the given byte order.
func (m ChannelGetResponse) Encode(order binary.ByteOrder) []byte {
	w := wire.NewWriter(order)
	w.Uint32(m.RequestID)
	w.Uint8(m.Subcommand)
	writeStatus(w, m.Status)
	w.Uint16(uint16(len(m.Value)))
	w.Bytes(m.Value)
	return w.Out()
}

// DecodeChannelGetResponse decodes a get response body.
func DecodeChannelGetResponse(data []byte, order binary.ByteOrder) (ChannelGetResponse, error) {
	r := wire.NewReader(data, order)
	var m ChannelGetResponse
	var err error

	if m.RequestID, err = r.Uint32(); err != nil {
		return m, err
	}
	if m.Subcommand, err = r.Uint8(); err != nil {
		return m, err
	}
	if m.Status, err = readStatus(r); err != nil {
		return m, err
	}

	n, err := r.Uint16()
	if err != nil {
		return m, err
	}
	if m.Value, err = r.Bytes(int(n)); err != nil {
		return m, err
	}

	return m, r.Close()
}

// ChannelPutRequest writes a value to a channel. Subcommand bits select
// INIT, PUT (0x00), and DESTROY.
type ChannelPutRequest struct {
	ServerChannelID uint32
	RequestID       uint32
	Subcommand      byte
	Value           []byte
}

// Encode serializes the put request body with the given byte order.
func (m ChannelPutRequest) Encode(order binary.ByteOrder) []byte {
	w := wire.NewWriter(order)
	w.Uint32(m.ServerChannelID)
	w.Uint32(m.RequestID)
	w.Uint8(m.Subcommand)
	w.Uint16(uint16(len(m.Value)))
	w.Bytes(m.Value)
	return w.Out()
}

// DecodeChannelPutRequest decodes a put request body.
func DecodeChannelPutRequest(data []byte, order binary.ByteOrder) (ChannelPutRequest, error) {
	r := wire.NewReader(data, order)
	var m ChannelPutRequest
	var err error

	if m.ServerChannelID, err = r.Uint32(); err != nil {
		return m, err
	}
	if m.RequestID, err = r.Uint32(); err != nil {
		return m, err
	}
	if m.Subcommand, err = r.Uint8(); err != nil {
		return m, err
	}

	n, err := r.Uint16()
	if err != nil {
		return m, err
	}
	if m.Value, err = r.Bytes(int(n)); err != nil {
		return m, err
	}

	return m, r.Close()
}

// ChannelPutResponse acknowledges a put.
type ChannelPutResponse struct {
	RequestID  uint32
	Subcommand byte
	Status     Status
}

// Encode serializes the put response body with the given byte order.
func (m ChannelPutResponse) Encode(order binary.ByteOrder) []byte {
	w := wire.NewWriter(order)
	w.Uint32(m.RequestID)
	w.Uint8(m.Subcommand)
	writeStatus(w, m.Status)
	return w.Out()
}

// DecodeChannelPutResponse decodes a put response body.
func DecodeChannelPutResponse(data []byte, order binary.ByteOrder) (ChannelPutResponse, error) {
	r := wire.NewReader(data, order)
	var m ChannelPutResponse
	var err error

	if m.RequestID, err = r.Uint32(); err != nil {
		return m, err
	}
	if m.Subcommand, err = r.Uint8(); err != nil {
		return m, err
	}
	if m.Status, err = readStatus(r); err != nil {
		return m, err
	}

	return m, r.Close()
}

// ChannelMonitorRequest subscribes to channel updates. INIT carries a queue
// size hint; DESTROY tears the subscription down.
type ChannelMonitorRequest struct {
	ServerChannelID uint32
	RequestID       uint32
	Subcommand      byte
	QueueSize       uint32
}

// Encode serializes the monitor request body with the given byte order.
func (m ChannelMonitorRequest) Encode(order binary.ByteOrder) []byte {
	w := wire.NewWriter(order)
	w.Uint32(m.ServerChannelID)
	w.Uint32(m.RequestID)
	w.Uint8(m.Subcommand)
	w.Uint32(m.QueueSize)
	return w.Out()
}

// DecodeChannelMonitorRequest decodes a monitor request body.
func DecodeChannelMonitorRequest(data []byte, order binary.ByteOrder) (ChannelMonitorRequest, error) {
	r := wire.NewReader(data, order)
	var m ChannelMonitorRequest
	var err error

	if m.ServerChannelID, err = r.Uint32(); err != nil {
		return m, err
	}
	if m.RequestID, err = r.Uint32(); err != nil {
		return m, err
	}
	if m.Subcommand, err = r.Uint8(); err != nil {
		return m, err
	}
	if m.QueueSize, err = r.Uint32(); err != nil {
		return m, err
	}

	return m, r.Close()
}

// ChannelMonitorUpdate is one value pushed from the server to a monitoring
// client.
type ChannelMonitorUpdate struct {
	RequestID  uint32
	Subcommand byte
	Value      []byte
}

// Encode serializes the monitor update body with the given byte order.
func (m ChannelMonitorUpdate) Encode(order binary.ByteOrder) []byte {
	w := wire.NewWriter(order)
	w.Uint32(m.RequestID)
	w.Uint8(m.Subcommand)
	w.Uint16(uint16(len(m.Value)))
	w.Bytes(m.Value)
	return w.Out()
}

// DecodeChannelMonitorUpdate decodes a monitor update body.
func DecodeChannelMonitorUpdate(data []byte, order binary.ByteOrder) (ChannelMonitorUpdate, error) {
	r := wire.NewReader(data, order)
	var m ChannelMonitorUpdate
	var err error

	if m.RequestID, err = r.Uint32(); err != nil {
		return m, err
	}
	if m.Subcommand, err = r.Uint8(); err != nil {
		return m, err
	}

	n, err := r.Uint16()
	if err != nil {
		return m, err
	}
	if m.Value, err = r.Bytes(int(n)); err != nil {
		return m, err
	}

	return m, r.Close()
}
