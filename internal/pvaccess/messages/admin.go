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

	"github.com/USA-RedDragon/PVHub/internal/pvaccess/pvconst"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/wire"
)

// DestroyRequest (0x0F) cancels one outstanding request on a channel.
type DestroyRequest struct {
	ServerChannelID uint32
	RequestID       uint32
}

// Encode serializes the destroy request body with the given byte order.
func (m DestroyRequest) Encode(order binary.ByteOrder) []byte {
	w := wire.NewWriter(order)
	w.Uint32(m.ServerChannelID)
	w.Uint32(m.RequestID)
	return w.Out()
}

// DecodeDestroyRequest decodes a destroy request body.
func DecodeDestroyRequest(data []byte, order binary.ByteOrder) (DestroyRequest, error) {
	r := wire.NewReader(data, order)
	var m DestroyRequest
	var err error

	if m.ServerChannelID, err = r.Uint32(); err != nil {
		return m, err
	}
	if m.RequestID, err = r.Uint32(); err != nil {
		return m, err
	}

	return m, r.Close()
}

// ChannelProcessRequest (0x10) asks the server to process a channel record.
type ChannelProcessRequest struct {
	ServerChannelID uint32
	RequestID       uint32
	Subcommand      byte
}

// Encode serializes the process request body with the given byte order.
func (m ChannelProcessRequest) Encode(order binary.ByteOrder) []byte {
	w := wire.NewWriter(order)
	w.Uint32(m.ServerChannelID)
	w.Uint32(m.RequestID)
	w.Uint8(m.Subcommand)
	return w.Out()
}

// DecodeChannelProcessRequest decodes a process request body.
func DecodeChannelProcessRequest(data []byte, order binary.ByteOrder) (ChannelProcessRequest, error) {
	r := wire.NewReader(data, order)
	var m ChannelProcessRequest
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

// ChannelProcessResponse acknowledges a process request.
type ChannelProcessResponse struct {
	RequestID  uint32
	Subcommand byte
	Status     Status
}

// Encode serializes the process response body with the given byte order.
func (m ChannelProcessResponse) Encode(order binary.ByteOrder) []byte {
	w := wire.NewWriter(order)
	w.Uint32(m.RequestID)
	w.Uint8(m.Subcommand)
	writeStatus(w, m.Status)
	return w.Out()
}

// DecodeChannelProcessResponse decodes a process response body.
func DecodeChannelProcessResponse(data []byte, order binary.ByteOrder) (ChannelProcessResponse, error) {
	r := wire.NewReader(data, order)
	var m ChannelProcessResponse
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

// GetFieldRequest (0x11) asks for a channel's introspection descriptor,
// optionally narrowed to a subfield.
type GetFieldRequest struct {
	ServerChannelID uint32
	RequestID       uint32
	SubfieldName    string
}

// Encode serializes the get-field request body with the given byte order.
func (m GetFieldRequest) Encode(order binary.ByteOrder) []byte {
	w := wire.NewWriter(order)
	w.Uint32(m.ServerChannelID)
	w.Uint32(m.RequestID)
	w.String(m.SubfieldName)
	return w.Out()
}

// DecodeGetFieldRequest decodes a get-field request body.
func DecodeGetFieldRequest(data []byte, order binary.ByteOrder) (GetFieldRequest, error) {
	r := wire.NewReader(data, order)
	var m GetFieldRequest
	var err error

	if m.ServerChannelID, err = r.Uint32(); err != nil {
		return m, err
	}
	if m.RequestID, err = r.Uint32(); err != nil {
		return m, err
	}
	if m.SubfieldName, err = r.String(); err != nil {
		return m, err
	}

	return m, r.Close()
}

// GetFieldResponse returns the channel's schema descriptor.
type GetFieldResponse struct {
	RequestID uint32
	Status    Status
	Field     FieldDesc
}

// Encode serializes the get-field response body with the given byte order.
func (m GetFieldResponse) Encode(order binary.ByteOrder) []byte {
	w := wire.NewWriter(order)
	w.Uint32(m.RequestID)
	writeStatus(w, m.Status)
	desc := m.Field.Encode()
	w.Uint16(uint16(len(desc)))
	w.Bytes(desc)
	return w.Out()
}

// DecodeGetFieldResponse decodes a get-field response body.
func DecodeGetFieldResponse(data []byte, order binary.ByteOrder) (GetFieldResponse, error) {
	r := wire.NewReader(data, order)
	var m GetFieldResponse
	var err error

	if m.RequestID, err = r.Uint32(); err != nil {
		return m, err
	}
	if m.Status, err = readStatus(r); err != nil {
		return m, err
	}

	n, err := r.Uint16()
	if err != nil {
		return m, err
	}
	raw, err := r.Bytes(int(n))
	if err != nil {
		return m, err
	}
	if m.Field, err = DecodeFieldDesc(raw); err != nil {
		return m, err
	}

	return m, r.Close()
}

// Message (0x12) carries an async severity-tagged notice tied to a request.
// The text is the remainder of the body, unprefixed.
type Message struct {
	RequestID uint32
	Type      pvconst.MessageType
	Message   string
}

// Encode serializes the message body with the given byte order.
func (m Message) Encode(order binary.ByteOrder) []byte {
	w := wire.NewWriter(order)
	w.Uint32(m.RequestID)
	w.Uint8(byte(m.Type))
	w.Bytes([]byte(m.Message))
	return w.Out()
}

// DecodeMessage decodes a message body.
func DecodeMessage(data []byte, order binary.ByteOrder) (Message, error) {
	r := wire.NewReader(data, order)
	var m Message
	var err error

	if m.RequestID, err = r.Uint32(); err != nil {
		return m, err
	}

	t, err := r.Uint8()
	if err != nil {
		return m, err
	}
	if t > byte(pvconst.MessageFatal) {
		return m, wire.ErrInvalidMessageType
	}
	m.Type = pvconst.MessageType(t)
	m.Message = string(r.Rest())

	return m, nil
}
