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
	"net"

	"github.com/USA-RedDragon/PVHub/internal/pvaccess/pvconst"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/wire"
)

// SearchChannel is one (instance id, channel name) pair in a search request.
type SearchChannel struct {
	InstanceID uint32
	Name       string
}

// SearchRequest asks servers whether they host the named channels.
// Typically broadcast on UDP.
type SearchRequest struct {
	SequenceID      uint32
	Flags           byte
	ResponseAddress net.IP
	ResponsePort    uint16
	Protocols       []string
	Channels        []SearchChannel
}

// ReplyRequired reports whether a response is demanded even when nothing
// matched.
func (m SearchRequest) ReplyRequired() bool {
	return m.Flags&pvconst.SearchFlagReplyRequired != 0
}

// Encode serializes the search request body with the given byte order.
func (m SearchRequest) Encode(order binary.ByteOrder) []byte {
	w := wire.NewWriter(order)
	w.Uint32(m.SequenceID)
	w.Uint8(m.Flags)
	w.Bytes([]byte{0, 0, 0})
	addr := wire.EncodeAddress(m.ResponseAddress)
	w.Bytes(addr[:])
	w.Uint16(m.ResponsePort)
	w.Uint8(byte(len(m.Protocols)))
	for _, proto := range m.Protocols {
		w.String(proto)
	}
	w.Uint16(uint16(len(m.Channels)))
	for _, ch := range m.Channels {
		w.Uint32(ch.InstanceID)
		w.String(ch.Name)
	}
	return w.Out()
}

// DecodeSearchRequest decodes a search request body.
func DecodeSearchRequest(data []byte, order binary.ByteOrder) (SearchRequest, error) {
	r := wire.NewReader(data, order)
	var m SearchRequest
	var err error

	if m.SequenceID, err = r.Uint32(); err != nil {
		return m, err
	}
	if m.Flags, err = r.Uint8(); err != nil {
		return m, err
	}
	if _, err = r.Bytes(3); err != nil {
		return m, err
	}

	raw, err := r.Bytes(16)
	if err != nil {
		return m, err
	}
	var addr [16]byte
	copy(addr[:], raw)
	m.ResponseAddress = wire.DecodeAddress(addr)

	if m.ResponsePort, err = r.Uint16(); err != nil {
		return m, err
	}

	protoCount, err := r.Uint8()
	if err != nil {
		return m, err
	}
	for range protoCount {
		proto, err := r.String()
		if err != nil {
			return m, err
		}
		m.Protocols = append(m.Protocols, proto)
	}

	chanCount, err := r.Uint16()
	if err != nil {
		return m, err
	}
	for range chanCount {
		var ch SearchChannel
		if ch.InstanceID, err = r.Uint32(); err != nil {
			return m, err
		}
		if ch.Name, err = r.String(); err != nil {
			return m, err
		}
		m.Channels = append(m.Channels, ch)
	}

	return m, r.Close()
}

// SearchResponse answers a search request with the server's endpoint and
// the instance ids it matched.
type SearchResponse struct {
	GUID          [pvconst.GUIDLength]byte
	SequenceID    uint32
	ServerAddress net.IP
	ServerPort    uint16
	Protocol      string
	Found         bool
	InstanceIDs   []uint32
}

// Encode serializes the search response body with the given byte order.
func (m SearchResponse) Encode(order binary.ByteOrder) []byte {
	w := wire.NewWriter(order)
	w.Bytes(m.GUID[:])
	w.Uint32(m.SequenceID)
	addr := wire.EncodeAddress(m.ServerAddress)
	w.Bytes(addr[:])
	w.Uint16(m.ServerPort)
	w.String(m.Protocol)
	if m.Found {
		w.Uint8(1)
	} else {
		w.Uint8(0)
	}
	w.Uint16(uint16(len(m.InstanceIDs)))
	for _, id := range m.InstanceIDs {
		w.Uint32(id)
	}
	return w.Out()
}

// DecodeSearchResponse decodes a search response body.
func DecodeSearchResponse(data []byte, order binary.ByteOrder) (SearchResponse, error) {
	r := wire.NewReader(data, order)
	var m SearchResponse

	guid, err := r.Bytes(pvconst.GUIDLength)
	if err != nil {
		return m, err
	}
	copy(m.GUID[:], guid)

	if m.SequenceID, err = r.Uint32(); err != nil {
		return m, err
	}

	raw, err := r.Bytes(16)
	if err != nil {
		return m, err
	}
	var addr [16]byte
	copy(addr[:], raw)
	m.ServerAddress = wire.DecodeAddress(addr)

	if m.ServerPort, err = r.Uint16(); err != nil {
		return m, err
	}
	if m.Protocol, err = r.String(); err != nil {
		return m, err
	}

	found, err := r.Uint8()
	if err != nil {
		return m, err
	}
	m.Found = found != 0

	count, err := r.Uint16()
	if err != nil {
		return m, err
	}
	for range count {
		id, err := r.Uint32()
		if err != nil {
			return m, err
		}
		m.InstanceIDs = append(m.InstanceIDs, id)
	}

	return m, r.Close()
}
