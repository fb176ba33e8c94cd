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

// ConnectionValidationRequest is sent by the server immediately after
// accepting a TCP connection.
type ConnectionValidationRequest struct {
	ServerReceiveBufferSize            uint32
	ServerIntrospectionRegistryMaxSize uint16
	AuthNZ                             []string
}

// Encode serializes the request body with the given byte order.
func (m ConnectionValidationRequest) Encode(order binary.ByteOrder) []byte {
	w := wire.NewWriter(order)
	w.Uint32(m.ServerReceiveBufferSize)
	w.Uint16(m.ServerIntrospectionRegistryMaxSize)
	w.Uint8(byte(len(m.AuthNZ)))
	for _, mech := range m.AuthNZ {
		w.String(mech)
	}
	return w.Out()
}

// DecodeConnectionValidationRequest decodes the request body.
func DecodeConnectionValidationRequest(data []byte, order binary.ByteOrder) (ConnectionValidationRequest, error) {
	r := wire.NewReader(data, order)
	var m ConnectionValidationRequest
	var err error

	if m.ServerReceiveBufferSize, err = r.Uint32(); err != nil {
		return m, err
	}
	if m.ServerIntrospectionRegistryMaxSize, err = r.Uint16(); err != nil {
		return m, err
	}

	count, err := r.Uint8()
	if err != nil {
		return m, err
	}
	for range count {
		mech, err := r.String()
		if err != nil {
			return m, err
		}
		m.AuthNZ = append(m.AuthNZ, mech)
	}

	return m, r.Close()
}

// ConnectionValidationResponse is the client's reply completing the
// handshake: its own sizes, a QoS bitfield, and the chosen mechanism.
type ConnectionValidationResponse struct {
	ClientReceiveBufferSize            uint32
	ClientIntrospectionRegistryMaxSize uint16
	QoS                                uint16
	AuthNZ                             string
}

// Encode serializes the response body with the given byte order.
func (m ConnectionValidationResponse) Encode(order binary.ByteOrder) []byte {
	w := wire.NewWriter(order)
	w.Uint32(m.ClientReceiveBufferSize)
	w.Uint16(m.ClientIntrospectionRegistryMaxSize)
	w.Uint16(m.QoS)
	w.String(m.AuthNZ)
	return w.Out()
}

// DecodeConnectionValidationResponse decodes the response body. QoS bits
// outside the defined set fail with ErrInvalidQoS rather than being
// silently truncated.
func DecodeConnectionValidationResponse(data []byte, order binary.ByteOrder) (ConnectionValidationResponse, error) {
	r := wire.NewReader(data, order)
	var m ConnectionValidationResponse
	var err error

	if m.ClientReceiveBufferSize, err = r.Uint32(); err != nil {
		return m, err
	}
	if m.ClientIntrospectionRegistryMaxSize, err = r.Uint16(); err != nil {
		return m, err
	}
	if m.QoS, err = r.Uint16(); err != nil {
		return m, err
	}
	if m.QoS&^pvconst.QoSDefinedMask != 0 {
		return m, wire.ErrInvalidQoS
	}
	if m.AuthNZ, err = r.String(); err != nil {
		return m, err
	}

	return m, r.Close()
}

// Priority extracts the numeric priority from the QoS bitfield.
func (m ConnectionValidationResponse) Priority() uint8 {
	return uint8(m.QoS & pvconst.QoSPriorityMask)
}
