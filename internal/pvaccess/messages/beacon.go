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

// BeaconMessage is the periodic UDP advertisement of a server's presence.
// The GUID changes on every server boot; sequence_id is monotonic with
// rollover; change_count increments when the channel inventory changes.
type BeaconMessage struct {
	GUID           [pvconst.GUIDLength]byte
	Flags          byte
	SequenceID     uint8
	ChangeCount    uint16
	ServerAddress  net.IP
	ServerPort     uint16
	Protocol       string
	ServerStatusIF byte
}

// Encode serializes the beacon body with the given byte order.
func (m BeaconMessage) Encode(order binary.ByteOrder) []byte {
	w := wire.NewWriter(order)
	w.Bytes(m.GUID[:])
	w.Uint8(m.Flags)
	w.Uint8(m.SequenceID)
	w.Uint16(m.ChangeCount)
	addr := wire.EncodeAddress(m.ServerAddress)
	w.Bytes(addr[:])
	w.Uint16(m.ServerPort)
	w.String(m.Protocol)
	w.Uint8(m.ServerStatusIF)
	return w.Out()
}

// DecodeBeacon decodes a beacon body.
func DecodeBeacon(data []byte, order binary.ByteOrder) (BeaconMessage, error) {
	r := wire.NewReader(data, order)
	var m BeaconMessage

	guid, err := r.Bytes(pvconst.GUIDLength)
	if err != nil {
		return m, err
	}
	copy(m.GUID[:], guid)

	if m.Flags, err = r.Uint8(); err != nil {
		return m, err
	}
	if m.SequenceID, err = r.Uint8(); err != nil {
		return m, err
	}
	if m.ChangeCount, err = r.Uint16(); err != nil {
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
	if m.ServerStatusIF, err = r.Uint8(); err != nil {
		return m, err
	}

	return m, r.Close()
}
