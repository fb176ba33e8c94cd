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

// EchoMessage carries opaque bytes in either direction. The response
// repeats the request payload verbatim.
type EchoMessage struct {
	Payload []byte
}

// Encode serializes the echo body: a u16 length followed by the payload.
func (m EchoMessage) Encode(order binary.ByteOrder) []byte {
	w := wire.NewWriter(order)
	w.Uint16(uint16(len(m.Payload)))
	w.Bytes(m.Payload)
	return w.Out()
}

// DecodeEcho decodes an echo body.
func DecodeEcho(data []byte, order binary.ByteOrder) (EchoMessage, error) {
	r := wire.NewReader(data, order)
	n, err := r.Uint16()
	if err != nil {
		return EchoMessage{}, err
	}
	payload, err := r.Bytes(int(n))
	if err != nil {
		return EchoMessage{}, err
	}
	return EchoMessage{Payload: payload}, r.Close()
}
