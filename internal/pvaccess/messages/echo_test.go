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

package messages_test

import (
	"encoding/binary"
	"testing"

	"github.com/USA-RedDragon/PVHub/internal/pvaccess/messages"
	"github.com/google/go-cmp/cmp"
)

func TestEchoBigEndianLayout(t *testing.T) {
	t.Parallel()
	echo := messages.EchoMessage{Payload: []byte{1, 2, 3, 4, 5}}
	encoded := echo.Encode(binary.BigEndian)
	expected := []byte{0x00, 0x05, 1, 2, 3, 4, 5}
	if !cmp.Equal(expected, encoded) {
		t.Errorf("Echo encode mismatch: %v", encoded)
	}
}

func TestEchoRoundTrip(t *testing.T) {
	t.Parallel()
	echo := messages.EchoMessage{Payload: []byte{9, 8, 7, 6, 5}}
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		decoded, err := messages.DecodeEcho(echo.Encode(order), order)
		if err != nil {
			t.Fatalf("Echo round trip failed (%v): %v", order, err)
		}
		if !cmp.Equal(echo, decoded) {
			t.Errorf("Echo round trip mismatch (%v): %+v", order, decoded)
		}
	}
}

func TestEchoTruncated(t *testing.T) {
	t.Parallel()
	_, err := messages.DecodeEcho([]byte{0x00, 0x05, 1, 2}, binary.BigEndian)
	if err == nil {
		t.Errorf("Truncated echo must fail decode")
	}
}

func FuzzEchoDecode(f *testing.F) {
	f.Add([]byte{0x00, 0x05, 1, 2, 3, 4, 5})
	f.Fuzz(func(t *testing.T, data []byte) {
		t.Parallel()
		_, _ = messages.DecodeEcho(data, binary.LittleEndian)
	})
}
