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
	"net"
	"testing"

	"github.com/USA-RedDragon/PVHub/internal/pvaccess/messages"
	"github.com/google/go-cmp/cmp"
)

//nolint:gochecknoglobals
var knownGoodBeaconBytes = []byte{
	0x36, 0x5F, 0x53, 0x96, 0x14, 0xA7, 0x45, 0x32, 0x8B, 0xB3, 0xE3, 0x0E,
	0x00,
	0x11,
	0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0x7F, 0x00, 0x00, 0x01,
	0x15, 0xC8,
	0x03, 0x74, 0x63, 0x70,
	0x00,
}

//nolint:gochecknoglobals
var knownGoodBeacon = messages.BeaconMessage{
	GUID:           [12]byte{0x36, 0x5F, 0x53, 0x96, 0x14, 0xA7, 0x45, 0x32, 0x8B, 0xB3, 0xE3, 0x0E},
	Flags:          0,
	SequenceID:     17,
	ChangeCount:    0,
	ServerAddress:  net.IPv4(127, 0, 0, 1).To4(),
	ServerPort:     5576,
	Protocol:       "tcp",
	ServerStatusIF: 0,
}

func TestBeaconDecode(t *testing.T) {
	t.Parallel()
	beacon, err := messages.DecodeBeacon(knownGoodBeaconBytes, binary.BigEndian)
	if err != nil {
		t.Fatalf("Beacon did not decode: %v", err)
	}
	if !cmp.Equal(knownGoodBeacon, beacon) {
		t.Errorf("Beacon did not decode properly: %+v", beacon)
	}
}

func TestBeaconRoundTrip(t *testing.T) {
	t.Parallel()
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		encoded := knownGoodBeacon.Encode(order)
		decoded, err := messages.DecodeBeacon(encoded, order)
		if err != nil {
			t.Fatalf("Beacon round trip failed (%v): %v", order, err)
		}
		if !cmp.Equal(knownGoodBeacon, decoded) {
			t.Errorf("Beacon round trip mismatch (%v): %+v", order, decoded)
		}
	}
}

func TestBeaconReEncode(t *testing.T) {
	t.Parallel()
	if !cmp.Equal(knownGoodBeaconBytes, knownGoodBeacon.Encode(binary.BigEndian)) {
		t.Errorf("Beacon re-encode mismatch")
	}
}

func TestBeaconTrailingBytes(t *testing.T) {
	t.Parallel()
	_, err := messages.DecodeBeacon(append(knownGoodBeaconBytes, 0xAA), binary.BigEndian)
	if err == nil {
		t.Errorf("Trailing bytes must fail decode")
	}
}

func FuzzBeaconDecode(f *testing.F) {
	f.Add(knownGoodBeaconBytes)
	f.Fuzz(func(t *testing.T, data []byte) {
		t.Parallel()
		_, _ = messages.DecodeBeacon(data, binary.BigEndian)
	})
}
