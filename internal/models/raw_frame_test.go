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

package models_test

import (
	"testing"

	"github.com/USA-RedDragon/PVHub/internal/models"
	"github.com/google/go-cmp/cmp"
)

func TestRawFrameMsgpRoundTrip(t *testing.T) {
	t.Parallel()
	frame := models.RawFrame{
		Data:       []byte{0xCA, 0x02, 0x00, 0x02, 0x00, 0x00, 0x00, 0x00},
		RemoteIP:   "127.0.0.1",
		RemotePort: 5076,
	}

	raw, err := frame.MarshalMsg(nil)
	if err != nil {
		t.Fatalf("MarshalMsg failed: %v", err)
	}

	var decoded models.RawFrame
	left, err := decoded.UnmarshalMsg(raw)
	if err != nil {
		t.Fatalf("UnmarshalMsg failed: %v", err)
	}
	if len(left) != 0 {
		t.Errorf("UnmarshalMsg left %d bytes", len(left))
	}
	if !cmp.Equal(frame, decoded) {
		t.Errorf("RawFrame round trip mismatch: %+v", decoded)
	}
}
