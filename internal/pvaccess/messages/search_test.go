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
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/pvconst"
	"github.com/google/go-cmp/cmp"
)

func TestSearchRequestRoundTrip(t *testing.T) {
	t.Parallel()
	request := messages.SearchRequest{
		SequenceID:      7,
		Flags:           pvconst.SearchFlagReplyRequired,
		ResponseAddress: net.IPv4(10, 0, 0, 2).To4(),
		ResponsePort:    5076,
		Protocols:       []string{"tcp"},
		Channels: []messages.SearchChannel{
			{InstanceID: 1, Name: "temperature"},
			{InstanceID: 2, Name: "pressure"},
		},
	}
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		decoded, err := messages.DecodeSearchRequest(request.Encode(order), order)
		if err != nil {
			t.Fatalf("Search request round trip failed (%v): %v", order, err)
		}
		if !cmp.Equal(request, decoded) {
			t.Errorf("Search request round trip mismatch (%v): %+v", order, decoded)
		}
		if !decoded.ReplyRequired() {
			t.Errorf("Reply-required flag lost")
		}
	}
}

func TestSearchResponseRoundTrip(t *testing.T) {
	t.Parallel()
	response := messages.SearchResponse{
		GUID:          [12]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		SequenceID:    7,
		ServerAddress: net.IPv4(127, 0, 0, 1).To4(),
		ServerPort:    5075,
		Protocol:      "tcp",
		Found:         true,
		InstanceIDs:   []uint32{1, 2},
	}
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		decoded, err := messages.DecodeSearchResponse(response.Encode(order), order)
		if err != nil {
			t.Fatalf("Search response round trip failed (%v): %v", order, err)
		}
		if !cmp.Equal(response, decoded) {
			t.Errorf("Search response round trip mismatch (%v): %+v", order, decoded)
		}
	}
}

func TestSearchResponseNotFound(t *testing.T) {
	t.Parallel()
	response := messages.SearchResponse{
		ServerAddress: net.IPv4(127, 0, 0, 1).To4(),
		Protocol:      "tcp",
		Found:         false,
	}
	decoded, err := messages.DecodeSearchResponse(response.Encode(binary.BigEndian), binary.BigEndian)
	if err != nil {
		t.Fatalf("Search response round trip failed: %v", err)
	}
	if decoded.Found || len(decoded.InstanceIDs) != 0 {
		t.Errorf("Not-found response mismatch: %+v", decoded)
	}
}

func FuzzSearchRequestDecode(f *testing.F) {
	req := messages.SearchRequest{ResponseAddress: net.IPv4(1, 2, 3, 4)}
	f.Add(req.Encode(binary.BigEndian))
	f.Fuzz(func(t *testing.T, data []byte) {
		t.Parallel()
		_, _ = messages.DecodeSearchRequest(data, binary.BigEndian)
	})
}
