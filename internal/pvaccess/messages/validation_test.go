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
	"errors"
	"testing"

	"github.com/USA-RedDragon/PVHub/internal/pvaccess/messages"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/pvconst"
	"github.com/USA-RedDragon/PVHub/internal/pvaccess/wire"
	"github.com/google/go-cmp/cmp"
)

func TestValidationRequestRoundTrip(t *testing.T) {
	t.Parallel()
	request := messages.ConnectionValidationRequest{
		ServerReceiveBufferSize:            105576,
		ServerIntrospectionRegistryMaxSize: 512,
		AuthNZ:                             []string{"anonymous", "ca"},
	}
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		decoded, err := messages.DecodeConnectionValidationRequest(request.Encode(order), order)
		if err != nil {
			t.Fatalf("Request round trip failed (%v): %v", order, err)
		}
		if !cmp.Equal(request, decoded) {
			t.Errorf("Request round trip mismatch (%v): %+v", order, decoded)
		}
	}
}

func TestValidationRequestEmptyMechanisms(t *testing.T) {
	t.Parallel()
	request := messages.ConnectionValidationRequest{
		ServerReceiveBufferSize:            105576,
		ServerIntrospectionRegistryMaxSize: 512,
	}
	decoded, err := messages.DecodeConnectionValidationRequest(request.Encode(binary.BigEndian), binary.BigEndian)
	if err != nil {
		t.Fatalf("Request round trip failed: %v", err)
	}
	if len(decoded.AuthNZ) != 0 {
		t.Errorf("Expected empty mechanism list, got %v", decoded.AuthNZ)
	}
}

func TestValidationResponseRoundTrip(t *testing.T) {
	t.Parallel()
	response := messages.ConnectionValidationResponse{
		ClientReceiveBufferSize:            105576,
		ClientIntrospectionRegistryMaxSize: 512,
		QoS:                                42 | pvconst.QoSLowLatency,
		AuthNZ:                             "anonymous",
	}
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		decoded, err := messages.DecodeConnectionValidationResponse(response.Encode(order), order)
		if err != nil {
			t.Fatalf("Response round trip failed (%v): %v", order, err)
		}
		if !cmp.Equal(response, decoded) {
			t.Errorf("Response round trip mismatch (%v): %+v", order, decoded)
		}
		if decoded.Priority() != 42 {
			t.Errorf("Priority mismatch: %d", decoded.Priority())
		}
	}
}

func TestValidationResponseInvalidQoS(t *testing.T) {
	t.Parallel()
	response := messages.ConnectionValidationResponse{
		QoS: 0x0080, // bit 7 is undefined
	}
	_, err := messages.DecodeConnectionValidationResponse(response.Encode(binary.BigEndian), binary.BigEndian)
	if !errors.Is(err, wire.ErrInvalidQoS) {
		t.Errorf("Expected ErrInvalidQoS, got %v", err)
	}

	response.QoS = 0x0800
	_, err = messages.DecodeConnectionValidationResponse(response.Encode(binary.BigEndian), binary.BigEndian)
	if !errors.Is(err, wire.ErrInvalidQoS) {
		t.Errorf("Expected ErrInvalidQoS for bit 11, got %v", err)
	}
}
