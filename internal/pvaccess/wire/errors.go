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

package wire

import "errors"

// Frame errors. Recoverable on UDP (logged and skipped), fatal to a TCP session.
var (
	// ErrInvalidMagic indicates the first header byte was not 0xCA.
	ErrInvalidMagic = errors.New("invalid magic byte")
	// ErrShortHeader indicates fewer than 8 bytes were available for the header.
	ErrShortHeader = errors.New("header too short")
	// ErrPayloadTruncated indicates the body ended before the decoder was done.
	ErrPayloadTruncated = errors.New("payload truncated")
)

// Decode errors for message bodies.
var (
	// ErrMalformedString indicates a length-prefixed string was not valid UTF-8.
	ErrMalformedString = errors.New("malformed string")
	// ErrInvalidQoS indicates undefined QoS bits were set.
	ErrInvalidQoS = errors.New("undefined qos bits set")
	// ErrInvalidFieldDescTag indicates an illegal field descriptor tag byte.
	ErrInvalidFieldDescTag = errors.New("invalid field descriptor tag")
	// ErrTrailingBytes indicates bytes remained after a body decoded fully.
	ErrTrailingBytes = errors.New("trailing bytes after decode")
	// ErrInvalidMessageType indicates an unknown severity byte in a Message body.
	ErrInvalidMessageType = errors.New("invalid message type")
)

// Protocol errors for the session state machine.
var (
	// ErrUnexpectedCommand indicates a command that violates the session state machine.
	ErrUnexpectedCommand = errors.New("unexpected command")
	// ErrHandshakeTimeout indicates the peer did not complete validation in time.
	ErrHandshakeTimeout = errors.New("validation handshake timed out")
	// ErrSegmentationViolation indicates an illegal segmentation bit sequence.
	ErrSegmentationViolation = errors.New("illegal segmentation sequence")
)
