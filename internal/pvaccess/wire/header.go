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

import (
	"encoding/binary"

	"github.com/USA-RedDragon/PVHub/internal/pvaccess/pvconst"
)

// Header is the fixed 8-byte pvAccess frame header.
type Header struct {
	Magic       byte
	Version     byte
	Flags       byte
	Command     pvconst.Command
	PayloadSize uint32
}

// NewHeader creates a header for the current protocol version.
func NewHeader(flags byte, command pvconst.Command, payloadSize uint32) Header {
	return Header{
		Magic:       pvconst.Magic,
		Version:     pvconst.ProtocolVersion,
		Flags:       flags,
		Command:     command,
		PayloadSize: payloadSize,
	}
}

// DecodeHeader decodes the 8-byte header. payload_size is read with the
// endianness selected by flag bit 7. Unknown command bytes do not fail the
// decode.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < pvconst.HeaderLength {
		return Header{}, ErrShortHeader
	}
	if data[0] != pvconst.Magic {
		return Header{}, ErrInvalidMagic
	}

	h := Header{
		Magic:   data[0],
		Version: data[1],
		Flags:   data[2],
		Command: pvconst.Command(data[3]),
	}
	h.PayloadSize = h.ByteOrder().Uint32(data[4:8])

	return h, nil
}

// Encode serializes the header to its 8-byte wire form.
func (h Header) Encode() []byte {
	buf := make([]byte, pvconst.HeaderLength)
	buf[0] = h.Magic
	buf[1] = h.Version
	buf[2] = h.Flags
	buf[3] = byte(h.Command)
	h.ByteOrder().PutUint32(buf[4:8], h.PayloadSize)
	return buf
}

// ByteOrder returns the byte order selected by flag bit 7, used for
// payload_size and every multi-byte field in the body.
func (h Header) ByteOrder() binary.ByteOrder {
	if h.IsBigEndian() {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// IsSegmented reports whether the frame is part of a segmented message.
// SEGMENT_NONE is not segmented.
func (h Header) IsSegmented() bool {
	return h.Flags&pvconst.FlagSegmentationMask != pvconst.FlagSegmentNone
}

// SegmentPosition returns the raw segmentation bits.
func (h Header) SegmentPosition() byte {
	return h.Flags & pvconst.FlagSegmentationMask
}

// IsFromServer reports whether the frame was sent by a server.
func (h Header) IsFromServer() bool {
	return h.Flags&pvconst.FlagFromServer != 0
}

// IsBigEndian reports whether body integers are big-endian.
func (h Header) IsBigEndian() bool {
	return h.Flags&pvconst.FlagBigEndian != 0
}

// IsControl reports whether the frame is a control message.
func (h Header) IsControl() bool {
	return h.Flags&pvconst.FlagControl != 0
}

// EncodeFrame serializes a header and body into one frame, fixing up the
// header's payload size to the body length.
func EncodeFrame(h Header, body []byte) []byte {
	h.PayloadSize = uint32(len(body))
	return append(h.Encode(), body...)
}

// DecodeDatagram decodes a single frame from one UDP datagram. A datagram
// shorter than header plus payload fails with ErrPayloadTruncated.
func DecodeDatagram(data []byte) (Header, []byte, error) {
	h, err := DecodeHeader(data)
	if err != nil {
		return Header{}, nil, err
	}
	if len(data) < pvconst.HeaderLength+int(h.PayloadSize) {
		return Header{}, nil, ErrPayloadTruncated
	}
	return h, data[pvconst.HeaderLength : pvconst.HeaderLength+int(h.PayloadSize)], nil
}
