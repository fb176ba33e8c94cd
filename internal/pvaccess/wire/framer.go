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

import "github.com/USA-RedDragon/PVHub/internal/pvaccess/pvconst"

// Frame is one decoded header plus its body.
type Frame struct {
	Header Header
	Body   []byte
}

// Framer accumulates bytes from a TCP stream and yields complete logical
// frames. Segmented messages (FIRST, MIDDLE*, LAST) are reassembled into a
// single frame before the body reaches a decoder.
type Framer struct {
	buf []byte

	segHeader *Header
	segBody   []byte
}

// NewFramer creates an empty Framer.
func NewFramer() *Framer {
	return &Framer{}
}

// Push appends bytes read from the stream.
func (f *Framer) Push(p []byte) {
	f.buf = append(f.buf, p...)
}

// Next yields the next complete frame, or (nil, nil) when more bytes are
// needed. Header decode errors and segmentation violations are returned as
// errors; a TCP session cannot resynchronize past either, so callers close
// the connection.
func (f *Framer) Next() (*Frame, error) {
	for {
		if len(f.buf) < pvconst.HeaderLength {
			return nil, nil
		}

		h, err := DecodeHeader(f.buf[:pvconst.HeaderLength])
		if err != nil {
			return nil, err
		}

		total := pvconst.HeaderLength + int(h.PayloadSize)
		if len(f.buf) < total {
			return nil, nil
		}

		body := f.buf[pvconst.HeaderLength:total]
		f.buf = f.buf[total:]

		switch h.SegmentPosition() {
		case pvconst.FlagSegmentNone:
			if f.segHeader != nil {
				f.reset()
				return nil, ErrSegmentationViolation
			}
			out := make([]byte, len(body))
			copy(out, body)
			return &Frame{Header: h, Body: out}, nil
		case pvconst.FlagSegmentFirst:
			if f.segHeader != nil {
				f.reset()
				return nil, ErrSegmentationViolation
			}
			start := h
			start.Flags &^= pvconst.FlagSegmentationMask
			f.segHeader = &start
			f.segBody = append([]byte(nil), body...)
		case pvconst.FlagSegmentMiddle:
			if f.segHeader == nil {
				return nil, ErrSegmentationViolation
			}
			f.segBody = append(f.segBody, body...)
		case pvconst.FlagSegmentLast:
			if f.segHeader == nil {
				return nil, ErrSegmentationViolation
			}
			f.segBody = append(f.segBody, body...)
			h := *f.segHeader
			h.PayloadSize = uint32(len(f.segBody))
			frame := &Frame{Header: h, Body: f.segBody}
			f.segHeader = nil
			f.segBody = nil
			return frame, nil
		}
	}
}

func (f *Framer) reset() {
	f.segHeader = nil
	f.segBody = nil
}
