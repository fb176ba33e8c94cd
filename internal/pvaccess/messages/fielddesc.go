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

// FieldDesc tag bytes and bit masks. FieldDesc extents and nested
// descriptor lengths are always big-endian, independent of the frame's
// endianness flag.
const (
	fieldDescTagStruct            byte = 0b1000_0000
	fieldDescTagUnion             byte = 0b1000_0001
	fieldDescTagVariantUnion      byte = 0b1000_0010
	fieldDescTagBoundedString     byte = 0b1000_0110
	fieldDescTagVariantUnionArray byte = 0b1000_1010

	fieldDescKindMask    byte = 0b1111_0000
	fieldDescSubtypeMask byte = 0b0000_1100
	fieldDescScalarMask  byte = 0b0000_0011

	fieldDescSubtypeScalar       byte = 0b0000_0000
	fieldDescSubtypeArrayVar     byte = 0b0000_0100
	fieldDescSubtypeArrayBounded byte = 0b0000_1000
	fieldDescSubtypeArrayFixed   byte = 0b0000_1100
)

// FieldKind selects the shape of a FieldDesc.
type FieldKind byte

const (
	KindScalar FieldKind = iota
	KindArrayVar
	KindArrayBounded
	KindArrayFixed
	KindStruct
	KindUnion
	KindVariantUnion
	KindVariantUnionArray
	KindBoundedString
)

// StructField is one named member of a structure or union descriptor.
type StructField struct {
	Name  string
	Field FieldDesc
}

// FieldDesc is the recursive introspection descriptor used for channel
// payload typing. Scalar holds the 2-bit scalar type code for scalar and
// array kinds; Size holds the extent for bounded/fixed arrays and bounded
// strings; ID and Fields apply to structures and unions.
type FieldDesc struct {
	Kind   FieldKind
	Scalar byte
	Size   uint32
	ID     string
	Fields []StructField
}

// Encode serializes the descriptor to its self-delimiting wire form.
func (d FieldDesc) Encode() []byte {
	w := wire.NewWriter(binary.BigEndian)
	d.encode(w)
	return w.Out()
}

func (d FieldDesc) encode(w *wire.Writer) {
	switch d.Kind {
	case KindScalar:
		w.Uint8(fieldDescSubtypeScalar | d.Scalar&fieldDescScalarMask)
	case KindArrayVar:
		w.Uint8(fieldDescSubtypeArrayVar | d.Scalar&fieldDescScalarMask)
	case KindArrayBounded:
		w.Uint8(fieldDescSubtypeArrayBounded | d.Scalar&fieldDescScalarMask)
		w.Uint32(d.Size)
	case KindArrayFixed:
		w.Uint8(fieldDescSubtypeArrayFixed | d.Scalar&fieldDescScalarMask)
		w.Uint32(d.Size)
	case KindStruct:
		d.encodeStructured(w, fieldDescTagStruct)
	case KindUnion:
		d.encodeStructured(w, fieldDescTagUnion)
	case KindVariantUnion:
		w.Uint8(fieldDescTagVariantUnion)
	case KindVariantUnionArray:
		w.Uint8(fieldDescTagVariantUnionArray)
	case KindBoundedString:
		w.Uint8(fieldDescTagBoundedString)
		w.Uint32(d.Size)
	}
}

func (d FieldDesc) encodeStructured(w *wire.Writer, tag byte) {
	w.Uint8(tag)
	w.String(d.ID)
	w.Uint8(byte(len(d.Fields)))
	for _, f := range d.Fields {
		w.String(f.Name)
		sub := f.Field.Encode()
		w.Uint16(uint16(len(sub)))
		w.Bytes(sub)
	}
}

// DecodeFieldDesc decodes one descriptor, consuming the whole input.
// Tag bytes outside the legal set fail with ErrInvalidFieldDescTag.
func DecodeFieldDesc(data []byte) (FieldDesc, error) {
	r := wire.NewReader(data, binary.BigEndian)
	d, err := decodeFieldDesc(r)
	if err != nil {
		return FieldDesc{}, err
	}
	return d, r.Close()
}

func decodeFieldDesc(r *wire.Reader) (FieldDesc, error) {
	tag, err := r.Uint8()
	if err != nil {
		return FieldDesc{}, err
	}

	switch tag {
	case fieldDescTagStruct:
		return decodeStructured(r, KindStruct)
	case fieldDescTagUnion:
		return decodeStructured(r, KindUnion)
	case fieldDescTagVariantUnion:
		return FieldDesc{Kind: KindVariantUnion}, nil
	case fieldDescTagVariantUnionArray:
		return FieldDesc{Kind: KindVariantUnionArray}, nil
	case fieldDescTagBoundedString:
		size, err := r.Uint32()
		if err != nil {
			return FieldDesc{}, err
		}
		return FieldDesc{Kind: KindBoundedString, Size: size}, nil
	}

	if tag&fieldDescKindMask != 0 {
		return FieldDesc{}, wire.ErrInvalidFieldDescTag
	}

	scalar := tag & fieldDescScalarMask
	switch tag & fieldDescSubtypeMask {
	case fieldDescSubtypeScalar:
		return FieldDesc{Kind: KindScalar, Scalar: scalar}, nil
	case fieldDescSubtypeArrayVar:
		return FieldDesc{Kind: KindArrayVar, Scalar: scalar}, nil
	case fieldDescSubtypeArrayBounded:
		size, err := r.Uint32()
		if err != nil {
			return FieldDesc{}, err
		}
		return FieldDesc{Kind: KindArrayBounded, Scalar: scalar, Size: size}, nil
	default:
		size, err := r.Uint32()
		if err != nil {
			return FieldDesc{}, err
		}
		return FieldDesc{Kind: KindArrayFixed, Scalar: scalar, Size: size}, nil
	}
}

func decodeStructured(r *wire.Reader, kind FieldKind) (FieldDesc, error) {
	d := FieldDesc{Kind: kind}
	var err error

	if d.ID, err = r.String(); err != nil {
		return d, err
	}

	count, err := r.Uint8()
	if err != nil {
		return d, err
	}
	for range count {
		var f StructField
		if f.Name, err = r.String(); err != nil {
			return d, err
		}
		n, err := r.Uint16()
		if err != nil {
			return d, err
		}
		raw, err := r.Bytes(int(n))
		if err != nil {
			return d, err
		}
		if f.Field, err = DecodeFieldDesc(raw); err != nil {
			return d, err
		}
		d.Fields = append(d.Fields, f)
	}

	return d, nil
}
