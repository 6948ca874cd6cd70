// Copyright (c) JerryScript Project. All rights reserved.
// Licensed under the MIT License.

// Package codec implements the byte-oriented wire encoding used by the
// JerryScript remote debugger protocol: fixed-width unsigned integers
// whose endianness and pointer width are decided at handshake time, and
// the CESU-8 text encoding the engine uses for every string field.
package codec

import (
	"fmt"
)

// ByteConfig captures the handshake-negotiated facts needed to decode or
// encode every subsequent frame: the width of a compressed pointer field
// and the byte order the peer uses for multi-byte integers. It is
// assigned exactly once, from the first CONFIGURATION frame, and never
// mutated afterward (spec invariant: cpointer_size is fixed for the
// session).
type ByteConfig struct {
	// CPointerSize is the width, in bytes, of a compressed-pointer ('C')
	// field. Only 2 or 4 are valid.
	CPointerSize int

	// LittleEndian is true when the peer encodes multi-byte integers
	// least-significant-byte first.
	LittleEndian bool
}

// Validate reports whether the configuration describes a decodable
// session. A pointer width other than 2 or 4 is a decode error per
// spec.md 4.1.
func (c ByteConfig) Validate() error {
	if c.CPointerSize != 2 && c.CPointerSize != 4 {
		return fmt.Errorf("codec: invalid compressed pointer size %d (must be 2 or 4)", c.CPointerSize)
	}
	return nil
}

// FieldSize returns the number of bytes a single format character
// occupies under this configuration.
func (c ByteConfig) FieldSize(field byte) (int, error) {
	switch field {
	case 'B':
		return 1, nil
	case 'I':
		return 4, nil
	case 'C':
		if err := c.Validate(); err != nil {
			return 0, err
		}
		return c.CPointerSize, nil
	default:
		return 0, fmt.Errorf("codec: unknown format character %q", field)
	}
}

// Size returns the total byte length described by a format string, e.g.
// Size("BBCI") for a two-byte pointer session returns 1+1+2+4 = 8.
func (c ByteConfig) Size(format string) (int, error) {
	total := 0
	for i := 0; i < len(format); i++ {
		n, err := c.FieldSize(format[i])
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// maxForWidth returns the largest unsigned value representable in the
// given byte width.
func maxForWidth(width int) uint64 {
	if width >= 8 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(width*8)) - 1
}

// Encode packs values into a byte slice according to format, in order.
// Each value in values must be non-negative and fit within the width its
// format character implies; the number of values must equal the number
// of format characters.
func (c ByteConfig) Encode(format string, values ...uint64) ([]byte, error) {
	return c.EncodeWithPrefix(format, 0, values...)
}

// EncodeWithPrefix behaves like Encode but reserves `prefix` leading
// zero bytes in the returned buffer for the caller to fill in with a
// header the format string does not describe (used by outgoing command
// encoding to reserve space for a payload-length header before the
// format-described fields begin).
func (c ByteConfig) EncodeWithPrefix(format string, prefix int, values ...uint64) ([]byte, error) {
	if len(values) != len(format) {
		return nil, fmt.Errorf("codec: encode: %d values for format %q (want %d)", len(values), format, len(format))
	}

	size, err := c.Size(format)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, prefix+size)
	offset := prefix
	for i := 0; i < len(format); i++ {
		field := format[i]
		width, err := c.FieldSize(field)
		if err != nil {
			return nil, err
		}

		v := values[i]
		if v > maxForWidth(width) {
			return nil, fmt.Errorf("codec: encode: value %d out of range for field %q (width %d)", v, field, width)
		}

		c.putUint(buf[offset:offset+width], v)
		offset += width
	}

	return buf, nil
}

// putUint writes v into dst respecting c.LittleEndian.
func (c ByteConfig) putUint(dst []byte, v uint64) {
	if c.LittleEndian {
		for i := range dst {
			dst[i] = byte(v)
			v >>= 8
		}
	} else {
		for i := len(dst) - 1; i >= 0; i-- {
			dst[i] = byte(v)
			v >>= 8
		}
	}
}

// getUint reads an unsigned integer from src respecting c.LittleEndian.
func (c ByteConfig) getUint(src []byte) uint64 {
	var v uint64
	if c.LittleEndian {
		for i := len(src) - 1; i >= 0; i-- {
			v = v<<8 | uint64(src[i])
		}
	} else {
		for i := 0; i < len(src); i++ {
			v = v<<8 | uint64(src[i])
		}
	}
	return v
}

// Decode reads len(format) unsigned integers from buf starting at
// offset, one per format character, and returns them in order. It fails
// if buf is too short for the format or format contains an unknown
// character.
func (c ByteConfig) Decode(format string, buf []byte, offset int) ([]uint64, error) {
	size, err := c.Size(format)
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset+size > len(buf) {
		return nil, fmt.Errorf("codec: decode: buffer too short (need %d bytes at offset %d, have %d)", size, offset, len(buf))
	}

	values := make([]uint64, len(format))
	pos := offset
	for i := 0; i < len(format); i++ {
		field := format[i]
		width, err := c.FieldSize(field)
		if err != nil {
			return nil, err
		}
		values[i] = c.getUint(buf[pos : pos+width])
		pos += width
	}

	return values, nil
}
