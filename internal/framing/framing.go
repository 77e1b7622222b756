// Package framing implements the venue's wire framing: a little-endian
// u16 body length prefix followed by the body bytes, grounded on
// original_source/common/src/network/framing/fixed_size_framer.hpp.
package framing

import (
	"encoding/binary"
	"errors"
)

// HeaderSize is the length-prefix width in bytes.
const HeaderSize = 2

// MaxBodySize bounds a single message body; a header claiming more
// than this is treated as a framing error rather than an allocation
// hazard.
const MaxBodySize = 1 << 16 - 1

// ErrBodyTooLarge is returned by Frame when body exceeds MaxBodySize.
var ErrBodyTooLarge = errors.New("framing: body exceeds max serialized message size")

// ErrCorruptFrame is returned by Unframe when a frame header claims a
// body longer than MaxBodySize. With a u16 header and MaxBodySize equal
// to the largest u16 this is never currently reachable, but it is kept
// as the taxonomy's buffer-fatal case.
var ErrCorruptFrame = errors.New("framing: corrupt frame header")

// Frame prepends the HeaderSize length prefix to body, returning a new
// slice. The caller owns the result.
func Frame(body []byte) ([]byte, error) {
	if len(body) > MaxBodySize {
		return nil, ErrBodyTooLarge
	}
	out := make([]byte, HeaderSize+len(body))
	binary.LittleEndian.PutUint16(out, uint16(len(body)))
	copy(out[HeaderSize:], body)
	return out, nil
}

// Unframe scans buf for complete frames and invokes consumer with each
// message body in order. It returns the number of bytes consumed from
// the front of buf; the caller must retain buf[n:] (the trailing
// partial frame, if any) and prepend it to the next read. Unframe
// never blocks and never allocates beyond the body slices it hands to
// consumer.
func Unframe(buf []byte, consumer func(body []byte)) (int, error) {
	off := 0
	for {
		if len(buf)-off < HeaderSize {
			return off, nil
		}
		bodyLen := int(binary.LittleEndian.Uint16(buf[off : off+HeaderSize]))
		if bodyLen > MaxBodySize {
			return off, ErrCorruptFrame
		}
		total := HeaderSize + bodyLen
		if len(buf)-off < total {
			return off, nil
		}
		consumer(buf[off+HeaderSize : off+total])
		off += total
	}
}
