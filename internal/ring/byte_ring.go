// Package ring implements the venue's two SPSC transport primitives: a
// byte ring for variable-length framed streams, and a slot ring for
// fixed-capacity messages that need per-message handshake rather than
// a shared cursor. Both generalize the claim/publish sequencing of
// the teacher's disruptor (internal/disruptor/ring_buffer.go,
// sequencer.go) from one fixed OrderRequest type to arbitrary byte
// payloads, as required for the shared-memory transport in spec §4.2.
// With one producer and one consumer, each cursor has a single writer,
// so plain atomic loads and stores are used and no compare-and-swap.
// The byte ring's sizing and wrap-around split-copy are grounded on
// original_source/common/src/network/transport/shm/shm_ring_buffer.hpp.
package ring

import (
	"errors"
	"sync/atomic"
)

// ByteRingSize is the fixed capacity of a ByteRing, matching the
// shared-memory layout's reserved region. Must be a power of two.
const ByteRingSize = 16 * 1024 * 1024

// ErrWouldBlock is returned by TryWrite/TryRead when there is not
// currently enough room/data to complete the whole operation. Callers
// never get a partial write or read.
var ErrWouldBlock = errors.New("ring: would block")

// ErrTooLarge is returned when a single write exceeds the ring's total
// capacity and could never succeed.
var ErrTooLarge = errors.New("ring: payload exceeds ring capacity")

// ByteRing is a single-producer single-consumer byte-oriented ring
// buffer. Head and tail live on separate cache lines to avoid false
// sharing between the producer and consumer cores; every write is
// single-shot, either fully committed or not attempted.
type ByteRing struct {
	_    [64]byte
	head atomic.Uint64 // write cursor, producer-owned
	_    [56]byte
	tail atomic.Uint64 // read cursor, consumer-owned
	_    [56]byte
	buf  [ByteRingSize]byte
	mask uint64
}

// NewByteRing allocates a zeroed ByteRing.
func NewByteRing() *ByteRing {
	r := &ByteRing{mask: ByteRingSize - 1}
	return r
}

// TryWrite attempts to copy all of data into the ring. It returns
// ErrWouldBlock if there is not enough free space, without writing any
// bytes.
func (r *ByteRing) TryWrite(data []byte) error {
	if len(data) > ByteRingSize {
		return ErrTooLarge
	}
	head := r.head.Load()
	tail := r.tail.Load() // acquire: see consumer's progress
	free := ByteRingSize - int(head-tail)
	if len(data) > free {
		return ErrWouldBlock
	}

	start := int(head & r.mask)
	n := copy(r.buf[start:], data)
	if n < len(data) {
		copy(r.buf[0:], data[n:])
	}

	r.head.Store(head + uint64(len(data))) // release: publish the write
	return nil
}

// TryRead attempts to copy exactly len(dst) bytes out of the ring into
// dst. It returns ErrWouldBlock if fewer bytes are currently available,
// without consuming any.
func (r *ByteRing) TryRead(dst []byte) error {
	tail := r.tail.Load()
	head := r.head.Load() // acquire: see producer's progress
	avail := int(head - tail)
	if len(dst) > avail {
		return ErrWouldBlock
	}

	start := int(tail & r.mask)
	n := copy(dst, r.buf[start:])
	if n < len(dst) {
		copy(dst[n:], r.buf[0:])
	}

	r.tail.Store(tail + uint64(len(dst))) // release: free the space
	return nil
}

// Available returns the number of unread bytes currently buffered.
func (r *ByteRing) Available() int {
	return int(r.head.Load() - r.tail.Load())
}
