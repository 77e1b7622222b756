package ring

import "sync/atomic"

// SlotCount is the number of slots in a SlotRing; must be a power of
// two so index computation can use a mask instead of a modulo.
const SlotCount = 128 * 1024

// SlotDataCapacity is the usable payload size of a single slot.
const SlotDataCapacity = 56

// slot carries its own sequence number so producer and consumer can
// hand off one message at a time without touching a shared head/tail
// pair, unlike ByteRing. This mirrors the teacher's RingBufferSlot
// per-slot sequence handshake (internal/disruptor/ring_buffer.go)
// generalized from one OrderRequest pointer to a fixed byte payload.
// A slot is 72 bytes (sequence, length, payload, padding), so it does
// not fit in a single 64-byte cache line.
type slot struct {
	seq  atomic.Uint64
	len  uint8
	data [SlotDataCapacity]byte
	_    [7]byte
}

// SlotRing is a single-producer single-consumer ring of fixed-capacity
// message slots, each independently sequenced. Producer index p and
// consumer index c advance monotonically; slot i = idx & mask.
type SlotRing struct {
	slots [SlotCount]slot
	mask  uint64
	pIdx  atomic.Uint64
	_     [56]byte
	cIdx  atomic.Uint64
	_     [56]byte
}

// NewSlotRing allocates a zeroed SlotRing with every slot initialized
// to sequence number equal to its own index, so the first producer at
// index 0 finds seq==0==pIdx immediately writable.
func NewSlotRing() *SlotRing {
	r := &SlotRing{mask: SlotCount - 1}
	for i := range r.slots {
		r.slots[i].seq.Store(uint64(i))
	}
	return r
}

// TryWrite attempts to publish payload (at most SlotDataCapacity bytes)
// into the next slot. It returns ErrTooLarge if payload doesn't fit,
// or ErrWouldBlock if the ring is full (the next slot hasn't been
// drained by the consumer yet).
func (r *SlotRing) TryWrite(payload []byte) error {
	if len(payload) > SlotDataCapacity {
		return ErrTooLarge
	}
	p := r.pIdx.Load()
	s := &r.slots[p&r.mask]
	if s.seq.Load() != p {
		return ErrWouldBlock
	}

	s.len = uint8(len(payload))
	copy(s.data[:], payload)
	s.seq.Store(p + 1) // release: slot is now consumer-readable
	r.pIdx.Store(p + 1)
	return nil
}

// TryRead attempts to consume the next slot into dst, returning the
// number of bytes copied. It returns ErrWouldBlock if the producer
// hasn't published that slot yet.
func (r *SlotRing) TryRead(dst []byte) (int, error) {
	c := r.cIdx.Load()
	s := &r.slots[c&r.mask]
	if s.seq.Load() != c+1 {
		return 0, ErrWouldBlock
	}

	n := copy(dst, s.data[:s.len])
	s.seq.Store(c + SlotCount) // release: slot free for producer again at c+SlotCount
	r.cIdx.Store(c + 1)
	return n, nil
}
