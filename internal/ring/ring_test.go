package ring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestByteRingSPSC exercises spec property 8: a single producer and
// single consumer goroutine can move a large number of messages
// through the ring without loss or reordering.
func TestByteRingSPSC(t *testing.T) {
	r := NewByteRing()
	const n = 5000
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			msg := []byte{byte(i), byte(i >> 8)}
			for r.TryWrite(msg) == ErrWouldBlock {
			}
		}
	}()

	go func() {
		defer wg.Done()
		buf := make([]byte, 2)
		for i := 0; i < n; i++ {
			for r.TryRead(buf) == ErrWouldBlock {
			}
			require.Equal(t, byte(i), buf[0])
			require.Equal(t, byte(i>>8), buf[1])
		}
	}()

	wg.Wait()
}

func TestSlotRingSPSC(t *testing.T) {
	r := NewSlotRing()
	const n = 2000
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			msg := []byte{byte(i)}
			for r.TryWrite(msg) == ErrWouldBlock {
			}
		}
	}()

	go func() {
		defer wg.Done()
		buf := make([]byte, SlotDataCapacity)
		for i := 0; i < n; i++ {
			var ln int
			var err error
			for {
				ln, err = r.TryRead(buf)
				if err != ErrWouldBlock {
					break
				}
			}
			require.NoError(t, err)
			require.Equal(t, 1, ln)
			require.Equal(t, byte(i), buf[0])
		}
	}()

	wg.Wait()
}

func TestSlotRingTooLarge(t *testing.T) {
	r := NewSlotRing()
	err := r.TryWrite(make([]byte, SlotDataCapacity+1))
	require.ErrorIs(t, err, ErrTooLarge)
}
