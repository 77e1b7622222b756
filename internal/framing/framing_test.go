package framing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRoundTrip exercises spec property 1: framing is a lossless
// round trip over arbitrary body bytes, including an empty body.
// Partial reads are covered by TestUnframePartial.
func TestRoundTrip(t *testing.T) {
	msgs := [][]byte{
		[]byte("hello"),
		[]byte{},
		make([]byte, 4096),
	}

	var wire []byte
	for _, m := range msgs {
		f, err := Frame(m)
		require.NoError(t, err)
		wire = append(wire, f...)
	}

	var got [][]byte
	n, err := Unframe(wire, func(body []byte) {
		cp := append([]byte{}, body...)
		got = append(got, cp)
	})
	require.NoError(t, err)
	require.Equal(t, len(wire), n)
	require.Equal(t, msgs, got)
}

func TestUnframePartial(t *testing.T) {
	f, err := Frame([]byte("hello world"))
	require.NoError(t, err)

	var got [][]byte
	n, err := Unframe(f[:3], func(body []byte) { got = append(got, body) })
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Empty(t, got)

	n, err = Unframe(f, func(body []byte) { got = append(got, body) })
	require.NoError(t, err)
	require.Equal(t, len(f), n)
	require.Equal(t, [][]byte{[]byte("hello world")}, got)
}

func TestFrameTooLarge(t *testing.T) {
	_, err := Frame(make([]byte, MaxBodySize+1))
	require.ErrorIs(t, err, ErrBodyTooLarge)
}
