package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rishavpaul-system-design/matching-venue/internal/ring"
	"github.com/rishavpaul-system-design/matching-venue/internal/shmreactor"
)

// TestSHMTransportDeliversOverReactor exercises spec §4.3/§4.4's third
// transport end to end: two SHMTransports sharing a pair of rings and
// a doorbell, each driven by its own registered Reactor, deliver bytes
// without the test ever calling Drain directly.
func TestSHMTransportDeliversOverReactor(t *testing.T) {
	aToB := ring.NewByteRing()
	bToA := ring.NewByteRing()
	bell := shmreactor.NewDoorbell()

	server := NewSHM(shmreactor.RoleServer, aToB, bToA, bell)
	client := NewSHM(shmreactor.RoleClient, bToA, aToB, bell)
	defer server.Close()
	defer client.Close()

	var mu sync.Mutex
	var got []byte
	require.NoError(t, client.AsyncRx(context.Background(), func(data []byte, err error) {
		if err != nil {
			return
		}
		mu.Lock()
		got = append(got, data...)
		mu.Unlock()
	}))
	require.NoError(t, server.AsyncRx(context.Background(), func([]byte, error) {}))

	server.AsyncTx([]byte("hello"), nil)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return string(got) == "hello"
	}, time.Second, time.Millisecond)
}

// TestSHMTransportCloseSignalsError covers spec §4.4's disarm-on-close
// rule for the SHM carrier, same as tcp_test.go does for TCP.
func TestSHMTransportCloseSignalsError(t *testing.T) {
	bell := shmreactor.NewDoorbell()
	tr := NewSHM(shmreactor.RoleServer, ring.NewByteRing(), ring.NewByteRing(), bell)

	errCh := make(chan error, 1)
	require.NoError(t, tr.AsyncRx(context.Background(), func(data []byte, err error) {
		if err != nil {
			select {
			case errCh <- err:
			default:
			}
		}
	}))

	require.NoError(t, tr.Close())

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close never signaled the pending receive")
	}
}
