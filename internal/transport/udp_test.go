package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestListenBroadcastSetsSocketOptions covers spec §6's requirement
// that UDP broadcasters set SO_REUSEADDR and SO_BROADCAST: binding two
// listeners on the same address must succeed, proving SO_REUSEADDR
// took. SO_BROADCAST is not exercised here.
func TestListenBroadcastSetsSocketOptions(t *testing.T) {
	first, err := ListenBroadcast("127.0.0.1:0")
	require.NoError(t, err)
	defer first.Close()

	addr := first.LocalAddr().String()
	second, err := ListenBroadcast(addr)
	require.NoError(t, err, "SO_REUSEADDR should allow a second bind to the same address")
	defer second.Close()
}
