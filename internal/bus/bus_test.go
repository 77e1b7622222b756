package bus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type loginReq struct{ Name string }
type loginResp struct{ OK bool }

func TestSystemBusMultiSubscriber(t *testing.T) {
	b := NewSystemBus()
	var got []string
	Subscribe(b, func(r loginReq) { got = append(got, "a:"+r.Name) })
	Subscribe(b, func(r loginReq) { got = append(got, "b:"+r.Name) })

	Publish(b, loginReq{Name: "alice"})
	require.Equal(t, []string{"a:alice", "b:alice"}, got)
}

func TestMarketBusSingleHandler(t *testing.T) {
	b := NewMarketBus()
	var got loginResp
	Handle(b, func(r loginResp) { got = r })

	ok := Post(b, loginResp{OK: true})
	require.True(t, ok)
	require.True(t, got.OK)

	require.Panics(t, func() {
		Handle(b, func(r loginResp) {})
	})
}

func TestMarketBusUnhandledTypeIsNoop(t *testing.T) {
	b := NewMarketBus()
	ok := Post(b, loginReq{Name: "bob"})
	require.False(t, ok)
}
