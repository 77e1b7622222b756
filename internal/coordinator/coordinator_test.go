package coordinator

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rishavpaul-system-design/matching-venue/internal/bus"
	"github.com/rishavpaul-system-design/matching-venue/internal/orderbook"
	"github.com/rishavpaul-system-design/matching-venue/internal/types"
	"github.com/rishavpaul-system-design/matching-venue/internal/workerpool"
)

// TestPartitionStability dispatches a crossing sell and buy for one
// ticker through the market bus after Start and checks that the owning
// worker matches them and at least one status comes back on the bus.
func TestPartitionStability(t *testing.T) {
	pool := workerpool.New([]int{}, 0, nil)
	pool.Start()
	defer pool.Stop()

	mbus := bus.NewMarketBus()
	aapl := types.NewTicker("AAPL")
	instruments := map[types.Ticker]*Instrument{
		aapl: {Data: &types.TickerData{Ticker: aapl}, Book: orderbook.New()},
	}

	var mu sync.Mutex
	var statuses []types.ServerOrderStatus
	bus.Handle(mbus, func(s types.ServerOrderStatus) {
		mu.Lock()
		statuses = append(statuses, s)
		mu.Unlock()
	})

	c := New(mbus, pool, instruments, time.Hour, nil)
	c.Start()
	defer c.Stop()

	bus.Post(mbus, types.ServerOrder{
		Order:    types.Order{Id: 1, Ticker: aapl, Quantity: 10, Price: 50, Action: types.ActionSell},
		ClientId: 1,
	})
	bus.Post(mbus, types.ServerOrder{
		Order:    types.Order{Id: 2, Ticker: aapl, Quantity: 10, Price: 50, Action: types.ActionBuy},
		ClientId: 2,
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(statuses) >= 1
	}, time.Second, time.Millisecond)
}

// TestMonitorRateAdjustments covers the m+/m- control-plane commands:
// RaiseMonitorRate halves the interval down to the poll floor, and
// LowerMonitorRate doubles it back up.
func TestMonitorRateAdjustments(t *testing.T) {
	pool := workerpool.New([]int{}, 0, nil)
	mbus := bus.NewMarketBus()
	c := New(mbus, pool, map[types.Ticker]*Instrument{}, 200*time.Millisecond, nil)

	c.RaiseMonitorRate()
	require.Equal(t, 100*time.Millisecond, time.Duration(c.monitorRate.Load()))

	c.RaiseMonitorRate()
	require.Equal(t, statsPollInterval, time.Duration(c.monitorRate.Load()), "should floor at statsPollInterval")

	c.LowerMonitorRate()
	require.Equal(t, 2*statsPollInterval, time.Duration(c.monitorRate.Load()))
}

func TestUnknownTickerDropped(t *testing.T) {
	pool := workerpool.New([]int{}, 0, nil)
	pool.Start()
	defer pool.Stop()

	mbus := bus.NewMarketBus()
	c := New(mbus, pool, map[types.Ticker]*Instrument{}, time.Hour, nil)
	c.Start()
	defer c.Stop()

	require.NotPanics(t, func() {
		bus.Post(mbus, types.ServerOrder{Order: types.Order{Id: 1, Ticker: types.NewTicker("ZZZZ")}})
	})
}
