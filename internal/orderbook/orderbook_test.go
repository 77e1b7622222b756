package orderbook

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rishavpaul-system-design/matching-venue/internal/types"
)

func order(id types.OrderId, client types.ClientId, action types.Action, qty types.Quantity, price types.Price) types.ServerOrder {
	return types.ServerOrder{
		Order: types.Order{
			Id:       id,
			Ticker:   types.NewTicker("AAPL"),
			Quantity: qty,
			Price:    price,
			Action:   action,
		},
		ClientId: client,
	}
}

// TestFullFill covers the spec's "full fill" concrete scenario: a
// 100-share buy against a resting 100-share sell at 50 produces two
// Full statuses both at fill price 50.
func TestFullFill(t *testing.T) {
	b := New()
	b.Add(order(1, 1, types.ActionSell, 100, 50))
	var reports []types.ServerOrderStatus
	b.Add(order(2, 2, types.ActionBuy, 100, 50))
	b.SuppressSelfTrade = false
	b.Match(func(s types.ServerOrderStatus) { reports = append(reports, s) })

	require.Len(t, reports, 2)
	for _, r := range reports {
		require.Equal(t, types.FillFull, r.State)
		require.Equal(t, types.Price(50), r.FillPrice)
		require.Equal(t, types.Quantity(100), r.Quantity)
	}
}

// TestPartialFill covers the spec's "partial fill" scenario: buyer B
// (qty 30) against resting seller A (qty 100) fully fills B, partially
// fills A, and leaves 70 resting on the book.
func TestPartialFill(t *testing.T) {
	b := New()
	b.SuppressSelfTrade = false
	b.Add(order(1, 1, types.ActionSell, 100, 50))
	var reports []types.ServerOrderStatus
	b.Add(order(2, 2, types.ActionBuy, 30, 50))
	b.Match(func(s types.ServerOrderStatus) { reports = append(reports, s) })

	require.Len(t, reports, 2)
	byID := map[types.OrderId]types.ServerOrderStatus{}
	for _, r := range reports {
		byID[r.Id] = r
	}
	require.Equal(t, types.FillFull, byID[2].State)
	require.Equal(t, types.Quantity(30), byID[2].Quantity)
	require.Equal(t, types.FillPartial, byID[1].State)
	require.Equal(t, types.Quantity(30), byID[1].Quantity)

	require.Len(t, b.asks, 1)
	require.Equal(t, types.Quantity(70), b.asks[0].order.Quantity)
}

// TestNoCross covers the spec's "no cross" scenario: a bid below the
// ask produces zero statuses and both orders remain resting.
func TestNoCross(t *testing.T) {
	b := New()
	b.Add(order(1, 1, types.ActionSell, 100, 51))
	b.Add(order(2, 2, types.ActionBuy, 100, 50))
	var reports []types.ServerOrderStatus
	b.Match(func(s types.ServerOrderStatus) { reports = append(reports, s) })

	require.Empty(t, reports)
	require.Len(t, b.bids, 1)
	require.Len(t, b.asks, 1)
}

// TestSelfTradeSuppression verifies that with suppression on (the
// default) only the most recently added order's side is reported.
func TestSelfTradeSuppression(t *testing.T) {
	b := New()
	b.Add(order(1, 1, types.ActionSell, 100, 50))
	var reports []types.ServerOrderStatus
	b.Add(order(2, 2, types.ActionBuy, 100, 50))
	b.Match(func(s types.ServerOrderStatus) { reports = append(reports, s) })

	require.Len(t, reports, 1)
	require.Equal(t, types.OrderId(2), reports[0].Id)
}

// TestPricePriority verifies the best-priced order on each side is
// matched first, and ties break by insertion order (price-time
// priority).
func TestPricePriority(t *testing.T) {
	b := New()
	b.SuppressSelfTrade = false
	b.Add(order(1, 1, types.ActionSell, 10, 52))
	b.Add(order(2, 1, types.ActionSell, 10, 50)) // better price, added second
	b.Add(order(3, 1, types.ActionSell, 10, 50)) // same price, added third

	var reports []types.ServerOrderStatus
	b.Add(order(4, 2, types.ActionBuy, 10, 52))
	b.Match(func(s types.ServerOrderStatus) { reports = append(reports, s) })

	require.Len(t, reports, 2)
	var sellReport types.ServerOrderStatus
	for _, r := range reports {
		if r.Id != 4 {
			sellReport = r
		}
	}
	require.Equal(t, types.OrderId(2), sellReport.Id)
}

// TestConservation is spec property 2: quantity in equals quantity
// resting plus quantity reported, across a randomized sequence.
func TestConservation(t *testing.T) {
	b := New()
	b.SuppressSelfTrade = false
	orders := []types.ServerOrder{
		order(1, 1, types.ActionSell, 40, 50),
		order(2, 1, types.ActionSell, 60, 51),
		order(3, 2, types.ActionBuy, 30, 52),
		order(4, 2, types.ActionBuy, 50, 50),
		order(5, 3, types.ActionSell, 20, 49),
	}

	var totalIn types.Quantity
	var totalReported types.Quantity
	for _, o := range orders {
		totalIn += o.Quantity
		b.Add(o)
		b.Match(func(s types.ServerOrderStatus) { totalReported += s.Quantity })
	}

	var resting types.Quantity
	for _, e := range b.bids {
		resting += e.order.Quantity
	}
	for _, e := range b.asks {
		resting += e.order.Quantity
	}

	require.Equal(t, totalIn, resting+totalReported)
}

// TestNoCrossedBookAtRest is spec property 4: after any sequence of
// adds/matches, the best bid never exceeds the best ask.
func TestNoCrossedBookAtRest(t *testing.T) {
	b := New()
	b.Add(order(1, 1, types.ActionBuy, 10, 100))
	b.Match(func(types.ServerOrderStatus) {})
	b.Add(order(2, 2, types.ActionSell, 10, 101))
	b.Match(func(types.ServerOrderStatus) {})

	if len(b.bids) > 0 && len(b.asks) > 0 {
		require.LessOrEqual(t, float32(b.bids[0].order.Price), float32(b.asks[0].order.Price))
	}
}
