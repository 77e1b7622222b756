// Package orderbook implements the per-instrument limit order book and
// matching engine. Grounded on original_source/server/src/order_book.hpp:
// two binary heaps ordered by price-time priority (bids a max-heap,
// asks a min-heap, ties broken by insertion order), a lastAdded marker
// used to suppress self-trade reports, and a match loop that always
// executes at the resting ask's price. This replaces the teacher's
// internal/orderbook RBTree+linked-list implementation — see DESIGN.md
// for why that structure doesn't fit the spec's heap-based model.
package orderbook

import (
	"container/heap"
	"sync/atomic"
	"time"

	"github.com/rishavpaul-system-design/matching-venue/internal/types"
)

// ORDERBOOKLimit is the capacity pre-reserved for each side's heap,
// matching the original's ORDER_BOOK_LIMIT reservation.
const ORDERBOOKLimit = 1 << 16

type heapEntry struct {
	order types.ServerOrder
	seq   uint64
}

// bidHeap is a max-heap by price; among equal prices the earliest
// inserted (lowest seq) sorts first.
type bidHeap []heapEntry

func (h bidHeap) Len() int { return len(h) }
func (h bidHeap) Less(i, j int) bool {
	if h[i].order.Price != h[j].order.Price {
		return h[i].order.Price > h[j].order.Price
	}
	return h[i].seq < h[j].seq
}
func (h bidHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *bidHeap) Push(x any)        { *h = append(*h, x.(heapEntry)) }
func (h *bidHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// askHeap is a min-heap by price; among equal prices the earliest
// inserted (lowest seq) sorts first.
type askHeap []heapEntry

func (h askHeap) Len() int { return len(h) }
func (h askHeap) Less(i, j int) bool {
	if h[i].order.Price != h[j].order.Price {
		return h[i].order.Price < h[j].order.Price
	}
	return h[i].seq < h[j].seq
}
func (h askHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *askHeap) Push(x any)        { *h = append(*h, x.(heapEntry)) }
func (h *askHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// OrderBook is a single instrument's book. It is owned and mutated by
// exactly one worker goroutine (spec §5's resource ownership rule); it
// is not safe for concurrent Add/Match calls from multiple goroutines.
type OrderBook struct {
	bids bidHeap
	asks askHeap

	lastAdded types.OrderId
	nextSeq   uint64

	// SuppressSelfTrade, when true (the default, matching the
	// original's unconditional behavior), only emits an execution
	// report for the side whose order id equals the most recently
	// added order — see spec open question on self-trade suppression.
	SuppressSelfTrade bool

	openedOrders atomic.Uint64
}

// New constructs an empty OrderBook with self-trade suppression on.
func New() *OrderBook {
	b := &OrderBook{SuppressSelfTrade: true}
	b.bids = make(bidHeap, 0, ORDERBOOKLimit)
	b.asks = make(askHeap, 0, ORDERBOOKLimit)
	heap.Init(&b.bids)
	heap.Init(&b.asks)
	return b
}

// OpenedOrders returns the number of orders currently resting on
// either side of the book, recomputed from the heap sizes after every
// Add and every fill popped in Match, matching
// original_source/server/src/order_book.hpp's openedOrders_ — this is
// a point-in-time gauge, not a lifetime total.
func (b *OrderBook) OpenedOrders() uint64 {
	return b.openedOrders.Load()
}

func (b *OrderBook) refreshOpenedOrders() {
	b.openedOrders.Store(uint64(len(b.bids) + len(b.asks)))
}

// Add inserts order onto its side's heap by price-time priority and
// marks it as the most recently added order for self-trade
// suppression purposes.
func (b *OrderBook) Add(order types.ServerOrder) {
	entry := heapEntry{order: order, seq: b.nextSeq}
	b.nextSeq++
	if order.Action == types.ActionBuy {
		heap.Push(&b.bids, entry)
	} else {
		heap.Push(&b.asks, entry)
	}
	b.lastAdded = order.Id
	b.refreshOpenedOrders()
}

// Match repeatedly crosses the best bid against the best ask while the
// book remains crossed, reporting fills to consumer. The execution
// price is always the resting ask's price, unconditionally, per the
// original implementation — this is deliberate, not a bug: see spec
// open question on match price. After the match loop drains, lastAdded
// is reset to zero.
func (b *OrderBook) Match(consumer func(types.ServerOrderStatus)) {
	for len(b.bids) > 0 && len(b.asks) > 0 {
		bestBid := &b.bids[0]
		bestAsk := &b.asks[0]

		if bestBid.order.Price < bestAsk.order.Price {
			break
		}

		qty := bestBid.order.Quantity
		if bestAsk.order.Quantity < qty {
			qty = bestAsk.order.Quantity
		}

		bestBid.order.Quantity -= qty
		bestAsk.order.Quantity -= qty

		fillPrice := bestAsk.order.Price
		now := types.Timestamp(time.Now().UnixNano())

		if !b.SuppressSelfTrade || bestBid.order.Id == b.lastAdded {
			consumer(statusFor(bestBid.order, qty, fillPrice, now))
		}
		if !b.SuppressSelfTrade || bestAsk.order.Id == b.lastAdded {
			consumer(statusFor(bestAsk.order, qty, fillPrice, now))
		}

		if bestBid.order.Quantity == 0 {
			heap.Pop(&b.bids)
		}
		if bestAsk.order.Quantity == 0 {
			heap.Pop(&b.asks)
		}
		b.refreshOpenedOrders()
	}
	b.lastAdded = 0
}

func statusFor(o types.ServerOrder, filled types.Quantity, fillPrice types.Price, now types.Timestamp) types.ServerOrderStatus {
	state := types.FillPartial
	if o.Quantity == 0 {
		state = types.FillFull
	}
	return types.ServerOrderStatus{
		OrderStatus: types.OrderStatus{
			Id:        o.Id,
			Timestamp: now,
			Quantity:  filled,
			FillPrice: fillPrice,
			State:     state,
		},
		ClientId: o.ClientId,
	}
}
