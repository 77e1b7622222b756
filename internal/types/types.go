// Package types holds the primitive identifiers and wire-level value types
// shared by every layer of the matching venue: sessions, the order book,
// the coordinator, and the buses that connect them.
package types

import (
	"math"
	"sync/atomic"
)

// OrderId identifies a single order for its lifetime.
type OrderId uint64

// ClientId identifies an authenticated trader across reconnects.
type ClientId uint32

// ConnectionId identifies one physical upstream or downstream socket.
// It is opaque outside internal/session — callers must not assume it
// relates to ClientId or Token.
type ConnectionId uint64

// Ticker names a tradeable instrument. Fixed-width so TickerData can be
// embedded by value in a preallocated table. See DESIGN.md for why
// this is [8]byte rather than the spec's 5-byte ASCII.
type Ticker [8]byte

// NewTicker truncates or zero-pads s into a Ticker.
func NewTicker(s string) Ticker {
	var t Ticker
	copy(t[:], s)
	return t
}

func (t Ticker) String() string {
	n := len(t)
	for n > 0 && t[n-1] == 0 {
		n--
	}
	return string(t[:n])
}

// Price is carried as a raw float32 on the wire. See DESIGN.md for why
// this rewrite keeps float32 rather than switching to a fixed-point
// representation: the source spec flags the fragility but defers the
// fix to a future revision.
type Price float32

// Quantity is a share/contract count. Zero is a valid remaining
// quantity (fully filled); orders are never submitted with Quantity 0.
type Quantity uint32

// Timestamp is nanoseconds since the Unix epoch, as observed by the
// component that stamped it (network thread on ingress).
type Timestamp int64

// Token is an opaque session credential handed to a client after a
// successful login and presented again to bind a downstream channel.
// It carries no structure a client can introspect.
type Token uint64

// Action is the side of an order.
type Action uint8

const (
	ActionBuy Action = iota
	ActionSell
)

func (a Action) String() string {
	if a == ActionBuy {
		return "BUY"
	}
	return "SELL"
}

// FillState reports how much of an order's quantity was satisfied by
// one matching event.
type FillState uint8

const (
	FillPartial FillState = iota
	FillFull
)

func (s FillState) String() string {
	if s == FillFull {
		return "FULL"
	}
	return "PARTIAL"
}

// Order is the upstream order-entry message, framed and decoded from a
// session channel before being wrapped in a ServerOrder.
type Order struct {
	Id        OrderId
	Timestamp Timestamp
	Ticker    Ticker
	Quantity  Quantity
	Price     Price
	Action    Action
}

// ServerOrder is an Order tagged with the ClientId that submitted it,
// the unit of work the market bus and coordinator move around.
type ServerOrder struct {
	Order
	ClientId ClientId
}

// OrderStatus is the downstream execution report for one resting or
// aggressing order.
type OrderStatus struct {
	Id        OrderId
	Timestamp Timestamp
	Quantity  Quantity
	FillPrice Price
	State     FillState
}

// ServerOrderStatus is an OrderStatus tagged with the ClientId it must
// be routed back to.
type ServerOrderStatus struct {
	OrderStatus
	ClientId ClientId
}

// TickerPrice is the broadcast market-data message published by the
// price feed.
type TickerPrice struct {
	Ticker Ticker
	Price  Price
}

// TickerData is the coordinator's per-instrument routing record. Price
// and ThreadId are mutated by the price feed and the coordinator's
// (future) rebalancer respectively, and read by any thread, so both
// fields use release/acquire atomics rather than a lock.
type TickerData struct {
	Ticker   Ticker
	price    atomic.Uint32 // math.Float32bits(Price), acquire/release
	ThreadId atomic.Uint32
}

// StorePrice publishes a new price with release semantics.
func (td *TickerData) StorePrice(p Price) {
	td.price.Store(math.Float32bits(float32(p)))
}

// LoadPrice reads the current price with acquire semantics.
func (td *TickerData) LoadPrice() Price {
	return Price(math.Float32frombits(td.price.Load()))
}

// LoginRequest is the upstream pre-auth handshake message.
type LoginRequest struct {
	Name     string
	Password string
}

// TokenBindRequest is the downstream pre-auth handshake message that
// binds a new downstream connection to an already-authenticated
// upstream session.
type TokenBindRequest struct {
	Token Token
}

// LoginResponse answers either a LoginRequest or a TokenBindRequest.
// Error is only meaningful when Ok is false.
type LoginResponse struct {
	Token Token
	Ok    bool
	Error string
}
