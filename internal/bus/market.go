package bus

import (
	"fmt"
	"sync"
)

// MarketBus carries the hot-path message types — ServerOrder,
// ServerOrderStatus, TickerPrice — to exactly one handler per type:
// the coordinator for orders, the session manager for order statuses,
// the broadcast channel for ticker prices. Registering a second
// handler for an already-bound type is a programming error and
// panics at startup rather than silently dropping messages.
type MarketBus struct {
	mu       sync.RWMutex
	handlers map[string]func(msg any)
}

// NewMarketBus constructs an empty MarketBus.
func NewMarketBus() *MarketBus {
	return &MarketBus{handlers: make(map[string]func(msg any))}
}

// Handle registers fn as the sole handler for T. Panics if a handler
// for T is already registered.
func Handle[T any](b *MarketBus, fn func(T)) {
	key := typeKey[T]()
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.handlers[key]; exists {
		panic(fmt.Sprintf("bus: market handler for %s already registered", key))
	}
	b.handlers[key] = func(msg any) {
		fn(msg.(T))
	}
}

// Post delivers msg directly to its registered handler. Posting a
// type with no registered handler is a no-op (logged by the caller,
// not the bus, since only components know whether that's expected).
func Post[T any](b *MarketBus, msg T) bool {
	key := typeKey[T]()
	b.mu.RLock()
	h, ok := b.handlers[key]
	b.mu.RUnlock()
	if !ok {
		return false
	}
	h(msg)
	return true
}
