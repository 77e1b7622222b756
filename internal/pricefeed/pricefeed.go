// Package pricefeed implements the periodic market-data generator
// from spec §4.11: on PriceFeedStart it begins a timer that advances a
// cursor through the instrument table, nudges one instrument's price
// by a bounded random delta, and publishes the new TickerPrice on the
// market bus. Narrowed from the teacher's internal/marketdata, which
// published full L1/L2/trade updates — the spec's broadcast channel
// carries only TickerPrice, so this package follows the teacher's
// non-blocking publish idiom but drops the richer message set.
package pricefeed

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rishavpaul-system-design/matching-venue/internal/bus"
	"github.com/rishavpaul-system-design/matching-venue/internal/types"
)

// MaxDelta bounds the magnitude of one tick's random price move.
const MaxDelta = 0.5

// Feed owns the periodic timer and the instrument cursor. Start/Stop
// are idempotent and safe to call repeatedly from the control plane
// (p+/p-) or at shutdown regardless of whether the feed is currently
// running, matching spec §4.11's PriceFeedStart/PriceFeedStop pair.
type Feed struct {
	marketBus   *bus.MarketBus
	instruments []*types.TickerData
	rate        time.Duration
	rng         *rand.Rand

	mu     sync.Mutex
	cursor int
	stopCh chan struct{}
	doneCh chan struct{}
}

// New constructs a Feed over instruments, ticking at rate.
func New(marketBus *bus.MarketBus, instruments []*types.TickerData, rate time.Duration, seed int64) *Feed {
	return &Feed{
		marketBus:   marketBus,
		instruments: instruments,
		rate:        rate,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Start begins the periodic timer (PriceFeedStart). A no-op if the
// feed is already running.
func (f *Feed) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopCh != nil {
		return
	}
	f.stopCh = make(chan struct{})
	f.doneCh = make(chan struct{})
	go f.run(f.stopCh, f.doneCh)
}

// Stop cancels the timer (PriceFeedStop) and waits for the loop to
// exit. A no-op if the feed is not running.
func (f *Feed) Stop() {
	f.mu.Lock()
	stopCh, doneCh := f.stopCh, f.doneCh
	f.stopCh, f.doneCh = nil, nil
	f.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh
}

func (f *Feed) run(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	if f.rate <= 0 || len(f.instruments) == 0 {
		return
	}
	ticker := time.NewTicker(f.rate)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			f.tick()
		}
	}
}

func (f *Feed) tick() {
	inst := f.instruments[f.cursor]
	f.cursor = (f.cursor + 1) % len(f.instruments)

	delta := types.Price((f.rng.Float64()*2 - 1) * MaxDelta)
	next := inst.LoadPrice() + delta
	if next <= 0 {
		next = inst.LoadPrice()
	}
	inst.StorePrice(next)

	bus.Post(f.marketBus, types.TickerPrice{Ticker: inst.Ticker, Price: next})
}
