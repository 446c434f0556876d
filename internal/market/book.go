// Package market provides the in-memory L2 order book mirror and the
// cross-venue PriceBoard.
//
// L2Book mirrors one venue's order book for a single symbol. It is updated
// from WebSocket deltas or full snapshots by the feed adapters in
// internal/feed, and read by the strategy and safety layers through
// concurrency-safe accessors.
package market

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"cexdexarb/pkg/types"
)

// L2Book maintains a local mirror of one venue's order book for one symbol.
// Bids are kept sorted descending by price, asks ascending, matching the
// wire order both CEX and DEX feeds deliver.
type L2Book struct {
	mu       sync.RWMutex
	venue    types.Venue
	symbol   string
	bids     []types.Level
	asks     []types.Level
	seq      uint64
	captured time.Time
}

// NewL2Book creates an empty book for one venue+symbol pair.
func NewL2Book(venue types.Venue, symbol string) *L2Book {
	return &L2Book{venue: venue, symbol: symbol}
}

// ReplaceSnapshot installs a full book snapshot, replacing any prior state.
// seq must be monotonically increasing; a snapshot with seq <= the book's
// current seq is ignored (stale, already superseded).
func (b *L2Book) ReplaceSnapshot(bids, asks []types.Level, seq uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if seq != 0 && seq <= b.seq {
		return
	}

	b.bids = bids
	b.asks = asks
	b.seq = seq
	b.captured = time.Now()
}

// ApplyDelta merges incremental level updates into the book. A level with
// zero size removes that price; otherwise it replaces or inserts the level
// and order is re-sorted on the affected side.
func (b *L2Book) ApplyDelta(bidUpdates, askUpdates []types.Level, seq uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if seq != 0 && seq <= b.seq && b.seq != 0 {
		return
	}

	b.bids = mergeLevels(b.bids, bidUpdates, true)
	b.asks = mergeLevels(b.asks, askUpdates, false)
	if seq != 0 {
		b.seq = seq
	}
	b.captured = time.Now()
}

// mergeLevels applies updates to a sorted level slice, removing zero-size
// entries and keeping the result sorted (descending for bids, ascending
// for asks).
func mergeLevels(existing []types.Level, updates []types.Level, descending bool) []types.Level {
	byPrice := make(map[string]types.Level, len(existing))
	for _, lvl := range existing {
		byPrice[lvl.Price.String()] = lvl
	}
	for _, u := range updates {
		key := u.Price.String()
		if u.Size.IsZero() {
			delete(byPrice, key)
			continue
		}
		byPrice[key] = u
	}

	out := make([]types.Level, 0, len(byPrice))
	for _, lvl := range byPrice {
		out = append(out, lvl)
	}
	sortLevels(out, descending)
	return out
}

func sortLevels(levels []types.Level, descending bool) {
	for i := 1; i < len(levels); i++ {
		j := i
		for j > 0 {
			less := levels[j].Price.LessThan(levels[j-1].Price)
			if descending {
				less = levels[j].Price.GreaterThan(levels[j-1].Price)
			}
			if !less {
				break
			}
			levels[j], levels[j-1] = levels[j-1], levels[j]
			j--
		}
	}
}

// BestBid returns the top bid level, if any.
func (b *L2Book) BestBid() (types.Level, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 {
		return types.Level{}, false
	}
	return b.bids[0], true
}

// BestAsk returns the top ask level, if any.
func (b *L2Book) BestAsk() (types.Level, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.asks) == 0 {
		return types.Level{}, false
	}
	return b.asks[0], true
}

// MidPrice returns (bestBid+bestAsk)/2. Returns false if either side is empty.
func (b *L2Book) MidPrice() (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 || len(b.asks) == 0 {
		return decimal.Zero, false
	}
	return b.bids[0].Price.Add(b.asks[0].Price).Div(decimal.NewFromInt(2)), true
}

// Spread returns bestAsk - bestBid. Returns false if either side is empty.
func (b *L2Book) Spread() (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 || len(b.asks) == 0 {
		return decimal.Zero, false
	}
	return b.asks[0].Price.Sub(b.bids[0].Price), true
}

// Depth sums the sizes of the top n levels on the given side (true = bids).
// Fewer than n levels on that side just sums what's there.
func (b *L2Book) Depth(bidSide bool, n int) decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()

	src := b.asks
	if bidSide {
		src = b.bids
	}
	if n > len(src) {
		n = len(src)
	}

	sum := decimal.Zero
	for _, lvl := range src[:n] {
		sum = sum.Add(lvl.Size)
	}
	return sum
}

// IsStale reports whether the book hasn't been updated within maxAge.
func (b *L2Book) IsStale(maxAge time.Duration) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.captured.IsZero() {
		return true
	}
	return time.Since(b.captured) > maxAge
}

// LastUpdated returns the timestamp of the last applied snapshot or delta.
func (b *L2Book) LastUpdated() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.captured
}

// Valid checks the book invariant: top bid strictly below top ask, all
// sizes positive, no duplicate prices on a side. It inspects the book as
// currently installed; ReplaceSnapshot and ApplyDelta do not call it.
func (b *L2Book) Valid() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !noDuplicatesOrNonPositive(b.bids) || !noDuplicatesOrNonPositive(b.asks) {
		return false
	}
	if len(b.bids) > 0 && len(b.asks) > 0 {
		if !b.bids[0].Price.LessThan(b.asks[0].Price) {
			return false
		}
	}
	return true
}

func noDuplicatesOrNonPositive(levels []types.Level) bool {
	seen := make(map[string]struct{}, len(levels))
	for _, lvl := range levels {
		if !lvl.Size.IsPositive() {
			return false
		}
		key := lvl.Price.String()
		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
	}
	return true
}
