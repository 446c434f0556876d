package market

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"cexdexarb/pkg/types"
)

// boardEntry is the latest bid/ask snapshot recorded for one venue.
type boardEntry struct {
	bid decimal.Decimal
	ask decimal.Decimal
	ts  time.Time
}

// PriceBoard is a thread-safe latest-bid/ask cache, one entry per venue,
// behind a single mutex — reads never tear, and updates are atomic
// replacements, never partial merges.
type PriceBoard struct {
	mu   sync.RWMutex
	fees types.FeeSchedule
	data map[types.Venue]boardEntry
}

// NewPriceBoard creates a PriceBoard using the given fee schedule for
// NetSpread.
func NewPriceBoard(fees types.FeeSchedule) *PriceBoard {
	return &PriceBoard{
		fees: fees,
		data: make(map[types.Venue]boardEntry),
	}
}

// Update atomically replaces the bid/ask for a venue. A crossed or
// non-positive quote is rejected and leaves the prior entry untouched.
func (p *PriceBoard) Update(venue types.Venue, bid, ask decimal.Decimal) bool {
	if !bid.IsPositive() || !ask.IsPositive() || !bid.LessThan(ask) {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.data[venue] = boardEntry{bid: bid, ask: ask, ts: time.Now()}
	return true
}

// Get returns the latest bid (side=true) or ask for a venue.
func (p *PriceBoard) Get(venue types.Venue, bidSide bool) (decimal.Decimal, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	e, ok := p.data[venue]
	if !ok {
		return decimal.Zero, false
	}
	if bidSide {
		return e.bid, true
	}
	return e.ask, true
}

// LastUpdated returns when a venue's entry was last written, or the zero
// time if no entry exists yet.
func (p *PriceBoard) LastUpdated(venue types.Venue) time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.data[venue].ts
}

// IsStale reports whether either venue's entry is missing or older than
// maxAge. The status snapshot reports it as its stale flag.
func (p *PriceBoard) IsStale(maxAge time.Duration) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	now := time.Now()
	for _, v := range []types.Venue{types.CEX, types.DEX} {
		e, ok := p.data[v]
		if !ok || now.Sub(e.ts) > maxAge {
			return true
		}
	}
	return false
}

// NetSpread computes the fee-adjusted open and close edges:
//
//	open_edge  = dex_bid*(1-dex_maker) - cex_ask*(1+cex_taker)
//	close_edge = cex_bid*(1-cex_maker) - dex_ask*(1+dex_taker)
//
// The maker leg is always DEX, the taker leg is always CEX. Returns ok=false
// if either venue has no recorded quote yet.
func (p *PriceBoard) NetSpread() (openEdge, closeEdge decimal.Decimal, ok bool) {
	p.mu.RLock()
	dexEntry, dexOK := p.data[types.DEX]
	cexEntry, cexOK := p.data[types.CEX]
	fees := p.fees
	p.mu.RUnlock()

	if !dexOK || !cexOK {
		return decimal.Zero, decimal.Zero, false
	}

	one := decimal.NewFromInt(1)
	openEdge = dexEntry.bid.Mul(one.Sub(fees.DEXMaker)).Sub(cexEntry.ask.Mul(one.Add(fees.CEXTaker)))
	closeEdge = cexEntry.bid.Mul(one.Sub(fees.CEXMaker)).Sub(dexEntry.ask.Mul(one.Add(fees.DEXTaker)))
	return openEdge, closeEdge, true
}
