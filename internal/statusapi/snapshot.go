package statusapi

import (
	"time"

	"cexdexarb/internal/market"
	"cexdexarb/internal/strategy"
	"cexdexarb/pkg/types"
)

// StateProvider exposes the subset of engine state the dashboard needs.
type StateProvider interface {
	State() types.StrategyState
	Ledger() strategy.Ledger
	ActiveSlot() *types.ActiveOrderSlot
	Board() *market.PriceBoard
	AllowOpen() bool
}

// BuildSnapshot aggregates current engine state into a dashboard snapshot.
func BuildSnapshot(p StateProvider) Snapshot {
	ledger := p.Ledger()
	board := p.Board()

	return Snapshot{
		Timestamp:  time.Now(),
		State:      p.State(),
		Ledger:     buildLedgerView(ledger),
		ActiveSlot: p.ActiveSlot(),
		Board:      buildBoardView(board),
		AllowOpen:  p.AllowOpen(),
	}
}

func buildLedgerView(l strategy.Ledger) LedgerView {
	return LedgerView{
		HeldQty:       l.HeldQty.String(),
		CycleSeq:      l.CycleSeq,
		CycleQty:      l.CycleQty.String(),
		Leg1FilledQty: l.Leg1FilledQty.String(),
		Leg2FilledQty: l.Leg2FilledQty.String(),
	}
}

func buildBoardView(board *market.PriceBoard) PriceBoardView {
	view := PriceBoardView{Stale: board.IsStale(10 * time.Second)}

	if bid, ok := board.Get(types.CEX, true); ok {
		view.CEXBid = bid.String()
	}
	if ask, ok := board.Get(types.CEX, false); ok {
		view.CEXAsk = ask.String()
	}
	if bid, ok := board.Get(types.DEX, true); ok {
		view.DEXBid = bid.String()
	}
	if ask, ok := board.Get(types.DEX, false); ok {
		view.DEXAsk = ask.String()
	}
	if openEdge, closeEdge, ok := board.NetSpread(); ok {
		view.OpenEdge = openEdge.String()
		view.CloseEdge = closeEdge.String()
	}
	return view
}
