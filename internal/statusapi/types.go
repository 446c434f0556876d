// Package statusapi serves a read-only REST snapshot and WebSocket feed of
// engine state for operators. There are no control endpoints — any message
// a client sends over the WebSocket connection is ignored.
package statusapi

import (
	"time"

	"cexdexarb/internal/strategy"
	"cexdexarb/pkg/types"
)

// Event is one message pushed to every connected WebSocket client: either
// a full "snapshot" on connect, or a "transition"/"cycle" delta afterward.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// PriceBoardView is the REST/WS-facing shape of the current price board.
type PriceBoardView struct {
	CEXBid    string `json:"cex_bid,omitempty"`
	CEXAsk    string `json:"cex_ask,omitempty"`
	DEXBid    string `json:"dex_bid,omitempty"`
	DEXAsk    string `json:"dex_ask,omitempty"`
	OpenEdge  string `json:"open_edge,omitempty"`
	CloseEdge string `json:"close_edge,omitempty"`
	Stale     bool   `json:"stale"`
}

// LedgerView is the REST/WS-facing shape of the strategy ledger.
type LedgerView struct {
	HeldQty       string `json:"held_qty"`
	CycleSeq      int64  `json:"cycle_seq"`
	CycleQty      string `json:"cycle_qty"`
	Leg1FilledQty string `json:"leg1_filled_qty"`
	Leg2FilledQty string `json:"leg2_filled_qty"`
}

// Snapshot is the full engine state returned by GET /api/snapshot and sent
// to every client on WebSocket connect.
type Snapshot struct {
	Timestamp  time.Time              `json:"timestamp"`
	State      types.StrategyState    `json:"state"`
	Ledger     LedgerView             `json:"ledger"`
	ActiveSlot *types.ActiveOrderSlot `json:"active_slot,omitempty"`
	Board      PriceBoardView         `json:"board"`
	AllowOpen  bool                   `json:"allow_open"`
}

// TransitionView is the payload of a "transition" event.
type TransitionView struct {
	Prev types.StrategyState `json:"prev"`
	Next types.StrategyState `json:"next"`
}

// CycleView is the payload of a "cycle" event, mirroring strategy.CycleEvent.
type CycleView struct {
	CycleSeq    int64     `json:"cycle_seq"`
	Opened      bool      `json:"opened"`
	Qty         string    `json:"qty"`
	CompletedAt time.Time `json:"completed_at"`
}

func cycleView(evt strategy.CycleEvent) CycleView {
	return CycleView{
		CycleSeq:    evt.CycleSeq,
		Opened:      evt.Opened,
		Qty:         evt.Qty.String(),
		CompletedAt: evt.CompletedAt,
	}
}
