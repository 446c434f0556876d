package strategy

import "github.com/shopspring/decimal"

// Ledger is the in-memory position ledger. It tracks the hedge currently
// held and the working quantities of whichever cycle is in flight. It
// carries no history — audit.Store is the append-only record of completed
// cycles; Ledger only ever reflects the current moment.
type Ledger struct {
	// HeldQty is the target hedge size currently open: DEX long quantity,
	// equal in magnitude to the CEX short, to within lot-size rounding.
	HeldQty decimal.Decimal

	// CycleSeq increments once per cycle attempt (Open or Close) and seeds
	// deterministic client IDs — see ClientID.
	CycleSeq int64

	// CycleQty is the lot-rounded working quantity for the in-flight cycle.
	// Zero when the machine is in a Condition state.
	CycleQty decimal.Decimal

	// Leg1FilledQty is the cumulative fill the DEX maker leg reported. It
	// defines the exact quantity Leg2 is ever placed for.
	Leg1FilledQty decimal.Decimal

	// Leg2FilledQty is the cumulative fill the CEX taker leg reported across
	// however many chase attempts it took.
	Leg2FilledQty decimal.Decimal
}

// IsFlat reports whether no hedge is currently held.
func (l Ledger) IsFlat() bool {
	return l.HeldQty.IsZero()
}
