package exchange

import (
	"github.com/shopspring/decimal"

	"cexdexarb/pkg/types"
)

// RoundPassive rounds price to the venue's tick size towards the passive
// side of the book — down for a bid, up for an ask — so a maker order never
// crosses the spread after rounding. Qty is always rounded down to the lot
// size regardless of side (an exchange never accepts more than it was
// asked to trade).
func RoundPassive(info types.SymbolInfo, side types.Side, price, qty decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	var roundedPrice decimal.Decimal
	if side == types.Buy {
		roundedPrice = roundToStepDown(price, info.TickSize)
	} else {
		roundedPrice = roundToStepUp(price, info.TickSize)
	}
	return roundedPrice, roundToStepDown(qty, info.LotSize)
}

// RoundAggressive rounds price to the venue's tick size towards the
// aggressive side — up for a bid, down for an ask — so a taker order is
// guaranteed to still clear the book level it targeted after rounding.
func RoundAggressive(info types.SymbolInfo, side types.Side, price, qty decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	var roundedPrice decimal.Decimal
	if side == types.Buy {
		roundedPrice = roundToStepUp(price, info.TickSize)
	} else {
		roundedPrice = roundToStepDown(price, info.TickSize)
	}
	return roundedPrice, roundToStepDown(qty, info.LotSize)
}

// MeetsMinNotional reports whether price*qty clears the symbol's minimum
// notional requirement.
func MeetsMinNotional(info types.SymbolInfo, price, qty decimal.Decimal) bool {
	if info.MinNotional.IsZero() {
		return true
	}
	return price.Mul(qty).GreaterThanOrEqual(info.MinNotional)
}

func roundToStepDown(v, step decimal.Decimal) decimal.Decimal {
	if step.IsZero() {
		return v
	}
	return v.Div(step).Floor().Mul(step)
}

func roundToStepUp(v, step decimal.Decimal) decimal.Decimal {
	if step.IsZero() {
		return v
	}
	return v.Div(step).Ceil().Mul(step)
}
