// Package reconcile implements the startup check: before the strategy
// machine is constructed, it queries both venues' positions once and
// decides which of the two Condition states to start in. There is no
// persistent journal — every restart re-derives state from venue truth
// rather than trusting a local file.
//
// Any configuration other than "both flat" or "matched one-sided position"
// is ambiguous — an operator may have manually intervened, or a previous
// crash left one leg filled and the other not. Reconcile refuses to start
// rather than guess.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"cexdexarb/internal/config"
	"cexdexarb/pkg/types"
)

// CEXPositionSource is the subset of CEXClient the reconciler needs.
type CEXPositionSource interface {
	GetPosition(ctx context.Context, symbol string) (types.Position, error)
	GetSymbolInfo(ctx context.Context, symbol string) (types.SymbolInfo, error)
}

// DEXPositionSource is the subset of DEXClient the reconciler needs.
type DEXPositionSource interface {
	GetPosition(ctx context.Context, coin string) (types.Position, error)
}

// Decision is the outcome of reconciling venue state at boot.
type Decision struct {
	InitialState types.StrategyState
	HeldQty      decimal.Decimal
}

// Reconcile queries both venues' current positions and the CEX lot size,
// then applies spec's boot-time rule:
//
//   - both flat (within one lot) -> OpenCondition, held_qty = 0
//   - DEX long q AND CEX short q, matched within one lot -> CloseCondition,
//     held_qty = q
//   - anything else -> refuse to start
func Reconcile(ctx context.Context, cex CEXPositionSource, dex DEXPositionSource, symbols config.SymbolConfig, logger *slog.Logger) (Decision, error) {
	cexPos, err := cex.GetPosition(ctx, symbols.CEXSymbol)
	if err != nil {
		return Decision{}, fmt.Errorf("reconcile: query cex position: %w", err)
	}
	dexPos, err := dex.GetPosition(ctx, symbols.DEXSymbol)
	if err != nil {
		return Decision{}, fmt.Errorf("reconcile: query dex position: %w", err)
	}
	symInfo, err := cex.GetSymbolInfo(ctx, symbols.CEXSymbol)
	if err != nil {
		return Decision{}, fmt.Errorf("reconcile: query cex symbol info: %w", err)
	}
	lot := symInfo.LotSize
	if lot.IsZero() {
		lot = decimal.RequireFromString("0.001")
	}

	logger.Info("reconcile: queried venue positions",
		"cex_qty", cexPos.Qty.String(), "dex_qty", dexPos.Qty.String(), "lot", lot.String())

	bothFlat := cexPos.Qty.Abs().LessThanOrEqual(lot) && dexPos.Qty.Abs().LessThanOrEqual(lot)
	if bothFlat {
		return Decision{InitialState: types.OpenCondition, HeldQty: decimal.Zero}, nil
	}

	// Matched one-sided position: DEX long q, CEX short q (tolerance one lot).
	dexLong := dexPos.Qty.GreaterThan(lot)
	cexShort := cexPos.Qty.LessThan(lot.Neg())
	if dexLong && cexShort {
		impliedQty := cexPos.Qty.Neg()
		diff := dexPos.Qty.Sub(impliedQty).Abs()
		if diff.LessThanOrEqual(lot) {
			held := dexPos.Qty.Add(impliedQty).Div(decimal.NewFromInt(2))
			return Decision{InitialState: types.CloseCondition, HeldQty: held}, nil
		}
	}

	return Decision{}, fmt.Errorf(
		"reconcile: position mismatch: cex_qty=%s dex_qty=%s (neither both-flat nor a matched hedge) — refusing to start, operator intervention required",
		cexPos.Qty.String(), dexPos.Qty.String(),
	)
}
