package exchange

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"cexdexarb/pkg/types"
)

// TradeExecutor is the uniform place/cancel surface the strategy state
// machine drives, regardless of which venue an order targets. Precision
// rounding is applied here — passive for maker legs (so a resting order
// never crosses the book), aggressive for taker legs (so a sweep still
// clears its target level) — before either venue client is called.
type TradeExecutor struct {
	cex        *CEXClient
	dex        *DEXClient
	cexSymbols map[string]types.SymbolInfo
	dexSymbols map[string]types.SymbolInfo
}

// NewTradeExecutor wires the two venue clients into one executor.
func NewTradeExecutor(cex *CEXClient, dex *DEXClient) *TradeExecutor {
	return &TradeExecutor{
		cex:        cex,
		dex:        dex,
		cexSymbols: make(map[string]types.SymbolInfo),
		dexSymbols: make(map[string]types.SymbolInfo),
	}
}

// LoadSymbolInfo caches precision metadata for a symbol on a venue. The
// engine calls it once per venue at startup; nothing reloads it after a
// placement is rejected for a filter violation.
func (e *TradeExecutor) LoadSymbolInfo(ctx context.Context, venue types.Venue, symbol string) (types.SymbolInfo, error) {
	switch venue {
	case types.CEX:
		info, err := e.cex.GetSymbolInfo(ctx, symbol)
		if err != nil {
			return types.SymbolInfo{}, err
		}
		e.cexSymbols[symbol] = info
		return info, nil
	case types.DEX:
		info, err := e.dex.GetSymbolInfo(ctx, symbol)
		if err != nil {
			return types.SymbolInfo{}, err
		}
		e.dexSymbols[symbol] = info
		return info, nil
	default:
		return types.SymbolInfo{}, fmt.Errorf("unknown venue %q", venue)
	}
}

func (e *TradeExecutor) symbolInfo(venue types.Venue, symbol string) types.SymbolInfo {
	if venue == types.CEX {
		return e.cexSymbols[symbol]
	}
	return e.dexSymbols[symbol]
}

// PlaceOrder rounds the request to the venue's precision — passive rounding
// for the DEX leg (always the maker side, so a resting order never crosses
// the book) and aggressive rounding for the CEX leg (always the taker side,
// so the order still clears its target level after rounding) — and
// dispatches to the venue-specific client. Market orders have no price to
// round; only qty is taken from the rounding result for those.
func (e *TradeExecutor) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.ExecResult, error) {
	info := e.symbolInfo(req.Venue, req.Symbol)

	round := RoundAggressive
	if req.Venue == types.DEX {
		round = RoundPassive
	}

	if req.Type == types.OrderTypeLimit {
		req.Price, req.Qty = round(info, req.Side, req.Price, req.Qty)
	} else {
		_, req.Qty = round(info, req.Side, req.Price, req.Qty)
	}

	if !req.Qty.IsPositive() {
		return types.ExecResult{OK: false, Msg: "rounded quantity is non-positive", Retriable: false}, nil
	}
	if req.Type == types.OrderTypeLimit && !MeetsMinNotional(info, req.Price, req.Qty) {
		return types.ExecResult{OK: false, Msg: "order notional below venue minimum", Retriable: false}, nil
	}

	switch req.Venue {
	case types.CEX:
		return e.cex.PlaceOrder(ctx, req)
	case types.DEX:
		return e.dex.PlaceOrder(ctx, req)
	default:
		return types.ExecResult{}, fmt.Errorf("unknown venue %q", req.Venue)
	}
}

// CancelOrder dispatches a cancel to the venue-specific client.
func (e *TradeExecutor) CancelOrder(ctx context.Context, req types.CancelRequest) (types.ExecResult, error) {
	switch req.Venue {
	case types.CEX:
		return e.cex.CancelOrder(ctx, req)
	case types.DEX:
		return e.dex.CancelOrder(ctx, req)
	default:
		return types.ExecResult{}, fmt.Errorf("unknown venue %q", req.Venue)
	}
}

// RoundForQuote rounds a raw price/qty pair passively for display/decision
// purposes without placing an order. It does not check min-notional.
func (e *TradeExecutor) RoundForQuote(venue types.Venue, symbol string, side types.Side, price, qty decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	return RoundPassive(e.symbolInfo(venue, symbol), side, price, qty)
}
