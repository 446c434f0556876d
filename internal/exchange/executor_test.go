package exchange

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/shopspring/decimal"

	"cexdexarb/internal/config"
	"cexdexarb/pkg/types"
)

func newDryRunExecutor() *TradeExecutor {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := config.Config{DryRun: true, CEX: config.CEXConfig{RESTBaseURL: "http://localhost"}, DEX: config.DEXConfig{RESTBaseURL: "http://localhost"}}
	cex := NewCEXClient(cfg, NewCEXAuth(cfg.CEX), logger)
	dex := NewDEXClient(cfg, &DEXAuth{}, logger)
	return NewTradeExecutor(cex, dex)
}

func TestPlaceOrderDryRunCEX(t *testing.T) {
	t.Parallel()
	e := newDryRunExecutor()
	e.cexSymbols["BTCUSDT"] = testSymbolInfo()

	res, err := e.PlaceOrder(context.Background(), types.OrderRequest{
		Venue:  types.CEX,
		Symbol: "BTCUSDT",
		Side:   types.Sell,
		Type:   types.OrderTypeLimit,
		Price:  decimal.RequireFromString("100.561"),
		Qty:    decimal.RequireFromString("1"),
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected OK result, got %+v", res)
	}
}

func TestPlaceOrderRejectsBelowMinNotional(t *testing.T) {
	t.Parallel()
	e := newDryRunExecutor()
	e.cexSymbols["BTCUSDT"] = testSymbolInfo()

	res, err := e.PlaceOrder(context.Background(), types.OrderRequest{
		Venue:  types.CEX,
		Symbol: "BTCUSDT",
		Side:   types.Buy,
		Type:   types.OrderTypeLimit,
		Price:  decimal.RequireFromString("1"),
		Qty:    decimal.RequireFromString("1"),
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if res.OK {
		t.Error("expected rejection for order below min notional")
	}
	if res.Retriable {
		t.Error("a min-notional rejection must not be retriable")
	}
}

func TestPlaceOrderRejectsZeroQtyAfterRounding(t *testing.T) {
	t.Parallel()
	e := newDryRunExecutor()
	e.cexSymbols["BTCUSDT"] = testSymbolInfo()

	res, err := e.PlaceOrder(context.Background(), types.OrderRequest{
		Venue:  types.CEX,
		Symbol: "BTCUSDT",
		Side:   types.Buy,
		Type:   types.OrderTypeLimit,
		Price:  decimal.RequireFromString("100"),
		Qty:    decimal.RequireFromString("0.0001"), // rounds down to 0 at lot size 0.001
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if res.OK {
		t.Error("expected rejection for zero rounded quantity")
	}
}
