package reconcile

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"cexdexarb/internal/config"
	"cexdexarb/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fakeCEX struct {
	qty decimal.Decimal
	lot decimal.Decimal
}

func (f fakeCEX) GetPosition(ctx context.Context, symbol string) (types.Position, error) {
	return types.Position{Symbol: symbol, Qty: f.qty}, nil
}

func (f fakeCEX) GetSymbolInfo(ctx context.Context, symbol string) (types.SymbolInfo, error) {
	return types.SymbolInfo{LotSize: f.lot}, nil
}

type fakeDEX struct {
	qty decimal.Decimal
}

func (f fakeDEX) GetPosition(ctx context.Context, coin string) (types.Position, error) {
	return types.Position{Symbol: coin, Qty: f.qty}, nil
}

func testSymbols() config.SymbolConfig {
	return config.SymbolConfig{CEXSymbol: "BTCUSDT", DEXSymbol: "BTC"}
}

func TestReconcileBothFlatOpensCondition(t *testing.T) {
	t.Parallel()

	cex := fakeCEX{qty: decimal.Zero, lot: d("0.001")}
	dex := fakeDEX{qty: decimal.Zero}

	dec, err := Reconcile(context.Background(), cex, dex, testSymbols(), testLogger())
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if dec.InitialState != types.OpenCondition {
		t.Errorf("InitialState = %v, want OpenCondition", dec.InitialState)
	}
	if !dec.HeldQty.IsZero() {
		t.Errorf("HeldQty = %s, want 0", dec.HeldQty)
	}
}

func TestReconcileMatchedHedgeClosesCondition(t *testing.T) {
	t.Parallel()

	cex := fakeCEX{qty: d("-0.01"), lot: d("0.001")}
	dex := fakeDEX{qty: d("0.01")}

	dec, err := Reconcile(context.Background(), cex, dex, testSymbols(), testLogger())
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if dec.InitialState != types.CloseCondition {
		t.Errorf("InitialState = %v, want CloseCondition", dec.InitialState)
	}
	if !dec.HeldQty.Equal(d("0.01")) {
		t.Errorf("HeldQty = %s, want 0.01", dec.HeldQty)
	}
}

// TestReconcileMismatchRefusesToStart covers scenario S5: CEX short 0.01
// but DEX flat is neither a matched hedge nor both-flat.
func TestReconcileMismatchRefusesToStart(t *testing.T) {
	t.Parallel()

	cex := fakeCEX{qty: d("-0.01"), lot: d("0.001")}
	dex := fakeDEX{qty: decimal.Zero}

	_, err := Reconcile(context.Background(), cex, dex, testSymbols(), testLogger())
	if err == nil {
		t.Fatal("Reconcile() error = nil, want position mismatch error")
	}
	if !strings.Contains(err.Error(), "position mismatch") {
		t.Errorf("error = %q, want it to contain %q", err.Error(), "position mismatch")
	}
}

func TestReconcileUnmatchedSizesRefusesToStart(t *testing.T) {
	t.Parallel()

	cex := fakeCEX{qty: d("-0.01"), lot: d("0.001")}
	dex := fakeDEX{qty: d("0.02")}

	_, err := Reconcile(context.Background(), cex, dex, testSymbols(), testLogger())
	if err == nil {
		t.Fatal("Reconcile() error = nil, want position mismatch error")
	}
	if !strings.Contains(err.Error(), "position mismatch") {
		t.Errorf("error = %q, want it to contain %q", err.Error(), "position mismatch")
	}
}

func TestReconcileWithinLotToleranceIsFlat(t *testing.T) {
	t.Parallel()

	cex := fakeCEX{qty: d("0.0005"), lot: d("0.001")}
	dex := fakeDEX{qty: d("-0.0005")}

	dec, err := Reconcile(context.Background(), cex, dex, testSymbols(), testLogger())
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if dec.InitialState != types.OpenCondition {
		t.Errorf("InitialState = %v, want OpenCondition", dec.InitialState)
	}
}
