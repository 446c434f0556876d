package statusapi

import (
	"testing"

	"github.com/shopspring/decimal"

	"cexdexarb/internal/market"
	"cexdexarb/internal/strategy"
	"cexdexarb/pkg/types"
)

type fakeProvider struct {
	state     types.StrategyState
	ledger    strategy.Ledger
	slot      *types.ActiveOrderSlot
	board     *market.PriceBoard
	allowOpen bool
}

func (f fakeProvider) State() types.StrategyState        { return f.state }
func (f fakeProvider) Ledger() strategy.Ledger           { return f.ledger }
func (f fakeProvider) ActiveSlot() *types.ActiveOrderSlot { return f.slot }
func (f fakeProvider) Board() *market.PriceBoard         { return f.board }
func (f fakeProvider) AllowOpen() bool                   { return f.allowOpen }

func TestBuildSnapshotReflectsProviderState(t *testing.T) {
	t.Parallel()

	board := market.NewPriceBoard(types.FeeSchedule{})
	board.Update(types.CEX, decimal.RequireFromString("100"), decimal.RequireFromString("101"))
	board.Update(types.DEX, decimal.RequireFromString("99"), decimal.RequireFromString("100.5"))

	p := fakeProvider{
		state: types.OpenCondition,
		ledger: strategy.Ledger{
			HeldQty:  decimal.Zero,
			CycleSeq: 4,
		},
		board:     board,
		allowOpen: true,
	}

	snap := BuildSnapshot(p)
	if snap.State != types.OpenCondition {
		t.Errorf("State = %v, want OpenCondition", snap.State)
	}
	if snap.Ledger.CycleSeq != 4 {
		t.Errorf("Ledger.CycleSeq = %d, want 4", snap.Ledger.CycleSeq)
	}
	if !snap.AllowOpen {
		t.Error("AllowOpen = false, want true")
	}
	if snap.Board.CEXBid != "100" || snap.Board.DEXAsk != "100.5" {
		t.Errorf("Board = %+v, want cex_bid=100 dex_ask=100.5", snap.Board)
	}
	if snap.ActiveSlot != nil {
		t.Errorf("ActiveSlot = %+v, want nil", snap.ActiveSlot)
	}
}
