package types

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSideOpposite(t *testing.T) {
	t.Parallel()

	if Buy.Opposite() != Sell {
		t.Errorf("Buy.Opposite() = %v, want Sell", Buy.Opposite())
	}
	if Sell.Opposite() != Buy {
		t.Errorf("Sell.Opposite() = %v, want Buy", Sell.Opposite())
	}
}

func TestActiveOrderSlotRemaining(t *testing.T) {
	t.Parallel()

	slot := ActiveOrderSlot{
		QtyTotal:  decimal.RequireFromString("10"),
		QtyFilled: decimal.RequireFromString("3.5"),
	}
	got := slot.Remaining()
	want := decimal.RequireFromString("6.5")
	if !got.Equal(want) {
		t.Errorf("Remaining() = %s, want %s", got, want)
	}
}
