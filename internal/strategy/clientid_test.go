package strategy

import (
	"testing"

	"cexdexarb/pkg/types"
)

func TestClientID(t *testing.T) {
	t.Parallel()

	got := ClientID(7, types.Leg2, 3)
	want := "cycle-7-leg2-3"
	if got != want {
		t.Errorf("ClientID() = %q, want %q", got, want)
	}
}

func TestClientIDDistinctPerLegAndAttempt(t *testing.T) {
	t.Parallel()

	a := ClientID(1, types.Leg1, 1)
	b := ClientID(1, types.Leg2, 1)
	c := ClientID(1, types.Leg1, 2)
	if a == b || a == c || b == c {
		t.Errorf("expected distinct client ids, got %q %q %q", a, b, c)
	}
}
