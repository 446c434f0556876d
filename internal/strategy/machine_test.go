package strategy

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cexdexarb/internal/config"
	"cexdexarb/internal/market"
	"cexdexarb/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fakeExecutor scripts PlaceOrder responses by client ID so scenario tests
// can drive the machine through specific order IDs without a real venue.
type fakeExecutor struct {
	mu        sync.Mutex
	orderIDs  map[string]string // clientID -> orderID to return
	placed    []types.OrderRequest
	cancelled []types.CancelRequest
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{orderIDs: make(map[string]string)}
}

func (f *fakeExecutor) script(clientID, orderID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderIDs[clientID] = orderID
}

func (f *fakeExecutor) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.ExecResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, req)
	oid := f.orderIDs[req.ClientID]
	if oid == "" {
		oid = req.ClientID + "-oid"
	}
	return types.ExecResult{OK: true, OrderID: oid, ClientID: req.ClientID, Status: "NEW"}, nil
}

func (f *fakeExecutor) CancelOrder(ctx context.Context, req types.CancelRequest) (types.ExecResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, req)
	return types.ExecResult{OK: true}, nil
}

func (f *fakeExecutor) placedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.placed)
}

func zeroFees() types.FeeSchedule {
	return types.FeeSchedule{CEXMaker: decimal.Zero, CEXTaker: decimal.Zero, DEXMaker: decimal.Zero, DEXTaker: decimal.Zero}
}

func spec1Fees() types.FeeSchedule {
	return types.FeeSchedule{
		CEXMaker: d("0.0002"),
		CEXTaker: d("0.0004"),
		DEXMaker: d("0.0002"),
		DEXTaker: d("0.0004"),
	}
}

func testSymbols() types.SymbolPair {
	return types.SymbolPair{CEX: "BTCUSDT", DEX: "BTC"}
}

func testCfg() config.StrategyConfig {
	return config.StrategyConfig{
		MinSpreadThreshold: 0,
		CycleQty:           0.01,
		TOrder:             5 * time.Second,
		TCancel:            5 * time.Second,
		NCancelRetry:       2,
		ChaseLimitAttempts: 3,
	}
}

// TestS1HappyOpen mirrors spec scenario S1: a full open cycle resolves in
// two fills with no chase, ending in CloseCondition holding cycle_qty.
func TestS1HappyOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	board := market.NewPriceBoard(spec1Fees())
	board.Update(types.DEX, d("30020"), d("30021"))
	board.Update(types.CEX, d("29999"), d("30000"))

	exec := newFakeExecutor()
	exec.script("cycle-1-leg1-1", "D1")
	exec.script("cycle-1-leg2-1", "C1")

	m := NewMachine(testCfg(), testSymbols(), board, exec, testLogger(), decimal.Zero)

	m.Tick(ctx)
	if got := m.State(); got != types.OpenLeg1Waiting {
		t.Fatalf("after signal tick, state = %v, want OpenLeg1Waiting", got)
	}

	m.HandleFillEvent(ctx, types.FillEvent{OrderID: "D1", Kind: types.AllTraded, FilledQty: d("0.01")})
	if got := m.State(); got != types.OpenLeg2Waiting {
		t.Fatalf("after leg1 fill, state = %v, want OpenLeg2Waiting", got)
	}

	m.HandleFillEvent(ctx, types.FillEvent{OrderID: "C1", Kind: types.AllTraded, FilledQty: d("0.01")})
	if got := m.State(); got != types.CloseCondition {
		t.Fatalf("after leg2 fill, state = %v, want CloseCondition", got)
	}
	if held := m.Ledger().HeldQty; !held.Equal(d("0.01")) {
		t.Errorf("held_qty = %s, want 0.01", held)
	}
	if m.ActiveSlot() != nil {
		t.Error("expected nil active slot in a Condition state")
	}
}

// TestS2Leg1TimeoutWithPartial mirrors S2: a leg1 timeout cancel confirms a
// partial fill, which hedges for exactly that quantity.
func TestS2Leg1TimeoutWithPartial(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	board := market.NewPriceBoard(spec1Fees())
	board.Update(types.DEX, d("30020"), d("30021"))
	board.Update(types.CEX, d("29999"), d("30000"))

	exec := newFakeExecutor()
	exec.script("cycle-1-leg1-1", "D1")
	exec.script("cycle-1-leg2-1", "C1")

	m := NewMachine(testCfg(), testSymbols(), board, exec, testLogger(), decimal.Zero)

	m.Tick(ctx) // places leg1

	m.mu.Lock()
	m.slot.PlacedAt = time.Now().Add(-time.Hour)
	m.mu.Unlock()
	m.Tick(ctx) // timeout -> cancel issued
	if got := m.State(); got != types.OpenLeg1Canceling {
		t.Fatalf("after timeout, state = %v, want OpenLeg1Canceling", got)
	}

	m.HandleFillEvent(ctx, types.FillEvent{OrderID: "D1", Kind: types.PartialFilledCanceled, FilledQty: d("0.004")})
	if got := m.State(); got != types.OpenLeg2Waiting {
		t.Fatalf("after partial cancel, state = %v, want OpenLeg2Waiting", got)
	}

	m.HandleFillEvent(ctx, types.FillEvent{OrderID: "C1", Kind: types.AllTraded, FilledQty: d("0.004")})
	if got := m.State(); got != types.CloseCondition {
		t.Fatalf("final state = %v, want CloseCondition", got)
	}
	if held := m.Ledger().HeldQty; !held.Equal(d("0.004")) {
		t.Errorf("held_qty = %s, want 0.004", held)
	}
}

// TestS3Leg2ChaseToMarket mirrors S3: leg2 chases twice at a new best price
// before falling back to a market sweep for the remainder.
func TestS3Leg2ChaseToMarket(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	board := market.NewPriceBoard(spec1Fees())
	board.Update(types.DEX, d("30020"), d("30021"))
	board.Update(types.CEX, d("30000"), d("30001"))

	exec := newFakeExecutor()
	exec.script("cycle-1-leg1-1", "D1")
	exec.script("cycle-1-leg2-1", "C1")
	exec.script("cycle-1-leg2-2", "C2")
	exec.script("cycle-1-leg2-3", "C3")
	exec.script("cycle-1-leg2-4", "C4")

	m := NewMachine(testCfg(), testSymbols(), board, exec, testLogger(), decimal.Zero)

	m.Tick(ctx)
	m.HandleFillEvent(ctx, types.FillEvent{OrderID: "D1", Kind: types.AllTraded, FilledQty: d("0.01")})
	if got := m.State(); got != types.OpenLeg2Waiting {
		t.Fatalf("state = %v, want OpenLeg2Waiting", got)
	}

	board.Update(types.CEX, d("29998"), d("29999")) // new best for first chase repost
	m.HandleFillEvent(ctx, types.FillEvent{OrderID: "C1", Kind: types.PartialFilledCanceled, FilledQty: d("0.003")})
	if got := m.State(); got != types.OpenLeg2Chasing {
		t.Fatalf("state = %v, want OpenLeg2Chasing after first chase", got)
	}

	m.HandleFillEvent(ctx, types.FillEvent{OrderID: "C2", Kind: types.PartialFilledCanceled, FilledQty: d("0.003")})
	if got := m.State(); got != types.OpenLeg2Chasing {
		t.Fatalf("state = %v, want OpenLeg2Chasing after second chase", got)
	}

	m.HandleFillEvent(ctx, types.FillEvent{OrderID: "C3", Kind: types.AllCanceled, FilledQty: d("0")})
	if got := m.State(); got != types.OpenLeg2Chasing {
		t.Fatalf("state = %v, want OpenLeg2Chasing after market fallback placed", got)
	}

	// The fourth placement (C4) must have been a market order, not a limit.
	if len(exec.placed) != 5 { // leg1 + 4 leg2 attempts
		t.Fatalf("placed %d orders, want 5", len(exec.placed))
	}
	if exec.placed[4].Type != types.OrderTypeMarket {
		t.Errorf("4th leg2 attempt type = %v, want Market", exec.placed[4].Type)
	}

	m.HandleFillEvent(ctx, types.FillEvent{OrderID: "C4", Kind: types.AllTraded, FilledQty: d("0.004")})
	if got := m.State(); got != types.CloseCondition {
		t.Fatalf("final state = %v, want CloseCondition", got)
	}
	if held := m.Ledger().HeldQty; !held.Equal(d("0.01")) {
		t.Errorf("held_qty = %s, want 0.01", held)
	}
}

// TestS4CancelRaceLost mirrors S4: a leg1 ALL_TRADED arrives after the
// cancel was already issued; the machine proceeds as if no cancel
// happened, and the late cancel ack for the superseded order is dropped.
func TestS4CancelRaceLost(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	board := market.NewPriceBoard(spec1Fees())
	board.Update(types.DEX, d("30020"), d("30021"))
	board.Update(types.CEX, d("29999"), d("30000"))

	exec := newFakeExecutor()
	exec.script("cycle-1-leg1-1", "D1")
	exec.script("cycle-1-leg2-1", "C1")

	m := NewMachine(testCfg(), testSymbols(), board, exec, testLogger(), decimal.Zero)

	m.Tick(ctx)
	m.mu.Lock()
	m.slot.PlacedAt = time.Now().Add(-time.Hour)
	m.mu.Unlock()
	m.Tick(ctx) // cancel issued, phase Leg1Canceling

	m.HandleFillEvent(ctx, types.FillEvent{OrderID: "D1", Kind: types.AllTraded, FilledQty: d("0.01")})
	if got := m.State(); got != types.OpenLeg2Waiting {
		t.Fatalf("state = %v, want OpenLeg2Waiting (cancel race lost)", got)
	}

	// Late cancel ack for the superseded DEX order must be dropped.
	m.HandleFillEvent(ctx, types.FillEvent{OrderID: "D1", Kind: types.AllCanceled, FilledQty: d("0")})
	if got := m.State(); got != types.OpenLeg2Waiting {
		t.Fatalf("state after stale cancel ack = %v, want unchanged OpenLeg2Waiting", got)
	}
	if held := m.Ledger().HeldQty; !held.IsZero() {
		t.Errorf("held_qty should be unaffected by the stale ack, got %s", held)
	}
}

// TestS6SignalBelowThreshold mirrors S6: an edge of exactly zero against a
// zero threshold never fires, across any number of ticks.
func TestS6SignalBelowThreshold(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	board := market.NewPriceBoard(zeroFees())
	board.Update(types.DEX, d("100"), d("101"))
	board.Update(types.CEX, d("99"), d("100"))

	exec := newFakeExecutor()
	m := NewMachine(testCfg(), testSymbols(), board, exec, testLogger(), decimal.Zero)

	for i := 0; i < 5; i++ {
		m.Tick(ctx)
	}

	if got := m.State(); got != types.OpenCondition {
		t.Fatalf("state = %v, want OpenCondition", got)
	}
	if n := exec.placedCount(); n != 0 {
		t.Errorf("placed %d orders, want 0", n)
	}
}

// TestRoundTripHeldQtyReturnsToStart exercises the Open/Close idempotence
// property from §8: an Open cycle followed by a Close cycle of the same
// cycle_qty returns held_qty to its starting value.
func TestRoundTripHeldQtyReturnsToStart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	board := market.NewPriceBoard(spec1Fees())
	board.Update(types.DEX, d("30020"), d("30021"))
	board.Update(types.CEX, d("29999"), d("30000"))

	exec := newFakeExecutor()
	exec.script("cycle-1-leg1-1", "D1")
	exec.script("cycle-1-leg2-1", "C1")
	exec.script("cycle-2-leg1-1", "D2")
	exec.script("cycle-2-leg2-1", "C2")

	m := NewMachine(testCfg(), testSymbols(), board, exec, testLogger(), decimal.Zero)

	m.Tick(ctx)
	m.HandleFillEvent(ctx, types.FillEvent{OrderID: "D1", Kind: types.AllTraded, FilledQty: d("0.01")})
	m.HandleFillEvent(ctx, types.FillEvent{OrderID: "C1", Kind: types.AllTraded, FilledQty: d("0.01")})
	if got := m.State(); got != types.CloseCondition {
		t.Fatalf("after open cycle, state = %v, want CloseCondition", got)
	}

	// Re-point the board so the close edge clears the threshold too.
	board.Update(types.CEX, d("30050"), d("30051"))
	board.Update(types.DEX, d("29990"), d("29991"))

	m.Tick(ctx)
	if got := m.State(); got != types.CloseLeg1Waiting {
		t.Fatalf("after close signal, state = %v, want CloseLeg1Waiting", got)
	}
	m.HandleFillEvent(ctx, types.FillEvent{OrderID: "D2", Kind: types.AllTraded, FilledQty: d("0.01")})
	m.HandleFillEvent(ctx, types.FillEvent{OrderID: "C2", Kind: types.AllTraded, FilledQty: d("0.01")})

	if got := m.State(); got != types.OpenCondition {
		t.Fatalf("final state = %v, want OpenCondition", got)
	}
	if held := m.Ledger().HeldQty; !held.IsZero() {
		t.Errorf("held_qty after round trip = %s, want 0", held)
	}
}

// TestReplayingTerminalEventIsNoOp covers the round-trip/idempotence
// property: replaying the same terminal user-stream event after the order
// id has been cleared from the slot has no effect.
func TestReplayingTerminalEventIsNoOp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	board := market.NewPriceBoard(spec1Fees())
	board.Update(types.DEX, d("30020"), d("30021"))
	board.Update(types.CEX, d("29999"), d("30000"))

	exec := newFakeExecutor()
	exec.script("cycle-1-leg1-1", "D1")

	m := NewMachine(testCfg(), testSymbols(), board, exec, testLogger(), decimal.Zero)

	m.Tick(ctx)
	m.mu.Lock()
	m.slot.PlacedAt = time.Now().Add(-time.Hour)
	m.mu.Unlock()
	m.Tick(ctx) // cancel issued

	m.HandleFillEvent(ctx, types.FillEvent{OrderID: "D1", Kind: types.AllCanceled, FilledQty: d("0")})
	if got := m.State(); got != types.OpenCondition {
		t.Fatalf("state = %v, want OpenCondition", got)
	}

	before := m.Ledger()
	m.HandleFillEvent(ctx, types.FillEvent{OrderID: "D1", Kind: types.AllCanceled, FilledQty: d("0")})
	after := m.Ledger()
	if before != after {
		t.Errorf("replaying a cleared terminal event mutated the ledger: before=%+v after=%+v", before, after)
	}
	if got := m.State(); got != types.OpenCondition {
		t.Fatalf("state after replay = %v, want OpenCondition", got)
	}
}
