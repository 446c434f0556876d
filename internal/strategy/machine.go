package strategy

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"cexdexarb/internal/config"
	"cexdexarb/internal/market"
	"cexdexarb/pkg/types"
)

// OrderExecutor is the subset of internal/exchange.TradeExecutor the
// strategy drives. Accepting an interface here (rather than the concrete
// type) lets tests exercise the full state machine against a fake without
// a real venue connection.
type OrderExecutor interface {
	PlaceOrder(ctx context.Context, req types.OrderRequest) (types.ExecResult, error)
	CancelOrder(ctx context.Context, req types.CancelRequest) (types.ExecResult, error)
}

// phase is the internal, cycle-direction-agnostic half of StrategyState.
// Combined with cycleIsOpen it reproduces all ten externally-visible states
// without duplicating the open/close transition logic.
type phase int

const (
	phaseCondition phase = iota
	phaseLeg1Waiting
	phaseLeg1Canceling
	phaseLeg2Waiting
	phaseLeg2Chasing
)

// CycleEvent is the write-only audit record emitted on every completed
// Open or Close cycle. It is never read back for state recovery — every
// restart re-derives state from venue balances instead.
type CycleEvent struct {
	CycleSeq    int64
	Opened      bool // true for a completed Open cycle, false for Close
	Qty         decimal.Decimal
	CompletedAt time.Time
}

// Machine is the two-leg open/close strategy state machine. A single
// mutex serializes every transition; all three event sources (signal tick,
// user-stream fill, timeout tick) call into it through Tick and
// HandleFillEvent.
type Machine struct {
	mu sync.Mutex

	cfg     config.StrategyConfig
	symbols types.SymbolPair
	board   *market.PriceBoard
	exec    OrderExecutor
	logger  *slog.Logger

	minSpreadThreshold decimal.Decimal
	cycleQtyTarget     decimal.Decimal

	phase       phase
	cycleIsOpen bool
	slot        *types.ActiveOrderSlot
	ledger      Ledger

	cancelPending  bool
	cancelIssuedAt time.Time
	cancelRetries  int

	// OnTransition, if set, is called after every state change while the
	// mutex is held. It must not block and must not call back into Machine.
	OnTransition func(prev, next types.StrategyState)

	// OnCycleComplete, if set, is called once per completed cycle — the
	// hook the audit package's append-only log wires into.
	OnCycleComplete func(CycleEvent)

	// OnPlacementRejected, if set, is called on every failed or rejected
	// placement, keyed by which leg rejected — the safety monitor's
	// consecutive-reject counter wires into this.
	OnPlacementRejected func(leg types.Leg)

	// AllowOpen, if set, gates whether OpenCondition may start a new cycle.
	// Existing in-flight cycles are never affected. Nil means always
	// allowed.
	AllowOpen func() bool

	// OnLeg2Reposted, if set, is called every time Leg2 is re-placed after
	// a chase-triggering event — isMarket distinguishes the final market
	// sweep from a limit repost. The metrics package wires into this.
	OnLeg2Reposted func(isMarket bool)

	// OnCancelIssued, if set, is called every time a cancel request is
	// sent for a timed-out leg (initial issue and retries both count).
	OnCancelIssued func(leg types.Leg)
}

// NewMachine builds a Machine seeded with the initial state startup
// reconciliation decided.
func NewMachine(
	cfg config.StrategyConfig,
	symbols types.SymbolPair,
	board *market.PriceBoard,
	exec OrderExecutor,
	logger *slog.Logger,
	initialHeldQty decimal.Decimal,
) *Machine {
	return &Machine{
		cfg:                cfg,
		symbols:            symbols,
		board:              board,
		exec:               exec,
		logger:             logger.With("component", "strategy"),
		minSpreadThreshold: decimal.NewFromFloat(cfg.MinSpreadThreshold),
		cycleQtyTarget:     decimal.NewFromFloat(cfg.CycleQty),
		phase:              phaseCondition,
		ledger:             Ledger{HeldQty: initialHeldQty},
	}
}

// State returns the current externally-visible state.
func (m *Machine) State() types.StrategyState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// Ledger returns a snapshot of the position ledger.
func (m *Machine) Ledger() Ledger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger
}

// ActiveSlot returns a copy of the current active order slot, or nil if
// the machine is in a Condition state.
func (m *Machine) ActiveSlot() *types.ActiveOrderSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slot == nil {
		return nil
	}
	cp := *m.slot
	return &cp
}

func (m *Machine) stateLocked() types.StrategyState {
	switch m.phase {
	case phaseCondition:
		if m.ledger.IsFlat() {
			return types.OpenCondition
		}
		return types.CloseCondition
	case phaseLeg1Waiting:
		if m.cycleIsOpen {
			return types.OpenLeg1Waiting
		}
		return types.CloseLeg1Waiting
	case phaseLeg1Canceling:
		if m.cycleIsOpen {
			return types.OpenLeg1Canceling
		}
		return types.CloseLeg1Canceling
	case phaseLeg2Waiting:
		if m.cycleIsOpen {
			return types.OpenLeg2Waiting
		}
		return types.CloseLeg2Waiting
	default: // phaseLeg2Chasing
		if m.cycleIsOpen {
			return types.OpenLeg2Chasing
		}
		return types.CloseLeg2Chasing
	}
}

func (m *Machine) setPhase(p phase) {
	prev := m.stateLocked()
	m.phase = p
	next := m.stateLocked()
	if m.OnTransition != nil && prev != next {
		m.OnTransition(prev, next)
	}
}

func (m *Machine) clearSlot() {
	m.slot = nil
	m.cancelPending = false
	m.cancelRetries = 0
}

// Tick drives both the signal check (Condition states) and the timeout
// check (all other states). Called once per second by the tick scheduler
// and on every CEX book update; holds the mutex only briefly.
func (m *Machine) Tick(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == phaseCondition {
		m.evaluateSignal(ctx)
		return
	}
	m.checkTimeout(ctx)
}

func (m *Machine) evaluateSignal(ctx context.Context) {
	openEdge, closeEdge, ok := m.board.NetSpread()
	if !ok {
		return
	}

	if m.ledger.IsFlat() {
		if m.AllowOpen != nil && !m.AllowOpen() {
			return
		}
		if openEdge.GreaterThan(m.minSpreadThreshold) {
			m.startCycle(ctx, true)
		}
		return
	}

	if closeEdge.GreaterThan(m.minSpreadThreshold) {
		m.startCycle(ctx, false)
	}
}

// startCycle places the Leg1 DEX maker order that opens or closes a cycle.
func (m *Machine) startCycle(ctx context.Context, isOpen bool) {
	price, ok := m.dexMakerPrice(isOpen)
	if !ok {
		return
	}

	side := types.Buy
	if !isOpen {
		side = types.Sell
	}

	nextSeq := m.ledger.CycleSeq + 1
	clientID := ClientID(nextSeq, types.Leg1, 1)

	res, err := m.exec.PlaceOrder(ctx, types.OrderRequest{
		Venue:    types.DEX,
		Symbol:   m.symbols.DEX,
		Side:     side,
		Type:     types.OrderTypeLimit,
		Qty:      m.cycleQtyTarget,
		Price:    price,
		ClientID: clientID,
	})
	if err != nil || !res.OK {
		m.logger.Warn("leg1 placement did not open a cycle, staying in condition",
			"error", err, "msg", res.Msg, "is_open", isOpen)
		if m.OnPlacementRejected != nil {
			m.OnPlacementRejected(types.Leg1)
		}
		return
	}

	m.ledger.CycleSeq = nextSeq
	m.ledger.CycleQty = m.cycleQtyTarget
	m.ledger.Leg1FilledQty = decimal.Zero
	m.ledger.Leg2FilledQty = decimal.Zero
	m.cycleIsOpen = isOpen
	m.slot = &types.ActiveOrderSlot{
		Venue:        types.DEX,
		Symbol:       m.symbols.DEX,
		Side:         side,
		OrderID:      res.OrderID,
		ClientID:     clientID,
		Price:        price,
		QtyTotal:     m.cycleQtyTarget,
		ChaseAttempt: 1,
		PlacedAt:     time.Now(),
	}
	m.setPhase(phaseLeg1Waiting)
}

func (m *Machine) dexMakerPrice(isOpen bool) (decimal.Decimal, bool) {
	// Open: DEX buy maker rests at the current bid. Close: DEX sell maker
	// rests at the current ask. The price is pinned at placement and never
	// improved mid-life.
	return m.board.Get(types.DEX, isOpen)
}

func (m *Machine) cexTakerPrice() (decimal.Decimal, bool) {
	// Open: CEX sell taker targets the current bid. Close: CEX buy taker
	// targets the current ask.
	return m.board.Get(types.CEX, m.cycleIsOpen)
}

// HandleFillEvent processes a normalized user-stream event. Events
// for an order ID that doesn't match the current slot are dropped —
// covers both stale reconnect replay and orders superseded by a cancel
// race (S4).
func (m *Machine) HandleFillEvent(ctx context.Context, evt types.FillEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.slot == nil || evt.OrderID != m.slot.OrderID {
		m.logger.Debug("dropping fill event for unknown or superseded order", "order_id", evt.OrderID)
		return
	}

	m.cancelPending = false
	m.cancelRetries = 0

	switch m.phase {
	case phaseLeg1Waiting:
		m.onLeg1Event(ctx, evt)
	case phaseLeg1Canceling:
		m.onLeg1CancelEvent(ctx, evt)
	case phaseLeg2Waiting, phaseLeg2Chasing:
		m.onLeg2Event(ctx, evt)
	}
}

func (m *Machine) onLeg1Event(ctx context.Context, evt types.FillEvent) {
	switch evt.Kind {
	case types.AllTraded:
		m.ledger.Leg1FilledQty = evt.FilledQty
		m.placeLeg2(ctx, evt.FilledQty)
	default:
		// Cancels cannot arrive here — we haven't issued one — so any other
		// terminal kind indicates a payload inconsistency. Log and drop; the
		// next timeout or terminal event will move the machine forward.
		m.logger.Warn("unexpected user-stream event while awaiting leg1 fill", "kind", evt.Kind)
	}
}

func (m *Machine) onLeg1CancelEvent(ctx context.Context, evt types.FillEvent) {
	switch evt.Kind {
	case types.AllTraded:
		// Cancel lost the race — treat identically to a fill in Leg1Waiting.
		m.ledger.Leg1FilledQty = evt.FilledQty
		m.placeLeg2(ctx, evt.FilledQty)
	case types.PartialFilledCanceled:
		if evt.FilledQty.IsPositive() {
			m.ledger.Leg1FilledQty = evt.FilledQty
			m.placeLeg2(ctx, evt.FilledQty)
			return
		}
		m.clearSlot()
		m.setPhase(phaseCondition)
	case types.AllCanceled:
		m.clearSlot()
		m.setPhase(phaseCondition)
	}
}

// placeLeg2 submits the CEX taker hedge for exactly qty — never more than
// Leg1 reported filled.
func (m *Machine) placeLeg2(ctx context.Context, qty decimal.Decimal) {
	if !qty.IsPositive() {
		m.clearSlot()
		m.setPhase(phaseCondition)
		return
	}

	price, ok := m.cexTakerPrice()
	if !ok {
		m.logger.Error("no cex price available to hedge leg1 fill, aborting cycle", "qty", qty)
		m.clearSlot()
		m.setPhase(phaseCondition)
		return
	}

	side := types.Sell
	if !m.cycleIsOpen {
		side = types.Buy
	}
	clientID := ClientID(m.ledger.CycleSeq, types.Leg2, 1)

	res, err := m.exec.PlaceOrder(ctx, types.OrderRequest{
		Venue:    types.CEX,
		Symbol:   m.symbols.CEX,
		Side:     side,
		Type:     types.OrderTypeLimit,
		Qty:      qty,
		Price:    price,
		ClientID: clientID,
	})
	if err != nil || !res.OK {
		m.logger.Error("leg2 placement failed, cycle left inconsistent", "error", err, "msg", res.Msg)
		if m.OnPlacementRejected != nil {
			m.OnPlacementRejected(types.Leg2)
		}
		m.clearSlot()
		m.setPhase(phaseCondition)
		return
	}

	m.slot = &types.ActiveOrderSlot{
		Venue:        types.CEX,
		Symbol:       m.symbols.CEX,
		Side:         side,
		OrderID:      res.OrderID,
		ClientID:     clientID,
		Price:        price,
		QtyTotal:     qty,
		ChaseAttempt: 1,
		PlacedAt:     time.Now(),
	}
	m.setPhase(phaseLeg2Waiting)
}

func (m *Machine) onLeg2Event(ctx context.Context, evt types.FillEvent) {
	remaining := m.slot.QtyTotal.Sub(evt.FilledQty)
	m.ledger.Leg2FilledQty = m.ledger.Leg1FilledQty.Sub(remaining)

	if evt.Kind == types.AllTraded || !remaining.IsPositive() {
		m.completeCycle()
		return
	}
	m.chaseOrFallback(ctx, remaining)
}

// chaseOrFallback reposts the remaining Leg2 quantity at the new opposite
// best price while chase attempts remain, then falls back to a market
// sweep once ChaseLimitAttempts is exhausted.
func (m *Machine) chaseOrFallback(ctx context.Context, remaining decimal.Decimal) {
	next := m.slot.ChaseAttempt + 1
	clientID := ClientID(m.ledger.CycleSeq, types.Leg2, next)

	side := types.Sell
	if !m.cycleIsOpen {
		side = types.Buy
	}

	req := types.OrderRequest{
		Venue:    types.CEX,
		Symbol:   m.symbols.CEX,
		Side:     side,
		Qty:      remaining,
		ClientID: clientID,
	}

	isMarket := next > m.cfg.ChaseLimitAttempts
	if !isMarket {
		price, ok := m.cexTakerPrice()
		if !ok {
			m.logger.Error("no cex price available to chase leg2, aborting cycle")
			m.clearSlot()
			m.setPhase(phaseCondition)
			return
		}
		req.Type = types.OrderTypeLimit
		req.Price = price
	} else {
		req.Type = types.OrderTypeMarket
	}

	res, err := m.exec.PlaceOrder(ctx, req)
	if err != nil || !res.OK {
		m.logger.Error("leg2 chase placement failed, cycle left inconsistent", "error", err, "msg", res.Msg, "attempt", next)
		if m.OnPlacementRejected != nil {
			m.OnPlacementRejected(types.Leg2)
		}
		m.clearSlot()
		m.setPhase(phaseCondition)
		return
	}

	m.slot = &types.ActiveOrderSlot{
		Venue:        types.CEX,
		Symbol:       m.symbols.CEX,
		Side:         side,
		OrderID:      res.OrderID,
		ClientID:     clientID,
		Price:        req.Price,
		QtyTotal:     remaining,
		ChaseAttempt: next,
		PlacedAt:     time.Now(),
	}
	m.setPhase(phaseLeg2Chasing)
	if m.OnLeg2Reposted != nil {
		m.OnLeg2Reposted(isMarket)
	}
}

// completeCycle finishes the current cycle: held_qty moves by exactly the
// quantity Leg1 reported filled, and the machine returns to the opposite
// Condition state.
func (m *Machine) completeCycle() {
	qty := m.ledger.Leg1FilledQty
	if m.cycleIsOpen {
		m.ledger.HeldQty = m.ledger.HeldQty.Add(qty)
	} else {
		m.ledger.HeldQty = m.ledger.HeldQty.Sub(qty)
	}

	evt := CycleEvent{
		CycleSeq:    m.ledger.CycleSeq,
		Opened:      m.cycleIsOpen,
		Qty:         qty,
		CompletedAt: time.Now(),
	}

	m.clearSlot()
	m.ledger.CycleQty = decimal.Zero
	m.ledger.Leg1FilledQty = decimal.Zero
	m.ledger.Leg2FilledQty = decimal.Zero
	m.setPhase(phaseCondition)

	if m.OnCycleComplete != nil {
		m.OnCycleComplete(evt)
	}
}

// checkTimeout handles the 1 Hz timeout tick for every non-Condition
// phase: issuing a cancel past T_ORDER, retrying a stuck cancel past
// T_CANCEL, and aborting to Condition once N_CANCEL_RETRY is exhausted.
func (m *Machine) checkTimeout(ctx context.Context) {
	if m.slot == nil {
		return
	}
	now := time.Now()

	if m.cancelPending {
		if now.Sub(m.cancelIssuedAt) <= m.cfg.TCancel {
			return
		}
		if m.cancelRetries < m.cfg.NCancelRetry {
			m.reissueCancel(ctx)
			return
		}
		m.logger.Error("cancel ack timeout exceeded retry limit, aborting cycle to condition",
			"order_id", m.slot.OrderID, "client_id", m.slot.ClientID)
		m.clearSlot()
		m.setPhase(phaseCondition)
		return
	}

	if now.Sub(m.slot.PlacedAt) <= m.cfg.TOrder {
		return
	}

	switch m.phase {
	case phaseLeg1Waiting:
		m.issueCancel(ctx, types.DEX, m.symbols.DEX)
		m.setPhase(phaseLeg1Canceling)
	case phaseLeg2Waiting, phaseLeg2Chasing:
		m.issueCancel(ctx, types.CEX, m.symbols.CEX)
	}
}

func (m *Machine) issueCancel(ctx context.Context, venue types.Venue, symbol string) {
	_, err := m.exec.CancelOrder(ctx, types.CancelRequest{
		Venue:    venue,
		Symbol:   symbol,
		OrderID:  m.slot.OrderID,
		ClientID: m.slot.ClientID,
	})
	if err != nil {
		m.logger.Warn("cancel request failed, will retry on next tick", "error", err)
	}
	m.cancelPending = true
	m.cancelIssuedAt = time.Now()
	m.cancelRetries = 0
	if m.OnCancelIssued != nil {
		leg := types.Leg2
		if venue == types.DEX {
			leg = types.Leg1
		}
		m.OnCancelIssued(leg)
	}
}

func (m *Machine) reissueCancel(ctx context.Context) {
	venue, symbol := types.CEX, m.symbols.CEX
	if m.phase == phaseLeg1Canceling {
		venue, symbol = types.DEX, m.symbols.DEX
	}
	_, err := m.exec.CancelOrder(ctx, types.CancelRequest{
		Venue:    venue,
		Symbol:   symbol,
		OrderID:  m.slot.OrderID,
		ClientID: m.slot.ClientID,
	})
	if err != nil {
		m.logger.Warn("cancel retry failed", "error", err)
	}
	m.cancelRetries++
	m.cancelIssuedAt = time.Now()
	if m.OnCancelIssued != nil {
		leg := types.Leg2
		if venue == types.DEX {
			leg = types.Leg1
		}
		m.OnCancelIssued(leg)
	}
}
