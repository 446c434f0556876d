package engine

import (
	"cexdexarb/internal/market"
	"cexdexarb/internal/strategy"
	"cexdexarb/pkg/types"
)

// StateView adapts an Engine to statusapi.StateProvider without the engine
// package importing statusapi — cmd/executor wires the two together.
type StateView struct {
	e *Engine
}

func (v StateView) State() types.StrategyState        { return v.e.machine.State() }
func (v StateView) Ledger() strategy.Ledger           { return v.e.machine.Ledger() }
func (v StateView) ActiveSlot() *types.ActiveOrderSlot { return v.e.machine.ActiveSlot() }
func (v StateView) Board() *market.PriceBoard         { return v.e.board }
func (v StateView) AllowOpen() bool                   { return v.e.safetyMon.AllowOpen() }

// StatusBroadcaster is the subset of statusapi.Server's push API the
// engine needs — kept as a local interface so engine never imports
// statusapi, avoiding an import cycle (statusapi imports engine's sibling
// types, not the reverse).
type StatusBroadcaster interface {
	BroadcastTransition(prev, next types.StrategyState)
	BroadcastCycle(evt strategy.CycleEvent)
}

// AttachStatusBroadcaster wires a running status API server's broadcast
// methods into the machine's existing hooks, additively: metrics and audit
// recording (set in New) still run, the broadcaster just also gets called.
// Call after constructing the Engine and the statusapi.Server from its
// Provider().
func (e *Engine) AttachStatusBroadcaster(b StatusBroadcaster) {
	prevOnTransition := e.machine.OnTransition
	e.machine.OnTransition = func(prev, next types.StrategyState) {
		if prevOnTransition != nil {
			prevOnTransition(prev, next)
		}
		b.BroadcastTransition(prev, next)
	}

	prevOnCycleComplete := e.machine.OnCycleComplete
	e.machine.OnCycleComplete = func(evt strategy.CycleEvent) {
		if prevOnCycleComplete != nil {
			prevOnCycleComplete(evt)
		}
		b.BroadcastCycle(evt)
	}
}
