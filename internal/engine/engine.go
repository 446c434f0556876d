// Package engine is the central orchestrator of the arbitrage executor.
//
// It wires together every subsystem:
//
//  1. Reconciliation queries both venues' positions once at boot to decide
//     the strategy's initial state.
//  2. Two market-data feeds (CEX diff-depth, DEX L2) update a shared
//     PriceBoard; the CEX feed additionally drives the signal check on
//     every delta.
//  3. Two user-stream adapters normalize fills into the strategy's
//     HandleFillEvent.
//  4. A 1 Hz ticker drives Machine.Tick independently of market data, so
//     leg timeouts fire even on a quiet book.
//  5. The safety monitor gates new Open cycles; the audit store and status
//     API are fed by the machine's hooks.
//
// Lifecycle: New() → Start() → [runs until SIGINT] → Stop()
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"cexdexarb/internal/audit"
	"cexdexarb/internal/config"
	"cexdexarb/internal/exchange"
	"cexdexarb/internal/feed"
	"cexdexarb/internal/market"
	"cexdexarb/internal/metrics"
	"cexdexarb/internal/reconcile"
	"cexdexarb/internal/safety"
	"cexdexarb/internal/strategy"
	"cexdexarb/internal/userstream"
	"cexdexarb/pkg/types"
)

// Engine orchestrates every component of the arbitrage executor. It owns
// the lifecycle of all goroutines.
type Engine struct {
	cfg config.Config

	cexClient *exchange.CEXClient
	dexClient *exchange.DEXClient
	executor  *exchange.TradeExecutor

	cexBook *market.L2Book
	dexBook *market.L2Book
	board   *market.PriceBoard

	cexFeed *feed.CEXMarketFeed
	dexFeed *feed.DEXMarketFeed

	cexUserStream *userstream.Adapter
	dexUserStream *userstream.Adapter

	machine   *strategy.Machine
	safetyMon *safety.Monitor
	auditLog  *audit.Store

	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New reconciles venue state, wires every subsystem, and returns a
// ready-to-Start Engine. It never starts a goroutine itself.
func New(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	ctx, cancel := context.WithCancel(context.Background())

	cexAuth := exchange.NewCEXAuth(cfg.CEX)
	dexAuth, err := exchange.NewDEXAuth(cfg.DEX)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build dex auth: %w", err)
	}

	cexClient := exchange.NewCEXClient(cfg, cexAuth, logger)
	dexClient := exchange.NewDEXClient(cfg, dexAuth, logger)

	executor := exchange.NewTradeExecutor(cexClient, dexClient)
	if _, err := executor.LoadSymbolInfo(ctx, types.CEX, cfg.Symbols.CEXSymbol); err != nil {
		cancel()
		return nil, fmt.Errorf("load cex symbol info: %w", err)
	}
	if _, err := executor.LoadSymbolInfo(ctx, types.DEX, cfg.Symbols.DEXSymbol); err != nil {
		cancel()
		return nil, fmt.Errorf("load dex symbol info: %w", err)
	}

	decision, err := reconcile.Reconcile(ctx, cexClient, dexClient, cfg.Symbols, logger)
	if err != nil {
		cancel()
		return nil, err
	}
	logger.Info("startup reconciliation complete",
		"initial_state", decision.InitialState, "held_qty", decision.HeldQty.String())

	fees := types.FeeSchedule{
		CEXMaker: decimal.NewFromFloat(cfg.Fees.CEXMaker),
		CEXTaker: decimal.NewFromFloat(cfg.Fees.CEXTaker),
		DEXMaker: decimal.NewFromFloat(cfg.Fees.DEXMaker),
		DEXTaker: decimal.NewFromFloat(cfg.Fees.DEXTaker),
	}
	board := market.NewPriceBoard(fees)
	cexBook := market.NewL2Book(types.CEX, cfg.Symbols.CEXSymbol)
	dexBook := market.NewL2Book(types.DEX, cfg.Symbols.DEXSymbol)

	cexFeed := feed.NewCEXMarketFeed(cfg.CEX.WSMarketURL, cfg.Symbols.CEXSymbol, cexBook, board, logger)
	dexFeed := feed.NewDEXMarketFeed(cfg.DEX.WSURL, cfg.Symbols.DEXSymbol, dexBook, board, logger)

	symbols := types.SymbolPair{CEX: cfg.Symbols.CEXSymbol, DEX: cfg.Symbols.DEXSymbol}
	machine := strategy.NewMachine(cfg.Strategy, symbols, board, executor, logger, decision.HeldQty)

	safetyMon := safety.NewMonitor(cfg.Safety, logger)
	machine.AllowOpen = safetyMon.AllowOpen

	auditLog, err := audit.Open(cfg.Audit.DataDir)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		cexClient: cexClient,
		dexClient: dexClient,
		executor:  executor,
		cexBook:   cexBook,
		dexBook:   dexBook,
		board:     board,
		cexFeed:   cexFeed,
		dexFeed:   dexFeed,
		machine:   machine,
		safetyMon: safetyMon,
		auditLog:  auditLog,
		logger:    logger.With("component", "engine"),
		ctx:       ctx,
		cancel:    cancel,
	}

	machine.OnPlacementRejected = func(leg types.Leg) {
		safetyMon.RecordPlacementRejected(leg)
		metrics.IncPlacementRejected(legLabel(leg))
	}
	machine.OnCycleComplete = func(evt strategy.CycleEvent) {
		metrics.IncCycleCompleted(evt.Opened)
		if err := e.auditLog.RecordCycle(evt); err != nil {
			e.logger.Error("failed to append audit record", "error", err)
		}
	}
	machine.OnTransition = func(prev, next types.StrategyState) {
		metrics.IncStateTransition(string(next))
		if (prev == types.OpenCondition || prev == types.CloseCondition) &&
			next != types.OpenCondition && next != types.CloseCondition {
			e.safetyMon.RecordPlacementAccepted()
		}
	}
	machine.OnLeg2Reposted = func(isMarket bool) {
		if isMarket {
			metrics.IncMarketFallback()
			return
		}
		metrics.IncOrderChased("leg2")
	}
	machine.OnCancelIssued = func(leg types.Leg) {
		metrics.IncCancelIssued(legLabel(leg))
	}
	cexFeed.SignalCheck = func() {
		e.safetyMon.RecordBookUpdate()
		e.machine.Tick(e.ctx)
	}

	return e, nil
}

// Provider returns the read-only view the status API serves.
func (e *Engine) Provider() StateView {
	return StateView{e: e}
}

// Start launches every background goroutine: both market-data feeds, both
// user-stream adapters, the fill dispatch loops, and the 1 Hz tick
// scheduler.
func (e *Engine) Start() error {
	listenKey, err := e.cexClient.EnsureListenKey(e.ctx)
	if err != nil {
		return fmt.Errorf("obtain cex listen key: %w", err)
	}
	e.cexUserStream = userstream.NewCEXUserStream(e.cfg.CEX.WSUserURL, listenKey, e.logger)
	e.dexUserStream = userstream.NewDEXUserStream(e.cfg.DEX.WSURL, e.cfg.DEX.WalletAddr, e.logger)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.cexFeed.Run(e.ctx); err != nil && e.ctx.Err() == nil {
			e.logger.Error("cex market feed error", "error", err)
		}
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.dexFeed.Run(e.ctx); err != nil && e.ctx.Err() == nil {
			e.logger.Error("dex market feed error", "error", err)
		}
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.cexUserStream.Run(e.ctx); err != nil && e.ctx.Err() == nil {
			e.logger.Error("cex user stream error", "error", err)
		}
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.dexUserStream.Run(e.ctx); err != nil && e.ctx.Err() == nil {
			e.logger.Error("dex user stream error", "error", err)
		}
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.dispatchFills(e.cexUserStream.Events())
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.dispatchFills(e.dexUserStream.Events())
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runTickScheduler()
	}()

	return nil
}

// dispatchFills forwards every fill event from one venue's user stream
// into the strategy machine.
func (e *Engine) dispatchFills(events <-chan types.FillEvent) {
	for {
		select {
		case <-e.ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			e.machine.HandleFillEvent(e.ctx, evt)
		}
	}
}

// runTickScheduler drives Machine.Tick at TickInterval, independent of
// market-data activity, so the timeout/cancel/chase path always
// progresses even when the CEX feed goes quiet.
func (e *Engine) runTickScheduler() {
	interval := e.cfg.Strategy.TickInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.machine.Tick(e.ctx)
			heldQty := e.machine.Ledger().HeldQty
			metrics.SetHeldQty(heldQty)
			if openEdge, closeEdge, ok := e.board.NetSpread(); ok {
				metrics.SetEdges(openEdge, closeEdge)
			}
			if refPrice, ok := e.board.Get(types.CEX, true); ok {
				e.safetyMon.RecordHeldNotional(heldQty.Abs().Mul(refPrice))
			}

			cexDepth := decimal.Min(e.cexBook.Depth(true, depthGuardLevels), e.cexBook.Depth(false, depthGuardLevels))
			dexDepth := decimal.Min(e.dexBook.Depth(true, depthGuardLevels), e.dexBook.Depth(false, depthGuardLevels))
			e.safetyMon.RecordTopDepth(cexDepth, dexDepth)
		}
	}
}

// depthGuardLevels is how many top-of-book levels the safety monitor sums
// per side before comparing against safety.min_top_depth_qty.
const depthGuardLevels = 5

// Stop cancels every goroutine's context and waits for them to exit, then
// closes owned resources. It never force-cancels a live leg on shutdown;
// any resting order is left for the next restart's reconciliation to
// resolve against the venues' actual state.
func (e *Engine) Stop() {
	e.logger.Info("shutting down...")

	e.cancel()
	e.wg.Wait()

	e.cexFeed.Close()
	e.dexFeed.Close()
	if err := e.auditLog.Close(); err != nil {
		e.logger.Error("failed to close audit log", "error", err)
	}

	e.logger.Info("shutdown complete")
}

func legLabel(leg types.Leg) string {
	if leg == types.Leg1 {
		return "leg1"
	}
	return "leg2"
}
