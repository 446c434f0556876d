// Package safety enforces four guardrails: a cap on held notional, a
// staleness check on market data, a consecutive-reject circuit breaker,
// and a minimum top-of-book depth. All four only gate whether a *new* cycle
// may open — none of them ever force-cancels or otherwise touches a leg
// that is already live.
package safety

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"cexdexarb/internal/config"
	"cexdexarb/pkg/types"
)

// Monitor tracks the running state the guardrails need and answers
// AllowOpen() for the strategy machine's OnTransition/AllowOpen hook.
type Monitor struct {
	cfg    config.SafetyConfig
	logger *slog.Logger

	mu                 sync.Mutex
	heldNotional       decimal.Decimal
	lastBookUpdate     time.Time
	consecutiveRejects int
	cexTopDepth        decimal.Decimal
	dexTopDepth        decimal.Decimal
}

// NewMonitor builds a Monitor from config.
func NewMonitor(cfg config.SafetyConfig, logger *slog.Logger) *Monitor {
	return &Monitor{
		cfg:    cfg,
		logger: logger.With("component", "safety"),
	}
}

// RecordHeldNotional updates the USD notional currently at risk (held_qty
// times a reference price), read by PriceBoard consumers on every tick.
func (m *Monitor) RecordHeldNotional(notional decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heldNotional = notional
}

// RecordBookUpdate marks that fresh market data arrived just now. The
// engine calls this from the CEX feed's signal check on every CEX book
// update; DEX updates do not call it.
func (m *Monitor) RecordBookUpdate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastBookUpdate = time.Now()
}

// RecordTopDepth records, for each venue, the summed size of the top few
// levels on that venue's thinner side (the engine passes the minimum of
// bid and ask depth), so AllowOpen can refuse to open into a book too thin
// to actually fill cycle_qty.
func (m *Monitor) RecordTopDepth(cexQty, dexQty decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cexTopDepth = cexQty
	m.dexTopDepth = dexQty
}

// RecordPlacementRejected increments the consecutive-reject counter. Wired
// to Machine.OnPlacementRejected.
func (m *Monitor) RecordPlacementRejected(leg types.Leg) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consecutiveRejects++
	m.logger.Warn("placement rejected", "leg", leg, "consecutive_rejects", m.consecutiveRejects)
}

// RecordPlacementAccepted resets the consecutive-reject counter. Wired to
// Machine.OnTransition for any transition out of a Condition state (a
// successful Leg1 placement).
func (m *Monitor) RecordPlacementAccepted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consecutiveRejects = 0
}

// AllowOpen reports whether a new OpenCondition cycle may start right now.
// Wired to Machine.AllowOpen. Only gates the Open side — a CloseCondition
// cycle unwinding an existing position is never blocked, since refusing to
// close would only grow the operator's exposure.
func (m *Monitor) AllowOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.MaxHeldNotional > 0 && m.heldNotional.GreaterThan(decimal.NewFromFloat(m.cfg.MaxHeldNotional)) {
		m.logger.Warn("blocking open: held notional over limit", "held_notional", m.heldNotional.String())
		return false
	}
	if m.cfg.StaleBookTimeout > 0 && !m.lastBookUpdate.IsZero() && time.Since(m.lastBookUpdate) > m.cfg.StaleBookTimeout {
		m.logger.Warn("blocking open: price board is stale", "since_last_update", time.Since(m.lastBookUpdate).String())
		return false
	}
	if m.cfg.MaxConsecutiveRejects > 0 && m.consecutiveRejects >= m.cfg.MaxConsecutiveRejects {
		m.logger.Warn("blocking open: consecutive reject limit reached", "consecutive_rejects", m.consecutiveRejects)
		return false
	}
	if m.cfg.MinTopDepthQty > 0 {
		minDepth := decimal.NewFromFloat(m.cfg.MinTopDepthQty)
		if m.cexTopDepth.LessThan(minDepth) || m.dexTopDepth.LessThan(minDepth) {
			m.logger.Warn("blocking open: top-of-book depth too thin",
				"cex_depth", m.cexTopDepth.String(), "dex_depth", m.dexTopDepth.String(), "min_required", minDepth.String())
			return false
		}
	}
	return true
}
