// Package metrics exposes Prometheus counters and gauges for the
// arbitrage executor, registered in init() and served by the HTTP handler
// started in cmd/executor/main.go at /metrics — the same registration and
// serving shape the pack's Prometheus-instrumented bot uses, since the
// teacher itself carries no metrics library.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

var (
	cyclesCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbx_cycles_completed_total",
			Help: "Completed open/close cycles.",
		},
		[]string{"direction"}, // open|close
	)

	placementRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbx_placement_rejected_total",
			Help: "Order placements rejected by the executor, by leg.",
		},
		[]string{"leg"}, // leg1|leg2
	)

	ordersChased = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbx_orders_chased_total",
			Help: "Leg2 re-placements at a refreshed price after a chase-triggering event.",
		},
		[]string{"leg"},
	)

	ordersMarketFallback = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "arbx_orders_market_fallback_total",
			Help: "Leg2 market-order fallbacks after exhausting chase attempts.",
		},
	)

	cancelsIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbx_cancels_issued_total",
			Help: "Cancel requests issued for a timed-out leg.",
		},
		[]string{"leg"},
	)

	heldQty = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "arbx_held_qty",
			Help: "Net base-asset quantity currently held across both legs.",
		},
	)

	openEdge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "arbx_open_edge",
			Help: "Current fee-adjusted open edge (dex_bid*(1-dex_maker) - cex_ask*(1+cex_taker)).",
		},
	)

	closeEdge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "arbx_close_edge",
			Help: "Current fee-adjusted close edge (cex_bid*(1-cex_maker) - dex_ask*(1+dex_taker)).",
		},
	)

	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbx_state_transitions_total",
			Help: "Strategy state machine transitions, by destination state.",
		},
		[]string{"state"},
	)
)

func init() {
	prometheus.MustRegister(
		cyclesCompleted, placementRejected, ordersChased, ordersMarketFallback,
		cancelsIssued, heldQty, openEdge, closeEdge, stateTransitions,
	)
}

// IncCycleCompleted records one completed cycle, labeled open or close.
func IncCycleCompleted(opened bool) {
	if opened {
		cyclesCompleted.WithLabelValues("open").Inc()
		return
	}
	cyclesCompleted.WithLabelValues("close").Inc()
}

// IncPlacementRejected records one rejected placement for the given leg.
func IncPlacementRejected(leg string) { placementRejected.WithLabelValues(leg).Inc() }

// IncOrderChased records one limit repost at a refreshed price.
func IncOrderChased(leg string) { ordersChased.WithLabelValues(leg).Inc() }

// IncMarketFallback records one market-order fallback after exhausting chases.
func IncMarketFallback() { ordersMarketFallback.Inc() }

// IncCancelIssued records one cancel request issued for a timed-out leg.
func IncCancelIssued(leg string) { cancelsIssued.WithLabelValues(leg).Inc() }

// SetHeldQty reports the current net held quantity.
func SetHeldQty(qty decimal.Decimal) { heldQty.Set(qty.InexactFloat64()) }

// SetEdges reports the current fee-adjusted open/close edges.
func SetEdges(open, close decimal.Decimal) {
	openEdge.Set(open.InexactFloat64())
	closeEdge.Set(close.InexactFloat64())
}

// IncStateTransition records a transition into the given state.
func IncStateTransition(state string) { stateTransitions.WithLabelValues(state).Inc() }
