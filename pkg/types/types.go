// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the executor — venues, sides,
// order book levels, strategy states, order slots, and the normalized wire
// shapes both venue adapters translate into. It has no dependencies on
// internal packages, so it can be imported by any layer.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents the direction of an order: BUY or SELL.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType enumerates the supported order lifecycles.
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// Venue identifies one of the two trading venues this executor straddles.
type Venue string

const (
	CEX Venue = "CEX" // centralized futures exchange, Binance-shaped
	DEX Venue = "DEX" // on-chain perpetuals venue, Hyperliquid-shaped
)

// Leg identifies which half of a two-leg cycle an order belongs to.
// Leg1 is always the DEX maker order, Leg2 is always the CEX taker order —
// see StrategyState and PriceBoard.NetSpread for why the roles are fixed.
type Leg int

const (
	Leg1 Leg = 1
	Leg2 Leg = 2
)

// StrategyState is one of the ten states of the two-leg open/close protocol.
type StrategyState string

const (
	OpenCondition     StrategyState = "OpenCondition"
	OpenLeg1Waiting   StrategyState = "OpenLeg1Waiting"
	OpenLeg1Canceling StrategyState = "OpenLeg1Canceling"
	OpenLeg2Waiting   StrategyState = "OpenLeg2Waiting"
	OpenLeg2Chasing   StrategyState = "OpenLeg2Chasing"
	CloseCondition    StrategyState = "CloseCondition"
	CloseLeg1Waiting  StrategyState = "CloseLeg1Waiting"
	CloseLeg1Canceling StrategyState = "CloseLeg1Canceling"
	CloseLeg2Waiting  StrategyState = "CloseLeg2Waiting"
	CloseLeg2Chasing  StrategyState = "CloseLeg2Chasing"
)

// FillKind normalizes venue-specific execution-report statuses into the
// three outcomes the strategy state machine cares about.
type FillKind string

const (
	AllTraded             FillKind = "ALL_TRADED"
	PartialFilledCanceled FillKind = "PARTIAL_FILLED_CANCELED"
	AllCanceled           FillKind = "ALL_CANCELED"
)

// ————————————————————————————————————————————————————————————————————————
// Symbols and fees
// ————————————————————————————————————————————————————————————————————————

// SymbolPair carries both venues' symbol identifiers together. Never infer
// one from the other — a CEX symbol like "BTCUSDT" and its DEX counterpart
// like "BTC" are related only by configuration, not by string transform.
type SymbolPair struct {
	CEX string
	DEX string
}

// FeeSchedule holds the maker/taker fee rates (as fractions, e.g. 0.0002 for
// 2bps) used by PriceBoard.NetSpread to compute fee-adjusted edges.
type FeeSchedule struct {
	CEXMaker decimal.Decimal
	CEXTaker decimal.Decimal
	DEXMaker decimal.Decimal
	DEXTaker decimal.Decimal
}

// SymbolInfo is the precision metadata for one venue's symbol: the minimum
// price increment, the minimum quantity increment, and the minimum
// notional value an order must clear.
type SymbolInfo struct {
	TickSize    decimal.Decimal
	LotSize     decimal.Decimal
	MinNotional decimal.Decimal
}

// ————————————————————————————————————————————————————————————————————————
// Order book
// ————————————————————————————————————————————————————————————————————————

// Level is a single immutable book level.
type Level struct {
	Price      decimal.Decimal
	Size       decimal.Decimal
	OrderCount int
}

// ————————————————————————————————————————————————————————————————————————
// Orders and execution
// ————————————————————————————————————————————————————————————————————————

// OrderRequest is what the strategy asks a TradeExecutor to place.
type OrderRequest struct {
	Venue       Venue
	Symbol      string
	Side        Side
	Type        OrderType
	Qty         decimal.Decimal
	Price       decimal.Decimal // zero for market orders
	QuoteAmount decimal.Decimal // optional, quote-denominated market orders
	ClientID    string
	Async       bool
}

// CancelRequest is what the strategy asks a TradeExecutor to cancel.
type CancelRequest struct {
	Venue     Venue
	Symbol    string
	OrderID   string
	ClientID  string
	OrderIDs  []string
	Async     bool
}

// ExecResult is the normalized response shape every venue adapter maps its
// place/cancel responses into.
type ExecResult struct {
	OK         bool
	Msg        string
	OrderID    string
	ClientID   string
	Status     string
	FilledQty  decimal.Decimal
	Retriable  bool // true only for transport/5xx failures, never venue rejects
}

// ActiveOrderSlot tracks a single in-flight order the strategy has placed
// and not yet seen resolve to a terminal fill state.
type ActiveOrderSlot struct {
	Venue        Venue
	Symbol       string
	Side         Side
	OrderID      string
	ClientID     string
	Price        decimal.Decimal
	QtyTotal     decimal.Decimal
	QtyFilled    decimal.Decimal
	PlacedAt     time.Time
	ChaseAttempt int
}

// Remaining returns the unfilled quantity still resting on the book.
func (s ActiveOrderSlot) Remaining() decimal.Decimal {
	return s.QtyTotal.Sub(s.QtyFilled)
}

// ————————————————————————————————————————————————————————————————————————
// User-stream events
// ————————————————————————————————————————————————————————————————————————

// FillEvent is the normalized shape both per-venue user-stream adapters
// translate their wire events into before handing them to the strategy.
type FillEvent struct {
	Venue     Venue
	OrderID   string
	ClientID  string
	Kind      FillKind
	FilledQty decimal.Decimal
	AvgPrice  decimal.Decimal
	Timestamp time.Time
}

// ————————————————————————————————————————————————————————————————————————
// CEX wire shapes (Binance-shaped)
// ————————————————————————————————————————————————————————————————————————

// CEXDepthUpdate is a diff-depth event from the CEX market WebSocket.
type CEXDepthUpdate struct {
	EventType     string     `json:"e"`
	EventTime     int64      `json:"E"`
	Symbol        string     `json:"s"`
	FirstUpdateID int64      `json:"U"`
	FinalUpdateID int64      `json:"u"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

// CEXBookTicker is the wire shape of a best-bid/ask-only push. The CEX feed
// does not subscribe to it; the book is built from depth updates only.
type CEXBookTicker struct {
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

// CEXExecutionReport is a user-data-stream order lifecycle event.
type CEXExecutionReport struct {
	EventType       string `json:"e"`
	EventTime       int64  `json:"E"`
	Symbol          string `json:"s"`
	ClientOrderID   string `json:"c"`
	Side            string `json:"S"`
	OrderType       string `json:"o"`
	OrderStatus     string `json:"X"` // NEW, PARTIALLY_FILLED, FILLED, CANCELED, EXPIRED, REJECTED
	OrderID         int64  `json:"i"`
	LastFilledQty   string `json:"l"`
	FilledQty       string `json:"z"`
	LastFilledPrice string `json:"L"`
}

// CEXListenKeyResponse is the REST response when creating/renewing a
// user-data-stream listen key.
type CEXListenKeyResponse struct {
	ListenKey string `json:"listenKey"`
}

// CEXOrderResponse is the REST response from placing an order.
type CEXOrderResponse struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Status        string `json:"status"`
	ExecutedQty   string `json:"executedQty"`
}

// ————————————————————————————————————————————————————————————————————————
// DEX wire shapes (Hyperliquid-shaped)
// ————————————————————————————————————————————————————————————————————————

// DEXL2Level is a single level in a Hyperliquid-shaped L2 book push.
type DEXL2Level struct {
	Price string `json:"px"`
	Size  string `json:"sz"`
	N     int    `json:"n"`
}

// DEXL2BookEvent is a full L2 book snapshot pushed over the DEX WS feed.
type DEXL2BookEvent struct {
	Coin   string         `json:"coin"`
	Levels [2][]DEXL2Level `json:"levels"` // [0]=bids, [1]=asks
	Time   int64          `json:"time"`
}

// DEXOrderUpdate is a user-event fill/cancel notification from the DEX.
type DEXOrderUpdate struct {
	Coin      string `json:"coin"`
	OID       int64  `json:"oid"`
	ClientID  string `json:"cloid"`
	Side      string `json:"side"` // "B" or "A"
	Status    string `json:"status"`
	FilledSz  string `json:"filledSz"`
	AvgPx     string `json:"avgPx"`
}

// DEXOrderResponse is the REST response from placing a DEX order.
type DEXOrderResponse struct {
	OID      int64  `json:"oid"`
	ClientID string `json:"cloid"`
	Status   string `json:"status"` // "resting", "filled", "error"
	Err      string `json:"err,omitempty"`
}

// Position is a venue-agnostic snapshot of a single symbol's net position,
// as queried once at startup by the reconciler. Qty is signed: positive is
// long, negative is short, zero is flat.
type Position struct {
	Symbol string
	Qty    decimal.Decimal
}
