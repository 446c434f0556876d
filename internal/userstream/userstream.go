// Package userstream implements the user-stream adapter: it
// normalizes each venue's order lifecycle events into the three outcomes
// the strategy state machine cares about — ALL_TRADED,
// PARTIAL_FILLED_CANCELED, ALL_CANCELED — correlated by order ID against
// the strategy's current active slot.
package userstream

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"cexdexarb/pkg/types"
)

// Adapter wraps one venue's authenticated WebSocket connection and emits
// normalized FillEvents on Events().
type Adapter struct {
	venue  types.Venue
	url    string
	logger *slog.Logger
	events chan types.FillEvent

	dialFunc func(ctx context.Context, url string) (*websocket.Conn, error)

	// onConnect, if non-nil, runs right after each successful dial. Only
	// the DEX adapter sets it, to subscribe by wallet address; the CEX
	// adapter carries its listen key in the URL instead.
	onConnect func(*websocket.Conn) error
}

// NewCEXUserStream builds a user-stream adapter for the CEX, using an
// already-active listen key as the subscription URL suffix.
func NewCEXUserStream(baseURL, listenKey string, logger *slog.Logger) *Adapter {
	return &Adapter{
		venue:  types.CEX,
		url:    baseURL + "/" + listenKey,
		logger: logger.With("component", "userstream.cex"),
		events: make(chan types.FillEvent, 64),
	}
}

// NewDEXUserStream builds a user-stream adapter for the DEX, subscribing by
// wallet address once connected.
func NewDEXUserStream(wsURL, walletAddr string, logger *slog.Logger) *Adapter {
	a := &Adapter{
		venue:  types.DEX,
		url:    wsURL,
		logger: logger.With("component", "userstream.dex"),
		events: make(chan types.FillEvent, 64),
	}
	a.onConnect = func(conn *websocket.Conn) error {
		return conn.WriteJSON(map[string]any{
			"method": "subscribe",
			"subscription": map[string]string{
				"type": "userEvents",
				"user": walletAddr,
			},
		})
	}
	return a
}

// Events returns the channel of normalized fill events.
func (a *Adapter) Events() <-chan types.FillEvent { return a.events }

// Run dials, subscribes, and dispatches messages until ctx is cancelled.
// After an established connection drops it redials at once and resets its
// backoff; failed dials back off 1, 2, 4, 8, 16, then 30 seconds.
func (a *Adapter) Run(ctx context.Context) error {
	dial := a.dialFunc
	if dial == nil {
		dial = func(ctx context.Context, url string) (*websocket.Conn, error) {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			return conn, err
		}
	}

	backoffSteps := []int{1, 2, 4, 8, 16, 30}
	step := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, err := dial(ctx, a.url)
		if err != nil {
			a.logger.Warn("user stream dial failed", "error", err)
		} else {
			if a.onConnect != nil {
				if err := a.onConnect(conn); err != nil {
					a.logger.Warn("user stream subscribe failed", "error", err)
				}
			}
			a.readLoop(ctx, conn)
			conn.Close()
			step = 0
			continue
		}

		wait := backoffSteps[step]
		if step < len(backoffSteps)-1 {
			step++
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(wait) * time.Second):
		}
	}
}

func (a *Adapter) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			a.logger.Warn("user stream read error, reconnecting", "error", err)
			return
		}
		a.dispatch(msg)
	}
}

func (a *Adapter) dispatch(data []byte) {
	switch a.venue {
	case types.CEX:
		a.dispatchCEX(data)
	case types.DEX:
		a.dispatchDEX(data)
	}
}

func (a *Adapter) dispatchCEX(data []byte) {
	var evt types.CEXExecutionReport
	if err := json.Unmarshal(data, &evt); err != nil || evt.EventType != "executionReport" {
		return
	}

	filled, _ := decimal.NewFromString(evt.FilledQty)
	avgPrice, _ := decimal.NewFromString(evt.LastFilledPrice)

	kind, ok := cexFillKind(evt.OrderStatus, filled)
	if !ok {
		return
	}

	select {
	case a.events <- types.FillEvent{
		Venue:     types.CEX,
		OrderID:   itoa(evt.OrderID),
		ClientID:  evt.ClientOrderID,
		Kind:      kind,
		FilledQty: filled,
		AvgPrice:  avgPrice,
	}:
	default:
		a.logger.Warn("fill event channel full, dropping cex event", "order_id", evt.OrderID)
	}
}

func (a *Adapter) dispatchDEX(data []byte) {
	var envelope struct {
		Channel string                 `json:"channel"`
		Data    types.DEXOrderUpdate `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Channel != "userEvents" {
		return
	}
	evt := envelope.Data

	filled, _ := decimal.NewFromString(evt.FilledSz)
	avgPrice, _ := decimal.NewFromString(evt.AvgPx)

	kind, ok := dexFillKind(evt.Status, filled)
	if !ok {
		return
	}

	select {
	case a.events <- types.FillEvent{
		Venue:     types.DEX,
		OrderID:   itoa(evt.OID),
		ClientID:  evt.ClientID,
		Kind:      kind,
		FilledQty: filled,
		AvgPrice:  avgPrice,
	}:
	default:
		a.logger.Warn("fill event channel full, dropping dex event", "oid", evt.OID)
	}
}

// cexFillKind classifies a terminal order-status event. Filled qty tells a
// partial-fill-then-cancel apart from a clean cancel with nothing filled.
func cexFillKind(status string, filledQty decimal.Decimal) (types.FillKind, bool) {
	switch status {
	case "FILLED":
		return types.AllTraded, true
	case "CANCELED", "EXPIRED":
		if filledQty.IsPositive() {
			return types.PartialFilledCanceled, true
		}
		return types.AllCanceled, true
	case "PARTIALLY_FILLED":
		// A partial fill alone isn't terminal — the strategy tracks running
		// filled qty from the slot and only needs the terminal events.
		return "", false
	default:
		return "", false
	}
}

// dexFillKind classifies a terminal order-status event. Filled qty tells a
// partial-fill-then-cancel apart from a clean cancel with nothing filled.
func dexFillKind(status string, filledQty decimal.Decimal) (types.FillKind, bool) {
	switch status {
	case "filled":
		return types.AllTraded, true
	case "canceled":
		if filledQty.IsPositive() {
			return types.PartialFilledCanceled, true
		}
		return types.AllCanceled, true
	default:
		return "", false
	}
}

func itoa(v int64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatInt(v, 10)
}
