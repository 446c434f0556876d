// Package exchange implements the CEX (Binance-shaped) and DEX
// (Hyperliquid-shaped) REST clients, unified behind the TradeExecutor
// interface so the strategy layer never has to branch on venue.
//
// Every request is rate-limited via per-category TokenBuckets and signed per
// venue (HMAC for CEX, EIP-712 for DEX). The clients never retry a request
// themselves; a failed call is returned to the caller as-is.
package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"cexdexarb/internal/config"
	"cexdexarb/pkg/types"
)

// CEXClient is the REST client for the centralized futures exchange.
type CEXClient struct {
	http      *resty.Client
	auth      *CEXAuth
	rl        *RateLimiter
	dryRun    bool
	logger    *slog.Logger
	listenKey ListenKeyLifecycle
}

// NewCEXClient creates a rate-limited REST client for the CEX.
func NewCEXClient(cfg config.Config, auth *CEXAuth, logger *slog.Logger) *CEXClient {
	httpClient := resty.New().
		SetBaseURL(cfg.CEX.RESTBaseURL).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json")

	return &CEXClient{
		http:   httpClient,
		auth:   auth,
		rl:     NewCEXRateLimiter(),
		dryRun: cfg.DryRun,
		logger: logger,
	}
}

// GetSymbolInfo fetches the exchange filter (tick/lot/min-notional) for a symbol.
func (c *CEXClient) GetSymbolInfo(ctx context.Context, symbol string) (types.SymbolInfo, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return types.SymbolInfo{}, err
	}

	var result struct {
		TickSize    string `json:"tickSize"`
		LotSize     string `json:"lotSize"`
		MinNotional string `json:"minNotional"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetResult(&result).
		Get("/exchangeInfo")
	if err != nil {
		return types.SymbolInfo{}, fmt.Errorf("get cex exchange info: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.SymbolInfo{}, fmt.Errorf("get cex exchange info: status %d: %s", resp.StatusCode(), resp.String())
	}

	return types.SymbolInfo{
		TickSize:    decimal.RequireFromString(orDefault(result.TickSize, "0.01")),
		LotSize:     decimal.RequireFromString(orDefault(result.LotSize, "0.001")),
		MinNotional: decimal.RequireFromString(orDefault(result.MinNotional, "0")),
	}, nil
}

// GetPosition fetches the signed net position for a symbol, used by the
// startup reconciler to decide the initial strategy state.
func (c *CEXClient) GetPosition(ctx context.Context, symbol string) (types.Position, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return types.Position{}, err
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("timestamp", c.auth.Timestamp())
	queryString := q.Encode()
	sig := c.auth.Sign(queryString)
	headerName, headerValue := c.auth.APIKeyHeader()

	var result []struct {
		Symbol      string `json:"symbol"`
		PositionAmt string `json:"positionAmt"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(headerName, headerValue).
		SetQueryString(queryString + "&signature=" + sig).
		SetResult(&result).
		Get("/positionRisk")
	if err != nil {
		return types.Position{}, fmt.Errorf("get cex position: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.Position{}, fmt.Errorf("get cex position: status %d: %s", resp.StatusCode(), resp.String())
	}

	for _, p := range result {
		if p.Symbol == symbol {
			qty, err := decimal.NewFromString(orDefault(p.PositionAmt, "0"))
			if err != nil {
				return types.Position{}, fmt.Errorf("parse cex position amt: %w", err)
			}
			return types.Position{Symbol: symbol, Qty: qty}, nil
		}
	}
	return types.Position{Symbol: symbol, Qty: decimal.Zero}, nil
}

// PlaceOrder places a single order on the CEX.
func (c *CEXClient) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.ExecResult, error) {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would place cex order", "symbol", req.Symbol, "side", req.Side, "price", req.Price, "qty", req.Qty)
		return types.ExecResult{OK: true, OrderID: "dry-run-cex", ClientID: req.ClientID, Status: "NEW"}, nil
	}
	if err := c.rl.Order.Wait(ctx); err != nil {
		return types.ExecResult{}, err
	}

	q := url.Values{}
	q.Set("symbol", req.Symbol)
	q.Set("side", string(req.Side))
	q.Set("quantity", req.Qty.String())
	if req.Type == types.OrderTypeLimit {
		q.Set("type", "LIMIT")
		q.Set("price", req.Price.String())
		q.Set("timeInForce", "GTC")
	} else {
		q.Set("type", "MARKET")
	}
	if req.ClientID != "" {
		q.Set("newClientOrderId", req.ClientID)
	}
	q.Set("timestamp", c.auth.Timestamp())

	queryString := q.Encode()
	sig := c.auth.Sign(queryString)
	headerName, headerValue := c.auth.APIKeyHeader()

	var result types.CEXOrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(headerName, headerValue).
		SetQueryString(queryString + "&signature=" + sig).
		SetResult(&result).
		Post("/order")
	if err != nil {
		return types.ExecResult{Retriable: true}, fmt.Errorf("place cex order: %w", err)
	}
	if resp.StatusCode() >= 500 {
		return types.ExecResult{Retriable: true}, fmt.Errorf("place cex order: status %d: %s", resp.StatusCode(), resp.String())
	}
	if resp.StatusCode() != http.StatusOK {
		return types.ExecResult{OK: false, Msg: resp.String(), Retriable: false}, nil
	}

	return types.ExecResult{
		OK:        true,
		OrderID:   fmt.Sprintf("%d", result.OrderID),
		ClientID:  result.ClientOrderID,
		Status:    result.Status,
		FilledQty: decimal.RequireFromString(orDefault(result.ExecutedQty, "0")),
	}, nil
}

// CancelOrder cancels one CEX order by order ID or client ID.
func (c *CEXClient) CancelOrder(ctx context.Context, req types.CancelRequest) (types.ExecResult, error) {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would cancel cex order", "order_id", req.OrderID, "client_id", req.ClientID)
		return types.ExecResult{OK: true, OrderID: req.OrderID}, nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return types.ExecResult{}, err
	}

	q := url.Values{}
	q.Set("symbol", req.Symbol)
	if req.OrderID != "" {
		q.Set("orderId", req.OrderID)
	}
	if req.ClientID != "" {
		q.Set("origClientOrderId", req.ClientID)
	}
	q.Set("timestamp", c.auth.Timestamp())

	queryString := q.Encode()
	sig := c.auth.Sign(queryString)
	headerName, headerValue := c.auth.APIKeyHeader()

	var result types.CEXOrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(headerName, headerValue).
		SetQueryString(queryString + "&signature=" + sig).
		SetResult(&result).
		Delete("/order")
	if err != nil {
		return types.ExecResult{Retriable: true}, fmt.Errorf("cancel cex order: %w", err)
	}
	if resp.StatusCode() >= 500 {
		return types.ExecResult{Retriable: true}, fmt.Errorf("cancel cex order: status %d: %s", resp.StatusCode(), resp.String())
	}
	if resp.StatusCode() != http.StatusOK {
		return types.ExecResult{OK: false, Msg: resp.String()}, nil
	}

	return types.ExecResult{OK: true, OrderID: fmt.Sprintf("%d", result.OrderID), Status: result.Status}, nil
}

// EnsureListenKey creates or renews the user-data-stream listen key,
// refreshing every 30 minutes — well inside the venue's 60-minute expiry.
func (c *CEXClient) EnsureListenKey(ctx context.Context) (string, error) {
	if !c.listenKey.NeedsRenewal() {
		return c.listenKey.Key, nil
	}

	headerName, headerValue := c.auth.APIKeyHeader()
	var result types.CEXListenKeyResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(headerName, headerValue).
		SetResult(&result).
		Post("/userDataStream")
	if err != nil {
		return "", fmt.Errorf("create listen key: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("create listen key: status %d: %s", resp.StatusCode(), resp.String())
	}

	if err := validateListenKey(result.ListenKey); err != nil {
		return "", err
	}
	c.listenKey.Renew(result.ListenKey)
	return c.listenKey.Key, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
