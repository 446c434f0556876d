package exchange

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"cexdexarb/internal/config"
	"cexdexarb/pkg/types"
)

// DEXClient is the REST client for the on-chain perpetuals venue.
type DEXClient struct {
	http   *resty.Client
	auth   *DEXAuth
	rl     *RateLimiter
	dryRun bool
	logger *slog.Logger
}

// NewDEXClient creates a rate-limited REST client for the DEX.
func NewDEXClient(cfg config.Config, auth *DEXAuth, logger *slog.Logger) *DEXClient {
	httpClient := resty.New().
		SetBaseURL(cfg.DEX.RESTBaseURL).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json")

	return &DEXClient{
		http:   httpClient,
		auth:   auth,
		rl:     NewDEXRateLimiter(),
		dryRun: cfg.DryRun,
		logger: logger,
	}
}

// GetSymbolInfo fetches precision metadata for a DEX symbol.
func (c *DEXClient) GetSymbolInfo(ctx context.Context, symbol string) (types.SymbolInfo, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return types.SymbolInfo{}, err
	}

	var result struct {
		SzDecimals int `json:"szDecimals"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"type": "meta"}).
		SetResult(&result).
		Post("/info")
	if err != nil {
		return types.SymbolInfo{}, fmt.Errorf("get dex meta: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.SymbolInfo{}, fmt.Errorf("get dex meta: status %d: %s", resp.StatusCode(), resp.String())
	}

	lot := decimal.New(1, int32(-result.SzDecimals))
	return types.SymbolInfo{
		TickSize:    decimal.RequireFromString("0.1"),
		LotSize:     lot,
		MinNotional: decimal.Zero,
	}, nil
}

// GetPosition fetches the signed net position for a coin from the wallet's
// clearinghouse state, used by the startup reconciler to decide the initial
// strategy state.
func (c *DEXClient) GetPosition(ctx context.Context, coin string) (types.Position, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return types.Position{}, err
	}

	var result struct {
		AssetPositions []struct {
			Position struct {
				Coin string `json:"coin"`
				Szi  string `json:"szi"`
			} `json:"position"`
		} `json:"assetPositions"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"type": "clearinghouseState", "user": c.auth.Address().Hex()}).
		SetResult(&result).
		Post("/info")
	if err != nil {
		return types.Position{}, fmt.Errorf("get dex position: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.Position{}, fmt.Errorf("get dex position: status %d: %s", resp.StatusCode(), resp.String())
	}

	for _, ap := range result.AssetPositions {
		if ap.Position.Coin == coin {
			qty, err := decimal.NewFromString(orDefault(ap.Position.Szi, "0"))
			if err != nil {
				return types.Position{}, fmt.Errorf("parse dex position szi: %w", err)
			}
			return types.Position{Symbol: coin, Qty: qty}, nil
		}
	}
	return types.Position{Symbol: coin, Qty: decimal.Zero}, nil
}

// dexOrderAction is the wire payload for a Hyperliquid-shaped order action.
type dexOrderAction struct {
	Type   string `json:"type"`
	Coin   string `json:"coin"`
	IsBuy  bool   `json:"isBuy"`
	Price  string `json:"px"`
	Size   string `json:"sz"`
	Cloid  string `json:"cloid,omitempty"`
	Market bool   `json:"market,omitempty"`
}

func hashAction(action dexOrderAction, nonce int64) [32]byte {
	body, _ := json.Marshal(struct {
		Action dexOrderAction `json:"action"`
		Nonce  int64          `json:"nonce"`
	}{Action: action, Nonce: nonce})
	return sha256.Sum256(body)
}

// PlaceOrder places a single order on the DEX.
func (c *DEXClient) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.ExecResult, error) {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would place dex order", "symbol", req.Symbol, "side", req.Side, "price", req.Price, "qty", req.Qty)
		return types.ExecResult{OK: true, OrderID: "dry-run-dex", ClientID: req.ClientID, Status: "resting"}, nil
	}
	if err := c.rl.Order.Wait(ctx); err != nil {
		return types.ExecResult{}, err
	}

	action := dexOrderAction{
		Type:   "order",
		Coin:   req.Symbol,
		IsBuy:  req.Side == types.Buy,
		Price:  req.Price.String(),
		Size:   req.Qty.String(),
		Cloid:  req.ClientID,
		Market: req.Type == types.OrderTypeMarket,
	}
	nonce := time.Now().UnixMilli()
	hash := hashAction(action, nonce)

	r, s, v, err := c.auth.SignOrder(hash)
	if err != nil {
		return types.ExecResult{}, fmt.Errorf("sign dex order: %w", err)
	}

	payload := map[string]any{
		"action": action,
		"nonce":  nonce,
		"signature": map[string]string{
			"r": fmt.Sprintf("%x", r),
			"s": fmt.Sprintf("%x", s),
			"v": fmt.Sprintf("%d", v),
		},
	}

	var result types.DEXOrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		Post("/exchange")
	if err != nil {
		return types.ExecResult{Retriable: true}, fmt.Errorf("place dex order: %w", err)
	}
	if resp.StatusCode() >= 500 {
		return types.ExecResult{Retriable: true}, fmt.Errorf("place dex order: status %d: %s", resp.StatusCode(), resp.String())
	}
	if resp.StatusCode() != http.StatusOK || result.Status == "error" {
		return types.ExecResult{OK: false, Msg: result.Err}, nil
	}

	return types.ExecResult{
		OK:       true,
		OrderID:  fmt.Sprintf("%d", result.OID),
		ClientID: result.ClientID,
		Status:   result.Status,
	}, nil
}

// CancelOrder cancels one DEX order by order ID or client ID.
func (c *DEXClient) CancelOrder(ctx context.Context, req types.CancelRequest) (types.ExecResult, error) {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would cancel dex order", "order_id", req.OrderID, "client_id", req.ClientID)
		return types.ExecResult{OK: true, OrderID: req.OrderID}, nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return types.ExecResult{}, err
	}

	action := map[string]any{
		"type":   "cancel",
		"coin":   req.Symbol,
		"oid":    req.OrderID,
		"cloid":  req.ClientID,
	}
	nonce := time.Now().UnixMilli()
	body, _ := json.Marshal(struct {
		Action any   `json:"action"`
		Nonce  int64 `json:"nonce"`
	}{Action: action, Nonce: nonce})
	hash := sha256.Sum256(body)

	r, s, v, err := c.auth.SignOrder(hash)
	if err != nil {
		return types.ExecResult{}, fmt.Errorf("sign dex cancel: %w", err)
	}

	payload := map[string]any{
		"action": action,
		"nonce":  nonce,
		"signature": map[string]string{
			"r": fmt.Sprintf("%x", r),
			"s": fmt.Sprintf("%x", s),
			"v": fmt.Sprintf("%d", v),
		},
	}

	var result types.DEXOrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		Post("/exchange")
	if err != nil {
		return types.ExecResult{Retriable: true}, fmt.Errorf("cancel dex order: %w", err)
	}
	if resp.StatusCode() >= 500 {
		return types.ExecResult{Retriable: true}, fmt.Errorf("cancel dex order: status %d: %s", resp.StatusCode(), resp.String())
	}
	if resp.StatusCode() != http.StatusOK || result.Status == "error" {
		return types.ExecResult{OK: false, Msg: result.Err}, nil
	}

	return types.ExecResult{OK: true, OrderID: req.OrderID, Status: result.Status}, nil
}
