package feed

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shopspring/decimal"

	"cexdexarb/internal/market"
	"cexdexarb/pkg/types"
)

// DEXMarketFeed subscribes to the DEX L2 book stream for one symbol. DEX
// book updates are applied silently — they update the PriceBoard but never
// trigger a signal check; only the CEX feed samples.
type DEXMarketFeed struct {
	conn   *wsConn
	symbol string
	book   *market.L2Book
	board  *market.PriceBoard
	logger *slog.Logger
}

// NewDEXMarketFeed creates a DEX market-data feed.
func NewDEXMarketFeed(wsURL, symbol string, book *market.L2Book, board *market.PriceBoard, logger *slog.Logger) *DEXMarketFeed {
	f := &DEXMarketFeed{symbol: symbol, book: book, board: board, logger: logger.With("component", "feed.dex")}
	f.conn = newWSConn(wsURL, f.logger, f.onConnect, f.onMessage)
	return f
}

// Run blocks, maintaining the feed connection until ctx is cancelled.
func (f *DEXMarketFeed) Run(ctx context.Context) error {
	return f.conn.run(ctx)
}

// Close closes the underlying connection.
func (f *DEXMarketFeed) Close() error { return f.conn.Close() }

func (f *DEXMarketFeed) onConnect(c *wsConn) error {
	return c.writeJSON(map[string]any{
		"method": "subscribe",
		"subscription": map[string]string{
			"type": "l2Book",
			"coin": f.symbol,
		},
	})
}

func (f *DEXMarketFeed) onMessage(data []byte) {
	var envelope struct {
		Channel string                `json:"channel"`
		Data    types.DEXL2BookEvent `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		f.logger.Debug("ignoring non-book ws message", "data", string(data))
		return
	}
	if envelope.Channel != "l2Book" {
		return
	}

	evt := envelope.Data
	if len(evt.Levels) != 2 {
		return
	}

	bids := convertDEXLevels(evt.Levels[0])
	asks := convertDEXLevels(evt.Levels[1])
	f.book.ReplaceSnapshot(bids, asks, uint64(evt.Time))

	bestBid, bidOK := f.book.BestBid()
	bestAsk, askOK := f.book.BestAsk()
	if !bidOK || !askOK {
		return
	}

	f.board.Update(types.DEX, bestBid.Price, bestAsk.Price)
}

func convertDEXLevels(raw []types.DEXL2Level) []types.Level {
	out := make([]types.Level, 0, len(raw))
	for _, entry := range raw {
		price, err := decimal.NewFromString(entry.Price)
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(entry.Size)
		if err != nil {
			continue
		}
		out = append(out, types.Level{Price: price, Size: size, OrderCount: entry.N})
	}
	return out
}
