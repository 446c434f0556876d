package feed

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shopspring/decimal"

	"cexdexarb/internal/market"
	"cexdexarb/pkg/types"
)

// CEXMarketFeed subscribes to the CEX diff-depth stream for one symbol and
// applies every delta to both an L2Book mirror and the shared PriceBoard.
// It is the sampling clock for the strategy: every applied delta calls
// SignalCheck after the PriceBoard update completes.
type CEXMarketFeed struct {
	conn   *wsConn
	symbol string
	book   *market.L2Book
	board  *market.PriceBoard
	logger *slog.Logger

	// SignalCheck is invoked after every CEX book update. Set by the
	// engine before Run is called.
	SignalCheck func()
}

// NewCEXMarketFeed creates a CEX market-data feed.
func NewCEXMarketFeed(wsURL, symbol string, book *market.L2Book, board *market.PriceBoard, logger *slog.Logger) *CEXMarketFeed {
	f := &CEXMarketFeed{symbol: symbol, book: book, board: board, logger: logger.With("component", "feed.cex")}
	f.conn = newWSConn(wsURL, f.logger, f.onConnect, f.onMessage)
	return f
}

// Run blocks, maintaining the feed connection until ctx is cancelled.
func (f *CEXMarketFeed) Run(ctx context.Context) error {
	return f.conn.run(ctx)
}

// Close closes the underlying connection.
func (f *CEXMarketFeed) Close() error { return f.conn.Close() }

func (f *CEXMarketFeed) onConnect(c *wsConn) error {
	return c.writeJSON(map[string]any{
		"method": "SUBSCRIBE",
		"params": []string{f.symbol + "@depth@100ms"},
		"id":     1,
	})
}

func (f *CEXMarketFeed) onMessage(data []byte) {
	var evt types.CEXDepthUpdate
	if err := json.Unmarshal(data, &evt); err != nil {
		f.logger.Debug("ignoring non-depth ws message", "data", string(data))
		return
	}
	if evt.EventType != "depthUpdate" {
		return
	}

	bids := parseLevels(evt.Bids)
	asks := parseLevels(evt.Asks)
	f.book.ApplyDelta(bids, asks, uint64(evt.FinalUpdateID))

	bestBid, bidOK := f.book.BestBid()
	bestAsk, askOK := f.book.BestAsk()
	if !bidOK || !askOK {
		return
	}

	f.board.Update(types.CEX, bestBid.Price, bestAsk.Price)

	if f.SignalCheck != nil {
		f.SignalCheck()
	}
}

func parseLevels(raw [][]string) []types.Level {
	out := make([]types.Level, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 2 {
			continue
		}
		price, err := decimal.NewFromString(entry[0])
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(entry[1])
		if err != nil {
			continue
		}
		out = append(out, types.Level{Price: price, Size: size})
	}
	return out
}
