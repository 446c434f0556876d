// Package feed normalizes per-venue WebSocket book deltas into
// market.PriceBoard updates, and triggers the strategy's signal check
// whenever the CEX feed — the sampling clock for this system — delivers a
// tick.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pingInterval     = 30 * time.Second
	readTimeout      = 90 * time.Second
	maxReconnectWait = 30 * time.Second
	writeTimeout     = 10 * time.Second
)

// wsConn is the reconnecting WebSocket primitive shared by every venue
// feed in this package — dial, subscribe, read-dispatch, ping, and
// exponential backoff on disconnect (1s → 30s).
type wsConn struct {
	url    string
	conn   *websocket.Conn
	connMu sync.Mutex
	logger *slog.Logger

	onConnect func(*wsConn) error
	onMessage func([]byte)
}

func newWSConn(url string, logger *slog.Logger, onConnect func(*wsConn) error, onMessage func([]byte)) *wsConn {
	return &wsConn{url: url, logger: logger, onConnect: onConnect, onMessage: onMessage}
}

// run connects and maintains the connection with auto-reconnect. Blocks
// until ctx is cancelled.
func (c *wsConn) run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := c.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("websocket disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

func (c *wsConn) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	defer func() {
		c.connMu.Lock()
		conn.Close()
		c.conn = nil
		c.connMu.Unlock()
	}()

	if c.onConnect != nil {
		if err := c.onConnect(c); err != nil {
			return fmt.Errorf("on-connect: %w", err)
		}
	}

	c.logger.Info("websocket connected", "url", c.url)

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go c.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		c.onMessage(msg)
	}
}

func (c *wsConn) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.writeMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (c *wsConn) writeJSON(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) writeMessage(msgType int, data []byte) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(msgType, data)
}

// Close gracefully closes the connection, if any.
func (c *wsConn) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
