package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"cexdexarb/internal/config"
)

// CEXAuth signs CEX (Binance-shaped) REST requests with HMAC-SHA256 over
// the query string, and tracks the user-data-stream listen key lifecycle.
type CEXAuth struct {
	apiKey    string
	apiSecret string
}

// NewCEXAuth builds a CEXAuth from config.
func NewCEXAuth(cfg config.CEXConfig) *CEXAuth {
	return &CEXAuth{apiKey: cfg.APIKey, apiSecret: cfg.APISecret}
}

// APIKeyHeader returns the header name/value pair identifying the caller.
func (a *CEXAuth) APIKeyHeader() (string, string) {
	return "X-ARBX-APIKEY", a.apiKey
}

// Sign computes the HMAC-SHA256 signature over a request's query string,
// the way Binance-shaped venues require for signed endpoints.
func (a *CEXAuth) Sign(queryString string) string {
	mac := hmac.New(sha256.New, []byte(a.apiSecret))
	mac.Write([]byte(queryString))
	return hex.EncodeToString(mac.Sum(nil))
}

// Timestamp returns the current unix millis, as the venue's signed
// endpoints expect in the query string.
func (a *CEXAuth) Timestamp() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// ListenKeyLifecycle tracks a user-data-stream listen key and when it must
// next be refreshed. The venue expires listen keys after 60 minutes of no
// keep-alive; this repo refreshes every 30 minutes to stay well clear of
// that deadline.
type ListenKeyLifecycle struct {
	Key       string
	RenewedAt time.Time
}

// NeedsRenewal reports whether the key should be refreshed now.
func (l *ListenKeyLifecycle) NeedsRenewal() bool {
	if l.Key == "" {
		return true
	}
	return time.Since(l.RenewedAt) >= 30*time.Minute
}

// Renew records a successful keep-alive/create call.
func (l *ListenKeyLifecycle) Renew(key string) {
	if key != "" {
		l.Key = key
	}
	l.RenewedAt = time.Now()
}

// validateListenKey is a defensive guard against an empty key slipping
// into a WS subscription URL.
func validateListenKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty listen key")
	}
	return nil
}
