package exchange

import (
	"testing"
	"time"

	"cexdexarb/internal/config"
)

func TestCEXAuthSignIsDeterministic(t *testing.T) {
	t.Parallel()
	a := NewCEXAuth(config.CEXConfig{APIKey: "key", APISecret: "secret"})

	sig1 := a.Sign("symbol=BTCUSDT&side=BUY&timestamp=1")
	sig2 := a.Sign("symbol=BTCUSDT&side=BUY&timestamp=1")
	if sig1 != sig2 {
		t.Errorf("Sign is not deterministic: %s != %s", sig1, sig2)
	}

	sig3 := a.Sign("symbol=BTCUSDT&side=SELL&timestamp=1")
	if sig1 == sig3 {
		t.Error("Sign should differ for different query strings")
	}
}

func TestCEXAuthAPIKeyHeader(t *testing.T) {
	t.Parallel()
	a := NewCEXAuth(config.CEXConfig{APIKey: "mykey", APISecret: "s"})
	name, value := a.APIKeyHeader()
	if name == "" || value != "mykey" {
		t.Errorf("APIKeyHeader() = (%q, %q)", name, value)
	}
}

func TestListenKeyLifecycleNeedsRenewal(t *testing.T) {
	t.Parallel()

	l := &ListenKeyLifecycle{}
	if !l.NeedsRenewal() {
		t.Error("empty listen key should need renewal")
	}

	l.Renew("abc")
	if l.NeedsRenewal() {
		t.Error("freshly renewed key should not need renewal")
	}

	l.RenewedAt = time.Now().Add(-31 * time.Minute)
	if !l.NeedsRenewal() {
		t.Error("key older than 30 minutes should need renewal")
	}
}

func TestValidateListenKey(t *testing.T) {
	t.Parallel()
	if err := validateListenKey(""); err == nil {
		t.Error("expected error for empty listen key")
	}
	if err := validateListenKey("abc"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
