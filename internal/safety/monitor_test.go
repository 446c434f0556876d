package safety

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cexdexarb/internal/config"
	"cexdexarb/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAllowOpenDefaultTrue(t *testing.T) {
	t.Parallel()

	m := NewMonitor(config.SafetyConfig{}, testLogger())
	if !m.AllowOpen() {
		t.Error("AllowOpen() = false, want true with zero-value config (no limits configured)")
	}
}

func TestAllowOpenBlockedByHeldNotional(t *testing.T) {
	t.Parallel()

	m := NewMonitor(config.SafetyConfig{MaxHeldNotional: 1000}, testLogger())
	m.RecordHeldNotional(decimal.NewFromInt(2000))
	if m.AllowOpen() {
		t.Error("AllowOpen() = true, want false when held notional exceeds the limit")
	}
}

func TestAllowOpenBlockedByStaleBook(t *testing.T) {
	t.Parallel()

	m := NewMonitor(config.SafetyConfig{StaleBookTimeout: 10 * time.Millisecond}, testLogger())
	m.RecordBookUpdate()
	time.Sleep(20 * time.Millisecond)
	if m.AllowOpen() {
		t.Error("AllowOpen() = true, want false once the book staleness timeout has elapsed")
	}
}

func TestAllowOpenBlockedByConsecutiveRejects(t *testing.T) {
	t.Parallel()

	m := NewMonitor(config.SafetyConfig{MaxConsecutiveRejects: 3}, testLogger())
	for i := 0; i < 3; i++ {
		m.RecordPlacementRejected(types.Leg1)
	}
	if m.AllowOpen() {
		t.Error("AllowOpen() = true, want false once the consecutive reject limit is reached")
	}
}

func TestRecordPlacementAcceptedResetsRejectCounter(t *testing.T) {
	t.Parallel()

	m := NewMonitor(config.SafetyConfig{MaxConsecutiveRejects: 2}, testLogger())
	m.RecordPlacementRejected(types.Leg1)
	m.RecordPlacementAccepted()
	m.RecordPlacementRejected(types.Leg1)
	if !m.AllowOpen() {
		t.Error("AllowOpen() = false, want true: the accepted placement should have reset the counter")
	}
}

func TestAllowOpenBlockedByThinDepth(t *testing.T) {
	t.Parallel()

	m := NewMonitor(config.SafetyConfig{MinTopDepthQty: 5}, testLogger())
	m.RecordTopDepth(decimal.NewFromInt(10), decimal.NewFromInt(2))
	if m.AllowOpen() {
		t.Error("AllowOpen() = true, want false when one venue's top depth is below the minimum")
	}
}

func TestAllowOpenNotBlockedByDepthWhenUnconfigured(t *testing.T) {
	t.Parallel()

	m := NewMonitor(config.SafetyConfig{}, testLogger())
	m.RecordTopDepth(decimal.Zero, decimal.Zero)
	if !m.AllowOpen() {
		t.Error("AllowOpen() = false, want true: depth guard should be disabled when min_top_depth_qty is unset")
	}
}
