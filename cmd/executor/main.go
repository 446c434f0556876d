// cexdexarb — a cross-venue CEX/DEX arbitrage executor.
//
// Architecture:
//
//	main.go                    — entry point: loads config, starts engine, waits for SIGINT/SIGTERM
//	internal/engine/engine.go  — orchestrator: wires reconciliation → feeds → strategy → hooks
//	internal/strategy/machine.go — two-leg open/close cycle state machine
//	internal/reconcile         — startup reconciliation against both venues' live positions
//	internal/market            — local order-book mirrors + the fee-adjusted price board
//	internal/feed              — CEX/DEX WebSocket market-data feeds
//	internal/userstream        — CEX/DEX WebSocket user fill/order streams
//	internal/exchange          — REST clients, auth, and the shared trade executor
//	internal/safety            — guardrails gating new Open cycles
//	internal/audit             — append-only completed-cycle journal
//	internal/statusapi         — read-only REST/WebSocket status dashboard
//	internal/metrics           — Prometheus counters/gauges
//
// How it makes money:
//
//	It holds a maker limit order resting on the DEX order book and a taker
//	market/limit order on the CEX, always in opposing directions, so a fill
//	on one leg is immediately hedged by the other. It profits from the
//	fee-adjusted spread between the two venues' quotes, captured at
//	DEX maker rates on one side and CEX taker rates on the other.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cexdexarb/internal/config"
	"cexdexarb/internal/engine"
	"cexdexarb/internal/statusapi"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("ARBX_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	eng, err := engine.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	var statusServer *statusapi.Server
	if cfg.Dashboard.Enabled {
		statusServer = statusapi.NewServer(cfg.Dashboard, eng.Provider(), logger)
		eng.AttachStatusBroadcaster(statusServer)
		go func() {
			if err := statusServer.Start(); err != nil {
				logger.Error("status dashboard failed", "error", err)
			}
		}()
		logger.Info("status dashboard started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: fmt.Sprintf(":%d", cfg.Metrics.Port), Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("metrics endpoint started", "port", cfg.Metrics.Port)
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	logger.Info("cexdexarb executor started",
		"cex_symbol", cfg.Symbols.CEXSymbol,
		"dex_symbol", cfg.Symbols.DEXSymbol,
		"cycle_qty", cfg.Strategy.CycleQty,
		"dry_run", cfg.DryRun,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	if statusServer != nil {
		if err := statusServer.Stop(); err != nil {
			logger.Error("failed to stop status dashboard", "error", err)
		}
	}
	if metricsServer != nil {
		if err := metricsServer.Close(); err != nil {
			logger.Error("failed to stop metrics server", "error", err)
		}
	}

	eng.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
