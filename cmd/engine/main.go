// cexarb-engine is the entry point for the cross-exchange arbitrage core.
//
// Architecture:
//
//	main.go                      — entry point: loads config, starts the engine, waits for SIGINT/SIGTERM
//	internal/engine/engine.go    — orchestrator: wires registry -> composite exchanges -> scheduler -> admin server
//	internal/registry            — ExchangeEnum -> exchange.Adapter factory (adapter packages self-register via init())
//	internal/exchange/mexc       — MEXC spot adapter
//	internal/exchange/gateio     — Gate.io spot + futures adapter
//	internal/composite           — per-exchange Public/Private stateful runtimes
//	internal/scheduler           — cooperative strategy task engine + JSON persistence
//	internal/strategy            — iceberg, delta-neutral, and cross-exchange arbitrage state machines
//	internal/adminserver         — read-only /health, /api/scheduler, /api/exchanges, /ws surface
//
// Task definitions (which strategies run for which symbols) are an
// operator concern external to this binary's own config surface; this
// package wires the engine up and leaves task construction to whatever
// invokes Engine.AddTask.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"cexarb/internal/config"
	"cexarb/internal/engine"
	"cexarb/internal/observability"

	_ "cexarb/internal/exchange/gateio"
	_ "cexarb/internal/exchange/mexc"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("CEXARB_CONFIG"); p != "" {
		cfgPath = p
	}

	// Logger is built with defaults first since config loading itself can
	// fail and needs somewhere to report to.
	bootLogger := observability.NewLogger(config.LoggingConfig{Level: "info", Format: "text"})

	cfg, err := config.Load(cfgPath)
	if err != nil {
		bootLogger.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		bootLogger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logging)

	eng, err := engine.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to construct engine", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.Start(ctx); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	logger.Info("cexarb engine started",
		"exchanges", len(cfg.Exchanges),
		"admin_enabled", cfg.Admin.Enabled,
		"admin_port", cfg.Admin.Port,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	eng.Stop()
}
