// Package registry is the factory that turns an ExchangeEnum tag and its
// config into a constructed exchange.Adapter. Each adapter package
// (internal/exchange/mexc, internal/exchange/gateio) registers its
// constructor via init(), so importing an adapter package for its side
// effect is what makes it available — cmd/engine blank-imports both.
package registry

import (
	"fmt"
	"log/slog"
	"sync"

	"cexarb/internal/config"
	"cexarb/internal/exchange"
	"cexarb/pkg/domain"
)

// Constructor builds an exchange.Adapter from its config.
type Constructor func(cfg config.ExchangeConfig, logger *slog.Logger) exchange.Adapter

var (
	mu           sync.RWMutex
	constructors = map[domain.ExchangeEnum]Constructor{}
)

// Register binds a tag to its adapter constructor. Called from adapter
// package init() functions; panics on duplicate registration since that can
// only indicate a programming error (two adapters claiming the same tag).
func Register(tag domain.ExchangeEnum, ctor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := constructors[tag]; exists {
		panic(fmt.Sprintf("registry: adapter already registered for %s", tag))
	}
	constructors[tag] = ctor
}

// Build constructs a new exchange.Adapter for tag, or an error if no adapter
// package registered that tag (it was never blank-imported, or the config
// names an unsupported exchange).
func Build(tag domain.ExchangeEnum, cfg config.ExchangeConfig, logger *slog.Logger) (exchange.Adapter, error) {
	mu.RLock()
	ctor, ok := constructors[tag]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("registry: no adapter registered for exchange tag %q", tag)
	}
	return ctor(cfg, logger), nil
}

// Registered reports which tags currently have a registered constructor,
// primarily for diagnostics and tests.
func Registered() []domain.ExchangeEnum {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]domain.ExchangeEnum, 0, len(constructors))
	for tag := range constructors {
		out = append(out, tag)
	}
	return out
}
