package strategy

import (
	"testing"

	"cexarb/pkg/domain"
)

func TestEntryCostPct(t *testing.T) {
	t.Parallel()
	// spot ask below fut bid -> negative (cheap) entry cost.
	got := entryCostPct(100, 101)
	want := (100.0 - 101.0) / 100.0 * 100
	if !almostEqual(got, want) {
		t.Errorf("entryCostPct() = %v, want %v", got, want)
	}
}

func TestEntryCostPctPositiveWhenSpotRichToFutures(t *testing.T) {
	t.Parallel()
	got := entryCostPct(101, 100)
	if got <= 0 {
		t.Errorf("entryCostPct() = %v, want positive when spot_ask > fut_bid", got)
	}
}

func TestCrossExchangeContextAccessors(t *testing.T) {
	t.Parallel()
	sym := domain.Symbol{Base: "FLK", Quote: "USDT"}
	settings := map[domain.ExchangeEnum]ExchangeLegConfig{
		domain.MexcSpot:      {TickTolerance: 3, TicksOffset: 1, UseMarket: true},
		domain.GateioSpot:    {TickTolerance: 3, TicksOffset: 1, UseMarket: true},
		domain.GateioFutures: {TickTolerance: 2, TicksOffset: 0, UseMarket: true},
	}
	ctx := CrossExchangeContext{
		Symbol:             sym,
		TotalQuantity:      1000,
		OrderQty:           100,
		SpotExchanges:      []domain.ExchangeEnum{domain.MexcSpot, domain.GateioSpot},
		FuturesExchange:    domain.GateioFutures,
		OperationMode:      OperationSpotSwitching,
		MinSwitchProfitPct: 0.05,
		SpotSwitchEnabled:  true,
		Settings:           settings,
	}
	spots := map[domain.ExchangeEnum]ExchangeComposite{
		domain.MexcSpot:   {},
		domain.GateioSpot: {},
	}
	ce := NewCrossExchange("task-1", spots, ExchangeComposite{}, ctx)

	if ce.ID() != "task-1" {
		t.Errorf("ID() = %v, want task-1", ce.ID())
	}
	if ce.Symbol() != sym.String() {
		t.Errorf("Symbol() = %v, want %v", ce.Symbol(), sym.String())
	}
	if ce.ContextType() != CrossExchangeTaskType {
		t.Errorf("ContextType() = %v, want %v", ce.ContextType(), CrossExchangeTaskType)
	}
	if len(ce.spots) != 2 {
		t.Errorf("len(spots) = %v, want 2", len(ce.spots))
	}
	if ce.spots[domain.MexcSpot].cfg.UseMarket != true {
		t.Errorf("MEXC leg config = %+v, want UseMarket true", ce.spots[domain.MexcSpot].cfg)
	}
	if ce.fut.cfg.TicksOffset != 0 {
		t.Errorf("futures leg TicksOffset = %v, want 0", ce.fut.cfg.TicksOffset)
	}
}

func TestMultiSpotPositionStateHasPositionsFalseWhenFlat(t *testing.T) {
	t.Parallel()
	var m MultiSpotPositionState
	if m.HasPositions() {
		t.Errorf("HasPositions() = true, want false on zero value")
	}
}

func TestMultiSpotPositionStateDeltaSumsAcrossExchanges(t *testing.T) {
	t.Parallel()
	m := MultiSpotPositionState{
		ActiveExchange: domain.MexcSpot,
		SpotPositions: map[domain.ExchangeEnum]domain.Position{
			domain.MexcSpot:   {Qty: 3},
			domain.GateioSpot: {Qty: 2},
		},
		FuturesPosition: domain.Position{Qty: 4},
	}
	if got := m.TotalSpotQty(); got != 5 {
		t.Errorf("TotalSpotQty() = %v, want 5", got)
	}
	if got := m.Delta(); got != 1 {
		t.Errorf("Delta() = %v, want 1", got)
	}
}

func TestMultiSpotPositionStateClearActiveDropsEntry(t *testing.T) {
	t.Parallel()
	m := MultiSpotPositionState{
		ActiveExchange: domain.MexcSpot,
		SpotPositions:  map[domain.ExchangeEnum]domain.Position{domain.MexcSpot: {Qty: 1}},
	}
	m.ClearActive()
	if m.HasPositions() {
		t.Errorf("HasPositions() = true after ClearActive")
	}
	if _, ok := m.SpotPositions[domain.MexcSpot]; ok {
		t.Errorf("SpotPositions still has MEXC entry after ClearActive")
	}
}

func TestOpenBestOpportunitySkipsWhenCostExceedsThreshold(t *testing.T) {
	t.Parallel()
	ce := &CrossExchange{ctx: CrossExchangeContext{
		TotalQuantity:   10,
		MaxEntryCostPct: -0.1,
		CurrentOpportunity: &SpotOpportunity{Exchange: domain.MexcSpot, CostPct: 0.2},
	}}
	ce.openBestOpportunity()
	if ce.ctx.MultiSpotPositions.HasPositions() {
		t.Errorf("HasPositions() = true, want no entry when cost exceeds MaxEntryCostPct")
	}
}

func TestOpenBestOpportunityActivatesCheapestCandidate(t *testing.T) {
	t.Parallel()
	ce := &CrossExchange{ctx: CrossExchangeContext{
		TotalQuantity:   10,
		MaxEntryCostPct: 0,
		CurrentOpportunity: &SpotOpportunity{Exchange: domain.GateioSpot, CostPct: -0.3},
	}}
	ce.openBestOpportunity()
	if ce.ctx.MultiSpotPositions.ActiveExchange != domain.GateioSpot {
		t.Errorf("ActiveExchange = %v, want %v", ce.ctx.MultiSpotPositions.ActiveExchange, domain.GateioSpot)
	}
	if ce.ctx.MultiSpotPositions.ActivePosition().Mode != domain.ModeAccumulate {
		t.Errorf("ActivePosition().Mode = %v, want accumulate", ce.ctx.MultiSpotPositions.ActivePosition().Mode)
	}
}
