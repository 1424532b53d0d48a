package domain

import "time"

// TradeSimulation is one immutable simulated trade outcome.
// Corresponds to the append-only trade_simulations table.
type TradeSimulation struct {
	ID         string      `json:"id"`
	Pair       string      `json:"pair"`        // symbol the simulation ran for
	StrategyID string      `json:"strategy_id"` // pattern key (Strategy.Name) at creation time
	Result     TradeResult `json:"result"`
	CreatedAt  time.Time   `json:"created_at"`
}
