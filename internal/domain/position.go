package domain

// TokenPosition is the per-token ledger state for the replica account.
// Shares and CostUSDC are never negative; a token that returns to zero shares
// keeps its realized PnL and last price.
type TokenPosition struct {
	Shares       float64 `json:"shares"`
	CostUSDC     float64 `json:"costUSDC"`
	RealizedUSDC float64 `json:"realizedUSDC"`
	LastPrice    float64 `json:"lastPrice"`
}

// LedgerSnapshot is a point-in-time materialization of the full ledger,
// keyed by token id. It is the unit of crash recovery: written periodically
// and reloaded on startup.
type LedgerSnapshot map[string]TokenPosition

// PositionMetrics is the derived view of one token's position.
type PositionMetrics struct {
	Shares         float64
	LastPrice      float64
	AvgPrice       float64
	CostUSDC       float64
	MTMValueUSDC   float64
	UnrealizedUSDC float64
	RealizedUSDC   float64
}
