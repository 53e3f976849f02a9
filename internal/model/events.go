package model

// Event names written to sinks.
const (
	EventPoolInitialized  = "pool_initialized"
	EventLiquidityAdded   = "liquidity_added"
	EventLiquidityRemoved = "liquidity_removed"
	EventSwapExecuted     = "swap_executed"
)

// PoolInitializedData is emitted when a deposit creates a pool.
type PoolInitializedData struct {
	Authority      string `json:"authority"`
	FeeBasisPoints uint16 `json:"fee_basis_points"`
}

// LiquidityAddedData is the payload of a committed deposit.
type LiquidityAddedData struct {
	Provider string `json:"provider"`
	AmountA  uint64 `json:"amount_a"`
	AmountB  uint64 `json:"amount_b"`
	LPMinted uint64 `json:"lp_minted"`
	First    bool   `json:"first"`
	// Stray balances of an unclaimed pool paid back to the provider.
	SweptA uint64 `json:"swept_a,omitempty"`
	SweptB uint64 `json:"swept_b,omitempty"`
}

// LiquidityRemovedData is the payload of a committed withdrawal.
type LiquidityRemovedData struct {
	Provider string `json:"provider"`
	AmountA  uint64 `json:"amount_a"`
	AmountB  uint64 `json:"amount_b"`
	LPBurned uint64 `json:"lp_burned"`
}

// SwapExecutedData is the payload of a committed swap.
type SwapExecutedData struct {
	Trader    string `json:"trader"`
	Side      string `json:"side"`
	TokenIn   string `json:"token_in"`
	TokenOut  string `json:"token_out"`
	AmountIn  uint64 `json:"amount_in"`
	AmountOut uint64 `json:"amount_out"`
	Fee       uint64 `json:"fee"`
}
