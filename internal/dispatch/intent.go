// Package dispatch turns caller intents into engine operations. It is the
// layer that authorizes callers before the engine runs.
package dispatch

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"simpleamm/internal/amm"
	"simpleamm/internal/ledger"
	"simpleamm/internal/registry"
)

var (
	ErrBadIntent    = errors.New("bad intent")
	ErrUnauthorized = errors.New("unauthorized")
)

// Intent ops.
const (
	OpAddLiquidity    = "add_liquidity"
	OpRemoveLiquidity = "remove_liquidity"
	OpSwap            = "swap"
	OpMint            = "mint"
)

// Intent is one caller request as read from a JSONL line.
type Intent struct {
	ID     string `json:"id,omitempty"`
	Op     string `json:"op"`
	Caller string `json:"caller"`

	TokenA string `json:"token_a,omitempty"`
	TokenB string `json:"token_b,omitempty"`

	AmountADesired uint64 `json:"amount_a_desired,omitempty"`
	AmountBDesired uint64 `json:"amount_b_desired,omitempty"`
	AmountAMin     uint64 `json:"amount_a_min,omitempty"`
	AmountBMin     uint64 `json:"amount_b_min,omitempty"`

	LPTokens uint64 `json:"lp_tokens,omitempty"`

	InputToken   string `json:"input_token,omitempty"`
	AmountIn     uint64 `json:"amount_in,omitempty"`
	AmountOutMin uint64 `json:"amount_out_min,omitempty"`

	// Mint seeds a balance and is reserved for the deployment authority.
	Asset  string `json:"asset,omitempty"`
	To     string `json:"to,omitempty"`
	Amount uint64 `json:"amount,omitempty"`
}

func (in Intent) caller() (common.Address, error) {
	return parseAddress("caller", in.Caller)
}

func (in Intent) pair() (registry.Pair, error) {
	a, err := parseAddress("token_a", in.TokenA)
	if err != nil {
		return registry.Pair{}, err
	}
	b, err := parseAddress("token_b", in.TokenB)
	if err != nil {
		return registry.Pair{}, err
	}
	return registry.Pair{A: a, B: b}, nil
}

func parseAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%w: %s %q is not an address", ErrBadIntent, field, value)
	}
	return common.HexToAddress(value), nil
}

// Failure is written for every intent that did not apply.
type Failure struct {
	Line   int    `json:"line"`
	ID     string `json:"id,omitempty"`
	Op     string `json:"op,omitempty"`
	Caller string `json:"caller,omitempty"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrBadIntent, "bad_intent"},
	{ErrUnauthorized, "unauthorized"},
	{amm.ErrInvalidInput, "invalid_input"},
	{amm.ErrInsufficientLiquidityTokens, "insufficient_liquidity_tokens"},
	{amm.ErrInsufficientLiquidityMinted, "insufficient_liquidity_minted"},
	{amm.ErrInsufficientLiquidity, "insufficient_liquidity"},
	{amm.ErrSlippageExceeded, "slippage_exceeded"},
	{amm.ErrInvalidTokenMint, "invalid_token_mint"},
	{amm.ErrOverflow, "overflow"},
	{amm.ErrLedgerFailure, "ledger_failure"},
	{ledger.ErrInsufficientBalance, "ledger_failure"},
	{amm.ErrPoolInvariant, "pool_invariant"},
	{amm.ErrInvalidFee, "invalid_fee"},
}

// ErrorKind names the taxonomy entry err belongs to.
func ErrorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}
