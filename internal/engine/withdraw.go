package engine

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"simpleamm/internal/amm"
	"simpleamm/internal/ledger"
	"simpleamm/internal/model"
	"simpleamm/internal/registry"
)

// WithdrawResult reports a committed withdrawal in the caller's pair orientation.
type WithdrawResult struct {
	AmountA  uint64     `json:"amount_a"`
	AmountB  uint64     `json:"amount_b"`
	LPBurned uint64     `json:"lp_burned"`
	Pool     model.Pool `json:"pool"`
}

// RemoveLiquidity burns lpTokensToBurn from provider and pays out the
// matching share of both reserves.
func (e *Engine) RemoveLiquidity(ctx context.Context, provider common.Address, pair registry.Pair, lpTokensToBurn, amountAMin, amountBMin uint64) (WithdrawResult, error) {
	if lpTokensToBurn == 0 {
		return WithdrawResult{}, amm.ErrInsufficientLiquidityTokens
	}
	_, flipped, err := pair.Canonical()
	if err != nil {
		return WithdrawResult{}, err
	}
	entry, ok := e.registry.Lookup(pair)
	if !ok {
		return WithdrawResult{}, fmt.Errorf("%w: no pool for %s", amm.ErrInsufficientLiquidity, entry.Key)
	}

	if err := e.acquire(ctx, entry.Key); err != nil {
		return WithdrawResult{}, err
	}
	defer e.locks.Unlock(entry.Key)

	pool, err := e.load(ctx, entry.Pool)
	if err != nil {
		return WithdrawResult{}, err
	}

	held, err := e.ledger.BalanceOf(ctx, provider, pool.LPToken)
	if err != nil {
		return WithdrawResult{}, fmt.Errorf("%w: read lp balance: %v", amm.ErrLedgerFailure, err)
	}
	if held < lpTokensToBurn {
		return WithdrawResult{}, fmt.Errorf("%w: holds %d, burning %d", amm.ErrInsufficientLiquidityTokens, held, lpTokensToBurn)
	}

	amountA, amountB, err := amm.WithdrawalAmounts(pool.ReserveA, pool.ReserveB, lpTokensToBurn, pool.LPSupply)
	if err != nil {
		return WithdrawResult{}, err
	}
	if amountA == 0 && amountB == 0 {
		return WithdrawResult{}, fmt.Errorf("%w: burning %d pays out nothing", amm.ErrInsufficientLiquidityTokens, lpTokensToBurn)
	}
	aMin, bMin := orient(flipped, amountAMin, amountBMin)
	if !e.curve.Bound.OutputMet(amountA, aMin) {
		return WithdrawResult{}, fmt.Errorf("%w: token a amount %d below minimum %d", amm.ErrSlippageExceeded, amountA, aMin)
	}
	if !e.curve.Bound.OutputMet(amountB, bMin) {
		return WithdrawResult{}, fmt.Errorf("%w: token b amount %d below minimum %d", amm.ErrSlippageExceeded, amountB, bMin)
	}

	next, err := pool.ApplyWithdrawal(amountA, amountB, lpTokensToBurn)
	if err != nil {
		return WithdrawResult{}, err
	}

	var batch ledger.Batch
	batch.Burn(pool.LPToken, provider, lpTokensToBurn)
	batch.Transfer(pool.Address, provider, pool.TokenA, amountA)
	batch.Transfer(pool.Address, provider, pool.TokenB, amountB)
	if _, err := e.settle(ctx, "remove_liquidity", next, &batch); err != nil {
		return WithdrawResult{}, err
	}

	e.logger.Debug("liquidity removed",
		zap.String("pool", next.Address.Hex()),
		zap.String("provider", provider.Hex()),
		zap.Uint64("amount_a", amountA),
		zap.Uint64("amount_b", amountB),
		zap.Uint64("lp_burned", lpTokensToBurn),
		zap.Bool("drained", next.Empty()),
	)
	e.emit(ctx, model.NewPoolEvent(model.EventLiquidityRemoved, next, model.LiquidityRemovedData{
		Provider: provider.Hex(),
		AmountA:  amountA,
		AmountB:  amountB,
		LPBurned: lpTokensToBurn,
	}))

	outA, outB := orient(flipped, amountA, amountB)
	return WithdrawResult{AmountA: outA, AmountB: outB, LPBurned: lpTokensToBurn, Pool: next}, nil
}
