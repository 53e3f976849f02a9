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

// SwapResult reports a committed swap.
type SwapResult struct {
	Side      model.Side     `json:"side"`
	TokenIn   common.Address `json:"token_in"`
	TokenOut  common.Address `json:"token_out"`
	AmountIn  uint64         `json:"amount_in"`
	AmountOut uint64         `json:"amount_out"`
	Fee       uint64         `json:"fee"`
	Pool      model.Pool     `json:"pool"`
}

// Swap sells amountIn of inputAsset into the pair's pool and pays the trader
// the other asset.
func (e *Engine) Swap(ctx context.Context, trader common.Address, pair registry.Pair, inputAsset common.Address, amountIn, amountOutMin uint64) (SwapResult, error) {
	if amountIn == 0 {
		return SwapResult{}, fmt.Errorf("%w: amount in must be positive", amm.ErrInvalidInput)
	}
	if _, _, err := pair.Canonical(); err != nil {
		return SwapResult{}, err
	}
	if inputAsset != pair.A && inputAsset != pair.B {
		return SwapResult{}, fmt.Errorf("%w: %s is not in pair", amm.ErrInvalidTokenMint, inputAsset.Hex())
	}
	entry, ok := e.registry.Lookup(pair)
	if !ok {
		return SwapResult{}, fmt.Errorf("%w: no pool for %s", amm.ErrInsufficientLiquidity, entry.Key)
	}

	// Resolved once, carried through pricing and settlement.
	side, err := entry.Pool.SideOf(inputAsset)
	if err != nil {
		return SwapResult{}, err
	}

	if err := e.acquire(ctx, entry.Key); err != nil {
		return SwapResult{}, err
	}
	defer e.locks.Unlock(entry.Key)

	pool, err := e.load(ctx, entry.Pool)
	if err != nil {
		return SwapResult{}, err
	}
	if pool.Unclaimed() {
		return SwapResult{}, fmt.Errorf("%w: pool %s holds no liquidity", amm.ErrInsufficientLiquidity, pool.Address.Hex())
	}

	reserveIn, reserveOut := pool.Reserves(side)
	amountOut, err := e.curve.AmountOut(amountIn, reserveIn, reserveOut)
	if err != nil {
		return SwapResult{}, err
	}
	if amountOut == 0 {
		return SwapResult{}, fmt.Errorf("%w: %d in yields no output", amm.ErrInvalidInput, amountIn)
	}
	if !e.curve.Bound.OutputMet(amountOut, amountOutMin) {
		return SwapResult{}, fmt.Errorf("%w: amount out %d below minimum %d", amm.ErrSlippageExceeded, amountOut, amountOutMin)
	}

	next, err := pool.ApplySwap(amountIn, amountOut, side)
	if err != nil {
		return SwapResult{}, err
	}

	tokenIn, tokenOut := pool.TokenA, pool.TokenB
	if side == model.SellB {
		tokenIn, tokenOut = pool.TokenB, pool.TokenA
	}

	var batch ledger.Batch
	batch.Transfer(trader, pool.Address, tokenIn, amountIn)
	batch.Transfer(pool.Address, trader, tokenOut, amountOut)
	if _, err := e.settle(ctx, "swap", next, &batch); err != nil {
		return SwapResult{}, err
	}

	fee := e.curve.FeeAmount(amountIn)
	e.logger.Debug("swap executed",
		zap.String("pool", next.Address.Hex()),
		zap.String("trader", trader.Hex()),
		zap.Stringer("side", side),
		zap.Uint64("amount_in", amountIn),
		zap.Uint64("amount_out", amountOut),
		zap.Uint64("fee", fee),
	)
	e.emit(ctx, model.NewPoolEvent(model.EventSwapExecuted, next, model.SwapExecutedData{
		Trader:    trader.Hex(),
		Side:      side.String(),
		TokenIn:   tokenIn.Hex(),
		TokenOut:  tokenOut.Hex(),
		AmountIn:  amountIn,
		AmountOut: amountOut,
		Fee:       fee,
	}))

	return SwapResult{
		Side:      side,
		TokenIn:   tokenIn,
		TokenOut:  tokenOut,
		AmountIn:  amountIn,
		AmountOut: amountOut,
		Fee:       fee,
		Pool:      next,
	}, nil
}
