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

// DepositResult reports a committed deposit in the caller's pair orientation.
type DepositResult struct {
	AmountA  uint64     `json:"amount_a"`
	AmountB  uint64     `json:"amount_b"`
	LPMinted uint64     `json:"lp_minted"`
	Pool     model.Pool `json:"pool"`
}

// AddLiquidity deposits up to the desired amounts at the pool's current ratio
// and mints liquidity tokens to provider. The first deposit into an unclaimed
// pool sets the price and is paid any stray balances the pool accounts hold.
// The pool is registered only once that deposit commits.
func (e *Engine) AddLiquidity(ctx context.Context, provider common.Address, pair registry.Pair, amountADesired, amountBDesired, amountAMin, amountBMin uint64) (DepositResult, error) {
	if amountADesired == 0 || amountBDesired == 0 {
		return DepositResult{}, fmt.Errorf("%w: desired amounts must be positive", amm.ErrInvalidInput)
	}
	_, flipped, err := pair.Canonical()
	if err != nil {
		return DepositResult{}, err
	}
	entry, _, err := e.registry.Resolve(pair)
	if err != nil {
		return DepositResult{}, err
	}

	if err := e.acquire(ctx, entry.Key); err != nil {
		return DepositResult{}, err
	}
	defer e.locks.Unlock(entry.Key)

	loaded, err := e.load(ctx, entry.Pool)
	if err != nil {
		return DepositResult{}, err
	}
	first := loaded.Unclaimed()
	pool, sweptA, sweptB := loaded.Swept()

	aDesired, bDesired := orient(flipped, amountADesired, amountBDesired)
	aMin, bMin := orient(flipped, amountAMin, amountBMin)
	amountA, amountB, err := e.curve.DepositQuote(pool.ReserveA, pool.ReserveB, aDesired, bDesired, aMin, bMin)
	if err != nil {
		return DepositResult{}, err
	}

	var minted uint64
	if first {
		minted, err = amm.InitialMint(amountA, amountB)
	} else {
		minted, err = amm.ProportionalMint(amountA, amountB, pool.ReserveA, pool.ReserveB, pool.LPSupply)
	}
	if err != nil {
		return DepositResult{}, err
	}

	next, err := pool.ApplyDeposit(amountA, amountB, minted)
	if err != nil {
		return DepositResult{}, err
	}

	var batch ledger.Batch
	if sweptA > 0 {
		batch.Transfer(pool.Address, provider, pool.TokenA, sweptA)
	}
	if sweptB > 0 {
		batch.Transfer(pool.Address, provider, pool.TokenB, sweptB)
	}
	// Funds move in before claims are minted.
	batch.Transfer(provider, pool.Address, pool.TokenA, amountA)
	batch.Transfer(provider, pool.Address, pool.TokenB, amountB)
	batch.Mint(pool.LPToken, provider, minted)
	created, err := e.settle(ctx, "add_liquidity", next, &batch)
	if err != nil {
		return DepositResult{}, err
	}

	e.logger.Debug("liquidity added",
		zap.String("pool", next.Address.Hex()),
		zap.String("provider", provider.Hex()),
		zap.Uint64("amount_a", amountA),
		zap.Uint64("amount_b", amountB),
		zap.Uint64("lp_minted", minted),
		zap.Bool("first", first),
	)
	if sweptA > 0 || sweptB > 0 {
		e.logger.Info("stray reserves swept",
			zap.String("pool", next.Address.Hex()),
			zap.String("provider", provider.Hex()),
			zap.Uint64("amount_a", sweptA),
			zap.Uint64("amount_b", sweptB),
		)
	}

	added := model.NewPoolEvent(model.EventLiquidityAdded, next, model.LiquidityAddedData{
		Provider: provider.Hex(),
		AmountA:  amountA,
		AmountB:  amountB,
		LPMinted: minted,
		First:    first,
		SweptA:   sweptA,
		SweptB:   sweptB,
	})
	if created {
		e.logger.Info("pool registered",
			zap.String("pool", next.Address.Hex()),
			zap.String("pair", entry.Key.String()),
		)
		e.emit(ctx, model.NewPoolEvent(model.EventPoolInitialized, entry.Pool, model.PoolInitializedData{
			Authority:      e.cfg.Authority.Hex(),
			FeeBasisPoints: e.cfg.FeeBasisPoints,
		}), added)
	} else {
		e.emit(ctx, added)
	}

	outA, outB := orient(flipped, amountA, amountB)
	return DepositResult{AmountA: outA, AmountB: outB, LPMinted: minted, Pool: next}, nil
}
