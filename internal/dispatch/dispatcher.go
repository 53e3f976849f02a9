package dispatch

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"simpleamm/internal/amm"
	"simpleamm/internal/engine"
	"simpleamm/internal/ledger"
	"simpleamm/internal/registry"
)

// Result is written for every intent that applied.
type Result struct {
	Line     int                    `json:"line"`
	ID       string                 `json:"id,omitempty"`
	Op       string                 `json:"op"`
	Deposit  *engine.DepositResult  `json:"deposit,omitempty"`
	Withdraw *engine.WithdrawResult `json:"withdraw,omitempty"`
	Swap     *engine.SwapResult     `json:"swap,omitempty"`
	Minted   uint64                 `json:"minted,omitempty"`
}

// Dispatcher authorizes intents and routes them to the engine.
type Dispatcher struct {
	engine *engine.Engine
	ledger ledger.Ledger
	auth   engine.Authorizer
	logger *zap.Logger
}

func NewDispatcher(e *engine.Engine, l ledger.Ledger, auth engine.Authorizer, logger *zap.Logger) *Dispatcher {
	if auth == nil {
		auth = engine.AllowAll{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{engine: e, ledger: l, auth: auth, logger: logger}
}

// Dispatch runs one intent.
func (d *Dispatcher) Dispatch(ctx context.Context, in Intent) (Result, error) {
	caller, err := in.caller()
	if err != nil {
		return Result{}, err
	}
	res := Result{ID: in.ID, Op: in.Op}

	if in.Op == OpMint {
		minted, err := d.mint(ctx, caller, in)
		if err != nil {
			return Result{}, err
		}
		res.Minted = minted
		return res, nil
	}

	pair, err := in.pair()
	if err != nil {
		return Result{}, err
	}
	key, _, err := pair.Canonical()
	if err != nil {
		return Result{}, err
	}
	if !d.auth.Verify(caller, registry.PoolAddress(key)) {
		return Result{}, fmt.Errorf("%w: %s on pool %s", ErrUnauthorized, caller.Hex(), key)
	}

	switch in.Op {
	case OpAddLiquidity:
		out, err := d.engine.AddLiquidity(ctx, caller, pair, in.AmountADesired, in.AmountBDesired, in.AmountAMin, in.AmountBMin)
		if err != nil {
			return Result{}, err
		}
		res.Deposit = &out
	case OpRemoveLiquidity:
		out, err := d.engine.RemoveLiquidity(ctx, caller, pair, in.LPTokens, in.AmountAMin, in.AmountBMin)
		if err != nil {
			return Result{}, err
		}
		res.Withdraw = &out
	case OpSwap:
		input, err := parseAddress("input_token", in.InputToken)
		if err != nil {
			return Result{}, err
		}
		out, err := d.engine.Swap(ctx, caller, pair, input, in.AmountIn, in.AmountOutMin)
		if err != nil {
			return Result{}, err
		}
		res.Swap = &out
	default:
		return Result{}, fmt.Errorf("%w: unknown op %q", ErrBadIntent, in.Op)
	}
	return res, nil
}

func (d *Dispatcher) mint(ctx context.Context, caller common.Address, in Intent) (uint64, error) {
	authority := d.engine.Config().Authority
	if authority == (common.Address{}) || caller != authority {
		return 0, fmt.Errorf("%w: only the authority may mint", ErrUnauthorized)
	}
	asset, err := parseAddress("asset", in.Asset)
	if err != nil {
		return 0, err
	}
	to, err := parseAddress("to", in.To)
	if err != nil {
		return 0, err
	}
	if in.Amount == 0 {
		return 0, fmt.Errorf("%w: mint amount must be positive", amm.ErrInvalidInput)
	}
	if err := d.ledger.Mint(ctx, asset, to, in.Amount); err != nil {
		return 0, fmt.Errorf("%w: mint: %w", amm.ErrLedgerFailure, err)
	}
	d.logger.Debug("balance minted",
		zap.String("asset", asset.Hex()),
		zap.String("to", to.Hex()),
		zap.Uint64("amount", in.Amount),
	)
	return in.Amount, nil
}
