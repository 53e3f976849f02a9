// Package engine runs deposits, withdrawals and swaps against a token ledger.
// Every operation re-reads the pool's reserves from the ledger under a per-pool
// lock, prices it with internal/amm, and commits its ledger steps as one batch.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"simpleamm/internal/amm"
	"simpleamm/internal/ledger"
	"simpleamm/internal/model"
	"simpleamm/internal/registry"
)

// AmmConfig is the deployment-wide configuration every pool shares.
type AmmConfig struct {
	Authority      common.Address `json:"authority"`
	FeeBasisPoints uint16         `json:"fee_basis_points"`
}

// Initialize returns the configuration for a deployment charging
// feeBasisPoints on swap inputs.
func Initialize(authority common.Address, feeBasisPoints uint8) (AmmConfig, error) {
	cfg := AmmConfig{Authority: authority, FeeBasisPoints: uint16(feeBasisPoints)}
	if err := cfg.Validate(); err != nil {
		return AmmConfig{}, err
	}
	return cfg, nil
}

func (c AmmConfig) Validate() error {
	if c.FeeBasisPoints >= amm.BasisPointsDenominator {
		return fmt.Errorf("%w: %d", amm.ErrInvalidFee, c.FeeBasisPoints)
	}
	return nil
}

// Sink receives committed events. Errors are logged, never returned to callers.
type Sink interface {
	PutEvents(ctx context.Context, events []model.Event) error
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithSink(sink Sink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// WithBound selects how minimum amounts are compared.
func WithBound(bound amm.Bound) Option {
	return func(e *Engine) {
		e.curve.Bound = bound
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithSequenceStart resumes event numbering after last.
func WithSequenceStart(last uint64) Option {
	return func(e *Engine) {
		e.seq.Store(last)
	}
}

// Engine is the single writer of every pool it registers.
type Engine struct {
	cfg      AmmConfig
	curve    amm.Curve
	ledger   ledger.Ledger
	registry *registry.Registry
	locks    *lockMap
	sink     Sink
	logger   *zap.Logger
	now      func() time.Time
	seq      atomic.Uint64
}

// New builds an engine over l. reg must charge the fee named by cfg.
func New(cfg AmmConfig, l ledger.Ledger, reg *registry.Registry, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if l == nil {
		return nil, errors.New("ledger is nil")
	}
	if reg == nil {
		return nil, errors.New("registry is nil")
	}
	if reg.FeeBasisPoints() != cfg.FeeBasisPoints {
		return nil, fmt.Errorf("%w: registry fee %d differs from config fee %d", amm.ErrInvalidFee, reg.FeeBasisPoints(), cfg.FeeBasisPoints)
	}

	e := &Engine{
		cfg:      cfg,
		curve:    amm.Curve{FeeBasisPoints: cfg.FeeBasisPoints, Bound: amm.BoundInclusive},
		ledger:   l,
		registry: reg,
		locks:    newLockMap(),
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Config() AmmConfig {
	return e.cfg
}

func (e *Engine) Bound() amm.Bound {
	return e.curve.Bound
}

// Pool returns the last committed snapshot of pair's pool.
func (e *Engine) Pool(pair registry.Pair) (model.Pool, bool) {
	entry, ok := e.registry.Lookup(pair)
	return entry.Pool, ok
}

// Pools returns every registered pool.
func (e *Engine) Pools() []model.Pool {
	return e.registry.Pools()
}

// load reads pool reserves and supply from the ledger. An unclaimed pool may
// hold stray balances and is returned unchecked.
func (e *Engine) load(ctx context.Context, pool model.Pool) (model.Pool, error) {
	var err error
	if pool.ReserveA, err = e.ledger.BalanceOf(ctx, pool.Address, pool.TokenA); err != nil {
		return model.Pool{}, fmt.Errorf("%w: read reserve a: %v", amm.ErrLedgerFailure, err)
	}
	if pool.ReserveB, err = e.ledger.BalanceOf(ctx, pool.Address, pool.TokenB); err != nil {
		return model.Pool{}, fmt.Errorf("%w: read reserve b: %v", amm.ErrLedgerFailure, err)
	}
	if pool.LPSupply, err = e.ledger.TotalSupply(ctx, pool.LPToken); err != nil {
		return model.Pool{}, fmt.Errorf("%w: read lp supply: %v", amm.ErrLedgerFailure, err)
	}
	if pool.Unclaimed() {
		return pool, nil
	}
	if err := pool.Check(); err != nil {
		return model.Pool{}, err
	}
	return pool, nil
}

// settle commits batch, checks the ledger now holds next and publishes the
// snapshot. A ledger that disagrees with next gets the batch reverted.
// created reports that the commit registered the pool.
func (e *Engine) settle(ctx context.Context, op string, next model.Pool, batch *ledger.Batch) (created bool, err error) {
	if err := batch.Commit(ctx, e.ledger); err != nil {
		e.logger.Warn("ledger batch rolled back",
			zap.String("op", op),
			zap.String("pool", next.Address.Hex()),
			zap.Int("steps", batch.Len()),
			zap.Error(err),
		)
		return false, fmt.Errorf("%w: %s: %w", amm.ErrLedgerFailure, op, err)
	}

	// Verification and any revert must finish even if the caller gives up.
	ctx = context.WithoutCancel(ctx)
	got, err := e.load(ctx, next)
	if err == nil && (got.ReserveA != next.ReserveA || got.ReserveB != next.ReserveB || got.LPSupply != next.LPSupply) {
		err = fmt.Errorf("%w: ledger holds %d/%d supply %d, expected %d/%d supply %d",
			amm.ErrPoolInvariant, got.ReserveA, got.ReserveB, got.LPSupply, next.ReserveA, next.ReserveB, next.LPSupply)
	}
	if err != nil {
		e.logger.Error("post-commit verification failed",
			zap.String("op", op),
			zap.String("pool", next.Address.Hex()),
			zap.Error(err),
		)
		if revertErr := batch.Inverse().Commit(ctx, e.ledger); revertErr != nil {
			return false, errors.Join(err, fmt.Errorf("%w: revert %s: %w", amm.ErrLedgerFailure, op, revertErr))
		}
		return false, err
	}

	return e.registry.Update(next)
}

func (e *Engine) emit(ctx context.Context, events ...model.Event) {
	if e.sink == nil || len(events) == 0 {
		return
	}
	ts := uint64(e.now().Unix())
	for i := range events {
		events[i].Sequence = e.seq.Add(1)
		events[i].Timestamp = ts
	}
	if err := e.sink.PutEvents(context.WithoutCancel(ctx), events); err != nil {
		e.logger.Warn("event sink failed",
			zap.String("event", events[0].Name),
			zap.Int("count", len(events)),
			zap.Error(err),
		)
	}
}

// orient maps caller-ordered amounts onto the pool's canonical order.
func orient(flipped bool, a, b uint64) (uint64, uint64) {
	if flipped {
		return b, a
	}
	return a, b
}

func (e *Engine) acquire(ctx context.Context, key registry.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.locks.Lock(key)
	if err := ctx.Err(); err != nil {
		e.locks.Unlock(key)
		return err
	}
	return nil
}
