package model

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"simpleamm/internal/amm"
)

var (
	tokenA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func seededPool() Pool {
	return Pool{TokenA: tokenA, TokenB: tokenB, ReserveA: 1000, ReserveB: 4000, LPSupply: 2000, FeeBasisPoints: 30}
}

func TestApplyDepositFromEmpty(t *testing.T) {
	pool := Pool{TokenA: tokenA, TokenB: tokenB}
	if !pool.Empty() {
		t.Fatalf("new pool should be empty")
	}

	next, err := pool.ApplyDeposit(1000, 4000, 2000)
	if err != nil {
		t.Fatalf("apply deposit: %v", err)
	}
	if next.ReserveA != 1000 || next.ReserveB != 4000 || next.LPSupply != 2000 {
		t.Fatalf("deposit mismatch: %+v", next)
	}
}

func TestApplyDepositRejectsSupplyWithoutReserves(t *testing.T) {
	pool := Pool{TokenA: tokenA, TokenB: tokenB}
	if _, err := pool.ApplyDeposit(0, 0, 5); !errors.Is(err, amm.ErrPoolInvariant) {
		t.Fatalf("expected ErrPoolInvariant, got %v", err)
	}
	if _, err := pool.ApplyDeposit(10, 0, 5); !errors.Is(err, amm.ErrPoolInvariant) {
		t.Fatalf("one-sided deposit should be rejected, got %v", err)
	}
}

func TestSweptClearsUnclaimedReserves(t *testing.T) {
	stray := Pool{TokenA: tokenA, TokenB: tokenB, ReserveA: 1}
	if stray.Check() == nil {
		t.Fatalf("stray reserves without supply should fail the invariant")
	}
	if !stray.Unclaimed() || stray.Empty() {
		t.Fatalf("stray pool is unclaimed but not empty")
	}
	clean, a, b := stray.Swept()
	if !clean.Empty() || a != 1 || b != 0 {
		t.Fatalf("unexpected sweep: %+v %d/%d", clean, a, b)
	}

	seeded, a, b := seededPool().Swept()
	if seeded != seededPool() || a != 0 || b != 0 {
		t.Fatalf("claimed pool must not be swept")
	}
}

func TestApplyDepositOverflow(t *testing.T) {
	pool := seededPool()
	pool.ReserveA = math.MaxUint64
	if _, err := pool.ApplyDeposit(1, 1, 1); !errors.Is(err, amm.ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestApplyWithdrawal(t *testing.T) {
	pool := seededPool()

	next, err := pool.ApplyWithdrawal(500, 2000, 1000)
	if err != nil {
		t.Fatalf("apply withdrawal: %v", err)
	}
	if next.ReserveA != 500 || next.ReserveB != 2000 || next.LPSupply != 1000 {
		t.Fatalf("withdrawal mismatch: %+v", next)
	}

	drained, err := pool.ApplyWithdrawal(1000, 4000, 2000)
	if err != nil {
		t.Fatalf("full withdrawal: %v", err)
	}
	if !drained.Empty() {
		t.Fatalf("full withdrawal should empty the pool: %+v", drained)
	}

	if _, err := pool.ApplyWithdrawal(1001, 0, 1); !errors.Is(err, amm.ErrPoolInvariant) {
		t.Fatalf("expected ErrPoolInvariant, got %v", err)
	}
	if pool.ReserveA != 1000 {
		t.Fatalf("failed transition must not mutate the receiver")
	}
}

func TestApplySwap(t *testing.T) {
	pool := seededPool()

	next, err := pool.ApplySwap(100, 362, SellA)
	if err != nil {
		t.Fatalf("apply swap: %v", err)
	}
	if next.ReserveA != 1100 || next.ReserveB != 3638 || next.LPSupply != 2000 {
		t.Fatalf("swap mismatch: %+v", next)
	}

	next, err = pool.ApplySwap(400, 90, SellB)
	if err != nil {
		t.Fatalf("apply swap: %v", err)
	}
	if next.ReserveA != 910 || next.ReserveB != 4400 {
		t.Fatalf("swap mismatch: %+v", next)
	}

	if _, err := pool.ApplySwap(1, 4000, SellA); !errors.Is(err, amm.ErrPoolInvariant) {
		t.Fatalf("draining swap should violate the invariant, got %v", err)
	}
	if _, err := pool.ApplySwap(1, 1, Side(9)); !errors.Is(err, amm.ErrPoolInvariant) {
		t.Fatalf("unknown side should be rejected, got %v", err)
	}
}

func TestSideOf(t *testing.T) {
	pool := seededPool()
	if side, err := pool.SideOf(tokenA); err != nil || side != SellA {
		t.Fatalf("token a should sell a: %v %v", side, err)
	}
	if side, err := pool.SideOf(tokenB); err != nil || side != SellB {
		t.Fatalf("token b should sell b: %v %v", side, err)
	}
	other := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	if _, err := pool.SideOf(other); !errors.Is(err, amm.ErrInvalidTokenMint) {
		t.Fatalf("expected ErrInvalidTokenMint, got %v", err)
	}

	in, out := pool.Reserves(SellB)
	if in != 4000 || out != 1000 {
		t.Fatalf("reserves for sell b mismatch: %d/%d", in, out)
	}
}

func TestEventJSONFields(t *testing.T) {
	event := NewPoolEvent(EventSwapExecuted, seededPool(), SwapExecutedData{AmountIn: 100, AmountOut: 362, Side: SellA.String()})

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded EventRecord
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Name != EventSwapExecuted || decoded.ReserveB != 4000 {
		t.Fatalf("event envelope mismatch: %+v", decoded)
	}

	var swap SwapExecutedData
	if err := json.Unmarshal(decoded.Data, &swap); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if swap.AmountOut != 362 || swap.Side != "sell_a" {
		t.Fatalf("payload mismatch: %+v", swap)
	}
}
