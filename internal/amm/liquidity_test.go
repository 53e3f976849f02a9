package amm

import (
	"errors"
	"math"
	"testing"
)

func TestInitialMint(t *testing.T) {
	got, err := InitialMint(1000, 4000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 2000 {
		t.Fatalf("mint mismatch: got %d want 2000", got)
	}

	got, err = InitialMint(math.MaxUint64, math.MaxUint64)
	if err != nil {
		t.Fatalf("wide product should not overflow: %v", err)
	}
	if got != math.MaxUint64 {
		t.Fatalf("mint mismatch: got %d want %d", got, uint64(math.MaxUint64))
	}

	// sqrt(2*3) = 2.44 floors to 2
	got, _ = InitialMint(2, 3)
	if got != 2 {
		t.Fatalf("mint should floor: got %d", got)
	}

	if _, err := InitialMint(0, 10); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestProportionalMint(t *testing.T) {
	got, err := ProportionalMint(100, 400, 1000, 4000, 2000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 200 {
		t.Fatalf("mint mismatch: got %d want 200", got)
	}

	got, err = ProportionalMint(100, 1000, 1000, 4000, 2000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 200 {
		t.Fatalf("lopsided deposit should mint the smaller share: got %d", got)
	}

	if _, err := ProportionalMint(1, 1, 1000, 4000, 2000); !errors.Is(err, ErrInsufficientLiquidityMinted) {
		t.Fatalf("expected ErrInsufficientLiquidityMinted, got %v", err)
	}
	if _, err := ProportionalMint(1, 1, 0, 4000, 2000); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
}

func TestWithdrawalAmounts(t *testing.T) {
	a, b, err := WithdrawalAmounts(1000, 4000, 2000, 2000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != 1000 || b != 4000 {
		t.Fatalf("full burn should return reserves: %d/%d", a, b)
	}

	a, b, err = WithdrawalAmounts(1000, 4000, 1000, 2000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != 500 || b != 2000 {
		t.Fatalf("half burn mismatch: %d/%d", a, b)
	}

	// 1 * 1001 / 3 = 333.67 floors to 333
	a, _, _ = WithdrawalAmounts(1001, 1001, 1, 3)
	if a != 333 {
		t.Fatalf("withdrawal should floor: got %d", a)
	}
}

func TestWithdrawalAmountsErrors(t *testing.T) {
	if _, _, err := WithdrawalAmounts(1000, 4000, 0, 2000); !errors.Is(err, ErrInsufficientLiquidityTokens) {
		t.Fatalf("expected ErrInsufficientLiquidityTokens, got %v", err)
	}
	if _, _, err := WithdrawalAmounts(1000, 4000, 2001, 2000); !errors.Is(err, ErrInsufficientLiquidityTokens) {
		t.Fatalf("expected ErrInsufficientLiquidityTokens, got %v", err)
	}
	if _, _, err := WithdrawalAmounts(0, 4000, 1, 2000); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
}
