package amm

import (
	"errors"
	"math"
	"testing"
)

func TestQuote(t *testing.T) {
	got, err := Quote(10, 100, 400)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 40 {
		t.Fatalf("quote mismatch: got %d want 40", got)
	}

	// 3 * 3 / 2 = 4.5 floors to 4
	got, err = Quote(3, 2, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 4 {
		t.Fatalf("quote should floor: got %d want 4", got)
	}
}

func TestQuoteErrors(t *testing.T) {
	if _, err := Quote(0, 100, 100); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := Quote(10, 0, 100); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
	if _, err := Quote(10, 100, 0); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
	if _, err := Quote(math.MaxUint64, 1, 2); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestAmountOutScenario(t *testing.T) {
	curve, err := NewCurve(30, BoundInclusive)
	if err != nil {
		t.Fatalf("curve: %v", err)
	}

	// 997000*4000 / (1000*10000 + 997000) = 3988000000 / 10997000
	got, err := curve.AmountOut(100, 1000, 4000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 362 {
		t.Fatalf("amount out mismatch: got %d want 362", got)
	}
}

func TestAmountOutZeroFee(t *testing.T) {
	curve := Curve{}
	got, err := curve.AmountOut(100, 1000, 4000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 363 {
		t.Fatalf("amount out mismatch: got %d want 363", got)
	}
}

func TestAmountOutNeverDrains(t *testing.T) {
	curve := Curve{FeeBasisPoints: 30}
	got, err := curve.AmountOut(math.MaxUint64, 1, math.MaxUint64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got >= math.MaxUint64 {
		t.Fatalf("output must stay below reserve: %d", got)
	}
}

func TestAmountOutErrors(t *testing.T) {
	curve := Curve{FeeBasisPoints: 30}
	if _, err := curve.AmountOut(0, 1000, 4000); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := curve.AmountOut(1, 0, 4000); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
	if _, err := curve.AmountOut(1, 1000, 0); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
}

func TestAmountOutRejectsUnvalidatedFee(t *testing.T) {
	for _, fee := range []uint16{BasisPointsDenominator, BasisPointsDenominator + 1, math.MaxUint16} {
		if _, err := (Curve{FeeBasisPoints: fee}).AmountOut(100, 1000, 4000); !errors.Is(err, ErrInvalidFee) {
			t.Fatalf("fee %d: expected ErrInvalidFee, got %v", fee, err)
		}
	}
	got, err := Curve{FeeBasisPoints: BasisPointsDenominator - 1}.AmountOut(10_000, 1000, 4000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 10000 * 1 * 4000 / (1000*10000 + 10000) floors to 3.
	if got != 3 {
		t.Fatalf("amount out mismatch: got %d want 3", got)
	}
}

func TestCurveValidate(t *testing.T) {
	if _, err := NewCurve(BasisPointsDenominator, BoundInclusive); !errors.Is(err, ErrInvalidFee) {
		t.Fatalf("expected ErrInvalidFee, got %v", err)
	}
	if _, err := NewCurve(BasisPointsDenominator-1, BoundInclusive); err != nil {
		t.Fatalf("9999 bps should be accepted: %v", err)
	}
}

func TestDepositQuoteEmptyPool(t *testing.T) {
	curve := Curve{FeeBasisPoints: 30}
	a, b, err := curve.DepositQuote(0, 0, 1000, 4000, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != 1000 || b != 4000 {
		t.Fatalf("first deposit should be taken as desired: %d/%d", a, b)
	}
}

func TestDepositQuoteBranches(t *testing.T) {
	curve := Curve{FeeBasisPoints: 30}

	a, b, err := curve.DepositQuote(1000, 4000, 100, 1000, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != 100 || b != 400 {
		t.Fatalf("b-optimal branch mismatch: %d/%d", a, b)
	}

	a, b, err = curve.DepositQuote(1000, 4000, 100, 200, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != 50 || b != 200 {
		t.Fatalf("a-optimal branch mismatch: %d/%d", a, b)
	}
}

func TestDepositQuoteBounds(t *testing.T) {
	inclusive := Curve{FeeBasisPoints: 30, Bound: BoundInclusive}
	reference := Curve{FeeBasisPoints: 30, Bound: BoundReference}

	if _, _, err := inclusive.DepositQuote(1000, 4000, 100, 1000, 0, 400); err != nil {
		t.Fatalf("inclusive bound should accept equality: %v", err)
	}
	if _, _, err := reference.DepositQuote(1000, 4000, 100, 1000, 0, 400); !errors.Is(err, ErrSlippageExceeded) {
		t.Fatalf("reference bound should reject equality, got %v", err)
	}
	if _, _, err := reference.DepositQuote(1000, 4000, 100, 1000, 0, 399); err != nil {
		t.Fatalf("reference bound should accept amount above minimum: %v", err)
	}

	if _, _, err := inclusive.DepositQuote(1000, 4000, 100, 200, 50, 0); err != nil {
		t.Fatalf("inclusive bound should accept equality on token a: %v", err)
	}
	if _, _, err := inclusive.DepositQuote(1000, 4000, 100, 200, 51, 0); !errors.Is(err, ErrSlippageExceeded) {
		t.Fatalf("expected ErrSlippageExceeded, got %v", err)
	}
	if _, _, err := reference.DepositQuote(1000, 4000, 100, 200, 50, 0); !errors.Is(err, ErrSlippageExceeded) {
		t.Fatalf("reference bound should reject equality on token a, got %v", err)
	}
}

func TestDepositQuoteZeroDesired(t *testing.T) {
	curve := Curve{FeeBasisPoints: 30}
	if _, _, err := curve.DepositQuote(1000, 4000, 0, 100, 0, 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestParseBound(t *testing.T) {
	for input, want := range map[string]Bound{"": BoundInclusive, "inclusive": BoundInclusive, "reference": BoundReference} {
		got, err := ParseBound(input)
		if err != nil {
			t.Fatalf("parse %q: %v", input, err)
		}
		if got != want {
			t.Fatalf("parse %q: got %s want %s", input, got, want)
		}
	}
	if _, err := ParseBound("loose"); err == nil {
		t.Fatalf("expected error for unknown bound")
	}
}

func TestFeeAmount(t *testing.T) {
	curve := Curve{FeeBasisPoints: 30}
	if got := curve.FeeAmount(100_000); got != 300 {
		t.Fatalf("fee mismatch: got %d want 300", got)
	}
	if got := curve.FeeAmount(100); got != 0 {
		t.Fatalf("fee should floor: got %d", got)
	}
}
