package main

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"simpleamm/internal/amm"
)

func TestQuoteSwapBothSides(t *testing.T) {
	curve, err := amm.NewCurve(30, amm.BoundInclusive)
	if err != nil {
		t.Fatalf("curve: %v", err)
	}
	report := quoteReport{ReserveA: 1000, ReserveB: 4000}

	sellA, err := quoteSwap(curve, report, "a", 100)
	if err != nil {
		t.Fatalf("sell a: %v", err)
	}
	if sellA.AmountOut != 362 || sellA.Side != "sell_a" {
		t.Fatalf("unexpected sell a quote: %+v", sellA)
	}

	sellB, err := quoteSwap(curve, report, "b", 400)
	if err != nil {
		t.Fatalf("sell b: %v", err)
	}
	if sellB.AmountOut != 90 || sellB.Side != "sell_b" || sellB.Fee != 1 {
		t.Fatalf("unexpected sell b quote: %+v", sellB)
	}
}

func TestQuoteDeposit(t *testing.T) {
	curve, _ := amm.NewCurve(30, amm.BoundInclusive)

	first, err := quoteDeposit(curve, quoteReport{}, 1000, 4000)
	if err != nil {
		t.Fatalf("first deposit: %v", err)
	}
	if first.LPMinted != 2000 {
		t.Fatalf("first deposit should mint 2000, got %+v", first)
	}

	next, err := quoteDeposit(curve, quoteReport{ReserveA: 1000, ReserveB: 4000, LPSupply: 2000}, 100, 1000)
	if err != nil {
		t.Fatalf("proportional deposit: %v", err)
	}
	if next.AmountA != 100 || next.AmountB != 400 || next.LPMinted != 200 {
		t.Fatalf("unexpected proportional deposit: %+v", next)
	}
}

func TestQuoteCommandGivenReserves(t *testing.T) {
	chdirTemp(t)
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"quote", "--reserve-a=1000", "--reserve-b=4000", "--amount-in=100", "--log-level=error"})
	if err := root.Execute(); err != nil {
		t.Fatalf("quote: %v", err)
	}

	var report quoteReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Swap == nil || report.Swap.AmountOut != 362 || report.Deposit != nil {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func chdirTemp(t *testing.T) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
