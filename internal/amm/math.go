// Package amm implements the integer pricing and liquidity-share math of a
// two-asset constant-product market maker. Every division floors, so rounding
// always leaves value in the pool.
package amm

import (
	"fmt"

	"github.com/holiman/uint256"
)

// BasisPointsDenominator is the fee denominator: 30 basis points is 0.30%.
const BasisPointsDenominator = 10_000

// DefaultFeeBasisPoints matches the 0.30% liquidity-provider fee.
const DefaultFeeBasisPoints = 30

// Bound selects how caller-declared minimums are compared.
type Bound uint8

const (
	// BoundInclusive accepts an amount equal to its minimum everywhere.
	BoundInclusive Bound = iota
	// BoundReference requires deposit amounts strictly above their minimums
	// while swap and withdrawal outputs may equal theirs.
	BoundReference
)

// ParseBound maps a config value onto a Bound.
func ParseBound(value string) (Bound, error) {
	switch value {
	case "", "inclusive":
		return BoundInclusive, nil
	case "reference", "strict-deposit":
		return BoundReference, nil
	default:
		return 0, fmt.Errorf("unknown slippage bound: %s", value)
	}
}

func (b Bound) String() string {
	if b == BoundReference {
		return "reference"
	}
	return "inclusive"
}

// depositMet reports whether a deposit amount satisfies its minimum.
func (b Bound) depositMet(amount, min uint64) bool {
	if b == BoundReference {
		return amount > min
	}
	return amount >= min
}

// OutputMet reports whether a swap or withdrawal output satisfies its minimum.
func (b Bound) OutputMet(amount, min uint64) bool {
	return amount >= min
}

// Quote returns the amount of B matching amountA at the reserveA:reserveB ratio.
func Quote(amountA, reserveA, reserveB uint64) (uint64, error) {
	if amountA == 0 {
		return 0, ErrInvalidInput
	}
	if reserveA == 0 || reserveB == 0 {
		return 0, ErrInsufficientLiquidity
	}
	amountB, err := mulDiv(amountA, reserveB, reserveA)
	if err != nil {
		return 0, fmt.Errorf("quote %d at %d:%d: %w", amountA, reserveA, reserveB, err)
	}
	return amountB, nil
}

// Curve is the constant-product pricing function for one fee rate.
type Curve struct {
	FeeBasisPoints uint16
	Bound          Bound
}

// NewCurve validates the fee and returns a Curve.
func NewCurve(feeBasisPoints uint16, bound Bound) (Curve, error) {
	c := Curve{FeeBasisPoints: feeBasisPoints, Bound: bound}
	if err := c.Validate(); err != nil {
		return Curve{}, err
	}
	return c, nil
}

func (c Curve) Validate() error {
	if c.FeeBasisPoints >= BasisPointsDenominator {
		return fmt.Errorf("%w: %d", ErrInvalidFee, c.FeeBasisPoints)
	}
	return nil
}

// DepositQuote returns the amounts a deposit actually takes. The first deposit
// into an empty pool sets the price and is taken as desired. Otherwise the
// deposit stays on the current ratio without exceeding either desired amount.
func (c Curve) DepositQuote(reserveA, reserveB, amountADesired, amountBDesired, amountAMin, amountBMin uint64) (uint64, uint64, error) {
	if reserveA == 0 && reserveB == 0 {
		return amountADesired, amountBDesired, nil
	}

	amountBOptimal, err := Quote(amountADesired, reserveA, reserveB)
	if err != nil {
		return 0, 0, err
	}
	if amountBOptimal <= amountBDesired {
		if !c.Bound.depositMet(amountBOptimal, amountBMin) {
			return 0, 0, fmt.Errorf("%w: token b amount %d below minimum %d", ErrSlippageExceeded, amountBOptimal, amountBMin)
		}
		return amountADesired, amountBOptimal, nil
	}

	amountAOptimal, err := Quote(amountBDesired, reserveB, reserveA)
	if err != nil {
		return 0, 0, err
	}
	if amountAOptimal > amountADesired {
		return 0, 0, fmt.Errorf("%w: optimal token a amount %d exceeds desired %d", ErrPoolInvariant, amountAOptimal, amountADesired)
	}
	if !c.Bound.depositMet(amountAOptimal, amountAMin) {
		return 0, 0, fmt.Errorf("%w: token a amount %d below minimum %d", ErrSlippageExceeded, amountAOptimal, amountAMin)
	}
	return amountAOptimal, amountBDesired, nil
}

// AmountOut returns the swap output for amountIn with the fee taken from the
// input. The result is always strictly below reserveOut.
func (c Curve) AmountOut(amountIn, reserveIn, reserveOut uint64) (uint64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	if amountIn == 0 {
		return 0, ErrInvalidInput
	}
	if reserveIn == 0 || reserveOut == 0 {
		return 0, ErrInsufficientLiquidity
	}

	// amountInWithFee = amountIn * (10000 - fee)
	withFee := new(uint256.Int).Mul(uint256.NewInt(amountIn), uint256.NewInt(BasisPointsDenominator-uint64(c.FeeBasisPoints)))
	// numerator = amountInWithFee * reserveOut
	numerator := new(uint256.Int).Mul(withFee, uint256.NewInt(reserveOut))
	// denominator = reserveIn * 10000 + amountInWithFee
	denominator := new(uint256.Int).Mul(uint256.NewInt(reserveIn), uint256.NewInt(BasisPointsDenominator))
	denominator.Add(denominator, withFee)

	out := numerator.Div(numerator, denominator)
	return out.Uint64(), nil
}

// FeeAmount returns the part of amountIn retained by the pool as fee, floored.
func (c Curve) FeeAmount(amountIn uint64) uint64 {
	fee, _ := mulDiv(amountIn, uint64(c.FeeBasisPoints), BasisPointsDenominator)
	return fee
}
