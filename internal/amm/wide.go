package amm

import "github.com/holiman/uint256"

// mulDiv returns floor(x*y/d) computed on a 256-bit intermediate.
// The caller guarantees d != 0.
func mulDiv(x, y, d uint64) (uint64, error) {
	z := new(uint256.Int).Mul(uint256.NewInt(x), uint256.NewInt(y))
	z.Div(z, uint256.NewInt(d))
	if !z.IsUint64() {
		return 0, ErrOverflow
	}
	return z.Uint64(), nil
}

// sqrtProduct returns floor(sqrt(x*y)). The product never exceeds 128 bits, so
// the root always fits in 64.
func sqrtProduct(x, y uint64) uint64 {
	z := new(uint256.Int).Mul(uint256.NewInt(x), uint256.NewInt(y))
	return z.Sqrt(z).Uint64()
}

func addChecked(x, y uint64) (uint64, error) {
	sum := x + y
	if sum < x {
		return 0, ErrOverflow
	}
	return sum, nil
}
