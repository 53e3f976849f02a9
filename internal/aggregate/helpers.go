package aggregate

import "math/big"

const ratioScale = 18

func computeFeeRates(feeA, feeB *big.Int, reserveA, reserveB uint64) (*string, *string) {
	var feeRateA *string
	var feeRateB *string

	if rate := computeRate(feeA, reserveA); rate != "" {
		feeRateA = &rate
	}
	if rate := computeRate(feeB, reserveB); rate != "" {
		feeRateB = &rate
	}
	return feeRateA, feeRateB
}

// computeRate returns fee/reserve as a decimal string, or "" when undefined.
func computeRate(fee *big.Int, reserve uint64) string {
	if fee == nil || fee.Sign() == 0 || reserve == 0 {
		return ""
	}
	rat := new(big.Rat).SetFrac(fee, new(big.Int).SetUint64(reserve))
	return rat.FloatString(ratioScale)
}
