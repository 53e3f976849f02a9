package amm

import "fmt"

// InitialMint returns the claim units minted by the first deposit into an
// empty pool: floor(sqrt(amountA * amountB)).
func InitialMint(amountA, amountB uint64) (uint64, error) {
	if amountA == 0 || amountB == 0 {
		return 0, ErrInvalidInput
	}
	return sqrtProduct(amountA, amountB), nil
}

// ProportionalMint returns the claim units minted by a deposit into a
// non-empty pool. The smaller of the two shares is used so a lopsided
// deposit never mints more than its scarcer side is worth.
func ProportionalMint(amountA, amountB, reserveA, reserveB, lpSupply uint64) (uint64, error) {
	if amountA == 0 || amountB == 0 {
		return 0, ErrInsufficientLiquidityMinted
	}
	if reserveA == 0 || reserveB == 0 || lpSupply == 0 {
		return 0, ErrInsufficientLiquidity
	}
	shareA, err := mulDiv(amountA, lpSupply, reserveA)
	if err != nil {
		return 0, fmt.Errorf("share of token a: %w", err)
	}
	shareB, err := mulDiv(amountB, lpSupply, reserveB)
	if err != nil {
		return 0, fmt.Errorf("share of token b: %w", err)
	}
	minted := min(shareA, shareB)
	if minted == 0 {
		return 0, ErrInsufficientLiquidityMinted
	}
	if _, err := addChecked(lpSupply, minted); err != nil {
		return 0, fmt.Errorf("liquidity supply: %w", err)
	}
	return minted, nil
}

// WithdrawalAmounts returns the reserves released by burning lpTokensBurned
// out of lpSupply claim units.
func WithdrawalAmounts(reserveA, reserveB, lpTokensBurned, lpSupply uint64) (uint64, uint64, error) {
	if lpTokensBurned == 0 {
		return 0, 0, ErrInsufficientLiquidityTokens
	}
	if reserveA == 0 || reserveB == 0 || lpSupply == 0 {
		return 0, 0, ErrInsufficientLiquidity
	}
	if lpTokensBurned > lpSupply {
		return 0, 0, fmt.Errorf("%w: burn %d exceeds supply %d", ErrInsufficientLiquidityTokens, lpTokensBurned, lpSupply)
	}
	// burned <= supply keeps both results within their reserve.
	amountA, err := mulDiv(lpTokensBurned, reserveA, lpSupply)
	if err != nil {
		return 0, 0, err
	}
	amountB, err := mulDiv(lpTokensBurned, reserveB, lpSupply)
	if err != nil {
		return 0, 0, err
	}
	return amountA, amountB, nil
}
