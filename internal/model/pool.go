package model

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"simpleamm/internal/amm"
)

// Side names the asset a trader sells into the pool.
type Side uint8

const (
	SellA Side = iota + 1
	SellB
)

func (s Side) String() string {
	switch s {
	case SellA:
		return "sell_a"
	case SellB:
		return "sell_b"
	default:
		return "unknown"
	}
}

// Pool is the reserve and supply record of one asset pair. TokenA sorts
// before TokenB. Reserves and supply mirror the ledger balances of the pool
// accounts and the total supply of LPToken.
type Pool struct {
	Address        common.Address `json:"address"`
	TokenA         common.Address `json:"token_a"`
	TokenB         common.Address `json:"token_b"`
	LPToken        common.Address `json:"lp_token"`
	ReserveA       uint64         `json:"reserve_a"`
	ReserveB       uint64         `json:"reserve_b"`
	LPSupply       uint64         `json:"lp_supply"`
	FeeBasisPoints uint16         `json:"fee_basis_points"`
}

// Empty reports whether the pool holds nothing and prices the next deposit freely.
func (p Pool) Empty() bool {
	return p.ReserveA == 0 && p.ReserveB == 0 && p.LPSupply == 0
}

// Unclaimed reports whether no liquidity tokens exist. Whatever the pool
// accounts hold then is stray and belongs to the next depositor.
func (p Pool) Unclaimed() bool {
	return p.LPSupply == 0
}

// Swept returns the pool with stray reserves of an unclaimed pool cleared,
// and the amounts cleared.
func (p Pool) Swept() (Pool, uint64, uint64) {
	if !p.Unclaimed() {
		return p, 0, 0
	}
	strayA, strayB := p.ReserveA, p.ReserveB
	p.ReserveA, p.ReserveB = 0, 0
	return p, strayA, strayB
}

// Check verifies lpSupply == 0 iff both reserves are zero.
func (p Pool) Check() error {
	reservesZero := p.ReserveA == 0 && p.ReserveB == 0
	if (p.LPSupply == 0) != reservesZero {
		return fmt.Errorf("%w: reserves %d/%d with supply %d", amm.ErrPoolInvariant, p.ReserveA, p.ReserveB, p.LPSupply)
	}
	if p.ReserveA == 0 && p.ReserveB != 0 || p.ReserveB == 0 && p.ReserveA != 0 {
		return fmt.Errorf("%w: one-sided reserves %d/%d", amm.ErrPoolInvariant, p.ReserveA, p.ReserveB)
	}
	return nil
}

// Reserves returns (reserveIn, reserveOut) for a trade on side.
func (p Pool) Reserves(side Side) (uint64, uint64) {
	if side == SellB {
		return p.ReserveB, p.ReserveA
	}
	return p.ReserveA, p.ReserveB
}

// SideOf resolves which side of the pool a sold asset belongs to.
func (p Pool) SideOf(asset common.Address) (Side, error) {
	switch asset {
	case p.TokenA:
		return SellA, nil
	case p.TokenB:
		return SellB, nil
	default:
		return 0, fmt.Errorf("%w: %s", amm.ErrInvalidTokenMint, asset.Hex())
	}
}

// ApplyDeposit returns the pool after adding amountA/amountB and minting lpMinted.
func (p Pool) ApplyDeposit(amountA, amountB, lpMinted uint64) (Pool, error) {
	next := p
	var err error
	if next.ReserveA, err = add(p.ReserveA, amountA, "reserve a"); err != nil {
		return p, err
	}
	if next.ReserveB, err = add(p.ReserveB, amountB, "reserve b"); err != nil {
		return p, err
	}
	if next.LPSupply, err = add(p.LPSupply, lpMinted, "lp supply"); err != nil {
		return p, err
	}
	if err := next.Check(); err != nil {
		return p, err
	}
	return next, nil
}

// ApplyWithdrawal returns the pool after releasing amountA/amountB and burning lpBurned.
func (p Pool) ApplyWithdrawal(amountA, amountB, lpBurned uint64) (Pool, error) {
	next := p
	var err error
	if next.ReserveA, err = sub(p.ReserveA, amountA, "reserve a"); err != nil {
		return p, err
	}
	if next.ReserveB, err = sub(p.ReserveB, amountB, "reserve b"); err != nil {
		return p, err
	}
	if next.LPSupply, err = sub(p.LPSupply, lpBurned, "lp supply"); err != nil {
		return p, err
	}
	if err := next.Check(); err != nil {
		return p, err
	}
	return next, nil
}

// ApplySwap returns the pool after taking amountIn on side and paying amountOut
// from the other reserve.
func (p Pool) ApplySwap(amountIn, amountOut uint64, side Side) (Pool, error) {
	next := p
	var err error
	switch side {
	case SellA:
		if next.ReserveA, err = add(p.ReserveA, amountIn, "reserve a"); err != nil {
			return p, err
		}
		if next.ReserveB, err = sub(p.ReserveB, amountOut, "reserve b"); err != nil {
			return p, err
		}
	case SellB:
		if next.ReserveB, err = add(p.ReserveB, amountIn, "reserve b"); err != nil {
			return p, err
		}
		if next.ReserveA, err = sub(p.ReserveA, amountOut, "reserve a"); err != nil {
			return p, err
		}
	default:
		return p, fmt.Errorf("%w: unknown side %d", amm.ErrPoolInvariant, side)
	}
	if err := next.Check(); err != nil {
		return p, err
	}
	return next, nil
}

func add(x, y uint64, field string) (uint64, error) {
	sum := x + y
	if sum < x {
		return 0, fmt.Errorf("%w: %s overflow", amm.ErrOverflow, field)
	}
	return sum, nil
}

func sub(x, y uint64, field string) (uint64, error) {
	if y > x {
		return 0, fmt.Errorf("%w: %s would go negative (%d - %d)", amm.ErrPoolInvariant, field, x, y)
	}
	return x - y, nil
}
