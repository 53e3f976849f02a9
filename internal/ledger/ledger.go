// Package ledger defines the token ledger the engine moves funds through and
// the batch discipline that makes a multi-step operation all-or-nothing.
package ledger

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSupplyOverflow      = errors.New("supply overflow")
	ErrBalanceOverflow     = errors.New("balance overflow")
)

// Ledger holds token balances keyed by (owner, asset). Each call is atomic on
// its own and assumed to be authorized by the caller.
type Ledger interface {
	Transfer(ctx context.Context, from, to, asset common.Address, amount uint64) error
	Mint(ctx context.Context, asset, to common.Address, amount uint64) error
	Burn(ctx context.Context, asset, from common.Address, amount uint64) error
	BalanceOf(ctx context.Context, owner, asset common.Address) (uint64, error)
	TotalSupply(ctx context.Context, asset common.Address) (uint64, error)
}

// Committer is implemented by ledgers that can apply several operations as
// one atomic unit.
type Committer interface {
	Commit(ctx context.Context, ops []Op) error
}

// OpKind enumerates staged ledger operations.
type OpKind uint8

const (
	OpTransfer OpKind = iota + 1
	OpMint
	OpBurn
)

func (k OpKind) String() string {
	switch k {
	case OpTransfer:
		return "transfer"
	case OpMint:
		return "mint"
	case OpBurn:
		return "burn"
	default:
		return "unknown"
	}
}

// Op is one staged ledger call. From is unused by mint, To by burn.
type Op struct {
	Kind   OpKind
	Asset  common.Address
	From   common.Address
	To     common.Address
	Amount uint64
}

// Apply runs op against l.
func (op Op) Apply(ctx context.Context, l Ledger) error {
	switch op.Kind {
	case OpTransfer:
		return l.Transfer(ctx, op.From, op.To, op.Asset, op.Amount)
	case OpMint:
		return l.Mint(ctx, op.Asset, op.To, op.Amount)
	case OpBurn:
		return l.Burn(ctx, op.Asset, op.From, op.Amount)
	default:
		return errors.New("unknown ledger op")
	}
}

// Inverse returns the op that undoes op.
func (op Op) Inverse() Op {
	switch op.Kind {
	case OpTransfer:
		return Op{Kind: OpTransfer, Asset: op.Asset, From: op.To, To: op.From, Amount: op.Amount}
	case OpMint:
		return Op{Kind: OpBurn, Asset: op.Asset, From: op.To, Amount: op.Amount}
	case OpBurn:
		return Op{Kind: OpMint, Asset: op.Asset, To: op.From, Amount: op.Amount}
	default:
		return op
	}
}
