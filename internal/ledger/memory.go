package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type balanceKey struct {
	owner common.Address
	asset common.Address
}

// Memory is an in-process ledger. It implements Committer.
type Memory struct {
	mu       sync.Mutex
	balances map[balanceKey]uint64
	supplies map[common.Address]uint64
}

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[balanceKey]uint64),
		supplies: make(map[common.Address]uint64),
	}
}

func (m *Memory) Transfer(_ context.Context, from, to, asset common.Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transfer(from, to, asset, amount)
}

func (m *Memory) Mint(_ context.Context, asset, to common.Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mint(asset, to, amount)
}

func (m *Memory) Burn(_ context.Context, asset, from common.Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.burn(asset, from, amount)
}

func (m *Memory) BalanceOf(_ context.Context, owner, asset common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[balanceKey{owner: owner, asset: asset}], nil
}

func (m *Memory) TotalSupply(_ context.Context, asset common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.supplies[asset], nil
}

// Commit applies ops under a single lock hold. A failing op undoes the ones
// before it, so other callers never observe a partial batch.
func (m *Memory) Commit(_ context.Context, ops []Op) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, op := range ops {
		if err := m.apply(op); err != nil {
			for j := i - 1; j >= 0; j-- {
				if undoErr := m.apply(ops[j].Inverse()); undoErr != nil {
					// Unreachable while the lock is held.
					panic(fmt.Sprintf("ledger: undo %s step %d: %v", ops[j].Kind, j, undoErr))
				}
			}
			return fmt.Errorf("%s step %d: %w", op.Kind, i, err)
		}
	}
	return nil
}

func (m *Memory) apply(op Op) error {
	switch op.Kind {
	case OpTransfer:
		return m.transfer(op.From, op.To, op.Asset, op.Amount)
	case OpMint:
		return m.mint(op.Asset, op.To, op.Amount)
	case OpBurn:
		return m.burn(op.Asset, op.From, op.Amount)
	default:
		return fmt.Errorf("unknown ledger op %d", op.Kind)
	}
}

func (m *Memory) transfer(from, to, asset common.Address, amount uint64) error {
	if amount == 0 || from == to {
		return nil
	}
	fromKey := balanceKey{owner: from, asset: asset}
	toKey := balanceKey{owner: to, asset: asset}
	if m.balances[fromKey] < amount {
		return fmt.Errorf("%w: %s holds %d of %s, needs %d", ErrInsufficientBalance, from.Hex(), m.balances[fromKey], asset.Hex(), amount)
	}
	if m.balances[toKey] > ^uint64(0)-amount {
		return ErrBalanceOverflow
	}
	m.balances[fromKey] -= amount
	m.balances[toKey] += amount
	return nil
}

func (m *Memory) mint(asset, to common.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if m.supplies[asset] > ^uint64(0)-amount {
		return ErrSupplyOverflow
	}
	key := balanceKey{owner: to, asset: asset}
	// Balance cannot exceed supply, so it cannot overflow here.
	m.supplies[asset] += amount
	m.balances[key] += amount
	return nil
}

func (m *Memory) burn(asset, from common.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	key := balanceKey{owner: from, asset: asset}
	if m.balances[key] < amount {
		return fmt.Errorf("%w: %s holds %d of %s, burning %d", ErrInsufficientBalance, from.Hex(), m.balances[key], asset.Hex(), amount)
	}
	m.balances[key] -= amount
	m.supplies[asset] -= amount
	if m.balances[key] == 0 {
		delete(m.balances, key)
	}
	return nil
}
