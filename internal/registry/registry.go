// Package registry resolves asset pairs to pool records and derives the
// ledger accounts each pool owns.
package registry

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"simpleamm/internal/amm"
	"simpleamm/internal/model"
)

var (
	poolSeed = []byte("pool")
	lpSeed   = []byte("liquidity_token")
)

// Pair is an asset pair in the caller's orientation.
type Pair struct {
	A common.Address `json:"token_a"`
	B common.Address `json:"token_b"`
}

// Key identifies an unordered pair: Token0 sorts before Token1.
type Key struct {
	Token0 common.Address
	Token1 common.Address
}

func (k Key) String() string {
	return k.Token0.Hex() + "/" + k.Token1.Hex()
}

// Canonical orders the pair. flipped reports whether p.A is the pool's
// token B.
func (p Pair) Canonical() (key Key, flipped bool, err error) {
	if p.A == (common.Address{}) || p.B == (common.Address{}) {
		return Key{}, false, fmt.Errorf("%w: zero asset address", amm.ErrInvalidInput)
	}
	switch bytes.Compare(p.A.Bytes(), p.B.Bytes()) {
	case 0:
		return Key{}, false, fmt.Errorf("%w: pair assets must differ", amm.ErrInvalidInput)
	case 1:
		return Key{Token0: p.B, Token1: p.A}, true, nil
	default:
		return Key{Token0: p.A, Token1: p.B}, false, nil
	}
}

// PoolAddress is the ledger owner holding both reserves of the pair.
func PoolAddress(key Key) common.Address {
	return derive(poolSeed, key)
}

// LPTokenAddress is the asset id of the pair's liquidity token.
func LPTokenAddress(key Key) common.Address {
	return derive(lpSeed, key)
}

func derive(seed []byte, key Key) common.Address {
	return common.BytesToAddress(crypto.Keccak256(seed, key.Token0.Bytes(), key.Token1.Bytes())[12:])
}

// Entry is a registered pool.
type Entry struct {
	Key  Key
	Pool model.Pool
}

// Registry holds one pool record per unordered pair.
type Registry struct {
	mu             sync.RWMutex
	feeBasisPoints uint16
	pools          map[Key]model.Pool
}

// New returns an empty registry whose pools charge feeBasisPoints.
func New(feeBasisPoints uint16) (*Registry, error) {
	if feeBasisPoints >= amm.BasisPointsDenominator {
		return nil, fmt.Errorf("%w: %d", amm.ErrInvalidFee, feeBasisPoints)
	}
	return &Registry{
		feeBasisPoints: feeBasisPoints,
		pools:          make(map[Key]model.Pool),
	}, nil
}

// Resolve returns the pool for pair. A pair without a pool gets an empty,
// unregistered candidate and created is true; the pool is registered by
// the first Update that commits it.
func (r *Registry) Resolve(pair Pair) (Entry, bool, error) {
	key, _, err := pair.Canonical()
	if err != nil {
		return Entry{}, false, err
	}

	r.mu.RLock()
	pool, ok := r.pools[key]
	r.mu.RUnlock()
	if ok {
		return Entry{Key: key, Pool: pool}, false, nil
	}
	return Entry{Key: key, Pool: r.candidate(key)}, true, nil
}

func (r *Registry) candidate(key Key) model.Pool {
	return model.Pool{
		Address:        PoolAddress(key),
		TokenA:         key.Token0,
		TokenB:         key.Token1,
		LPToken:        LPTokenAddress(key),
		FeeBasisPoints: r.feeBasisPoints,
	}
}

// Lookup returns the pool for pair without creating it.
func (r *Registry) Lookup(pair Pair) (Entry, bool) {
	key, _, err := pair.Canonical()
	if err != nil {
		return Entry{}, false
	}
	r.mu.RLock()
	pool, ok := r.pools[key]
	r.mu.RUnlock()
	return Entry{Key: key, Pool: pool}, ok
}

// Update stores the committed snapshot of pool. created reports that the
// pool was not registered before.
func (r *Registry) Update(pool model.Pool) (created bool, err error) {
	key := Key{Token0: pool.TokenA, Token1: pool.TokenB}
	if err := pool.Check(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.pools[key]
	if !ok {
		current = r.candidate(key)
	}
	if current.Address != pool.Address || current.LPToken != pool.LPToken {
		return false, fmt.Errorf("%w: pool accounts changed for %s", amm.ErrPoolInvariant, key)
	}
	if pool.FeeBasisPoints != r.feeBasisPoints {
		return false, fmt.Errorf("%w: pool %s charges %d, registry %d", amm.ErrInvalidFee, key, pool.FeeBasisPoints, r.feeBasisPoints)
	}
	r.pools[key] = pool
	return !ok, nil
}

// Pools returns every registered pool ordered by pool address.
func (r *Registry) Pools() []model.Pool {
	r.mu.RLock()
	out := make([]model.Pool, 0, len(r.pools))
	for _, pool := range r.pools {
		out = append(out, pool)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address.Bytes(), out[j].Address.Bytes()) < 0
	})
	return out
}

// Restore registers pools that already hold ledger balances, such as the
// snapshots of a previous run. Each pool must sit at its derived accounts
// and charge the registry fee.
func (r *Registry) Restore(pools []model.Pool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pool := range pools {
		key, flipped, err := Pair{A: pool.TokenA, B: pool.TokenB}.Canonical()
		if err != nil {
			return err
		}
		if flipped {
			return fmt.Errorf("%w: pool %s is not in canonical order", amm.ErrPoolInvariant, pool.Address.Hex())
		}
		if pool.Address != PoolAddress(key) || pool.LPToken != LPTokenAddress(key) {
			return fmt.Errorf("%w: pool accounts do not match %s", amm.ErrPoolInvariant, key)
		}
		if pool.FeeBasisPoints != r.feeBasisPoints {
			return fmt.Errorf("%w: pool %s charges %d, registry %d", amm.ErrInvalidFee, key, pool.FeeBasisPoints, r.feeBasisPoints)
		}
		if err := pool.Check(); err != nil {
			return err
		}
		r.pools[key] = pool
	}
	return nil
}

func (r *Registry) FeeBasisPoints() uint16 {
	return r.feeBasisPoints
}
