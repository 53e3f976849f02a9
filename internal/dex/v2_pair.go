// Package dex reads reserves from deployed Uniswap-V2-style pairs.
package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"simpleamm/internal/chain"
)

// Storage layout of UniswapV2Pair.
const (
	slotTotalSupply = 0

	slotToken0   = 6
	slotToken1   = 7
	slotReserves = 8

	reserveBits = 112
)

var (
	ErrNotPair       = errors.New("not a v2 pair")
	ErrReserveTooBig = errors.New("value exceeds 64 bits")
)

// PairTokens are the immutable token addresses of a pair.
type PairTokens struct {
	Token0 common.Address
	Token1 common.Address
}

// PairState is a pair's tokens and reserves at one block.
type PairState struct {
	PairTokens

	Pair               common.Address
	Reserve0           uint64
	Reserve1           uint64
	TotalSupply        uint64
	BlockTimestampLast uint32
}

// PairTokenCache caches pair tokens by address.
type PairTokenCache struct {
	mu   sync.RWMutex
	data map[common.Address]PairTokens
}

func NewPairTokenCache() *PairTokenCache {
	return &PairTokenCache{data: make(map[common.Address]PairTokens)}
}

func (c *PairTokenCache) Get(address common.Address) (PairTokens, bool) {
	c.mu.RLock()
	tokens, ok := c.data[address]
	c.mu.RUnlock()
	return tokens, ok
}

func (c *PairTokenCache) Set(address common.Address, tokens PairTokens) {
	c.mu.Lock()
	c.data[address] = tokens
	c.mu.Unlock()
}

// PairReader reads pair state straight from contract storage.
type PairReader struct {
	client *chain.Client
	tokens *PairTokenCache
}

func NewPairReader(client *chain.Client) *PairReader {
	return &PairReader{client: client, tokens: NewPairTokenCache()}
}

// Tokens returns the pair's token0 and token1.
func (r *PairReader) Tokens(ctx context.Context, pair common.Address) (PairTokens, error) {
	if tokens, ok := r.tokens.Get(pair); ok {
		return tokens, nil
	}

	word0, err := r.client.StorageAt(ctx, pair, slotToken0, nil)
	if err != nil {
		return PairTokens{}, fmt.Errorf("read token0: %w", err)
	}
	word1, err := r.client.StorageAt(ctx, pair, slotToken1, nil)
	if err != nil {
		return PairTokens{}, fmt.Errorf("read token1: %w", err)
	}

	tokens := PairTokens{
		Token0: common.BytesToAddress(word0),
		Token1: common.BytesToAddress(word1),
	}
	if tokens.Token0 == (common.Address{}) || tokens.Token1 == (common.Address{}) {
		return PairTokens{}, fmt.Errorf("%w: %s has no tokens", ErrNotPair, pair.Hex())
	}
	r.tokens.Set(pair, tokens)
	return tokens, nil
}

// State reads the pair's tokens and reserves. A nil block reads the latest state.
func (r *PairReader) State(ctx context.Context, pair common.Address, block *big.Int) (PairState, error) {
	tokens, err := r.Tokens(ctx, pair)
	if err != nil {
		return PairState{}, err
	}

	word, err := r.client.StorageAt(ctx, pair, slotReserves, block)
	if err != nil {
		return PairState{}, fmt.Errorf("read reserves: %w", err)
	}
	reserve0, reserve1, ts := unpackReserves(word)

	supplyWord, err := r.client.StorageAt(ctx, pair, slotTotalSupply, block)
	if err != nil {
		return PairState{}, fmt.Errorf("read total supply: %w", err)
	}

	state := PairState{Pair: pair, PairTokens: tokens, BlockTimestampLast: ts}
	if state.Reserve0, err = toUint64(reserve0); err != nil {
		return PairState{}, fmt.Errorf("reserve0: %w", err)
	}
	if state.Reserve1, err = toUint64(reserve1); err != nil {
		return PairState{}, fmt.Errorf("reserve1: %w", err)
	}
	if state.TotalSupply, err = toUint64(new(big.Int).SetBytes(supplyWord)); err != nil {
		return PairState{}, fmt.Errorf("total supply: %w", err)
	}
	return state, nil
}

// unpackReserves splits the packed slot: reserve0 in the low 112 bits,
// reserve1 in the next 112, blockTimestampLast in the top 32.
func unpackReserves(word []byte) (*big.Int, *big.Int, uint32) {
	packed := new(big.Int).SetBytes(word)
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), reserveBits), big.NewInt(1))

	reserve0 := new(big.Int).And(packed, mask)
	reserve1 := new(big.Int).And(new(big.Int).Rsh(packed, reserveBits), mask)
	ts := new(big.Int).Rsh(packed, 2*reserveBits).Uint64()
	return reserve0, reserve1, uint32(ts)
}

func toUint64(value *big.Int) (uint64, error) {
	if !value.IsUint64() {
		return 0, fmt.Errorf("%w: %s", ErrReserveTooBig, value.String())
	}
	return value.Uint64(), nil
}
