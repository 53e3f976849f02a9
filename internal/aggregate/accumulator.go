package aggregate

import (
	"encoding/json"
	"fmt"
	"math/big"

	"simpleamm/internal/model"
)

// Accumulator holds aggregate values for one pool window.
type Accumulator struct {
	PoolAddress   string
	TokenA        string
	TokenB        string
	LPToken       string
	Fee           uint16
	WindowStart   uint64
	WindowEnd     uint64
	SwapCount     uint64
	VolumeA       *big.Int
	VolumeB       *big.Int
	FeeA          *big.Int
	FeeB          *big.Int
	ReserveA      uint64
	ReserveB      uint64
	LPSupply      uint64
	FirstSequence uint64
	LastSequence  uint64
}

func NewAccumulator(record model.EventRecord, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		PoolAddress:   record.Pool,
		TokenA:        record.TokenA,
		TokenB:        record.TokenB,
		LPToken:       record.LPToken,
		Fee:           record.Fee,
		WindowStart:   windowStart,
		WindowEnd:     windowEnd,
		VolumeA:       big.NewInt(0),
		VolumeB:       big.NewInt(0),
		FeeA:          big.NewInt(0),
		FeeB:          big.NewInt(0),
		FirstSequence: record.Sequence,
	}
}

// AddEvent folds record into the window. Every event moves the closing
// reserves; only swaps add volume and fees.
func (a *Accumulator) AddEvent(record model.EventRecord) error {
	if record.Sequence >= a.LastSequence {
		a.LastSequence = record.Sequence
		a.ReserveA = record.ReserveA
		a.ReserveB = record.ReserveB
		a.LPSupply = record.LPSupply
	}
	if a.FirstSequence == 0 || record.Sequence < a.FirstSequence {
		a.FirstSequence = record.Sequence
	}

	switch record.Name {
	case model.EventSwapExecuted:
		var swap model.SwapExecutedData
		if err := json.Unmarshal(record.Data, &swap); err != nil {
			return fmt.Errorf("decode swap: %w", err)
		}
		return a.applySwap(swap)
	default:
		return nil
	}
}

func (a *Accumulator) applySwap(swap model.SwapExecutedData) error {
	in := new(big.Int).SetUint64(swap.AmountIn)
	out := new(big.Int).SetUint64(swap.AmountOut)
	fee := new(big.Int).SetUint64(swap.Fee)

	switch swap.Side {
	case model.SellA.String():
		a.VolumeA.Add(a.VolumeA, in)
		a.VolumeB.Add(a.VolumeB, out)
		a.FeeA.Add(a.FeeA, fee)
	case model.SellB.String():
		a.VolumeB.Add(a.VolumeB, in)
		a.VolumeA.Add(a.VolumeA, out)
		a.FeeB.Add(a.FeeB, fee)
	default:
		return fmt.Errorf("unknown swap side: %q", swap.Side)
	}

	a.SwapCount++
	return nil
}
